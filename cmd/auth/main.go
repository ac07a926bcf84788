// Package main provides the Spotify authentication tool.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"github.com/rs/xid"
	zlog "github.com/rs/zerolog/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/podbox/internal/infra/logger"
	"github.com/osa030/podbox/internal/infra/spotify"
)

var (
	app          = kingpin.New("podbox-auth", "Spotify authentication tool for podbox")
	clientID     = app.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()
	timeout      = app.Flag("timeout", "How long to wait for the authorization").Default("5m").Duration()
)

// tokenExchanger is the part of spotifyauth.Authenticator the callback uses.
type tokenExchanger interface {
	Token(ctx context.Context, state string, r *http.Request, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// callback completes the authorization code flow and hands the token over.
type callback struct {
	auth  tokenExchanger
	state string
	ch    chan<- *oauth2.Token
}

func (c *callback) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if st := r.FormValue("state"); st != c.state {
		http.Error(w, "State mismatch", http.StatusForbidden)
		zlog.Warn().Msgf("auth: state mismatch: got=%s", st)
		return
	}

	token, err := c.auth.Token(r.Context(), c.state, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusForbidden)
		zlog.Error().Err(err).Msg("auth: failed to get token")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, completePage)

	select {
	case c.ch <- token:
	default:
	}
}

func main() {
	_ = godotenv.Load()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if _, err := logger.Init(logger.Config{Output: "stderr", Level: "info"}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", *port)
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(redirectURI),
		spotifyauth.WithClientID(*clientID),
		spotifyauth.WithClientSecret(*clientSecret),
		spotifyauth.WithScopes(spotify.Scopes...),
	)

	ch := make(chan *oauth2.Token, 1)
	state := "podbox-" + xid.New().String()

	mux := http.NewServeMux()
	mux.Handle("/callback", &callback{auth: auth, state: state, ch: ch})
	server := &http.Server{Addr: fmt.Sprintf(":%d", *port), Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("auth: failed to start callback server")
		}
	}()

	fmt.Println("Please visit the following URL to authorize podbox:")
	fmt.Println("")
	fmt.Println(auth.AuthURL(state))
	fmt.Println("")
	fmt.Println("Waiting for authorization...")

	var token *oauth2.Token
	select {
	case token = <-ch:
	case <-time.After(*timeout):
		zlog.Error().Msgf("auth: no authorization within %v", *timeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zlog.Warn().Err(err).Msg("auth: failed to shutdown callback server")
	}

	if token == nil {
		os.Exit(1)
	}
	printToken(os.Stdout, token.RefreshToken)
}

func printToken(w io.Writer, refreshToken string) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "=== Authorization Successful ===")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Refresh Token:")
	fmt.Fprintln(w, refreshToken)
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Add this to your config file:")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "spotify:")
	fmt.Fprintln(w, "  enabled: true")
	fmt.Fprintf(w, "  refresh_token: \"%s\"\n", refreshToken)
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Or set as environment variable:")
	fmt.Fprintf(w, "export SPOTIFY_REFRESH_TOKEN=\"%s\"\n", refreshToken)
}

const completePage = `<!DOCTYPE html>
<html>
<head>
    <title>podbox - Authorization Complete</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            height: 100vh;
            margin: 0;
            background: #191414;
            color: white;
        }
        .container { text-align: center; padding: 40px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Authorization Complete</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
