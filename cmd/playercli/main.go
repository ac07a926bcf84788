// Package main provides the player CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"connectrpc.com/connect"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/podbox/internal/api/connect"
	"github.com/osa030/podbox/internal/api/playerapi"
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	c := newCLI()
	command, err := c.app.Parse(os.Args[1:])
	if err != nil {
		c.app.Fatalf("%v", err)
	}

	client := playerapi.NewPlayerServiceClient(
		http.DefaultClient,
		*c.server,
		connect.WithInterceptors(apiconnect.NewControlTokenClientInterceptor(*c.token)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if command == c.shell.FullCommand() {
		if err := runShell(ctx, client, *c.server); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := c.run(ctx, client, command, os.Stdout); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
