package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeExchanger struct {
	token *oauth2.Token
	err   error
	calls int
}

func (f *fakeExchanger) Token(context.Context, string, *http.Request, ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	f.calls++
	return f.token, f.err
}

func TestCallback(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		exchanger *fakeExchanger
		status    int
		wantToken bool
		wantCalls int
	}{
		{
			name:      "success",
			query:     "?state=s1&code=abc",
			exchanger: &fakeExchanger{token: &oauth2.Token{RefreshToken: "refresh"}},
			status:    http.StatusOK,
			wantToken: true,
			wantCalls: 1,
		},
		{
			name:      "state mismatch",
			query:     "?state=other&code=abc",
			exchanger: &fakeExchanger{token: &oauth2.Token{RefreshToken: "refresh"}},
			status:    http.StatusForbidden,
		},
		{
			name:      "exchange failure",
			query:     "?state=s1&code=abc",
			exchanger: &fakeExchanger{err: errors.New("invalid_grant")},
			status:    http.StatusForbidden,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := make(chan *oauth2.Token, 1)
			cb := &callback{auth: tt.exchanger, state: "s1", ch: ch}

			rec := httptest.NewRecorder()
			cb.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback"+tt.query, nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.wantCalls, tt.exchanger.calls)
			if tt.wantToken {
				require.Len(t, ch, 1)
				assert.Equal(t, "refresh", (<-ch).RefreshToken)
			} else {
				assert.Empty(t, ch)
			}
		})
	}
}

func TestPrintToken(t *testing.T) {
	var buf bytes.Buffer
	printToken(&buf, "abc")
	assert.Contains(t, buf.String(), `refresh_token: "abc"`)
	assert.Contains(t, buf.String(), `export SPOTIFY_REFRESH_TOKEN="abc"`)
}
