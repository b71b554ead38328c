package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sokoni/server/internal/port/outbound"
	"golang.org/x/oauth2"
)

const (
	tokenPath         = "/oauth/v1/generate?grant_type=client_credentials"
	defaultTokenTTL   = 3599 * time.Second
	tokenExpiryMargin = 60 * time.Second
)

// tokenCache holds the client-credential token between calls.
// Fetches are serialized so a burst of callers triggers one request.
type tokenCache struct {
	mu    sync.Mutex
	token *oauth2.Token
}

// Authenticate returns a bearer token, reusing the cached one while it is valid.
// A fetch honors ctx and runs through the circuit breaker.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &outbound.ProviderError{Kind: outbound.ErrProviderUnavailable, Op: opAuth, Err: err}
	}

	c.tokens.mu.Lock()
	defer c.tokens.mu.Unlock()

	if c.tokens.token.Valid() {
		return c.tokens.token.AccessToken, nil
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.requestToken(ctx)
	})
	if err != nil {
		if isBreakerRejection(err) {
			return "", &outbound.ProviderError{Kind: outbound.ErrProviderUnavailable, Op: opAuth, Err: err}
		}
		var perr *outbound.ProviderError
		if errors.As(err, &perr) {
			return "", err
		}
		return "", &outbound.ProviderError{Kind: outbound.ErrProviderAuth, Op: opAuth, Err: err}
	}

	tok, err := c.decodeToken(body)
	if err != nil {
		return "", err
	}
	c.tokens.token = tok
	return tok.AccessToken, nil
}

// requestToken performs the basic-auth token request and returns the raw body.
func (c *Client) requestToken(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tokenPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &outbound.ProviderError{Kind: outbound.ErrProviderUnavailable, Op: opAuth, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &outbound.ProviderError{Kind: outbound.ErrProviderUnavailable, Op: opAuth, Err: err}
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &outbound.ProviderError{Kind: outbound.ErrProviderUnavailable, Op: opAuth, StatusCode: resp.StatusCode}
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, &outbound.ProviderError{
			Kind:       outbound.ErrProviderAuth,
			Op:         opAuth,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}
	return body, nil
}

func (c *Client) decodeToken(body []byte) (*oauth2.Token, error) {
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &outbound.ProviderError{Kind: outbound.ErrProviderAuth, Op: opAuth, Err: fmt.Errorf("decode token: %w", err)}
	}
	if tr.AccessToken == "" {
		return nil, &outbound.ProviderError{Kind: outbound.ErrProviderAuth, Op: opAuth, Err: errors.New("empty access token")}
	}

	ttl := defaultTokenTTL
	if secs, err := strconv.Atoi(tr.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}

	// Refresh ahead of the provider's expiry
	return &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(ttl - tokenExpiryMargin),
	}, nil
}
