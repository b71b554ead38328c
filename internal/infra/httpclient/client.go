package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/sokoni/server/internal/infra/config"
)

const (
	defaultDialTimeout         = 5 * time.Second
	defaultTLSHandshakeTimeout = 5 * time.Second
	defaultRequestTimeout      = 30 * time.Second
)

// New creates a pooled HTTP client for calls to the payment provider.
// requestTimeout bounds each request end to end; zero falls back to the
// configured response timeout. A client never waits without a deadline.
func New(cfg config.HTTPClientConfig, requestTimeout time.Duration) *http.Client {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	tlsTimeout := cfg.TLSHandshakeTimeout
	if tlsTimeout <= 0 {
		tlsTimeout = defaultTLSHandshakeTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: tlsTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   Timeout(cfg, requestTimeout),
	}
}

// Timeout resolves the per-request timeout.
func Timeout(cfg config.HTTPClientConfig, requestTimeout time.Duration) time.Duration {
	switch {
	case requestTimeout > 0:
		return requestTimeout
	case cfg.ResponseTimeout > 0:
		return cfg.ResponseTimeout
	default:
		return defaultRequestTimeout
	}
}
