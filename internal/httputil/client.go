// Package httputil builds the outbound HTTP clients used for key fetches and
// oracle calls.
package httputil

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type ClientConfig struct {
	Timeout               time.Duration
	DialTimeout           time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	IdleConnTimeout       time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
}

// OracleConfig allows for long generations; the caller's context bounds the
// exchange.
func OracleConfig() ClientConfig {
	return ClientConfig{
		Timeout:               120 * time.Second,
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 90 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
	}
}

// KeyFetchConfig is for small, cacheable documents like signing certs.
func KeyFetchConfig() ClientConfig {
	return ClientConfig{
		Timeout:               10 * time.Second,
		DialTimeout:           5 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
	}
}

func NewClient(cfg ClientConfig) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// MaxAge returns the Cache-Control max-age of a response, or 0 when absent,
// malformed, or paired with no-store/no-cache.
func MaxAge(h http.Header) time.Duration {
	var maxAge time.Duration
	for _, directive := range strings.Split(h.Get("Cache-Control"), ",") {
		directive = strings.ToLower(strings.TrimSpace(directive))
		switch {
		case directive == "no-store", directive == "no-cache":
			return 0
		case strings.HasPrefix(directive, "max-age="):
			secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age="))
			if err != nil || secs < 0 {
				return 0
			}
			maxAge = time.Duration(secs) * time.Second
		}
	}
	return maxAge
}
