// Package httputil builds pooled HTTP clients for upstream APIs.
package httputil

import (
	"net"
	"net/http"
	"time"
)

// ClientConfig holds HTTP client configuration.
type ClientConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration

	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	// ResponseHeaderTimeout bounds the wait for headers. Total request time is
	// left to the caller's context.
	ResponseHeaderTimeout time.Duration

	KeepAliveInterval time.Duration
}

// LLMClientConfig sizes the pool for model endpoints: few hosts, long responses.
func LLMClientConfig(responseTimeout time.Duration, maxConcurrent int) *ClientConfig {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &ClientConfig{
		MaxIdleConns:          maxConcurrent * 2,
		MaxIdleConnsPerHost:   maxConcurrent,
		MaxConnsPerHost:       maxConcurrent * 4,
		IdleConnTimeout:       90 * time.Second,
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: responseTimeout,
		KeepAliveInterval:     30 * time.Second,
	}
}

// NewClient creates an HTTP client with connection pooling.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = LLMClientConfig(60*time.Second, 0)
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAliveInterval,
	}

	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			MaxIdleConns:          cfg.MaxIdleConns,
			MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
			MaxConnsPerHost:       cfg.MaxConnsPerHost,
			IdleConnTimeout:       cfg.IdleConnTimeout,
			TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
			ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
			ForceAttemptHTTP2:     true,
		},
	}
}
