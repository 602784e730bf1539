// Package httpclient builds pre-configured *http.Client values for the
// outbound collaborators of the core (the CI client and the bug
// tracker fetcher), following the teacher's shared-http-client idiom:
// one ClientConfig struct, one NewClient constructor, named presets
// per collaborator.
package httpclient

import (
	"crypto/tls"
	"net/http"
	"time"
)

// ClientConfig controls timeouts and transport pooling for an
// *http.Client built by NewClient.
type ClientConfig struct {
	Timeout                 time.Duration
	MaxRetries              int
	DisableSSLVerification  bool
	MaxIdleConns            int
	IdleConnTimeout         time.Duration
	TLSHandshakeTimeout     time.Duration
	ResponseHeaderTimeout   time.Duration
}

// DefaultClientConfig returns the baseline configuration used for
// generic outbound calls.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:               30 * time.Second,
		MaxRetries:            3,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
}

// NewClient builds an *http.Client from config.
func NewClient(config ClientConfig) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          config.MaxIdleConns,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
	}
	if config.DisableSSLVerification {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- operator opt-in for self-signed CI endpoints
	}

	return &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}
}

// NewClientWithTimeout builds a client with the default config except
// for the given timeout.
func NewClientWithTimeout(timeout time.Duration) *http.Client {
	config := DefaultClientConfig()
	config.Timeout = timeout
	return NewClient(config)
}

// NewDefaultClient builds a client with DefaultClientConfig.
func NewDefaultClient() *http.Client {
	return NewClient(DefaultClientConfig())
}

// CIClientConfig is the preset used by the Jenkins-like CI client:
// 30s timeout, 3 retries, per spec.md §4.4.
func CIClientConfig() ClientConfig {
	config := DefaultClientConfig()
	config.Timeout = 30 * time.Second
	config.MaxRetries = 3
	config.ResponseHeaderTimeout = 15 * time.Second
	return config
}

// BugTrackerClientConfig is the preset used by the bug-metadata
// fetcher, which talks to a smaller, typically faster JSON endpoint.
func BugTrackerClientConfig(timeout time.Duration) ClientConfig {
	config := DefaultClientConfig()
	config.Timeout = timeout
	config.MaxRetries = 2
	config.ResponseHeaderTimeout = timeout / 2
	return config
}

// NotifyClientConfig is a preset for outbound notification calls
// (10s timeout). notify.SlackSink does not use it: it builds its own
// client with slack.New.
func NotifyClientConfig() ClientConfig {
	config := DefaultClientConfig()
	config.Timeout = 10 * time.Second
	config.MaxRetries = 2
	return config
}
