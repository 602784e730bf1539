package httpclient

import (
	"testing"
	"time"
)

func TestDefaultClientConfig(t *testing.T) {
	config := DefaultClientConfig()

	if config.Timeout != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %v", config.Timeout)
	}
	if config.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries 3, got %d", config.MaxRetries)
	}
	if config.DisableSSLVerification {
		t.Error("Expected DisableSSLVerification to be false")
	}
	if config.MaxIdleConns != 10 {
		t.Errorf("Expected MaxIdleConns 10, got %d", config.MaxIdleConns)
	}
}

func TestNewClient(t *testing.T) {
	config := ClientConfig{
		Timeout:               30 * time.Second,
		MaxRetries:            2,
		MaxIdleConns:          5,
		IdleConnTimeout:       60 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}

	client := NewClient(config)
	if client == nil {
		t.Fatal("Expected client to be created")
	}
	if client.Timeout != config.Timeout {
		t.Errorf("Expected timeout %v, got %v", config.Timeout, client.Timeout)
	}
	if client.Transport == nil {
		t.Error("Expected transport to be configured")
	}
}

func TestNewClientWithTimeout(t *testing.T) {
	timeout := 15 * time.Second
	client := NewClientWithTimeout(timeout)
	if client.Timeout != timeout {
		t.Errorf("Expected timeout %v, got %v", timeout, client.Timeout)
	}
}

func TestNewDefaultClient(t *testing.T) {
	client := NewDefaultClient()
	if client.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", client.Timeout)
	}
}

func TestCIClientConfig(t *testing.T) {
	config := CIClientConfig()
	if config.Timeout != 30*time.Second {
		t.Errorf("Expected CI client timeout 30s, got %v", config.Timeout)
	}
	if config.MaxRetries != 3 {
		t.Errorf("Expected CI client MaxRetries 3, got %d", config.MaxRetries)
	}
}

func TestBugTrackerClientConfig(t *testing.T) {
	timeout := 20 * time.Second
	config := BugTrackerClientConfig(timeout)
	if config.Timeout != timeout {
		t.Errorf("Expected timeout %v, got %v", timeout, config.Timeout)
	}
	expected := timeout / 2
	if config.ResponseHeaderTimeout != expected {
		t.Errorf("Expected ResponseHeaderTimeout %v, got %v", expected, config.ResponseHeaderTimeout)
	}
}

func TestNotifyClientConfig(t *testing.T) {
	config := NotifyClientConfig()
	if config.Timeout != 10*time.Second {
		t.Errorf("Expected notify timeout 10s, got %v", config.Timeout)
	}
	if config.MaxRetries != 2 {
		t.Errorf("Expected notify MaxRetries 2, got %d", config.MaxRetries)
	}
}

func TestNewClientWithSSLDisabled(t *testing.T) {
	config := DefaultClientConfig()
	config.DisableSSLVerification = true

	client := NewClient(config)
	if client.Transport == nil {
		t.Error("Expected transport to be configured")
	}
}
