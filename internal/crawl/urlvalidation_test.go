package crawl

import (
	"net"
	"testing"
)

func TestValidateCrawlURLRejections(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"ftp scheme blocked", "ftp://example.com/file"},
		{"file scheme blocked", "file:///etc/passwd"},
		{"javascript scheme blocked", "javascript:alert(1)"},
		{"empty string", ""},
		{"no scheme", "example.com"},
		{"localhost", "http://localhost/admin"},
		{"127.0.0.1", "http://127.0.0.1/"},
		{"[::1]", "http://[::1]/"},
		{"metadata endpoint", "http://169.254.169.254/latest/meta-data/"},
		{"private 10.x", "http://10.0.0.1/internal"},
		{"private 192.168.x", "http://192.168.1.1/internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := validateCrawlURL(tt.url); err == nil {
				t.Errorf("validateCrawlURL(%q) should have been rejected", tt.url)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"127.0.0.1", true},
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"172.32.0.1", false},
		{"192.168.0.1", true},
		{"169.254.169.254", true},
		{"100.64.0.1", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"::1", true},
		{"fe80::1", true},
		{"fd00::1", true},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			if ip == nil {
				t.Fatalf("invalid test IP: %s", tt.ip)
			}
			if got := isPrivateIP(ip); got != tt.private {
				t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.private)
			}
		})
	}
}
