package httpapi

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name       string
		xff        string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"forwarded first entry", "203.0.113.9, 10.0.0.1", "", "192.0.2.1:1234", "203.0.113.9"},
		{"real ip", "", "198.51.100.7", "192.0.2.1:1234", "198.51.100.7"},
		{"remote addr host", "", "", "192.0.2.1:1234", "192.0.2.1"},
		{"remote addr without port", "", "", "192.0.2.1", "192.0.2.1"},
		{"nothing", "", "", "", "unknown"},
	}
	for _, c := range cases {
		r := httptest.NewRequest("GET", "/v1/tools", nil)
		r.RemoteAddr = c.remoteAddr
		if c.xff != "" {
			r.Header.Set("X-Forwarded-For", c.xff)
		}
		if c.realIP != "" {
			r.Header.Set("X-Real-IP", c.realIP)
		}
		if got := ClientIP(r); got != c.want {
			t.Fatalf("%s: ClientIP = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestRoleLimiterBudget(t *testing.T) {
	rl := &roleLimiter{buckets: make(map[string]*bucket)}

	for i := 0; i < 3; i++ {
		if !rl.Allow("user:u1", 3) {
			t.Fatalf("request %d should pass within burst", i+1)
		}
	}
	if rl.Allow("user:u1", 3) {
		t.Fatalf("burst exhausted, request should be rejected")
	}

	// a different caller has its own bucket
	if !rl.Allow("user:u2", 3) {
		t.Fatalf("independent caller throttled")
	}

	// a budget change rebuilds the bucket
	if !rl.Allow("user:u1", 100) {
		t.Fatalf("budget increase should take effect immediately")
	}
}
