package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/tools":                     "/v1/tools",
		"/v1/tools/add":                 "/v1/tools/:name",
		"/v1/tools/sqrt?verbose=1":      "/v1/tools/:name",
		"/v1/admin/users/abc/api-key":   "/v1/admin/users/:id/api-key",
		"/v1/admin/users/abc/roles":     "/v1/admin/users/:id/roles",
		"/v1/auth/login":                "/v1/auth/login",
		"/v1/admin/ip-access?active=1":  "/v1/admin/ip-access",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
