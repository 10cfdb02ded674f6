package testutil

import (
	"os"
	"testing"
)

// RequireEndpoint skips the test unless POLICYCTL_TEST_ENDPOINT names a live
// networking API, and returns that endpoint. Tests that talk to a real
// deployment only run where one is available.
func RequireEndpoint(t *testing.T) string {
	t.Helper()
	endpoint := os.Getenv("POLICYCTL_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping test: requires POLICYCTL_TEST_ENDPOINT")
	}
	return endpoint
}

// Token returns the auth token for RequireEndpoint tests, if any.
func Token() string {
	return os.Getenv("POLICYCTL_TEST_TOKEN")
}
