package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"grimm.is/policyctl/internal/rules"
	"grimm.is/policyctl/internal/testutil"
)

func TestIntegration_ListRouterRules(t *testing.T) {
	endpoint := testutil.RequireEndpoint(t)
	c := NewHTTPClient(endpoint, WithToken(testutil.Token()), WithTimeout(10*time.Second))

	ctx := context.Background()
	routers, err := c.ListRouters(ctx)
	if err != nil {
		t.Fatalf("ListRouters failed: %v", err)
	}

	for _, r := range routers {
		_, err := c.ListRules(ctx, rules.Router(r.ID))
		if err != nil && !errors.Is(err, rules.ErrNotSupported) {
			t.Errorf("ListRules(%s) failed: %v", r.ID, err)
		}
	}
}
