package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"grimm.is/policyctl/internal/rules"
)

// Router is the part of a router resource rule management cares about.
// RouterRules is nil when the router does not support rules.
type Router struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	TenantID    string       `json:"tenant_id,omitempty"`
	RouterRules []rules.Rule `json:"router_rules"`
}

type routerEnvelope struct {
	Router Router `json:"router"`
}

type routerUpdate struct {
	Router struct {
		RouterRules []rules.WireRule `json:"router_rules"`
	} `json:"router"`
}

type tenantPolicies struct {
	TenantPolicies []rules.Rule `json:"tenantpolicies"`
}

type tenantPolicyUpdate struct {
	TenantPolicies []rules.WireRule `json:"tenantpolicies"`
}

var _ rules.Store = (*HTTPClient)(nil)

// ListRouters returns every router visible to the token.
func (c *HTTPClient) ListRouters(ctx context.Context) ([]Router, error) {
	var resp struct {
		Routers []Router `json:"routers"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/v2.0/routers", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list routers: %w", err)
	}
	return resp.Routers, nil
}

// GetRouter fetches one router.
func (c *HTTPClient) GetRouter(ctx context.Context, id string) (*Router, error) {
	var env routerEnvelope
	if err := c.doRequest(ctx, http.MethodGet, routerPath(id), nil, &env); err != nil {
		return nil, fmt.Errorf("failed to get router %s: %w", id, err)
	}
	return &env.Router, nil
}

// ListRules implements rules.Store.
func (c *HTTPClient) ListRules(ctx context.Context, owner rules.Owner) ([]rules.Rule, error) {
	switch owner.Kind {
	case rules.OwnerRouter:
		r, err := c.GetRouter(ctx, owner.ID)
		if err != nil {
			return nil, err
		}
		if r.RouterRules == nil {
			return nil, fmt.Errorf("router %s: %w", owner.ID, rules.ErrNotSupported)
		}
		return r.RouterRules, nil

	case rules.OwnerTenant:
		var resp tenantPolicies
		err := c.doRequest(ctx, http.MethodGet, tenantPolicyPath(owner.ID), nil, &resp)
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("tenant %s: %w", owner.ID, rules.ErrNotSupported)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get tenant policies for %s: %w", owner.ID, err)
		}
		if resp.TenantPolicies == nil {
			return []rules.Rule{}, nil
		}
		return resp.TenantPolicies, nil
	}
	return nil, fmt.Errorf("unknown owner kind %q", owner.Kind)
}

// ReplaceRules implements rules.Store.
func (c *HTTPClient) ReplaceRules(ctx context.Context, owner rules.Owner, wire []rules.WireRule) ([]rules.Rule, error) {
	if wire == nil {
		wire = []rules.WireRule{}
	}

	switch owner.Kind {
	case rules.OwnerRouter:
		var req routerUpdate
		req.Router.RouterRules = wire
		var env routerEnvelope
		if err := c.doRequest(ctx, http.MethodPut, routerPath(owner.ID), req, &env); err != nil {
			return nil, fmt.Errorf("failed to update router rules for %s: %w", owner.ID, err)
		}
		return env.Router.RouterRules, nil

	case rules.OwnerTenant:
		var resp tenantPolicies
		err := c.doRequest(ctx, http.MethodPut, tenantPolicyPath(owner.ID), tenantPolicyUpdate{TenantPolicies: wire}, &resp)
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("tenant %s: %w", owner.ID, rules.ErrNotSupported)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update tenant policies for %s: %w", owner.ID, err)
		}
		return resp.TenantPolicies, nil
	}
	return nil, fmt.Errorf("unknown owner kind %q", owner.Kind)
}

func routerPath(id string) string {
	return "/v2.0/routers/" + url.PathEscape(id)
}

func tenantPolicyPath(tenantID string) string {
	return "/v2.0/tenantpolicies?tenant_id=" + url.QueryEscape(tenantID)
}
