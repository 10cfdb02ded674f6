package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"grimm.is/policyctl/internal/reachability"
)

var _ reachability.API = (*HTTPClient)(nil)

type reachabilityTestEnvelope struct {
	Test reachability.Test `json:"reachabilitytest"`
}

type quickTestEnvelope struct {
	Test reachability.Test `json:"reachabilityquicktest"`
}

// CreateReachabilityTest stores a named test.
func (c *HTTPClient) CreateReachabilityTest(ctx context.Context, t reachability.Test) (reachability.Test, error) {
	var resp reachabilityTestEnvelope
	if err := c.doRequest(ctx, http.MethodPost, "/v2.0/reachabilitytests", reachabilityTestEnvelope{Test: t}, &resp); err != nil {
		return reachability.Test{}, err
	}
	return resp.Test, nil
}

// UpdateReachabilityTest replaces a named test.
func (c *HTTPClient) UpdateReachabilityTest(ctx context.Context, id string, t reachability.Test) (reachability.Test, error) {
	var resp reachabilityTestEnvelope
	if err := c.doRequest(ctx, http.MethodPut, "/v2.0/reachabilitytests/"+url.PathEscape(id), reachabilityTestEnvelope{Test: t}, &resp); err != nil {
		return reachability.Test{}, err
	}
	return resp.Test, nil
}

// GetQuickTest fetches the tenant's quick test.
func (c *HTTPClient) GetQuickTest(ctx context.Context, tenantID string) (reachability.Test, error) {
	var resp quickTestEnvelope
	if err := c.doRequest(ctx, http.MethodGet, quickTestPath(tenantID), nil, &resp); err != nil {
		return reachability.Test{}, err
	}
	return resp.Test, nil
}

// CreateQuickTest creates the tenant's quick test.
func (c *HTTPClient) CreateQuickTest(ctx context.Context, t reachability.Test) (reachability.Test, error) {
	var resp quickTestEnvelope
	if err := c.doRequest(ctx, http.MethodPost, "/v2.0/reachabilityquicktests", quickTestEnvelope{Test: t}, &resp); err != nil {
		return reachability.Test{}, err
	}
	return resp.Test, nil
}

// UpdateQuickTest replaces the quick test parameters.
func (c *HTTPClient) UpdateQuickTest(ctx context.Context, id string, t reachability.Test) (reachability.Test, error) {
	var resp quickTestEnvelope
	if err := c.doRequest(ctx, http.MethodPut, quickTestPath(id), quickTestEnvelope{Test: t}, &resp); err != nil {
		return reachability.Test{}, err
	}
	return resp.Test, nil
}

// RunQuickTest triggers a run and returns the test with its result.
func (c *HTTPClient) RunQuickTest(ctx context.Context, id string) (reachability.Test, error) {
	body := map[string]any{"reachabilityquicktest": map[string]any{"run_test": true}}
	var resp quickTestEnvelope
	if err := c.doRequest(ctx, http.MethodPut, quickTestPath(id), body, &resp); err != nil {
		return reachability.Test{}, fmt.Errorf("failed to run quick test %s: %w", id, err)
	}
	return resp.Test, nil
}

// SaveQuickTest copies the quick test into a named test.
func (c *HTTPClient) SaveQuickTest(ctx context.Context, id, name string) (reachability.Test, error) {
	body := map[string]any{"reachabilityquicktest": map[string]any{"save_test": true, "test_name": name}}
	var resp quickTestEnvelope
	if err := c.doRequest(ctx, http.MethodPut, quickTestPath(id), body, &resp); err != nil {
		return reachability.Test{}, fmt.Errorf("failed to save quick test %s: %w", id, err)
	}
	return resp.Test, nil
}

func quickTestPath(id string) string {
	return "/v2.0/reachabilityquicktests/" + url.PathEscape(id)
}
