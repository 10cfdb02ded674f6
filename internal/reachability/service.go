package reachability

import (
	"context"
	"fmt"

	"grimm.is/policyctl/internal/logging"
)

// Service runs reachability tests against the networking API.
type Service struct {
	api    API
	logger *logging.Logger
}

// NewService creates a Service. A nil logger uses the default one.
func NewService(api API, logger *logging.Logger) *Service {
	if logger == nil {
		return &Service{api: api, logger: logging.WithComponent("reachability")}
	}
	return &Service{api: api, logger: logger.WithComponent("reachability")}
}

// Create validates and stores a new named test.
func (s *Service) Create(ctx context.Context, t Test) (Test, error) {
	if err := t.Validate(); err != nil {
		return Test{}, err
	}
	created, err := s.api.CreateReachabilityTest(ctx, t)
	if err != nil {
		return Test{}, fmt.Errorf("failed to create reachability test %s: %w", t.Name, err)
	}
	s.logger.Info("reachability test created", "name", created.Name, "id", created.ID)
	return created, nil
}

// Update validates and replaces the test with the given ID.
func (s *Service) Update(ctx context.Context, id string, t Test) (Test, error) {
	if err := t.Validate(); err != nil {
		return Test{}, err
	}
	updated, err := s.api.UpdateReachabilityTest(ctx, id, t)
	if err != nil {
		return Test{}, fmt.Errorf("failed to update reachability test %s: %w", t.Name, err)
	}
	s.logger.Info("reachability test updated", "name", updated.Name, "id", id)
	return updated, nil
}

// RunQuick runs the tenant's scratch test with the given parameters. The
// quick test is created on first use and updated afterwards; the run itself
// is triggered by a separate update with run_test set.
func (s *Service) RunQuick(ctx context.Context, tenantID string, t Test) (Test, error) {
	t.Name = QuickTestName(tenantID)
	if err := t.Validate(); err != nil {
		return Test{}, err
	}

	quick, err := s.api.GetQuickTest(ctx, tenantID)
	if err == nil {
		_, err = s.api.UpdateQuickTest(ctx, tenantID, t)
		if err != nil {
			return Test{}, fmt.Errorf("failed to update quick test: %w", err)
		}
	} else {
		s.logger.Debug("quick test not found, creating", "tenant", tenantID, "error", err)
		quick, err = s.api.CreateQuickTest(ctx, t)
		if err != nil {
			return Test{}, fmt.Errorf("failed to create quick test: %w", err)
		}
	}

	id := quick.ID
	if id == "" {
		id = tenantID
	}
	result, err := s.api.RunQuickTest(ctx, id)
	if err != nil {
		return Test{}, fmt.Errorf("failed to run quick test: %w", err)
	}
	s.logger.Info("quick test finished", "tenant", tenantID, "result", result.TestResult, "expected", t.ExpectedResult)
	return result, nil
}

// SaveQuick promotes the tenant's quick test to a named test.
func (s *Service) SaveQuick(ctx context.Context, tenantID, name string) (Test, error) {
	if name == "" || len(name) > 255 {
		return Test{}, fmt.Errorf("quick test name must be 1-255 characters")
	}
	saved, err := s.api.SaveQuickTest(ctx, tenantID, name)
	if err != nil {
		return Test{}, fmt.Errorf("failed to save quick test %s: %w", name, err)
	}
	s.logger.Info("quick test saved", "tenant", tenantID, "name", name)
	return saved, nil
}
