package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	domain "github.com/vendormart/api/internal/domain"
)

const checkTimeout = 1500 * time.Millisecond

// DependencyCheck probes one backing service for /readyz. A zero Timeout uses
// the repository default.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

type dependencyHealth struct {
	checks  []DependencyCheck
	timeout time.Duration
}

// NewDependencyHealthRepository runs every check concurrently on Collect.
// Names must be unique and non-blank.
func NewDependencyHealthRepository(checks []DependencyCheck) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks")
	}
	normalised := make([]DependencyCheck, len(checks))
	for i, check := range checks {
		check.Name = strings.TrimSpace(check.Name)
		switch {
		case check.Name == "":
			return nil, fmt.Errorf("health: check %d has no name", i)
		case check.Check == nil:
			return nil, fmt.Errorf("health: check %q has no probe", check.Name)
		}
		normalised[i] = check
	}
	if dup := lo.FindDuplicatesBy(normalised, func(c DependencyCheck) string { return c.Name }); len(dup) > 0 {
		return nil, fmt.Errorf("health: check %q registered twice", dup[0].Name)
	}

	return &dependencyHealth{checks: normalised, timeout: checkTimeout}, nil
}

func (h *dependencyHealth) Collect(ctx context.Context) (domain.HealthReport, error) {
	results := make([]domain.HealthCheck, len(h.checks))
	var g errgroup.Group
	for i, check := range h.checks {
		g.Go(func() error {
			results[i] = h.probe(ctx, check)
			return nil
		})
	}
	_ = g.Wait()

	report := domain.HealthReport{
		Status:      domain.HealthStatusOK,
		Checks:      make(map[string]domain.HealthCheck, len(results)),
		GeneratedAt: time.Now(),
	}
	for i, result := range results {
		report.Checks[h.checks[i].Name] = result
		report.Status = worse(report.Status, result.Status)
	}
	return report, nil
}

func (h *dependencyHealth) probe(ctx context.Context, check DependencyCheck) domain.HealthCheck {
	timeout := lo.Ternary(check.Timeout > 0, check.Timeout, h.timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	err := check.Check(ctx)
	if err == nil {
		err = ctx.Err()
	}
	finished := time.Now()

	result := domain.HealthCheck{Status: domain.HealthStatusOK, Detail: "ok", Latency: finished.Sub(started), CheckedAt: finished}
	if err != nil {
		result.Error = err.Error()
		result.Status, result.Detail = domain.HealthStatusDegraded, err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			result.Status, result.Detail = domain.HealthStatusError, "timeout"
		} else if errors.Is(err, context.Canceled) {
			result.Status, result.Detail = domain.HealthStatusError, "cancelled"
		}
	}
	return result
}

var severity = map[domain.HealthStatus]int{
	domain.HealthStatusOK:       0,
	domain.HealthStatusDegraded: 1,
	domain.HealthStatusError:    2,
}

func worse(a, b domain.HealthStatus) domain.HealthStatus {
	if severity[b] > severity[a] {
		return b
	}
	return a
}
