package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/vendormart/api/internal/domain"
)

func TestDependencyHealthRepositoryCollectOK(t *testing.T) {
	before := time.Now()
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "firestore", Check: func(context.Context) error { return nil }},
		{Name: "redis", Check: func(context.Context) error { return nil }},
	})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok, got %s", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(report.Checks))
	}
	after := time.Now()
	for _, at := range []time.Time{report.Checks["redis"].CheckedAt, report.GeneratedAt} {
		if at.Before(before) || at.After(after) {
			t.Fatalf("timestamp %s outside collection window", at)
		}
	}
}

func TestDependencyHealthRepositoryDegradedAndTimeout(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "events", Check: func(context.Context) error { return errors.New("broker down") }},
		{
			Name:    "firestore",
			Timeout: 5 * time.Millisecond,
			Check: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected error status, got %s", report.Status)
	}
	if got := report.Checks["events"]; got.Status != domain.HealthStatusDegraded || got.Error != "broker down" {
		t.Fatalf("unexpected events check %+v", got)
	}
	if got := report.Checks["firestore"]; got.Detail != "timeout" {
		t.Fatalf("expected timeout detail, got %+v", got)
	}
}

func TestNewDependencyHealthRepositoryRejectsBadChecks(t *testing.T) {
	cases := map[string][]DependencyCheck{
		"empty":     nil,
		"no name":   {{Check: func(context.Context) error { return nil }}},
		"no func":   {{Name: "redis"}},
		"duplicate": {{Name: "a", Check: func(context.Context) error { return nil }}, {Name: "a", Check: func(context.Context) error { return nil }}},
	}
	for name, checks := range cases {
		if _, err := NewDependencyHealthRepository(checks); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
