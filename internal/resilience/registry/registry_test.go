package registry

import (
	"context"
	"errors"
	"testing"
)

func TestRegistry_UnknownBeforeAnyRequests(t *testing.T) {
	r := New(nil, nil)
	for _, h := range r.Health() {
		if h.Health != HealthUnknown {
			t.Errorf("expected %s to start unknown (no requests yet), got %s", h.Service, h.Health)
		}
	}
}

func TestRegistry_DegradesOnFailures(t *testing.T) {
	r := New(nil, nil)
	for i := 0; i < 4; i++ {
		r.Execute(context.Background(), APICalls, func(context.Context) error {
			return errors.New("boom")
		})
	}

	found := false
	for _, h := range r.Health() {
		if h.Service == APICalls {
			found = true
			if h.Health != HealthFailed && h.Health != HealthDegraded {
				t.Errorf("expected api-calls degraded or failed after repeated failures, got %s", h.Health)
			}
		}
	}
	if !found {
		t.Fatal("expected api-calls service in health view")
	}
}

func TestRegistry_UnknownServiceGetsDefaultPolicy(t *testing.T) {
	r := New(nil, nil)
	calls := 0
	err := r.Execute(context.Background(), "custom-thing", func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
