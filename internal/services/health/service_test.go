package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatus(t *testing.T) {
	svc := NewService()
	ok, checks := svc.Status(context.Background())
	if !ok || len(checks) != 0 {
		t.Fatalf("expected healthy with no checks, got %v %v", ok, checks)
	}

	svc.Register("db", func(ctx context.Context) error { return nil })
	svc.Register("redis", func(ctx context.Context) error { return errors.New("connection refused") })
	svc.Register("ignored", nil)

	ok, checks = svc.Status(context.Background())
	if ok {
		t.Fatalf("expected unhealthy")
	}
	if checks["db"] != "ok" || checks["redis"] != "connection refused" {
		t.Fatalf("unexpected checks: %v", checks)
	}
	if _, present := checks["ignored"]; present {
		t.Fatalf("nil check should not be registered")
	}
}
