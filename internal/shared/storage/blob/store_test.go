package blob

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"studybuddy-backend/internal/shared/apperr"
)

func TestDocumentPathLayout(t *testing.T) {
	p1, err := DocumentPath("u1", "notes.pdf")
	if err != nil {
		t.Fatalf("DocumentPath: %v", err)
	}
	p2, err := DocumentPath("u1", "notes.pdf")
	if err != nil {
		t.Fatalf("DocumentPath: %v", err)
	}
	if !strings.HasPrefix(p1, "users/u1/documents/") {
		t.Fatalf("unexpected prefix: %s", p1)
	}
	if !strings.HasSuffix(p1, "_notes.pdf") {
		t.Fatalf("unexpected suffix: %s", p1)
	}
	if p1 == p2 {
		t.Fatalf("expected unique paths for repeated uploads, got %s twice", p1)
	}
	if _, err := CleanPath(p1); err != nil {
		t.Fatalf("generated path should be clean: %v", err)
	}
}

func TestDocumentPathRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		owner    string
		fileName string
	}{
		{name: "empty owner", owner: "", fileName: "a.pdf"},
		{name: "slash owner", owner: "u1/../u2", fileName: "a.pdf"},
		{name: "traversal name", owner: "u1", fileName: "../a.pdf"},
		{name: "blank name", owner: "u1", fileName: "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DocumentPath(tt.owner, tt.fileName)
			if !errors.Is(err, apperr.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestDocumentPathFlattensSeparators(t *testing.T) {
	p, err := DocumentPath("u1", "dir/sub\\notes.pdf")
	if err != nil {
		t.Fatalf("DocumentPath: %v", err)
	}
	if !strings.HasSuffix(p, "_dir_sub_notes.pdf") {
		t.Fatalf("expected separators flattened, got %s", p)
	}
}

func TestCleanPath(t *testing.T) {
	good := []string{"users/u1/documents/x_a.pdf", "a"}
	for _, k := range good {
		if got, err := CleanPath(k); err != nil || got != k {
			t.Fatalf("CleanPath(%q) = %q, %v", k, got, err)
		}
	}
	bad := []string{"", "/abs", "../up", "users/../../etc", "a//b", "a\\b", "."}
	for _, k := range bad {
		if _, err := CleanPath(k); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("CleanPath(%q) expected ErrInvalidPath, got %v", k, err)
		}
	}
}

type deadlineRecorder struct {
	hadDeadline bool
}

func (d *deadlineRecorder) record(ctx context.Context) {
	_, d.hadDeadline = ctx.Deadline()
}

func (d *deadlineRecorder) Put(ctx context.Context, path string, data []byte, contentType string) error {
	d.record(ctx)
	return nil
}

func (d *deadlineRecorder) SignedURL(ctx context.Context, path string, validity time.Duration) (string, error) {
	d.record(ctx)
	return "https://signed", nil
}

func (d *deadlineRecorder) Fetch(ctx context.Context, path string) (Object, error) {
	d.record(ctx)
	return Object{}, nil
}

func (d *deadlineRecorder) Delete(ctx context.Context, path string) error {
	d.record(ctx)
	return nil
}

func TestWithTimeoutAppliesDeadline(t *testing.T) {
	rec := &deadlineRecorder{}
	store := WithTimeout(rec, time.Second)

	checks := []func() error{
		func() error { return store.Put(context.Background(), "k", nil, "") },
		func() error { _, err := store.SignedURL(context.Background(), "k", time.Hour); return err },
		func() error { _, err := store.Fetch(context.Background(), "k"); return err },
		func() error { return store.Delete(context.Background(), "k") },
	}
	for i, call := range checks {
		rec.hadDeadline = false
		if err := call(); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if !rec.hadDeadline {
			t.Fatalf("call %d ran without a deadline", i)
		}
	}

	if WithTimeout(rec, 0) != Store(rec) {
		t.Fatalf("zero timeout should return the store unchanged")
	}
}
