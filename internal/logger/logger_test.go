package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger_Environments(t *testing.T) {
	for _, env := range []string{"local", "dev", "docker", "prod"} {
		l, err := NewLogger(env, "")
		if err != nil {
			t.Errorf("NewLogger(%q) = %v, want nil", env, err)
			continue
		}
		_ = l.Sync()
	}
}

func TestNewLogger_UnknownEnv(t *testing.T) {
	if _, err := NewLogger("staging-2", ""); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("local", "error")
	if err != nil {
		t.Fatalf("NewLogger(local, error) = %v", err)
	}
	if l.Core().Enabled(zap.DebugLevel) {
		t.Error("debug should be disabled after error override")
	}

	if _, err := NewLogger("local", "loud"); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestFromContext_Fallback(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil {
		t.Fatal("FromContext must never return nil")
	}
}

func TestContextWithLogger_RoundTrip(t *testing.T) {
	in := zap.NewNop()
	ctx := ContextWithLogger(context.Background(), in)
	if got := FromContext(ctx); got != in {
		t.Error("FromContext did not return the stored logger")
	}
}

func TestFromContextOr(t *testing.T) {
	fallback := zap.NewNop()
	if got := FromContextOr(context.Background(), fallback); got != fallback {
		t.Error("bare context should yield the fallback logger")
	}

	stored := zap.NewNop()
	ctx := ContextWithLogger(context.Background(), stored)
	if got := FromContextOr(ctx, fallback); got != stored {
		t.Error("stored logger should win over the fallback")
	}
}
