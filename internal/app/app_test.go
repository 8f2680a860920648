package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/vovakirdan/livepoll-server/internal/config"
	"github.com/vovakirdan/livepoll-server/internal/core"
	"github.com/vovakirdan/livepoll-server/internal/log"
	"github.com/vovakirdan/livepoll-server/internal/store/memory"
	"github.com/vovakirdan/livepoll-server/internal/store/sqlite"
)

func TestNewSelectsHistoryStore(t *testing.T) {
	tests := []struct {
		name   string
		dbPath string
		check  func(t *testing.T, a *App)
	}{
		{
			name: "memory",
			check: func(t *testing.T, a *App) {
				if _, ok := a.history.(*memory.Store); !ok {
					t.Fatalf("expected memory store, got %T", a.history)
				}
			},
		},
		{
			name:   "sqlite",
			dbPath: filepath.Join(t.TempDir(), "history.db"),
			check: func(t *testing.T, a *App) {
				if _, ok := a.history.(*sqlite.SQLiteStore); !ok {
					t.Fatalf("expected sqlite store, got %T", a.history)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.DatabasePath = tt.dbPath
			a, err := New(context.Background(), &cfg, log.Nop())
			if err != nil {
				t.Fatalf("new app: %v", err)
			}
			t.Cleanup(a.cleanup)
			tt.check(t, a)
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.RespondentPolicy = "sometimes"
	if _, err := New(context.Background(), &cfg, log.Nop()); err == nil {
		t.Fatalf("expected config validation error")
	}
}

func TestRespondentPolicy(t *testing.T) {
	if respondentPolicy(config.PolicyShrink) != core.PolicyShrink {
		t.Fatalf("shrink not mapped")
	}
	if respondentPolicy(config.PolicyFrozen) != core.PolicyFrozen || respondentPolicy("") != core.PolicyFrozen {
		t.Fatalf("frozen should be the default")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second

	a, err := New(context.Background(), &cfg, log.Nop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("app did not stop")
	}
	if !a.hub.IsStopped() {
		t.Fatalf("hub still running after shutdown")
	}
}
