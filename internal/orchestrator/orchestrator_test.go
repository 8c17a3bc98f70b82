package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibyllinesoft/valknut/internal/config"
)

func TestRunExecutesPassesInOrderAndSkipsDisabled(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	cfg.Performance.TotalTimeoutSeconds = 5

	o := New(cfg)
	var order []string
	o.Register(Pass{Name: "discovery", Enabled: true, Run: func(ctx context.Context) error {
		order = append(order, "discovery")
		return nil
	}})
	o.Register(Pass{Name: "optional", Enabled: false, Run: func(ctx context.Context) error {
		order = append(order, "optional")
		return nil
	}})
	o.Register(Pass{Name: "score", Enabled: true, Run: func(ctx context.Context) error {
		order = append(order, "score")
		return nil
	}})

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, []string{"discovery", "score"}, order)
}

func TestRunPropagatesPassError(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	cfg.Performance.TotalTimeoutSeconds = 5
	o := New(cfg)
	boom := errors.New("boom")
	o.Register(Pass{Name: "broken", Enabled: true, Run: func(ctx context.Context) error {
		return boom
	}})
	err := o.Run(context.Background())
	require.Error(t, err)
}

func TestFanOutRecordsTimeoutAsNonFatalFinding(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	cfg.Performance.FileTimeoutSeconds = 0 // expires almost immediately
	cfg.Performance.MaxThreads = 2

	items := []int{1, 2, 3}
	findings, err := FanOut(context.Background(), cfg, items, func(ctx context.Context, item int) error {
		select {
		case <-time.After(50 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	require.NoError(t, err)
	assert.NotEmpty(t, findings)
}

func TestFanOutSucceedsWithinTimeout(t *testing.T) {
	cfg := config.DefaultConfig(config.ProfileBalanced)
	cfg.Performance.FileTimeoutSeconds = 5
	cfg.Performance.MaxThreads = 4

	items := []int{1, 2, 3}
	findings, err := FanOut(context.Background(), cfg, items, func(ctx context.Context, item int) error {
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, findings)
}
