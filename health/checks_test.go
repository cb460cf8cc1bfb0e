package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/rpcrelay/pool"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingChecker(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"reachable", nil, StatusHealthy},
		{"unreachable", errors.New("dial tcp: connection refused"), StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewPingChecker("redis", pingerFunc(func(ctx context.Context) error {
				return tt.err
			}), 0)

			if checker.Name() != "redis" {
				t.Errorf("Name() = %q, want redis", checker.Name())
			}
			result := checker.Check(context.Background())
			if result.Status != tt.want {
				t.Errorf("Status = %v, want %v", result.Status, tt.want)
			}
			if result.Err != tt.err {
				t.Errorf("Error = %v, want %v", result.Err, tt.err)
			}
		})
	}
}

func TestPingChecker_Timeout(t *testing.T) {
	checker := NewPingChecker("redis", pingerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), 10*time.Millisecond)

	result := checker.Check(context.Background())
	if result.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", result.Status)
	}
	if !errors.Is(result.Err, context.DeadlineExceeded) {
		t.Errorf("Error = %v, want deadline exceeded", result.Err)
	}
}

func TestPoolChecker(t *testing.T) {
	tests := []struct {
		name  string
		stats map[string]pool.Stats
		want  Status
	}{
		{
			name:  "no pools",
			stats: map[string]pool.Stats{},
			want:  StatusHealthy,
		},
		{
			name: "idle",
			stats: map[string]pool.Stats{
				"wss://a": {Size: 2, Free: 2, MaxSize: 8},
			},
			want: StatusHealthy,
		},
		{
			name: "saturated",
			stats: map[string]pool.Stats{
				"wss://a": {Size: 8, InUse: 8, MaxSize: 8},
				"wss://b": {Size: 1, Free: 1, MaxSize: 8},
			},
			want: StatusDegraded,
		},
		{
			name: "waiters",
			stats: map[string]pool.Stats{
				"wss://a": {Size: 2, InUse: 2, Waiting: 3, MaxSize: 8},
			},
			want: StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewPoolChecker(func() map[string]pool.Stats { return tt.stats }, PoolCheckerConfig{})
			result := checker.Check(context.Background())
			if result.Status != tt.want {
				t.Errorf("Status = %v, want %v (%s)", result.Status, tt.want, result.Message)
			}
			if len(result.Details) != len(tt.stats) {
				t.Errorf("Details has %d pools, want %d", len(result.Details), len(tt.stats))
			}
		})
	}
}

func TestBlockChecker(t *testing.T) {
	var lib uint64
	now := time.Unix(1_700_000_000, 0)

	checker := NewBlockChecker(func() uint64 { return lib }, BlockCheckerConfig{MaxStale: time.Minute})
	checker.now = func() time.Time { return now }

	if got := checker.Check(context.Background()).Status; got != StatusDegraded {
		t.Errorf("before any block: Status = %v, want degraded", got)
	}

	lib = 2000
	if got := checker.Check(context.Background()).Status; got != StatusHealthy {
		t.Errorf("after first block: Status = %v, want healthy", got)
	}

	now = now.Add(30 * time.Second)
	if got := checker.Check(context.Background()).Status; got != StatusHealthy {
		t.Errorf("within MaxStale: Status = %v, want healthy", got)
	}

	now = now.Add(45 * time.Second)
	result := checker.Check(context.Background())
	if result.Status != StatusDegraded {
		t.Errorf("stalled: Status = %v, want degraded", result.Status)
	}

	lib = 2001
	if got := checker.Check(context.Background()).Status; got != StatusHealthy {
		t.Errorf("advanced: Status = %v, want healthy", got)
	}
}

func TestBreakerChecker(t *testing.T) {
	var open []string
	checker := NewBreakerChecker(func() []string { return open })

	if checker.Name() != "upstream_breakers" {
		t.Errorf("Name() = %q", checker.Name())
	}
	if got := checker.Check(context.Background()).Status; got != StatusHealthy {
		t.Errorf("Status = %v, want healthy", got)
	}

	open = []string{"wss://a.example.com"}
	result := checker.Check(context.Background())
	if result.Status != StatusDegraded {
		t.Errorf("Status = %v, want degraded", result.Status)
	}
	if got := result.Details["open"].([]string); len(got) != 1 || got[0] != "wss://a.example.com" {
		t.Errorf("Details[open] = %v", result.Details["open"])
	}
}
