package cache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr error
	}{
		{"steemd.database_api.get_block.params=[1000]", nil},
		{`appbase.condenser_api.get_accounts.params=[["alice","bob"]]`, nil},
		{strings.Repeat("k", MaxKeyLength), nil},
		{"", ErrInvalidKey},
		{" \t ", ErrInvalidKey},
		{"steemd.get_block\nparams", ErrInvalidKey},
		{"steemd.get_block\rparams", ErrInvalidKey},
		{strings.Repeat("k", MaxKeyLength+1), ErrKeyTooLong},
		{strings.Repeat("k", MaxKeyLength+1) + "\n", ErrInvalidKey},
	}

	for _, tt := range tests {
		if err := ValidateKey(tt.key); err != tt.wantErr {
			t.Errorf("ValidateKey(%.40q) = %v, want %v", tt.key, err, tt.wantErr)
		}
	}
}

var _ Backend = (*mockBackend)(nil)

// mockBackend is a test double that records calls and can fail on demand.
type mockBackend struct {
	mu       sync.Mutex
	values   map[string][]byte
	ttls     map[string]time.Duration
	gets     int
	multiGet [][]string
	setErr   error
	closed   bool
}

func (m *mockBackend) value(key string) ([]byte, time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, m.ttls[key], ok
}

func newMockBackend() *mockBackend {
	return &mockBackend{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mockBackend) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.values[key]
	return v, ok
}

func (m *mockBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mockBackend) MultiGet(_ context.Context, keys []string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.multiGet = append(m.multiGet, keys)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.values[k]
	}
	return out
}

func (m *mockBackend) MultiSet(ctx context.Context, entries []Entry, ttl time.Duration) error {
	for _, e := range entries {
		if err := m.Set(ctx, e.Key, e.Value, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *mockBackend) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = map[string][]byte{}
	return nil
}

func (m *mockBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
