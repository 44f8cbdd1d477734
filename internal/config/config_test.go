package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		wantPanic bool
	}{
		{
			name:  "variable set",
			key:   "RELAYSCOPE_TEST_VAR",
			value: "test_value",
		},
		{
			name:      "variable not set",
			key:       "RELAYSCOPE_TEST_VAR_MISSING",
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv(tt.key, tt.value)
			}

			if tt.wantPanic {
				assert.Panics(t, func() { requireEnv(tt.key) })
				return
			}
			assert.Equal(t, tt.value, requireEnv(tt.key))
		})
	}
}

func TestGetenvSlice(t *testing.T) {
	def := []string{"wss://default.example.com"}

	tests := []struct {
		name     string
		value    string
		expected []string
	}{
		{
			name:     "multiple values",
			value:    "wss://a.example.com, 'wss://b.example.com' ,",
			expected: []string{"wss://a.example.com", "wss://b.example.com"},
		},
		{
			name:     "missing variable uses default",
			expected: def,
		},
		{
			name:     "only separators uses default",
			value:    " , ,",
			expected: def,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RELAYSCOPE_TEST_SLICE", tt.value)
			assert.Equal(t, tt.expected, getenvSlice("RELAYSCOPE_TEST_SLICE", def))
		})
	}
}

func TestGetenvSliceDoesNotAliasDefault(t *testing.T) {
	def := []string{"wss://a.example.com"}
	got := getenvSlice("RELAYSCOPE_TEST_SLICE_UNSET", def)
	got[0] = "changed"
	assert.Equal(t, "wss://a.example.com", def[0])
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{"valid duration", "5s", time.Second, 5 * time.Second},
		{"invalid duration uses default", "invalid", 10 * time.Second, 10 * time.Second},
		{"missing variable uses default", "", 15 * time.Second, 15 * time.Second},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RELAYSCOPE_TEST_DURATION", tt.value)
			assert.Equal(t, tt.expected, mustDuration("RELAYSCOPE_TEST_DURATION", tt.def))
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      bool
		expected bool
	}{
		{"true value", "true", false, true},
		{"false value", "false", true, false},
		{"invalid value uses default", "invalid", true, true},
		{"missing variable uses default", "", false, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RELAYSCOPE_TEST_BOOL", tt.value)
			assert.Equal(t, tt.expected, mustBool("RELAYSCOPE_TEST_BOOL", tt.def))
		})
	}
}

func TestGetenvNumbers(t *testing.T) {
	t.Setenv("RELAYSCOPE_TEST_INT", "42")
	t.Setenv("RELAYSCOPE_TEST_INT_BAD", "forty")
	t.Setenv("RELAYSCOPE_TEST_FLOAT", "2.5")

	assert.Equal(t, 42, getenvInt("RELAYSCOPE_TEST_INT", 1))
	assert.Equal(t, 1, getenvInt("RELAYSCOPE_TEST_INT_BAD", 1))
	assert.Equal(t, 2.5, getenvFloat("RELAYSCOPE_TEST_FLOAT", 1))
	assert.Equal(t, 1.0, getenvFloat("RELAYSCOPE_TEST_FLOAT_MISSING", 1))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RELAYSCOPE_REDIS_ADDR", "")
	t.Setenv("RELAYSCOPE_READ_RELAYS", "")
	t.Setenv("RELAYSCOPE_BATCH_SIZE", "50")

	cfg := Load()

	assert.False(t, cfg.RedisEnabled())
	assert.Equal(t, DefaultReadRelays, cfg.ReadRelays)
	assert.Equal(t, DefaultIndexers, cfg.Indexers)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.ProbeStagger)
	assert.Equal(t, 10*time.Second, cfg.PublishTimeout)
}

func TestLoadRequiresRedisPassword(t *testing.T) {
	t.Setenv("RELAYSCOPE_REDIS_ADDR", "localhost:6379")
	t.Setenv("RELAYSCOPE_REDIS_PASSWORD_REQUIRED", "true")
	t.Setenv("RELAYSCOPE_REDIS_PASSWORD", "")

	assert.Panics(t, func() { Load() })
}

func TestRedacted(t *testing.T) {
	cfg := &Config{SecretKey: "deadbeef", RedisPassword: "hunter2", RedisAddr: "localhost:6379"}
	r := cfg.Redacted()

	assert.Equal(t, "***REDACTED***", r.SecretKey)
	assert.Equal(t, "***REDACTED***", r.RedisPassword)
	assert.Equal(t, "localhost:6379", r.RedisAddr)
	assert.Equal(t, "deadbeef", cfg.SecretKey, "original must be untouched")
}
