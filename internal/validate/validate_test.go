// SPDX-License-Identifier: MIT
package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_CollectsAllErrors(t *testing.T) {
	v := New()
	v.Range("MaxPasses", 0, 1, 100)
	v.NotEmpty("KeyPrefix", "  ")
	v.Positive("Concurrency", 4)

	err := v.Err()
	require.Error(t, err)

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Errors(), 2)
	assert.Equal(t, "MaxPasses", ve.Errors()[0].Field)
	assert.Equal(t, "KeyPrefix", ve.Errors()[1].Field)
	assert.Equal(t, "invalid configuration: MaxPasses: value must be between 1 and 100, got 0; KeyPrefix: value cannot be empty", err.Error())
}

func TestValidator_ErrIsNilWhenValid(t *testing.T) {
	v := New()
	v.Range("MaxPasses", 10, 1, 100)
	v.OneOf("LogLevel", "info", LogLevels)
	assert.NoError(t, v.Err())
}

func TestValidator_ErrIsDetached(t *testing.T) {
	v := New()
	v.NotEmpty("a", "")
	err := v.Err()
	v.NotEmpty("b", "")

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors(), 1)
}

func TestURL(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{"redis", "redis://localhost:6379/0", true},
		{"tls", "rediss://cache.internal:6380", true},
		{"empty", "", false},
		{"no host", "redis:///0", false},
		{"wrong scheme", "http://localhost:6379", false},
		{"unparsable", "redis://[::1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("Redis.URL", tt.value, []string{"redis", "rediss"})
			assert.Equal(t, tt.ok, v.Err() == nil, v.Errors())
		})
	}
}

func TestHostPort(t *testing.T) {
	for value, ok := range map[string]bool{
		":8080":          true,
		"127.0.0.1:9090": true,
		"localhost":      false,
		"[::1]:80":       true,
		"host:":          false,
	} {
		v := New()
		v.HostPort("API.ListenAddr", value)
		assert.Equal(t, ok, v.Err() == nil, value)
	}
}

func TestRanges(t *testing.T) {
	v := New()
	v.FloatRange("SampleRate", 1.5, 0, 1)
	v.DurationRange("PollInterval", 0, time.Millisecond, time.Minute)
	v.FloatRange("ClaimsPerSecond", 0, 0, 1e6)
	v.DurationRange("LeaseTTL", 30*time.Second, time.Second, time.Hour)
	require.Len(t, v.Errors(), 2)
	assert.Equal(t, "SampleRate", v.Errors()[0].Field)
	assert.Equal(t, "PollInterval", v.Errors()[1].Field)
}
