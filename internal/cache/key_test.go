package cache_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/kvcache/internal/cache"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"user_1", false},
		{"a.b-c", false},
		{"with space", false},
		{"ünïcødé", false},
		{"", true},
		{"{", true},
		{"}", true},
		{"(", true},
		{")", true},
		{"a/b", true},
		{`a\b`, true},
		{"me@host", true},
		{"user:1", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := cache.ValidateKey(tt.key)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, cache.IsInvalidKey(err))
			assert.False(t, errors.Is(err, cache.ErrFailure))
		})
	}
}

func TestError_Message(t *testing.T) {
	_, err := cache.NewMemoryStore[int](cache.Options{}).Get("a:b", 0)
	require.Error(t, err)
	assert.Equal(t, `cache get "a:b": can't validate the specified key`, err.Error())

	var ce *cache.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, cache.KindInvalidKey, ce.Kind)
	assert.Equal(t, "get", ce.Op)
}

func TestError_EmptyKeyMessage(t *testing.T) {
	err := cache.ValidateKey("")
	assert.Equal(t, "cache: key should be a non empty string", err.Error())
}

func TestError_FailureUnwraps(t *testing.T) {
	cause := errors.New("disk on fire")
	err := &cache.Error{Kind: cache.KindFailure, Op: "open", Err: cause}

	assert.ErrorIs(t, err, cache.ErrFailure)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, cache.ErrInvalidKey)
	assert.Equal(t, "cache open: failure: disk on fire", err.Error())
}
