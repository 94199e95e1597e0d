package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterRejectsEleventhCall(t *testing.T) {
	l := New(DefaultLimit, DefaultWindow)
	now := time.Now()
	l.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Allow(1, "send"))
	}
	assert.ErrorIs(t, l.Allow(1, "send"), ErrRateLimited)
}

func TestLimiterResetsAfterWindow(t *testing.T) {
	l := New(DefaultLimit, DefaultWindow)
	now := time.Now()
	l.now = func() time.Time { return now }

	for i := 0; i < 11; i++ {
		_ = l.Allow(1, "send")
	}
	require.ErrorIs(t, l.Allow(1, "send"), ErrRateLimited)

	now = now.Add(DefaultWindow + time.Second)
	assert.NoError(t, l.Allow(1, "send"))
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New(1, DefaultWindow)
	now := time.Now()
	l.now = func() time.Time { return now }

	require.NoError(t, l.Allow(1, "send"))
	require.ErrorIs(t, l.Allow(1, "send"), ErrRateLimited)

	// different op and different user are unaffected
	assert.NoError(t, l.Allow(1, "getMessages"))
	assert.NoError(t, l.Allow(2, "send"))
}
