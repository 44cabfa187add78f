package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBackoff(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		attempts int
		wantMin  int
	}{
		{0, 5},
		{1, 10},
		{2, 20},
		{3, 40},
		{4, 80},
		{5, 120}, // capped
		{10, 120}, // stays capped
	}

	for _, tc := range tests {
		got := NextBackoff(now, tc.attempts)
		assert.Equal(t, now.Add(time.Duration(tc.wantMin)*time.Minute), got)
	}
}

func TestQueueJob_CanRetry(t *testing.T) {
	j := &QueueJob{Attempts: 2, MaxRetries: 3}
	assert.True(t, j.CanRetry())

	j.Attempts = 3
	assert.False(t, j.CanRetry())

	j.Attempts = 4
	assert.False(t, j.CanRetry())
}

func TestQueueJob_IsLeaseLive(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	live := &QueueJob{Status: JobStatusProcessing, LockedUntil: &future, LockedBy: "worker-1"}
	assert.True(t, live.IsLeaseLive(now))

	expired := &QueueJob{Status: JobStatusProcessing, LockedUntil: &past, LockedBy: "worker-1"}
	assert.False(t, expired.IsLeaseLive(now))

	notLeased := &QueueJob{Status: JobStatusPending}
	assert.False(t, notLeased.IsLeaseLive(now))

	noHolder := &QueueJob{Status: JobStatusProcessing, LockedUntil: &future}
	assert.False(t, noHolder.IsLeaseLive(now))
}
