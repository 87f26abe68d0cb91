package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mkessler/hypercloud/internal/auth"
)

func TestTimingDelay_Wait_OnFailure(t *testing.T) {
	td := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 50})

	start := time.Now()
	td.Wait(false)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestTimingDelay_Wait_SkippedOnSuccess(t *testing.T) {
	td := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 200})

	start := time.Now()
	td.Wait(true)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 50*time.Millisecond)
}

func TestTimingDelay_Wait_DelayOnSuccess(t *testing.T) {
	td := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 50, DelayOnSuccess: true})

	start := time.Now()
	td.Wait(true)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestTimingDelay_WaitFrom_CountsElapsedTime(t *testing.T) {
	td := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 100})

	start := time.Now().Add(-80 * time.Millisecond)
	waitStart := time.Now()
	td.WaitFrom(start, false)
	elapsed := time.Since(waitStart)

	// Only the remainder of the target should be slept
	assert.Less(t, elapsed, 80*time.Millisecond)
}
