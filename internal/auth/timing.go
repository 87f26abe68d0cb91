package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig controls the artificial delay applied to failed
// credential checks.
type TimingConfig struct {
	BaseDelayMs    int  // Base delay in milliseconds
	RandomDelayMs  int  // Random jitter range in milliseconds
	DelayOnSuccess bool // If true, delay successful logins too
}

// TimingDelay pads authentication failures so that "user not found",
// "not verified", and "wrong password" take about the same time.
type TimingDelay struct {
	config TimingConfig
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// cryptoRandIntn returns a secure random number in [0, max)
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0, err
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return int(randomValue % uint64(max)), nil
}

func (td *TimingDelay) delay() time.Duration {
	base := time.Duration(td.config.BaseDelayMs) * time.Millisecond
	var jitter time.Duration
	if td.config.RandomDelayMs > 0 {
		if n, err := cryptoRandIntn(td.config.RandomDelayMs); err == nil {
			jitter = time.Duration(n) * time.Millisecond
		}
	}
	return base + jitter
}

// Wait sleeps for the configured delay. Success skips the delay unless
// DelayOnSuccess is set.
func (td *TimingDelay) Wait(success bool) {
	if success && !td.config.DelayOnSuccess {
		return
	}
	time.Sleep(td.delay())
}

// WaitFrom sleeps only for whatever remains of the target delay after
// the time already spent since startTime.
func (td *TimingDelay) WaitFrom(startTime time.Time, success bool) {
	if success && !td.config.DelayOnSuccess {
		return
	}

	target := td.delay()
	if elapsed := time.Since(startTime); elapsed < target {
		time.Sleep(target - elapsed)
	}
}
