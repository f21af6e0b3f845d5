package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testIdleConfig() IdleConfig {
	return IdleConfig{
		NormalIdle:   50 * time.Millisecond,
		VeryIdle:     100 * time.Millisecond,
		WakeGrace:    20 * time.Millisecond,
		ClockJumpGap: 200 * time.Millisecond,
	}
}

func TestIdleDetector_SleepCheckDetectsLargeGap(t *testing.T) {
	d := NewIdleDetector(testIdleConfig())
	d.lastSleepCheck = time.Now().Add(-500 * time.Millisecond)

	d.SleepCheck()
	assert.True(t, d.JustWokeFromSleep())
}

func TestIdleDetector_SleepCheckNoGapMeansNotWoken(t *testing.T) {
	d := NewIdleDetector(testIdleConfig())
	d.SleepCheck()
	assert.False(t, d.JustWokeFromSleep())
}

func TestIdleDetector_NotIdleBeforeBootGrace(t *testing.T) {
	d := NewIdleDetector(testIdleConfig())
	assert.False(t, d.CurrentlyIdle(), "freshly booted process should not report idle")
}

func TestIdleDetector_IdleAfterQuietPeriod(t *testing.T) {
	d := NewIdleDetector(testIdleConfig())
	d.bootTime = time.Now().Add(-time.Hour)
	d.lastUserActivity = time.Now().Add(-time.Hour)

	assert.True(t, d.CurrentlyIdle())
}

func TestIdleDetector_NotIdleRightAfterActivity(t *testing.T) {
	d := NewIdleDetector(testIdleConfig())
	d.bootTime = time.Now().Add(-time.Hour)
	d.NoteUserActivity()

	assert.False(t, d.CurrentlyIdle())
}

func TestIdleDetector_VeryIdleRequiresLongerQuietWindow(t *testing.T) {
	d := NewIdleDetector(testIdleConfig())
	d.bootTime = time.Now().Add(-time.Hour)
	d.lastUserActivity = time.Now().Add(-time.Hour)
	d.idleStarted = time.Now().Add(-50 * time.Millisecond)

	assert.True(t, d.CurrentlyIdle())
	assert.False(t, d.CurrentlyVeryIdle(), "idle for less than the very-idle window should not qualify")

	d.idleStarted = time.Now().Add(-time.Hour)
	assert.True(t, d.CurrentlyVeryIdle())
}

func TestIdleDetector_WakeGracePeriodMatchesConfig(t *testing.T) {
	cfg := testIdleConfig()
	d := NewIdleDetector(cfg)
	assert.Equal(t, cfg.WakeGrace, d.WakeGracePeriod())
}
