package interview

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerDrivesTicks(t *testing.T) {
	h := newManagerHarness(t)
	s, err := h.manager.Start(ctx, candidateWithID("a"))
	require.NoError(t, err)
	h.sched.RunPending()

	r := NewRunner(h.manager, 5*time.Millisecond, zerolog.Nop())
	r.Start()

	assert.Eventually(t, func() bool {
		return s.Snapshot().TimeRemaining <= 17
	}, time.Second, 5*time.Millisecond)

	r.Stop()
	r.Stop()

	frozen := s.Snapshot().TimeRemaining
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, frozen, s.Snapshot().TimeRemaining)
}

func TestNewRunnerDefaultsInterval(t *testing.T) {
	r := NewRunner(newManagerHarness(t).manager, 0, zerolog.Nop())
	assert.Equal(t, time.Second, r.interval)
}
