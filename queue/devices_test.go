package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeviceRegistry(t *testing.T) {
	r := NewDeviceRegistry()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, ok := r.MostRecent()
	assert.False(t, ok)

	r.Touch("agent-A", t0)
	r.Touch("agent-B", t0.Add(5*time.Second))

	id, ok := r.MostRecent()
	assert.True(t, ok)
	assert.Equal(t, "agent-B", id)

	// an older timestamp never moves last_seen backwards
	r.Touch("agent-B", t0)
	snap := r.Snapshot(t0.Add(5*time.Second), time.Minute)
	assert.Equal(t, t0.Add(5*time.Second), snap["agent-B"].LastSeen)
	assert.Equal(t, 2, r.Len())

	snap = r.Snapshot(t0.Add(61*time.Second), time.Minute)
	assert.False(t, snap["agent-A"].Active)
	assert.True(t, snap["agent-B"].Active)
}
