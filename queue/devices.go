package queue

import (
	"time"

	"github.com/jupark12/go-print-relay/models"
)

// DeviceRegistry tracks when each agent last polled.
// It is not safe for concurrent use; CommandQueue guards it with its own lock.
type DeviceRegistry struct {
	devices map[string]*models.Device
}

// NewDeviceRegistry creates an empty registry
func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{devices: make(map[string]*models.Device)}
}

// Touch records a poll from id at now. LastSeen never moves backwards.
func (r *DeviceRegistry) Touch(id string, now time.Time) {
	d, ok := r.devices[id]
	if !ok {
		r.devices[id] = &models.Device{ID: id, LastSeen: now}
		return
	}
	if now.After(d.LastSeen) {
		d.LastSeen = now
	}
}

// MostRecent returns the device with the latest LastSeen.
// Ties go to the lexically smallest id so routing is deterministic.
func (r *DeviceRegistry) MostRecent() (string, bool) {
	var best *models.Device
	for _, d := range r.devices {
		if best == nil ||
			d.LastSeen.After(best.LastSeen) ||
			(d.LastSeen.Equal(best.LastSeen) && d.ID < best.ID) {
			best = d
		}
	}
	if best == nil {
		return "", false
	}
	return best.ID, true
}

// Len returns the number of devices ever seen
func (r *DeviceRegistry) Len() int {
	return len(r.devices)
}

// Snapshot returns a copy of every device's status as of now
func (r *DeviceRegistry) Snapshot(now time.Time, window time.Duration) map[string]models.DeviceStatus {
	out := make(map[string]models.DeviceStatus, len(r.devices))
	for id, d := range r.devices {
		out[id] = models.DeviceStatus{
			LastSeen: d.LastSeen,
			Active:   d.Active(now, window),
		}
	}
	return out
}
