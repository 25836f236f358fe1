package models

import "time"

// DefaultActivityWindow is how long a device counts as active after its last poll
const DefaultActivityWindow = 60 * time.Second

// Device is a remote agent known to the broker
type Device struct {
	ID       string
	LastSeen time.Time
}

// Active reports whether the device polled within window of now
func (d Device) Active(now time.Time, window time.Duration) bool {
	return now.Sub(d.LastSeen) < window
}

// DeviceStatus is the observability view of a device
type DeviceStatus struct {
	LastSeen time.Time `json:"last_seen"`
	Active   bool      `json:"active"`
}
