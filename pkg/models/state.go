package models

import "time"

// PresenceSnapshot is the persisted state of the device presence override
type PresenceSnapshot struct {
	TriggerAddresses  []string  // Devices that extend silence while connected
	CachedSilentUntil time.Time // Zero when not silent
}

// CadenceState tracks how often the reminder for one subject has fired
type CadenceState struct {
	Subject              string
	LastFireTime         time.Time
	FireCount            int
	OneShotQuietOverride bool      // next fire is a quiet-hours re-fire and is not counted
	NextExpectedFireTime time.Time // zero when no further reminder is due
}
