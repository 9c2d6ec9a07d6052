package model

import "time"

// DeviceStatus is the reported state of a bin sensor.
type DeviceStatus string

// device statuses
const (
	StatusOnline      DeviceStatus = "online"
	StatusOffline     DeviceStatus = "offline"
	StatusMaintenance DeviceStatus = "maintenance"
)

// Device represents a waste bin sensor.
type Device struct {
	DeviceID     string       `json:"device_id" db:"device_id"`
	Name         string       `json:"name" db:"name"`
	Location     string       `json:"location" db:"location"`
	Status       DeviceStatus `json:"status" db:"status"`
	FillLevel    int          `json:"fill_level" db:"fill_level"`
	BatteryLevel int          `json:"battery_level" db:"battery_level"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// Liveness returns the status a viewer should see at now. The bridge never
// marks a device offline, so an online device that has not reported for
// longer than staleAfter is considered offline.
func (d Device) Liveness(now time.Time, staleAfter time.Duration) DeviceStatus {
	if d.Status != StatusOnline {
		return d.Status
	}
	if staleAfter > 0 && now.Sub(d.UpdatedAt) > staleAfter {
		return StatusOffline
	}
	return StatusOnline
}

// FillState is the coarse bucket a fill level falls into.
type FillState string

// fill states
const (
	FillEmpty    FillState = "empty"
	FillHalf     FillState = "half"
	FillFull     FillState = "full"
	FillOverflow FillState = "overflow"
)

// ClassifyFill maps a fill percentage onto a FillState.
func ClassifyFill(level int) FillState {
	switch {
	case level < 25:
		return FillEmpty
	case level < 50:
		return FillHalf
	case level < 85:
		return FillFull
	default:
		return FillOverflow
	}
}
