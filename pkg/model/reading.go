package model

// Reading is an accepted fill level reported by a sensor.
type Reading struct {
	TS        uint64 `json:"ts" db:"ts"`
	Device    string `json:"device" db:"device"`
	FillLevel int    `json:"fill_level" db:"fill_level"`
}
