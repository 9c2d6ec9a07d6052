// Package model contains the model types.
package model

import (
	"errors"
	"strings"
)

// ErrIncompleteSettings is returned when the settings row lacks a port or device.
var ErrIncompleteSettings = errors.New("com port or target device id is not set")

// Settings is the singleton bridge configuration row kept by the backend.
type Settings struct {
	COMPort        string `json:"com_port" db:"com_port"`
	TargetDeviceID string `json:"target_device_id" db:"target_device_id"`
}

// Validate checks that both the port name and the device id are present.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.COMPort) == "" || strings.TrimSpace(s.TargetDeviceID) == "" {
		return ErrIncompleteSettings
	}
	return nil
}
