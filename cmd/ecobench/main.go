// Package main seeds and inspects the local SQLite backend used when the
// bridge runs on a bench (BACKEND=sqlite).
//
// Usage:
//
//	ecobench <bench.db> settings <port> <device>
//	ecobench <bench.db> device add <device> <name> [location]
//	ecobench <bench.db> user add <id> <email> [full name] [admin|user]
//	ecobench <bench.db> devices
//	ecobench <bench.db> notifications <user>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/towet/wastemanagement/pkg/model"
	"github.com/towet/wastemanagement/pkg/store/sqlitestore"
)

// staleAfter is how long an online device may stay silent before it is
// listed as offline.
const staleAfter = 15 * time.Minute

var errUsage = errors.New("usage: ecobench <bench.db> settings|device add|user add|devices|notifications ...")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, time.Now()); err != nil {
		log.Fatal(err)
	}
}

// deviceView is a device as an operator sees it at a given time.
type deviceView struct {
	model.Device
	Liveness  model.DeviceStatus `json:"liveness"`
	FillState model.FillState    `json:"fill_state"`
}

func run(ctx context.Context, args []string, w io.Writer, now time.Time) error {
	if len(args) < 2 {
		return errUsage
	}

	db, err := sqlitestore.New(args[0])
	if err != nil {
		return err
	}
	defer db.Close()

	enc := json.NewEncoder(w)
	cmd, args := args[1], args[2:]

	switch {
	case cmd == "settings" && len(args) == 2:
		settings := model.Settings{COMPort: args[0], TargetDeviceID: args[1]}
		if err := settings.Validate(); err != nil {
			return err
		}
		return db.PutSettings(ctx, settings)

	case cmd == "device" && len(args) >= 3 && args[0] == "add":
		device := model.Device{DeviceID: args[1], Name: args[2], Status: model.StatusOffline}
		if len(args) > 3 {
			device.Location = args[3]
		}
		return db.PutDevice(ctx, device)

	case cmd == "user" && len(args) >= 3 && args[0] == "add":
		user := model.UserProfile{ID: args[1], Email: args[2], Role: model.RoleUser}
		if len(args) > 3 {
			user.FullName = args[3]
		}
		if len(args) > 4 {
			user.Role = model.UserRole(args[4])
			if user.Role != model.RoleAdmin && user.Role != model.RoleUser {
				return fmt.Errorf("unknown role %q", args[4])
			}
		}
		return db.PutUser(ctx, user)

	case cmd == "devices" && len(args) == 0:
		devices, err := db.ListDevices(ctx)
		if err != nil {
			return err
		}
		for _, d := range devices {
			err := enc.Encode(deviceView{
				Device:    d,
				Liveness:  d.Liveness(now, staleAfter),
				FillState: model.ClassifyFill(d.FillLevel),
			})
			if err != nil {
				return err
			}
		}
		return nil

	case cmd == "notifications" && len(args) == 1:
		notifications, err := db.ListNotifications(ctx, args[0])
		if err != nil {
			return err
		}
		for _, n := range notifications {
			if err := enc.Encode(n); err != nil {
				return err
			}
		}
		return nil
	}

	return errUsage
}
