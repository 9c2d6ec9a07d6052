// Package bridge relays fill levels from a serial sensor into the store.
//
// A session loops through FetchingSettings, Connecting and Listening. Every
// failure (missing settings, port that will not open, port error, port
// closed) drops the connection and starts over from FetchingSettings after a
// fixed delay, so an operator can fix the settings row and the bridge picks
// it up on the next attempt.
package bridge

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/towet/wastemanagement/pkg/alert"
	"github.com/towet/wastemanagement/pkg/mirror"
	"github.com/towet/wastemanagement/pkg/model"
	"github.com/towet/wastemanagement/pkg/store"
)

// Config for a Bridge. Store is required; zero values elsewhere pick the
// defaults.
type Config struct {
	Store     store.Store
	Open      OpenFunc
	BaudRate  int
	Delays    Delays
	Threshold int
	Journal   store.Journal    // optional
	Mirror    mirror.Publisher // optional
	Logger    *slog.Logger
	Now       func() time.Time
	Sleep     func(ctx context.Context, d time.Duration) error
}

// Bridge is a single ingest session. It holds at most one open port.
type Bridge struct {
	store    store.Store
	open     OpenFunc
	baudRate int
	delays   Delays
	journal  store.Journal
	mirror   mirror.Publisher
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	tracker  *alert.Tracker
	notifier *alert.Notifier

	state atomic.Int32
	port  io.ReadCloser
}

// New creates a Bridge.
func New(cfg Config) *Bridge {
	b := &Bridge{
		store:    cfg.Store,
		open:     cfg.Open,
		baudRate: cfg.BaudRate,
		delays:   cfg.Delays,
		journal:  cfg.Journal,
		mirror:   cfg.Mirror,
		logger:   cfg.Logger,
		now:      cfg.Now,
		sleep:    cfg.Sleep,
	}

	if b.open == nil {
		b.open = OpenSerial
	}
	if b.baudRate == 0 {
		b.baudRate = DefaultBaudRate
	}
	if b.delays == (Delays{}) {
		b.delays = DefaultDelays()
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.sleep == nil {
		b.sleep = sleep
	}

	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = alert.DefaultThreshold
	}
	b.tracker = alert.NewTracker(threshold)
	b.notifier = alert.NewNotifier(b.store, b.logger)

	return b
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

func (b *Bridge) setState(s State) {
	b.state.Store(int32(s))
}

// Run the session until ctx is cancelled. It always returns ctx.Err().
func (b *Bridge) Run(ctx context.Context) error {
	defer b.closePort()

	for {
		delay := b.cycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := b.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// cycle goes from FetchingSettings until the connection is lost and returns
// how long to wait before the next cycle.
func (b *Bridge) cycle(ctx context.Context) time.Duration {
	b.setState(FetchingSettings)
	b.closePort()

	b.logger.Info("fetching settings")
	settings, err := b.store.GetSettings(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		b.logger.Error("no settings found, configure them in the admin dashboard", "retry", b.delays.Settings)
		return b.delays.Settings

	case err != nil:
		b.logger.Error("error fetching settings", "err", err, "retry", b.delays.Settings)
		return b.delays.Settings
	}

	if err := settings.Validate(); err != nil {
		b.logger.Error("incomplete settings, configure them in the admin dashboard", "err", err, "retry", b.delays.Settings)
		return b.delays.Settings
	}

	b.setState(Connecting)
	b.logger.Info("settings loaded, connecting", "port", settings.COMPort, "device", settings.TargetDeviceID)

	port, err := b.open(settings.COMPort, b.baudRate)
	if err != nil {
		b.logger.Error("failed to open port", "port", settings.COMPort, "err", err, "retry", b.delays.Open)
		if b.logger.Enabled(ctx, slog.LevelDebug) {
			b.logger.Debug("available ports", "ports", AvailablePorts())
		}
		return b.delays.Open
	}

	handle := &portHandle{ReadCloser: port}
	b.port = handle

	// unblock the reader on shutdown
	stop := context.AfterFunc(ctx, func() {
		handle.Close()
	})
	defer stop()

	b.setState(Listening)
	b.logger.Info("connected, listening for sensor data", "port", settings.COMPort)

	err = b.listen(ctx, handle, settings.TargetDeviceID)
	if ctx.Err() != nil {
		return 0
	}

	if err != nil && !portClosed(err) {
		b.setState(Errored)
		b.logger.Error("serial port error", "port", settings.COMPort, "err", err, "retry", b.delays.Error)
		b.closePort()
		return b.delays.Error
	}

	b.setState(Closed)
	b.logger.Warn("serial port disconnected", "port", settings.COMPort, "retry", b.delays.Close)
	b.closePort()
	return b.delays.Close
}

// listen reads newline framed lines until the port reports EOF or an error.
// Lines longer than maxLineLength are line noise and are discarded whole.
func (b *Bridge) listen(ctx context.Context, port io.Reader, deviceID string) error {
	r := bufio.NewReaderSize(port, maxLineLength)
	for {
		line, ok, err := readLine(r)
		if ok && (err == nil || errors.Is(err, io.EOF)) {
			b.handleLine(ctx, deviceID, line)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// maxLineLength bounds a single sensor line.
const maxLineLength = 4096

// readLine returns the next line. ok is false when the line overflowed the
// reader's buffer or nothing was read before the error.
func readLine(r *bufio.Reader) (line string, ok bool, err error) {
	overflow := false
	for {
		chunk, err := r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			overflow = true
			continue
		}
		if overflow || len(chunk) == 0 {
			return "", false, err
		}
		return string(chunk), true, err
	}
}

// handleLine forwards one sensor line. Lines that are not a fill level are
// dropped without logging; line noise is expected on the link.
func (b *Bridge) handleLine(ctx context.Context, deviceID string, line string) {
	level, ok := ParseFillLevel(line)
	if !ok {
		return
	}

	b.logger.Info("received fill level", "device", deviceID, "fill_level", level)

	now := b.now()
	err := b.store.UpdateDeviceReading(ctx, deviceID, level, now)
	if err != nil {
		b.logger.Error("device update failed", "device", deviceID, "fill_level", level, "err", err)
		return
	}
	b.logger.Debug("updated device", "device", deviceID, "fill_level", level)

	b.notifier.Check(ctx, b.tracker, deviceID, level)

	b.record(ctx, model.Reading{
		TS:        uint64(now.UnixMilli()),
		Device:    deviceID,
		FillLevel: level,
	})
}

func (b *Bridge) record(ctx context.Context, reading model.Reading) {
	if b.journal != nil {
		if err := b.journal.Log(reading); err != nil {
			b.logger.Warn("unable to journal reading", "device", reading.Device, "err", err)
		}
	}

	if b.mirror != nil {
		if err := b.mirror.Publish(ctx, reading); err != nil {
			b.logger.Warn("unable to mirror reading", "device", reading.Device, "err", err)
		}
	}
}

func (b *Bridge) closePort() {
	if b.port == nil {
		return
	}

	if err := b.port.Close(); err != nil {
		b.logger.Debug("error closing port", "err", err)
	}
	b.port = nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
