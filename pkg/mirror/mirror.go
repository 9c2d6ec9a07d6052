// Package mirror republishes accepted readings to other services.
package mirror

import (
	"context"
	"errors"

	"github.com/towet/wastemanagement/pkg/model"
)

// Publisher forwards a reading somewhere.
type Publisher interface {
	Publish(ctx context.Context, reading model.Reading) error
	Close() error
}

// Multi fans a reading out to several publishers.
type Multi []Publisher

// Publish sends reading to every publisher and joins their errors.
func (m Multi) Publish(ctx context.Context, reading model.Reading) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, reading); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher.
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
