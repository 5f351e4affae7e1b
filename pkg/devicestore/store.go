package devicestore

import (
	"time"

	"github.com/edgeorchestra/orchestra/pkg/apperrors"
)

// Store defines the device repository interface. Backends plug in behind
// it the same way the teacher's monitoring storage does: one interface,
// multiple concrete implementations selected by configuration.
type Store interface {
	Register(d *Device) error
	Get(id string) (*Device, error)
	Update(id string, u Update) (*Device, error)
	UpdateMetrics(id string, metrics map[string]string) error
	ListAll(status *Status) ([]*Device, error)
	Delete(id string) error
	Close() error
}

// apply mutates d in place per u, bumping LastSeenAt to now regardless of
// which other fields changed.
func (u Update) apply(d *Device, now time.Time) {
	if u.DisplayName != nil {
		d.DisplayName = *u.DisplayName
	}
	if u.Status != nil {
		d.Status = *u.Status
	}
	if u.Telemetry != nil {
		d.Telemetry = *u.Telemetry
	}
	d.LastSeenAt = now
}

var errNotFound = apperrors.New(apperrors.NotFound, "device not found")
