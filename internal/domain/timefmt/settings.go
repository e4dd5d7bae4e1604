// Package timefmt renders stored UTC instants in a tenant's timezone and
// date format for display. It never changes the stored value.
package timefmt

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/mfgerp/internal/domain/shared"
)

// TimeStyle selects the clock used for the time part.
type TimeStyle string

const (
	TimeStyle24Hour TimeStyle = "24-hour"
	TimeStyle12Hour TimeStyle = "12-hour"
)

const (
	DefaultTimezone   = "UTC"
	DefaultDateFormat = "DD-MM-YYYY"
	DefaultTimeStyle  = TimeStyle24Hour
)

// Settings is a tenant's display configuration.
type Settings struct {
	Timezone   string
	DateFormat string
	TimeStyle  TimeStyle
}

// DefaultSettings returns UTC, DD-MM-YYYY, 24-hour.
func DefaultSettings() Settings {
	return Settings{
		Timezone:   DefaultTimezone,
		DateFormat: DefaultDateFormat,
		TimeStyle:  DefaultTimeStyle,
	}
}

// WithDefaults fills empty fields from DefaultSettings.
func (s Settings) WithDefaults() Settings {
	if strings.TrimSpace(s.Timezone) == "" {
		s.Timezone = DefaultTimezone
	}
	if strings.TrimSpace(s.DateFormat) == "" {
		s.DateFormat = DefaultDateFormat
	}
	if s.TimeStyle == "" {
		s.TimeStyle = DefaultTimeStyle
	}
	return s
}

// Validate checks that the zone loads, the format has at least one date
// token and the time style is known.
func (s Settings) Validate() error {
	if _, err := time.LoadLocation(s.Timezone); err != nil || s.Timezone == "" {
		return shared.ErrInvalidInput.WithMessage(fmt.Sprintf("unknown timezone %q", s.Timezone))
	}
	if !hasDateToken(s.DateFormat) {
		return shared.ErrInvalidInput.WithMessage(fmt.Sprintf("date format %q has no date tokens", s.DateFormat))
	}
	switch s.TimeStyle {
	case TimeStyle24Hour, TimeStyle12Hour:
	default:
		return shared.ErrInvalidInput.WithMessage(fmt.Sprintf("time style must be %q or %q", TimeStyle24Hour, TimeStyle12Hour))
	}
	return nil
}
