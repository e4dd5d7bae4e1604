package timefmt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/mfgerp/internal/domain/shared"
)

// Normalizer formats audit timestamps for display. It is safe for
// concurrent use; loaded locations are memoised.
type Normalizer struct {
	logger    *zap.Logger
	locations sync.Map // string -> *time.Location
}

// NewNormalizer creates a Normalizer. A nil logger disables logging.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Format renders value as "<date> <time>" in the tenant's zone.
// value may be time.Time, *time.Time or an RFC3339 string. nil, zero and
// empty values yield nil. A value that cannot be formatted is logged and
// yields nil.
func (n *Normalizer) Format(ctx context.Context, value any, s Settings) *string {
	return n.format(ctx, value, s, true)
}

// FormatDate renders only the date part, for document dates.
func (n *Normalizer) FormatDate(ctx context.Context, value any, s Settings) *string {
	return n.format(ctx, value, s, false)
}

func (n *Normalizer) format(ctx context.Context, value any, s Settings, withTime bool) *string {
	instant, ok, err := toInstant(value)
	if err != nil {
		n.logFailure(ctx, value, err)
		return nil
	}
	if !ok {
		return nil
	}

	s = s.WithDefaults()
	loc, err := n.location(s.Timezone)
	if err != nil {
		n.logFailure(ctx, value, err)
		return nil
	}

	local := instant.In(loc)
	out := renderDate(local, s.DateFormat)
	if withTime {
		out += " " + renderTime(local, s.TimeStyle)
	}
	return &out
}

func (n *Normalizer) location(name string) (*time.Location, error) {
	if cached, ok := n.locations.Load(name); ok {
		return cached.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", shared.ErrFormatting, name)
	}
	n.locations.Store(name, loc)
	return loc, nil
}

func (n *Normalizer) logFailure(ctx context.Context, value any, err error) {
	fields := []zap.Field{
		zap.String("value", fmt.Sprintf("%v", value)),
		zap.Error(err),
	}
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
		}
	}
	n.logger.Warn("timestamp formatting failed", fields...)
}

// toInstant reports ok=false for values that mean "no date".
func toInstant(value any) (time.Time, bool, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false, nil
		}
		return v, true, nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false, nil
		}
		return *v, true, nil
	case string:
		return parseString(v)
	case *string:
		if v == nil {
			return time.Time{}, false, nil
		}
		return parseString(*v)
	default:
		return time.Time{}, false, fmt.Errorf("%w: unsupported type %T", shared.ErrFormatting, value)
	}
}

var stringLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

func parseString(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, nil
	}
	for _, layout := range stringLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%w: %q is not a valid instant", shared.ErrFormatting, raw)
}
