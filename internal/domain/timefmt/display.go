package timefmt

import "context"

var fallbackNormalizer = NewNormalizer(nil)

// Display binds a Normalizer to one tenant's settings for response mapping.
type Display struct {
	n *Normalizer
	s Settings
}

// For returns a Display rendering with s.
func (n *Normalizer) For(s Settings) Display {
	return Display{n: n, s: s.WithDefaults()}
}

// DefaultDisplay renders with DefaultSettings and does not log failures.
func DefaultDisplay() Display {
	return fallbackNormalizer.For(DefaultSettings())
}

// Settings returns the bound settings.
func (d Display) Settings() Settings {
	return d.s.WithDefaults()
}

// Timestamp formats an audit timestamp such as created_at.
func (d Display) Timestamp(ctx context.Context, value any) *string {
	return d.normalizer().Format(ctx, value, d.Settings())
}

// Date formats a document date such as po_date.
func (d Display) Date(ctx context.Context, value any) *string {
	return d.normalizer().FormatDate(ctx, value, d.Settings())
}

func (d Display) normalizer() *Normalizer {
	if d.n == nil {
		return fallbackNormalizer
	}
	return d.n
}
