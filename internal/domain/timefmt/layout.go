package timefmt

import (
	"strconv"
	"strings"
	"time"
)

// dateTokens are matched longest first at every position.
var dateTokens = []string{"YYYY", "MMMM", "MMM", "YY", "MM", "DD", "M", "D"}

func hasDateToken(format string) bool {
	for i := 0; i < len(format); i++ {
		if matchToken(format[i:]) != "" {
			return true
		}
	}
	return false
}

// renderDate expands the tokens in format against t. Tokens are case
// insensitive ("dd-mm-yyyy" equals "DD-MM-YYYY"); anything else is copied.
func renderDate(t time.Time, format string) string {
	var b strings.Builder
	b.Grow(len(format) + 8)

	for i := 0; i < len(format); {
		tok := matchToken(format[i:])
		if tok == "" {
			b.WriteByte(format[i])
			i++
			continue
		}
		b.WriteString(expand(t, tok))
		i += len(tok)
	}
	return b.String()
}

func matchToken(s string) string {
	for _, tok := range dateTokens {
		if len(s) >= len(tok) && strings.EqualFold(s[:len(tok)], tok) {
			return tok
		}
	}
	return ""
}

func expand(t time.Time, tok string) string {
	switch tok {
	case "YYYY":
		return strconv.Itoa(t.Year())
	case "YY":
		return pad2(t.Year() % 100)
	case "MMMM":
		return t.Month().String()
	case "MMM":
		return t.Month().String()[:3]
	case "MM":
		return pad2(int(t.Month()))
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "DD":
		return pad2(t.Day())
	case "D":
		return strconv.Itoa(t.Day())
	}
	return tok
}

func renderTime(t time.Time, style TimeStyle) string {
	if style == TimeStyle12Hour {
		h := t.Hour() % 12
		if h == 0 {
			h = 12
		}
		meridiem := "AM"
		if t.Hour() >= 12 {
			meridiem = "PM"
		}
		return pad2(h) + ":" + pad2(t.Minute()) + " " + meridiem
	}
	return pad2(t.Hour()) + ":" + pad2(t.Minute())
}

func pad2(v int) string {
	if v < 10 {
		return "0" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}
