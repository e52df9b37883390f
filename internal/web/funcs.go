package web

import (
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spec-kit/crm-basico/internal/domain"
)

var monthsES = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// FormatDate renders t as a long Spanish date with time, e.g.
// "5 de marzo de 2024, 14:30". The zero time renders as "N/A".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return fmt.Sprintf("%d de %s de %d, %02d:%02d",
		t.Day(), monthsES[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

// StatusColor maps a status to the badge colour class.
func StatusColor(s domain.ContactStatus) string {
	switch s {
	case domain.ContactStatusProspect:
		return "warning"
	case domain.ContactStatusCustomer:
		return "success"
	case domain.ContactStatusInactive:
		return "secondary"
	default:
		return "primary"
	}
}

// StatusIcon maps a status to its badge icon.
func StatusIcon(s domain.ContactStatus) string {
	switch s {
	case domain.ContactStatusProspect:
		return "🔍"
	case domain.ContactStatusCustomer:
		return "✅"
	case domain.ContactStatusInactive:
		return "😴"
	default:
		return "👤"
	}
}

// StatusLabel capitalizes the status for display.
func StatusLabel(s domain.ContactStatus) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// FormatPhone renders 10-digit numbers as (XXX) XXX-XXXX and returns
// anything else unchanged.
func FormatPhone(phone *string) string {
	if phone == nil {
		return ""
	}
	var digits strings.Builder
	for _, r := range *phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) != 10 {
		return *phone
	}
	return fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:])
}

// Truncate cuts s to max runes and appends an ellipsis when it was longer.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max])) + "..."
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func selected(current, option domain.ContactStatus) template.HTMLAttr {
	if current == option || (current == "" && option == domain.ContactStatusProspect) {
		return "selected"
	}
	return ""
}

// FuncMap returns the helpers available to every view.
func FuncMap() map[string]interface{} {
	return map[string]interface{}{
		"formatDate":  FormatDate,
		"statusColor": StatusColor,
		"statusIcon":  StatusIcon,
		"statusLabel": StatusLabel,
		"formatPhone": FormatPhone,
		"truncate":    Truncate,
		"deref":       deref,
		"selected":    selected,
	}
}
