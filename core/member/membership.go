package member

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/goodsign/monday"

	"github.com/intigym/backoffice/core"
)

// Payment statuses
const (
	StatusCurrent = "al-dia"
	StatusExpired = "vencido"
)

// Alert levels of an upcoming expiration
const (
	AlertUrgent  = "urgent"
	AlertWarning = "warning"
	AlertNormal  = "normal"
)

// DefaultExpiringSoonDays is the window used when no other is configured.
const DefaultExpiringSoonDays = 5

// ExpirationDate returns start plus the given number of calendar months.
// Overflowing days roll into the next month (Jan 31 + 1 month = Mar 3 on non leap years).
// An absent start or a non-positive duration yields an absent date.
func ExpirationDate(months int, start core.Date) core.Date {
	if start.IsZero() || months <= 0 {
		return core.Date{}
	}
	return start.AddMonths(months)
}

// IsExpired reports whether a membership shows as overdue in listings. An absent expiration is not overdue.
func IsExpired(exp, today core.Date) bool {
	if exp.IsZero() {
		return false
	}
	return exp.Before(today)
}

// AccessExpired reports whether the door must be refused. An absent expiration refuses access.
func AccessExpired(exp, today core.Date) bool {
	if exp.IsZero() {
		return true
	}
	return exp.Before(today)
}

// Status returns the payment status matching exp.
func Status(exp, today core.Date) string {
	if IsExpired(exp, today) {
		return StatusExpired
	}
	return StatusCurrent
}

// DaysUntilExpiration returns the whole days left before exp, negative once it has passed.
func DaysUntilExpiration(exp, today core.Date) int {
	if exp.IsZero() {
		return 0
	}
	return today.DaysUntil(exp)
}

// IsExpiringSoon reports whether exp falls within the next `days` days, today excluded.
func IsExpiringSoon(exp, today core.Date, days int) bool {
	if exp.IsZero() {
		return false
	}
	if days <= 0 {
		days = DefaultExpiringSoonDays
	}
	left := DaysUntilExpiration(exp, today)
	return left > 0 && left <= days
}

// AlertLevel grades how close an expiration is from the days left.
func AlertLevel(daysLeft int) string {
	switch {
	case daysLeft <= 2:
		return AlertUrgent
	case daysLeft <= 5:
		return AlertWarning
	default:
		return AlertNormal
	}
}

// LongDate formats d the way it is read in Peru, eg. "05 de octubre de 2026".
func LongDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return monday.Format(d.Time(time.UTC), "02 de January de 2006", monday.LocaleEsES)
}

// NormalizePhone keeps the digits of phone, prefixing countryCode to local 9 digit numbers.
func NormalizePhone(phone, countryCode string) string {
	digits := core.OnlyDigits(phone)
	if len(digits) == 9 && countryCode != "" && !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + digits
	}
	return digits
}

// ReminderMessage is the renewal reminder sent to a member.
func ReminderMessage(name string, exp core.Date, gymName string) string {
	return fmt.Sprintf(
		"Hola %s, te recordamos que tu membresía en %s vence el %s. ¡No olvides renovar para seguir entrenando! 💪",
		name, gymName, LongDate(exp),
	)
}

// WhatsAppLink returns a wa.me deep link carrying the renewal reminder, or "" when phone has no digits.
func WhatsAppLink(phone, countryCode, name string, exp core.Date, gymName string) string {
	number := NormalizePhone(phone, countryCode)
	if number == "" {
		return ""
	}
	return "https://wa.me/" + number + "?text=" + encodeURIComponent(ReminderMessage(name, exp, gymName))
}

var uriComponentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeURIComponent escapes s for a query value the way browsers do: spaces as %20, !'()*~ kept.
func encodeURIComponent(s string) string {
	return uriComponentUnescaper.Replace(url.QueryEscape(s))
}

// capitalize upper-cases the first letter of s, eg. "mensual" -> "Mensual".
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// WelcomeMessage is sent to a member right after registration.
func WelcomeMessage(name, dni, plan, gymName string) string {
	return fmt.Sprintf("¡Hola %s! 👋\n\n"+
		"Bienvenido a %s 💪\n\n"+
		"Tu registro ha sido exitoso:\n"+
		"📋 DNI: %s\n"+
		"📦 Plan: %s\n\n"+
		"Tu código QR de acceso es: %s\n\n"+
		"Presenta este código al ingresar al gimnasio.\n\n"+
		"¡Nos vemos en el gym! 🏋️‍♂️",
		name, gymName, dni, capitalize(plan), dni)
}

// QRShareMessage accompanies a member's access QR code. The plan line is left out when plan is empty.
func QRShareMessage(name, dni, plan, gymName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "¡Hola %s! 👋\n\nTu código QR de acceso a %s:\n\n📋 DNI: %s\n", name, gymName, dni)
	if plan != "" {
		fmt.Fprintf(&b, "📦 Plan: %s\n", capitalize(plan))
	}
	b.WriteString("\nPresenta este código al ingresar al gimnasio.\n\n¡Nos vemos en el gym! 🏋️‍♂️")
	return b.String()
}

// waLink builds a wa.me link to the digits of phone, or "" when it has none. No country code is added.
func waLink(phone, msg string) string {
	number := core.OnlyDigits(phone)
	if number == "" {
		return ""
	}
	return "https://wa.me/" + number + "?text=" + encodeURIComponent(msg)
}

// WelcomeLink returns a wa.me link carrying WelcomeMessage.
func WelcomeLink(m Member, gymName string) string {
	return waLink(m.Phone, WelcomeMessage(m.Name, m.DNI, m.Plan, gymName))
}

// QRShareLink returns a wa.me link carrying QRShareMessage.
func QRShareLink(m Member, gymName string) string {
	return waLink(m.Phone, QRShareMessage(m.Name, m.DNI, m.Plan, gymName))
}
