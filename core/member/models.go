package member

import (
	"time"

	"github.com/intigym/backoffice/core"
)

// Member is a gym member (socio).
type Member struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	DNI            string    `json:"dni"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email"`
	BirthDate      core.Date `json:"birth_date"`
	Plan           string    `json:"plan"`
	StartDate      core.Date `json:"start_date"`
	ExpirationDate core.Date `json:"expiration_date"`
	PaymentStatus  string    `json:"payment_status"`
	PhotoURL       string    `json:"photo_url"`
	AmountPaid     float64   `json:"amount_paid"`
	PaymentMethod  string    `json:"payment_method"`
	// RemindedFor is the expiration date the member was last emailed a reminder for.
	RemindedFor core.Date `json:"-"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Detail is a Member with the values derived from its expiration date.
type Detail struct {
	Member
	DaysLeft     int    `json:"days_left"`
	Expired      bool   `json:"expired"`
	ExpiringSoon bool   `json:"expiring_soon"`
	AlertLevel   string `json:"alert_level"`
	WhatsAppLink string `json:"whatsapp_link,omitempty"`
	QRURL        string `json:"qr_url"`
}

// NewMember contains information needed to register a Member.
type NewMember struct {
	Name          string    `json:"name" form:"name" validate:"required,max=150"`
	DNI           string    `json:"dni" form:"dni" validate:"required,dni"`
	Phone         string    `json:"phone" form:"phone" validate:"omitempty,phone"`
	Email         string    `json:"email" form:"email" validate:"omitempty,email"`
	BirthDate     core.Date `json:"birth_date" form:"birth_date"`
	Plan          string    `json:"plan" form:"plan" validate:"required,plan_name"`
	StartDate     core.Date `json:"start_date" form:"start_date"`
	AmountPaid    float64   `json:"amount_paid" form:"amount_paid" validate:"gte=0"`
	PaymentMethod string    `json:"payment_method" form:"payment_method" validate:"omitempty,payment_method"`
}

// Clean trims the free text fields.
func (nm *NewMember) Clean() {
	nm.Name = core.CleanString(nm.Name)
	nm.DNI = core.CleanString(nm.DNI)
	nm.Phone = core.CleanString(nm.Phone)
	nm.Email = core.CleanString(nm.Email, true /* lower */)
	nm.Plan = core.CleanString(nm.Plan, true /* lower */)
	nm.PaymentMethod = core.CleanString(nm.PaymentMethod, true /* lower */)
}

// UpdateMember defines what information may be provided to modify an existing Member.
// Every field is rewritten: the edit form always submits the whole record.
type UpdateMember NewMember

// Renewal starts a new membership period for an existing Member.
type Renewal struct {
	Plan          string    `json:"plan" validate:"required,plan_name"`
	StartDate     core.Date `json:"start_date"`
	AmountPaid    float64   `json:"amount_paid" validate:"gte=0"`
	PaymentMethod string    `json:"payment_method" validate:"omitempty,payment_method"`
}

func (r *Renewal) Clean() {
	r.Plan = core.CleanString(r.Plan, true /* lower */)
	r.PaymentMethod = core.CleanString(r.PaymentMethod, true /* lower */)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Status      string    `query:"status"`
	Plan        string    `query:"plan"`
	ExpiresFrom core.Date `query:"expires_from"` // inclusive
	ExpiresTo   core.Date `query:"expires_to"`   // inclusive
	CreatedFrom time.Time `query:"-"`
	// ExpiringWithin selects memberships ending in the next n days, today excluded.
	ExpiringWithin int  `query:"expiring_within"`
	WithEmailOnly  bool `query:"-"`
	Limit          int  `query:"limit"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Plan = core.CleanString(qf.Plan, true /* lower */)
	if qf.ExpiringWithin < 0 {
		qf.ExpiringWithin = 0
	}
	if qf.Limit < 0 {
		qf.Limit = 0
	}
}

// GetFilter selects a single Member: by ID when set, else by DNI.
type GetFilter struct {
	ID  string
	DNI string
}

// StatusRefresh reports the rows changed by a status refresh.
type StatusRefresh struct {
	Expired int `json:"expired"`
	Current int `json:"current"`
}
