package domain

import (
	"strings"
	"time"
)

// Prayer identifies one of the daily prayers (plus Friday jumu'ah).
type Prayer string

const (
	PrayerFajr    Prayer = "fajr"
	PrayerDhuhr   Prayer = "dhuhr"
	PrayerAsr     Prayer = "asr"
	PrayerMaghrib Prayer = "maghrib"
	PrayerIsha    Prayer = "isha"
	PrayerJumua   Prayer = "jumua"
)

// Prayers lists the closed prayer enumeration in display order.
var Prayers = []Prayer{PrayerFajr, PrayerDhuhr, PrayerAsr, PrayerMaghrib, PrayerIsha, PrayerJumua}

// Valid reports whether p belongs to the prayer enumeration.
func (p Prayer) Valid() bool {
	for _, known := range Prayers {
		if p == known {
			return true
		}
	}
	return false
}

// AmountType says how amountValue is meant.
type AmountType string

const (
	AmountPerDay AmountType = "per_day"
	AmountTotal  AmountType = "total"
)

// Status of a leave request.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Toggled returns the opposite status.
func (s Status) Toggled() Status {
	if s == StatusOpen {
		return StatusClosed
	}
	return StatusOpen
}

// LeaveRequest is a posted request for prayer-leading cover.
type LeaveRequest struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"imamId"`
	MasjidName      string     `json:"masjidName"`
	MasjidLocation  string     `json:"masjidLocation"`
	MasjidMapLink   string     `json:"masjidMapLink,omitempty"`
	ContactPhone    string     `json:"imamPhone"`
	ContactWhatsApp string     `json:"imamWhatsapp,omitempty"`
	DateFrom        string     `json:"dateFrom"`
	DateTo          string     `json:"dateTo"`
	Prayers         []Prayer   `json:"prayers"`
	AmountType      AmountType `json:"amountType"`
	AmountValue     float64    `json:"amountValue"`
	PaymentInfo     string     `json:"paymentInfo,omitempty"`
	Note            string     `json:"note,omitempty"`
	Status          Status     `json:"status"`
	// AcceptedBy is reserved and always null.
	AcceptedBy *string   `json:"acceptedBy"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RequestFields are the editable fields of a leave request, shared by create and update.
type RequestFields struct {
	MasjidName      string     `json:"masjidName" validate:"required"`
	MasjidLocation  string     `json:"masjidLocation" validate:"required"`
	MasjidMapLink   string     `json:"masjidMapLink"`
	ContactPhone    string     `json:"imamPhone" validate:"required"`
	ContactWhatsApp string     `json:"imamWhatsapp"`
	DateFrom        string     `json:"dateFrom" validate:"required,datetime=2006-01-02"`
	DateTo          string     `json:"dateTo" validate:"required,datetime=2006-01-02"`
	Prayers         []Prayer   `json:"prayers" validate:"required,min=1,dive,prayer"`
	AmountType      AmountType `json:"amountType" validate:"oneof=per_day total"`
	AmountValue     *float64   `json:"amountValue" validate:"required,gte=0"`
	PaymentInfo     string     `json:"paymentInfo"`
	Note            string     `json:"note"`
}

// Normalize trims strings, defaults the amount type and drops repeated prayers.
func (f RequestFields) Normalize() RequestFields {
	out := f
	out.MasjidName = strings.TrimSpace(f.MasjidName)
	out.MasjidLocation = strings.TrimSpace(f.MasjidLocation)
	out.MasjidMapLink = strings.TrimSpace(f.MasjidMapLink)
	out.ContactPhone = strings.TrimSpace(f.ContactPhone)
	out.ContactWhatsApp = strings.TrimSpace(f.ContactWhatsApp)
	out.DateFrom = strings.TrimSpace(f.DateFrom)
	out.DateTo = strings.TrimSpace(f.DateTo)
	out.PaymentInfo = strings.TrimSpace(f.PaymentInfo)
	out.Note = strings.TrimSpace(f.Note)
	if out.AmountType == "" {
		out.AmountType = AmountPerDay
	}

	if f.Prayers != nil {
		seen := make(map[Prayer]bool, len(f.Prayers))
		out.Prayers = make([]Prayer, 0, len(f.Prayers))
		for _, p := range f.Prayers {
			p = Prayer(strings.ToLower(strings.TrimSpace(string(p))))
			if seen[p] {
				continue
			}
			seen[p] = true
			out.Prayers = append(out.Prayers, p)
		}
	}
	return out
}

// Apply copies the editable fields onto r. Callers validate first, so AmountValue is set.
func (f RequestFields) Apply(r *LeaveRequest) {
	r.MasjidName = f.MasjidName
	r.MasjidLocation = f.MasjidLocation
	r.MasjidMapLink = f.MasjidMapLink
	r.ContactPhone = f.ContactPhone
	r.ContactWhatsApp = f.ContactWhatsApp
	r.DateFrom = f.DateFrom
	r.DateTo = f.DateTo
	r.Prayers = append([]Prayer(nil), f.Prayers...)
	r.AmountType = f.AmountType
	if f.AmountValue != nil {
		r.AmountValue = *f.AmountValue
	}
	r.PaymentInfo = f.PaymentInfo
	r.Note = f.Note
}
