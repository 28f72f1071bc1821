// Package model defines the per-parcel profile assembled by a run and the
// run-level progress and statistics types.
package model

import (
	"time"

	"github.com/sells-group/parcel-leads/internal/parcel"
)

// Parcel is a single tax lot with every auxiliary record linked to it.
// Linkage stages only add to a Parcel; nothing is removed once attached.
type Parcel struct {
	Key           parcel.Key     `json:"bbl"`
	Raw           map[string]any `json:"-"`
	Address       string         `json:"address"`
	AddressKey    string         `json:"-"`
	ZipCode       string         `json:"zipcode,omitempty"`
	Neighborhood  string         `json:"neighborhood,omitempty"`
	BuildingClass string         `json:"building_class,omitempty"`
	YearBuilt     int            `json:"year_built,omitempty"`

	ResidentialUnits int     `json:"residential_units"`
	LotArea          float64 `json:"lot_area"`
	BuiltFAR         float64 `json:"built_far"`
	ResidentialFAR   float64 `json:"residential_far"`
	CommercialFAR    float64 `json:"commercial_far"`
	FacilityFAR      float64 `json:"facility_far"`

	// OwnerName comes from the registration contact when one is linked,
	// otherwise from the base roster.
	OwnerName string `json:"owner_name,omitempty"`
	OwnerKey  string `json:"-"`

	LastSaleDate   *time.Time `json:"last_sale_date,omitempty"`
	LastSaleAmount float64    `json:"last_sale_amount,omitempty"`
	LastDeedType   string     `json:"last_deed_type,omitempty"`
	TenureMonths   *int       `json:"tenure_months,omitempty"`

	Deeds        []Deed        `json:"deeds,omitempty"`
	Mortgages    []Mortgage    `json:"mortgages,omitempty"`
	Permits      []Permit      `json:"permits,omitempty"`
	Complaints   []Complaint   `json:"complaints,omitempty"`
	Violations   []Violation   `json:"violations,omitempty"`
	Registration *Registration `json:"registration,omitempty"`

	// OwnerPortfolio lists every parcel in the roster sharing OwnerKey,
	// including this one.
	OwnerPortfolio []parcel.Key `json:"owner_portfolio,omitempty"`
	PortfolioSize  int          `json:"portfolio_size"`

	Score   float64  `json:"score"`
	Badges  []string `json:"signal_badges"`
	Signals Signals  `json:"signals"`
}

// Signals holds the derived counts and flags computed by the scorer.
type Signals struct {
	PermitCount12m     int            `json:"permit_count_12m"`
	RenovationCount12m int            `json:"renovation_count_12m"`
	RenovationPermits  int            `json:"renovation_permits"`
	ComplaintCount30d  int            `json:"complaint_count_30d"`
	SeriousComplaint   bool           `json:"serious_complaint"`
	ViolationsByClass  map[string]int `json:"violations_by_class,omitempty"`
	ViolationCount     int            `json:"violation_count"`
	LoanNearMaturity   bool           `json:"loan_near_maturity"`
	OldLoan            bool           `json:"old_loan"`
	Estate             bool           `json:"estate"`
	FixAndFlip         bool           `json:"fix_and_flip"`
	RemainingFAR       float64        `json:"remaining_far"`
}

// HasAddress reports whether the parcel meets the minimum bar for display:
// an address with both a house number and a street.
func (p *Parcel) HasAddress() bool {
	if p.AddressKey != "" {
		return true
	}
	_, ok := parcel.NormalizeAddress(parcel.SplitAddress(p.Address))
	return ok
}

// RecordSale overwrites the current sale when d is newer than it. The deed
// is always appended to the history.
func (p *Parcel) RecordSale(d Deed) {
	p.Deeds = append(p.Deeds, d)
	if d.Date.IsZero() {
		return
	}
	if p.LastSaleDate == nil || d.Date.After(*p.LastSaleDate) {
		date := d.Date
		p.LastSaleDate = &date
		p.LastSaleAmount = d.Amount
		p.LastDeedType = d.DocType
	}
}

// UpdateTenure recomputes TenureMonths from LastSaleDate relative to now.
func (p *Parcel) UpdateTenure(now time.Time) {
	if p.LastSaleDate == nil {
		p.TenureMonths = nil
		return
	}
	m := MonthsBetween(*p.LastSaleDate, now)
	p.TenureMonths = &m
}

// MonthsBetween counts whole calendar months from a to b (0 when b precedes a).
func MonthsBetween(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
