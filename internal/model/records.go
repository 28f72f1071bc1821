package model

import "time"

// Deed is a deed-type master record linked through the legal-description index.
type Deed struct {
	DocumentID string    `json:"document_id"`
	DocType    string    `json:"doc_type"`
	Date       time.Time `json:"date"`
	Amount     float64   `json:"amount,omitempty"`
}

// Mortgage is a mortgage-type master record linked through the same index as deeds.
type Mortgage struct {
	DocumentID string    `json:"document_id"`
	DocType    string    `json:"doc_type"`
	Date       time.Time `json:"date"`
	Amount     float64   `json:"amount,omitempty"`
}

// AgeYears returns the mortgage age in fractional years at now.
func (m Mortgage) AgeYears(now time.Time) float64 {
	if m.Date.IsZero() || now.Before(m.Date) {
		return 0
	}
	return now.Sub(m.Date).Hours() / (24 * 365.25)
}

// Permit is a building job filing.
type Permit struct {
	JobNumber  string    `json:"job_number"`
	JobType    string    `json:"job_type"`
	Status     string    `json:"status,omitempty"`
	FilingDate time.Time `json:"filing_date"`
	House      string    `json:"house,omitempty"`
	Street     string    `json:"street,omitempty"`
}

// Complaint is a service request filed against the parcel.
type Complaint struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Descriptor  string    `json:"descriptor,omitempty"`
	CreatedDate time.Time `json:"created_date"`
}

// Violation is a housing-code violation. Class "C" is the most severe,
// then "B", then "A".
type Violation struct {
	ID         string    `json:"id"`
	Class      string    `json:"class"`
	Status     string    `json:"status,omitempty"`
	IssuedDate time.Time `json:"issued_date,omitempty"`
}

// Registration is the building's owner registration.
type Registration struct {
	ID               string    `json:"id"`
	BuildingID       string    `json:"building_id,omitempty"`
	OwnerName        string    `json:"owner_name,omitempty"`
	OwnerType        string    `json:"owner_type,omitempty"`
	LastRegistration time.Time `json:"last_registration,omitempty"`
}
