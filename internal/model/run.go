package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parcel-leads/internal/parcel"
)

// Area identifies the target of a run: one borough and one area within it.
type Area struct {
	Borough string `json:"borough" yaml:"borough"`
	Code    string `json:"area_code" yaml:"area_code"`
	Name    string `json:"area_name" yaml:"area_name"`
}

// Normalize resolves the borough to its digit code and trims the area fields.
func (a Area) Normalize() (Area, error) {
	code, ok := parcel.BoroughCode(a.Borough)
	if !ok {
		return a, eris.Errorf("unknown borough %q", a.Borough)
	}
	a.Borough = code
	a.Code = strings.TrimSpace(a.Code)
	a.Name = strings.TrimSpace(a.Name)
	if a.Code == "" {
		return a, eris.New("area code is required")
	}
	if a.Name == "" {
		a.Name = a.Code
	}
	return a, nil
}

// Stats are the aggregate figures reported alongside the leads.
type Stats struct {
	LikelySellers  int     `json:"likelySellers"`
	AvgScore       float64 `json:"avgScore"`
	LoansMaturing  int     `json:"loansMaturing"`
	DisplayedLeads int     `json:"displayedLeads"`
	TotalAnalyzed  int     `json:"totalAnalyzed"`
}

// RunResult is the orchestrator's final output for one area.
type RunResult struct {
	Area       Area      `json:"area"`
	Leads      []*Parcel `json:"leads"`
	Stats      Stats     `json:"stats"`
	Progress   *Progress `json:"progress"`
	Empty      bool      `json:"empty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
