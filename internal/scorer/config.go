// Package scorer derives named signals from a linked parcel and adds them
// to a score, recording a badge for every increment applied.
package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parcel-leads/internal/config"
)

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	if c.BaseScore < 0 {
		errs = append(errs, "base_score must be >= 0")
	}
	if c.LikelyThreshold < c.BaseScore {
		errs = append(errs, fmt.Sprintf("likely_threshold must be >= base_score (%.1f)", c.BaseScore))
	}
	if c.MaxLeads <= 0 {
		errs = append(errs, "max_leads must be > 0")
	}

	// Windows.
	if c.PermitWindowMonths <= 0 {
		errs = append(errs, "permit_window_months must be > 0")
	}
	if c.ComplaintWindowDays <= 0 {
		errs = append(errs, "complaint_window_days must be > 0")
	}
	if c.ComplaintGroupSize <= 0 {
		errs = append(errs, "complaint_group_size must be > 0")
	}
	if c.ComplaintsPerUnitCutoff <= 0 {
		errs = append(errs, "complaints_per_unit_cutoff must be > 0")
	}

	// Loans.
	if len(c.LoanTermsYears) == 0 {
		errs = append(errs, "loan_terms_years must not be empty")
	}
	for _, term := range c.LoanTermsYears {
		if term <= 0 {
			errs = append(errs, fmt.Sprintf("loan term %d must be > 0", term))
		}
	}
	if c.MaturityWindowYears < 0 {
		errs = append(errs, "maturity_window_years must be >= 0")
	}
	if c.OldLoanAgeYears <= c.MinLoanAgeYears {
		errs = append(errs, "old_loan_age_years must be > min_loan_age_years")
	}

	if c.FlipMaxTenureMonths <= 0 {
		errs = append(errs, "flip_max_tenure_months must be > 0")
	}
	if c.FARMinLotArea < 0 {
		errs = append(errs, "far_min_lot_area must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
