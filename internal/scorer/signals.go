package scorer

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/sells-group/parcel-leads/internal/model"
)

const (
	classSevere = "C"
	classMajor  = "B"
)

func (s *Scorer) tenure(p *model.Parcel, _ *model.Signals, _ time.Time) []Increment {
	if p.TenureMonths == nil {
		return nil
	}
	m := *p.TenureMonths
	switch {
	case m >= 180:
		return []Increment{{0.6, fmt.Sprintf("Owned %d yrs (15+)", m/12)}}
	case m >= 120:
		return []Increment{{0.4, fmt.Sprintf("Owned %d yrs (10+)", m/12)}}
	}
	return nil
}

func (s *Scorer) isRenovation(pm model.Permit) bool {
	return s.renovation[strings.ToUpper(strings.TrimSpace(pm.JobType))]
}

func (s *Scorer) permits(p *model.Parcel, sig *model.Signals, now time.Time) []Increment {
	since := now.AddDate(0, -s.cfg.PermitWindowMonths, 0)
	for _, pm := range p.Permits {
		if s.isRenovation(pm) {
			sig.RenovationPermits++
		}
		if pm.FilingDate.IsZero() || pm.FilingDate.Before(since) || pm.FilingDate.After(now) {
			continue
		}
		sig.PermitCount12m++
		if s.isRenovation(pm) {
			sig.RenovationCount12m++
		}
	}

	window := s.cfg.PermitWindowMonths
	switch {
	case sig.RenovationCount12m > 1:
		return []Increment{{1.2, fmt.Sprintf("%d renovation permits (%d mo)", sig.RenovationCount12m, window)}}
	case sig.RenovationCount12m == 1:
		return []Increment{{0.9, fmt.Sprintf("Renovation permit (%d mo)", window)}}
	case sig.PermitCount12m > 2:
		return []Increment{{0.7, fmt.Sprintf("%d permits (%d mo)", sig.PermitCount12m, window)}}
	case sig.PermitCount12m >= 1:
		return []Increment{{0.4, fmt.Sprintf("%d permit(s) (%d mo)", sig.PermitCount12m, window)}}
	}
	return nil
}

func (s *Scorer) complaints(p *model.Parcel, sig *model.Signals, now time.Time) []Increment {
	since := now.AddDate(0, 0, -s.cfg.ComplaintWindowDays)
	var serious string
	for _, c := range p.Complaints {
		if c.CreatedDate.IsZero() || c.CreatedDate.Before(since) || c.CreatedDate.After(now) {
			continue
		}
		sig.ComplaintCount30d++
		if serious == "" {
			serious = s.seriousCategory(c)
		}
	}
	if sig.ComplaintCount30d == 0 {
		return nil
	}

	var incs []Increment
	days := s.cfg.ComplaintWindowDays
	if groups := sig.ComplaintCount30d / max(s.cfg.ComplaintGroupSize, 1); groups > 0 {
		incs = append(incs, Increment{0.3 * float64(groups), fmt.Sprintf("%d complaints (%d d)", sig.ComplaintCount30d, days)})
	}
	if serious != "" {
		sig.SeriousComplaint = true
		incs = append(incs, Increment{0.2, "Serious complaint: " + serious})
	}
	units := max(p.ResidentialUnits, 1)
	if perUnit := float64(sig.ComplaintCount30d) / float64(units); perUnit >= s.cfg.ComplaintsPerUnitCutoff {
		incs = append(incs, Increment{0.2, fmt.Sprintf("%.2f complaints per unit", perUnit)})
	}
	return incs
}

// seriousCategory returns the first serious category found in the
// complaint's type or descriptor, or "".
func (s *Scorer) seriousCategory(c model.Complaint) string {
	text := strings.ToUpper(c.Type + " " + c.Descriptor)
	for _, cat := range s.serious {
		if strings.Contains(text, cat) {
			return cat
		}
	}
	return ""
}

func (s *Scorer) nearMaturity(age float64) (int, bool) {
	if age < s.cfg.MinLoanAgeYears {
		return 0, false
	}
	for _, term := range s.cfg.LoanTermsYears {
		if math.Abs(age-float64(term)) <= s.cfg.MaturityWindowYears {
			return term, true
		}
	}
	return 0, false
}

func (s *Scorer) loans(p *model.Parcel, sig *model.Signals, now time.Time) []Increment {
	var incs []Increment
	for _, m := range p.Mortgages {
		age := m.AgeYears(now)
		if !sig.LoanNearMaturity {
			if term, ok := s.nearMaturity(age); ok {
				sig.LoanNearMaturity = true
				incs = append(incs, Increment{1.0, fmt.Sprintf("Loan near %d-yr maturity (%.1f yrs)", term, age)})
			}
		}
		if !sig.OldLoan && age >= s.cfg.OldLoanAgeYears {
			sig.OldLoan = true
			incs = append(incs, Increment{0.5, fmt.Sprintf("Mortgage %.0f yrs old", math.Floor(age))})
		}
	}
	return incs
}

func (s *Scorer) violations(p *model.Parcel, sig *model.Signals, _ time.Time) []Increment {
	if len(p.Violations) == 0 {
		return nil
	}
	sig.ViolationsByClass = make(map[string]int)
	for _, v := range p.Violations {
		sig.ViolationsByClass[strings.ToUpper(v.Class)]++
	}
	sig.ViolationCount = len(p.Violations)

	var incs []Increment
	switch c := sig.ViolationsByClass[classSevere]; {
	case c >= 5:
		incs = append(incs, Increment{1.5, fmt.Sprintf("%d class C violations (5+)", c)})
	case c >= 2:
		incs = append(incs, Increment{1.0, fmt.Sprintf("%d class C violations", c)})
	case c == 1:
		incs = append(incs, Increment{0.5, "1 class C violation"})
	}
	switch b := sig.ViolationsByClass[classMajor]; {
	case b >= 10:
		incs = append(incs, Increment{0.8, fmt.Sprintf("%d class B violations (10+)", b)})
	case b >= 5:
		incs = append(incs, Increment{0.4, fmt.Sprintf("%d class B violations (5+)", b)})
	}
	if sig.ViolationCount >= 20 {
		incs = append(incs, Increment{0.5, fmt.Sprintf("%d total violations (20+)", sig.ViolationCount)})
	}
	return incs
}

func (s *Scorer) estateDeed(p *model.Parcel, sig *model.Signals, _ time.Time) []Increment {
	deedType := strings.ToUpper(p.LastDeedType)
	if deedType == "" {
		return nil
	}
	if !slices.ContainsFunc(s.estate, func(tok string) bool { return strings.Contains(deedType, tok) }) {
		return nil
	}
	sig.Estate = true
	return []Increment{{1.5, "Estate transfer (" + deedType + ")"}}
}

func (s *Scorer) fixAndFlip(p *model.Parcel, sig *model.Signals, _ time.Time) []Increment {
	if p.TenureMonths == nil || *p.TenureMonths > s.cfg.FlipMaxTenureMonths {
		return nil
	}
	if !slices.ContainsFunc(p.Permits, s.isRenovation) {
		return nil
	}
	sig.FixAndFlip = true
	return []Increment{{2.0, fmt.Sprintf("Fix-and-flip (owned %d mo, renovation permit)", *p.TenureMonths)}}
}

func (s *Scorer) portfolio(p *model.Parcel, _ *model.Signals, _ time.Time) []Increment {
	n := p.PortfolioSize
	var incs []Increment
	switch {
	case n >= 10:
		incs = append(incs, Increment{0.8, fmt.Sprintf("Owner holds %d parcels (10+)", n)})
	case n >= 5:
		incs = append(incs, Increment{0.5, fmt.Sprintf("Owner holds %d parcels (5+)", n)})
	case n >= 3:
		incs = append(incs, Increment{0.3, fmt.Sprintf("Owner holds %d parcels (3+)", n)})
	}
	if n >= 5 && len(p.Violations) > 0 {
		incs = append(incs, Increment{0.5, "Portfolio owner with violations"})
	}
	return incs
}

func (s *Scorer) developmentPotential(p *model.Parcel, sig *model.Signals, _ time.Time) []Increment {
	if p.LotArea < s.cfg.FARMinLotArea {
		return nil
	}
	allowed := max(p.ResidentialFAR, p.CommercialFAR, p.FacilityFAR)
	remaining := allowed - p.BuiltFAR
	shown := round1(remaining)
	sig.RemainingFAR = shown

	switch {
	case remaining >= 8:
		return []Increment{{4.0, fmt.Sprintf("Underbuilt FAR %+.1f (8+)", shown)}}
	case remaining >= 5:
		return []Increment{{2.0, fmt.Sprintf("Underbuilt FAR %+.1f (5+)", shown)}}
	case remaining >= 2:
		return []Increment{{0.5, fmt.Sprintf("Underbuilt FAR %+.1f (2+)", shown)}}
	}
	return nil
}
