package scorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parcel-leads/internal/config"
	"github.com/sells-group/parcel-leads/internal/model"
	"github.com/sells-group/parcel-leads/internal/parcel"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestScorer() *Scorer {
	return New(config.DefaultScoringConfig())
}

func ptrTime(t time.Time) *time.Time { return &t }

func daysAgo(n int) time.Time   { return testNow.AddDate(0, 0, -n) }
func monthsAgo(n int) time.Time { return testNow.AddDate(0, -n, 0) }
func yearsAgo(n int) time.Time  { return testNow.AddDate(-n, 0, 0) }

func permits(jobType string, filed time.Time, n int) []model.Permit {
	out := make([]model.Permit, n)
	for i := range out {
		out[i] = model.Permit{JobType: jobType, FilingDate: filed}
	}
	return out
}

func complaints(kind string, n int) []model.Complaint {
	out := make([]model.Complaint, n)
	for i := range out {
		out[i] = model.Complaint{Type: kind, CreatedDate: daysAgo(i + 1)}
	}
	return out
}

func violations(class string, n int) []model.Violation {
	out := make([]model.Violation, n)
	for i := range out {
		out[i] = model.Violation{Class: class}
	}
	return out
}

func TestScore_Signals(t *testing.T) {
	tests := []struct {
		name   string
		parcel model.Parcel
		score  float64
		badges int
	}{
		{name: "no signals", parcel: model.Parcel{}, score: 1.5},
		{name: "tenure 15+", parcel: model.Parcel{LastSaleDate: ptrTime(monthsAgo(200))}, score: 2.1, badges: 1},
		{name: "tenure 10+", parcel: model.Parcel{LastSaleDate: ptrTime(monthsAgo(130))}, score: 1.9, badges: 1},
		{name: "tenure under 10", parcel: model.Parcel{LastSaleDate: ptrTime(monthsAgo(119))}, score: 1.5},

		{name: "two renovation permits", parcel: model.Parcel{Permits: permits("A1", monthsAgo(2), 2)}, score: 2.7, badges: 1},
		{name: "one renovation permit", parcel: model.Parcel{Permits: permits("a2", monthsAgo(2), 1)}, score: 2.4, badges: 1},
		{name: "three other permits", parcel: model.Parcel{Permits: permits("NB", monthsAgo(2), 3)}, score: 2.2, badges: 1},
		{name: "one other permit", parcel: model.Parcel{Permits: permits("NB", monthsAgo(2), 1)}, score: 1.9, badges: 1},
		{name: "permits outside window", parcel: model.Parcel{Permits: permits("NB", monthsAgo(14), 4)}, score: 1.5},

		{name: "two complaint groups", parcel: model.Parcel{ResidentialUnits: 100, Complaints: complaints("NOISE", 10)}, score: 2.1, badges: 1},
		{name: "serious complaint", parcel: model.Parcel{ResidentialUnits: 100, Complaints: complaints("HEAT/HOT WATER", 1)}, score: 1.7, badges: 1},
		{name: "complaints per unit with zero units", parcel: model.Parcel{Complaints: complaints("NOISE", 1)}, score: 1.7, badges: 1},
		{name: "stale complaints", parcel: model.Parcel{Complaints: []model.Complaint{{Type: "PLUMBING", CreatedDate: daysAgo(45)}}}, score: 1.5},

		{name: "loan near 10-yr maturity", parcel: model.Parcel{Mortgages: []model.Mortgage{{Date: yearsAgo(10)}}}, score: 2.5, badges: 1},
		{name: "old loan near 25-yr maturity", parcel: model.Parcel{Mortgages: []model.Mortgage{{Date: yearsAgo(25)}}}, score: 3.0, badges: 2},
		{name: "young loan", parcel: model.Parcel{Mortgages: []model.Mortgage{{Date: yearsAgo(3)}}}, score: 1.5},
		{name: "loan between terms", parcel: model.Parcel{Mortgages: []model.Mortgage{{Date: yearsAgo(12)}}}, score: 1.5},
		{name: "maturity counted once", parcel: model.Parcel{Mortgages: []model.Mortgage{{Date: yearsAgo(10)}, {Date: yearsAgo(15)}}}, score: 2.5, badges: 1},

		{name: "five class C", parcel: model.Parcel{Violations: violations("C", 5)}, score: 3.0, badges: 1},
		{name: "three class C", parcel: model.Parcel{Violations: violations("C", 3)}, score: 2.5, badges: 1},
		{name: "one class C", parcel: model.Parcel{Violations: violations("c", 1)}, score: 2.0, badges: 1},
		{name: "ten class B", parcel: model.Parcel{Violations: violations("B", 10)}, score: 2.3, badges: 1},
		{name: "six class B", parcel: model.Parcel{Violations: violations("B", 6)}, score: 1.9, badges: 1},
		{name: "twenty class A", parcel: model.Parcel{Violations: violations("A", 20)}, score: 2.0, badges: 1},
		{
			name: "all violation tiers",
			parcel: model.Parcel{Violations: append(append(violations("C", 5), violations("B", 10)...),
				violations("A", 5)...)},
			score:  4.3,
			badges: 3,
		},

		{name: "estate deed", parcel: model.Parcel{LastDeedType: "DEED, EXECUTOR"}, score: 3.0, badges: 1},
		{name: "plain deed", parcel: model.Parcel{LastDeedType: "DEED"}, score: 1.5},

		{
			name: "fix and flip",
			parcel: model.Parcel{
				LastSaleDate: ptrTime(monthsAgo(24)),
				Permits:      permits("A1", monthsAgo(20), 1),
			},
			score:  3.5,
			badges: 1,
		},
		{
			name: "long tenure is not a flip",
			parcel: model.Parcel{
				LastSaleDate: ptrTime(monthsAgo(48)),
				Permits:      permits("A1", monthsAgo(20), 1),
			},
			score: 1.5,
		},

		{name: "portfolio 10+", parcel: model.Parcel{PortfolioSize: 12}, score: 2.3, badges: 1},
		{name: "portfolio 5+", parcel: model.Parcel{PortfolioSize: 6}, score: 2.0, badges: 1},
		{name: "portfolio 3+", parcel: model.Parcel{PortfolioSize: 3}, score: 1.8, badges: 1},
		{name: "portfolio of two", parcel: model.Parcel{PortfolioSize: 2}, score: 1.5},
		{
			name:   "portfolio owner with violations",
			parcel: model.Parcel{PortfolioSize: 6, Violations: violations("A", 1)},
			score:  2.5,
			badges: 2,
		},

		{name: "underbuilt 5+", parcel: model.Parcel{LotArea: 5000, BuiltFAR: 1.0, CommercialFAR: 6.5}, score: 3.5, badges: 1},
		{name: "underbuilt 2+", parcel: model.Parcel{LotArea: 2000, BuiltFAR: 1.0, FacilityFAR: 3.0}, score: 2.0, badges: 1},
		{name: "just under 8 remaining", parcel: model.Parcel{LotArea: 3000, BuiltFAR: 2.0, ResidentialFAR: 9.96}, score: 3.5, badges: 1},
		{name: "just under 5 remaining", parcel: model.Parcel{LotArea: 3000, BuiltFAR: 2.0, ResidentialFAR: 6.96}, score: 2.0, badges: 1},
		{name: "just under 2 remaining", parcel: model.Parcel{LotArea: 3000, BuiltFAR: 2.0, ResidentialFAR: 3.96}, score: 1.5},
		{name: "small lot", parcel: model.Parcel{LotArea: 1500, BuiltFAR: 2.0, ResidentialFAR: 10.0}, score: 1.5},
	}

	s := newTestScorer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.parcel
			s.Score(&p, testNow)

			assert.InDelta(t, tt.score, p.Score, 0.001)
			assert.Len(t, p.Badges, tt.badges, "badges: %v", p.Badges)
			if len(p.Badges) == 0 {
				assert.InDelta(t, 1.5, p.Score, 0.001)
			}
		})
	}
}

func TestScore_UnderbuiltFARExample(t *testing.T) {
	key, err := parcel.BuildKey("1", "123", "45")
	require.NoError(t, err)
	p := &model.Parcel{
		Key:            key,
		Address:        "1 MAIN ST",
		LotArea:        3000,
		BuiltFAR:       2.0,
		ResidentialFAR: 10.0,
	}

	newTestScorer().Score(p, testNow)

	assert.InDelta(t, 5.5, p.Score, 0.001)
	assert.Equal(t, []string{"Underbuilt FAR +8.0 (8+)"}, p.Badges)
	assert.InDelta(t, 8.0, p.Signals.RemainingFAR, 0.001)
}

func TestScore_DerivedSignals(t *testing.T) {
	p := &model.Parcel{
		LastSaleDate: ptrTime(monthsAgo(30)),
		Permits: append(permits("A1", monthsAgo(1), 1),
			append(permits("NB", monthsAgo(3), 2), permits("A2", monthsAgo(30), 1)...)...),
		Complaints: complaints("PLUMBING", 6),
		Violations: append(violations("C", 2), violations("B", 1)...),
		Mortgages:  []model.Mortgage{{Date: yearsAgo(7)}},
	}

	newTestScorer().Score(p, testNow)

	sig := p.Signals
	assert.Equal(t, 3, sig.PermitCount12m)
	assert.Equal(t, 1, sig.RenovationCount12m)
	assert.Equal(t, 2, sig.RenovationPermits)
	assert.Equal(t, 6, sig.ComplaintCount30d)
	assert.True(t, sig.SeriousComplaint)
	assert.Equal(t, map[string]int{"C": 2, "B": 1}, sig.ViolationsByClass)
	assert.Equal(t, 3, sig.ViolationCount)
	assert.True(t, sig.LoanNearMaturity)
	assert.False(t, sig.OldLoan)
	assert.True(t, sig.FixAndFlip)
	require.NotNil(t, p.TenureMonths)
	assert.Equal(t, 30, *p.TenureMonths)
}

func TestScore_Idempotent(t *testing.T) {
	p := &model.Parcel{
		LastSaleDate:  ptrTime(monthsAgo(200)),
		Violations:    violations("C", 5),
		PortfolioSize: 4,
	}
	s := newTestScorer()

	s.Score(p, testNow)
	first, badges := p.Score, append([]string(nil), p.Badges...)
	s.Score(p, testNow)

	assert.InDelta(t, first, p.Score, 0.001)
	assert.Equal(t, badges, p.Badges)
}

func TestScore_SignalsAreMonotonic(t *testing.T) {
	s := newTestScorer()
	base := model.Parcel{LastSaleDate: ptrTime(monthsAgo(130))}
	s.Score(&base, testNow)

	extras := []func(*model.Parcel){
		func(p *model.Parcel) { p.Violations = violations("C", 1) },
		func(p *model.Parcel) { p.Complaints = complaints("ELEVATOR", 5) },
		func(p *model.Parcel) { p.PortfolioSize = 10 },
		func(p *model.Parcel) { p.Mortgages = []model.Mortgage{{Date: yearsAgo(30)}} },
	}
	for i, extra := range extras {
		p := model.Parcel{LastSaleDate: base.LastSaleDate}
		extra(&p)
		s.Score(&p, testNow)
		assert.Greater(t, p.Score, base.Score, "extra %d", i)
		assert.Greater(t, len(p.Badges), len(base.Badges), "extra %d", i)
	}
}

func TestApply_DropsUnbadgedIncrements(t *testing.T) {
	p := &model.Parcel{Score: 1.5}
	apply(p, []Increment{{Amount: 1.0}, {Amount: 0, Badge: "zero"}, {Amount: -1, Badge: "neg"}, {Amount: 0.5, Badge: "ok"}})

	assert.InDelta(t, 2.0, p.Score, 0.001)
	assert.Equal(t, []string{"ok"}, p.Badges)
}

func mustKey(t *testing.T, block, lot string) parcel.Key {
	t.Helper()
	k, err := parcel.BuildKey("1", block, lot)
	require.NoError(t, err)
	return k
}

func TestRank(t *testing.T) {
	a := &model.Parcel{Key: mustKey(t, "1", "1"), Address: "1 A ST", Score: 2.0}
	b := &model.Parcel{Key: mustKey(t, "1", "2"), Address: "2 A ST", Score: 4.0}
	c := &model.Parcel{Key: mustKey(t, "1", "3"), Address: "", Score: 9.0}
	d := &model.Parcel{Key: mustKey(t, "1", "0"), Address: "0 A ST", Score: 2.0}

	ranked := Rank([]*model.Parcel{a, b, c, d}, 10)
	require.Len(t, ranked, 3)
	assert.Equal(t, []*model.Parcel{b, d, a}, ranked)

	top := Rank([]*model.Parcel{a, b, c, d}, 1)
	assert.Equal(t, []*model.Parcel{b}, top)

	assert.Empty(t, Rank(nil, 5))
}

func TestSummarize(t *testing.T) {
	eligible := []*model.Parcel{
		{Score: 5.0, Signals: model.Signals{LoanNearMaturity: true}},
		{Score: 3.0},
		{Score: 2.0, Signals: model.Signals{LoanNearMaturity: true}},
		{Score: 1.5},
	}
	displayed := eligible[:2]

	st := Summarize(7, eligible, displayed, 3.0)

	assert.Equal(t, 2, st.LikelySellers)
	assert.Equal(t, 2, st.LoansMaturing)
	assert.Equal(t, 2, st.DisplayedLeads)
	assert.Equal(t, 7, st.TotalAnalyzed)
	assert.InDelta(t, 4.0, st.AvgScore, 0.001)
}

func TestSummarize_Empty(t *testing.T) {
	st := Summarize(0, nil, nil, 3.0)
	assert.Equal(t, model.Stats{}, st)
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, ValidateConfig(config.DefaultScoringConfig()))

	tests := []struct {
		name   string
		mutate func(*config.ScoringConfig)
		want   string
	}{
		{"negative base", func(c *config.ScoringConfig) { c.BaseScore = -1 }, "base_score"},
		{"threshold below base", func(c *config.ScoringConfig) { c.LikelyThreshold = 1.0 }, "likely_threshold"},
		{"no max leads", func(c *config.ScoringConfig) { c.MaxLeads = 0 }, "max_leads"},
		{"zero group", func(c *config.ScoringConfig) { c.ComplaintGroupSize = 0 }, "complaint_group_size"},
		{"no loan terms", func(c *config.ScoringConfig) { c.LoanTermsYears = nil }, "loan_terms_years"},
		{"bad loan term", func(c *config.ScoringConfig) { c.LoanTermsYears = []int{10, -5} }, "loan term -5"},
		{"old below min", func(c *config.ScoringConfig) { c.OldLoanAgeYears = 2 }, "old_loan_age_years"},
		{"negative lot area", func(c *config.ScoringConfig) { c.FARMinLotArea = -1 }, "far_min_lot_area"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.DefaultScoringConfig()
			tt.mutate(&c)
			err := ValidateConfig(c)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "scorer: config validation failed")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
