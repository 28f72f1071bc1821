package scorer

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sells-group/parcel-leads/internal/config"
	"github.com/sells-group/parcel-leads/internal/model"
)

// Increment is one score contribution and the badge explaining it.
type Increment struct {
	Amount float64
	Badge  string
}

// signalFunc computes one signal. It may record derived counts in sig
// but never touches the score.
type signalFunc func(p *model.Parcel, sig *model.Signals, now time.Time) []Increment

// Scorer scores linked parcels.
type Scorer struct {
	cfg        config.ScoringConfig
	renovation map[string]bool
	serious    []string
	estate     []string
	signals    []signalFunc
}

// New creates a Scorer. cfg should pass ValidateConfig.
func New(cfg config.ScoringConfig) *Scorer {
	s := &Scorer{
		cfg:        cfg,
		renovation: make(map[string]bool, len(cfg.RenovationJobTypes)),
		serious:    upperAll(cfg.SeriousComplaintTypes),
		estate:     upperAll(cfg.EstateTokens),
	}
	for _, jt := range cfg.RenovationJobTypes {
		s.renovation[strings.ToUpper(strings.TrimSpace(jt))] = true
	}
	s.signals = []signalFunc{
		s.tenure,
		s.permits,
		s.complaints,
		s.loans,
		s.violations,
		s.estateDeed,
		s.fixAndFlip,
		s.portfolio,
		s.developmentPotential,
	}
	return s
}

// Config returns the scoring constants in use.
func (s *Scorer) Config() config.ScoringConfig { return s.cfg }

// Score resets and recomputes p's score, badges and signals as of now.
func (s *Scorer) Score(p *model.Parcel, now time.Time) {
	p.UpdateTenure(now)
	p.Score = s.cfg.BaseScore
	p.Badges = []string{}
	p.Signals = model.Signals{}

	for _, signal := range s.signals {
		apply(p, signal(p, &p.Signals, now))
	}
	p.Score = round1(p.Score)
}

// ScoreAll scores every parcel.
func (s *Scorer) ScoreAll(parcels []*model.Parcel, now time.Time) {
	for _, p := range parcels {
		s.Score(p, now)
	}
}

// apply is the only place a score changes. Increments without a badge
// or with a non-positive amount are dropped.
func apply(p *model.Parcel, incs []Increment) {
	for _, inc := range incs {
		if inc.Amount <= 0 || inc.Badge == "" {
			continue
		}
		p.Score += inc.Amount
		p.Badges = append(p.Badges, inc.Badge)
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Eligible returns the parcels that have an address, in input order.
func Eligible(parcels []*model.Parcel) []*model.Parcel {
	out := make([]*model.Parcel, 0, len(parcels))
	for _, p := range parcels {
		if p.HasAddress() {
			out = append(out, p)
		}
	}
	return out
}

// Rank drops parcels without an address, orders the rest by score
// (highest first, ties by key) and keeps at most max.
func Rank(parcels []*model.Parcel, max int) []*model.Parcel {
	out := Eligible(parcels)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Key < out[j].Key
	})
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// Summarize computes run statistics. Likely sellers and maturing loans
// are counted over every eligible parcel; the average covers only the
// displayed leads.
func Summarize(analyzed int, eligible, displayed []*model.Parcel, likelyThreshold float64) model.Stats {
	st := model.Stats{
		DisplayedLeads: len(displayed),
		TotalAnalyzed:  analyzed,
	}
	for _, p := range eligible {
		if p.Score >= likelyThreshold {
			st.LikelySellers++
		}
		if p.Signals.LoanNearMaturity {
			st.LoansMaturing++
		}
	}
	if len(displayed) > 0 {
		var sum float64
		for _, p := range displayed {
			sum += p.Score
		}
		st.AvgScore = round1(sum / float64(len(displayed)))
	}
	return st
}

func upperAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToUpper(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
