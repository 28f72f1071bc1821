package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Stage is one step of a run. Stages execute in declaration order.
type Stage int

const (
	StageFetchBase Stage = iota
	StageLinkDeeds
	StageLinkPermits
	StageLinkComplaints
	StageLinkViolations
	StageLinkRegistrations
	StageLinkMortgages
	StageScore

	numStages
)

// Stages lists every stage in execution order.
var Stages = []Stage{
	StageFetchBase,
	StageLinkDeeds,
	StageLinkPermits,
	StageLinkComplaints,
	StageLinkViolations,
	StageLinkRegistrations,
	StageLinkMortgages,
	StageScore,
}

var stageNames = [numStages]string{
	StageFetchBase:         "base",
	StageLinkDeeds:         "deeds",
	StageLinkPermits:       "permits",
	StageLinkComplaints:    "complaints",
	StageLinkViolations:    "violations",
	StageLinkRegistrations: "registrations",
	StageLinkMortgages:     "mortgages",
	StageScore:             "score",
}

// String returns the stage's progress key.
func (s Stage) String() string {
	if s < 0 || s >= numStages {
		return "unknown"
	}
	return stageNames[s]
}

// ParseStage converts a progress key back into a Stage.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, eris.Errorf("unknown stage: %q", name)
}

// StageState is the lifecycle position of a stage.
type StageState int

const (
	StatePending StageState = iota
	StateLoading
	StateDone
	StateFailed
	// StateEmpty marks a base fetch that returned no rows.
	StateEmpty
	// StateSkipped marks stages that never ran because the run ended early.
	StateSkipped
)

// terminal reports whether no further transition is allowed.
func (s StageState) terminal() bool {
	return s >= StateDone
}

// StageStatus is the reported status of one stage.
type StageStatus struct {
	State         StageState `json:"state"`
	Records       int        `json:"records"`
	Unmatched     int        `json:"unmatched,omitempty"`
	Batches       int        `json:"batches,omitempty"`
	FailedBatches int        `json:"failed_batches,omitempty"`
	Err           string     `json:"error,omitempty"`
}

// String renders the human-readable status used in snapshots.
func (s StageStatus) String() string {
	switch s.State {
	case StatePending:
		return "pending…"
	case StateLoading:
		return "loading…"
	case StateFailed:
		return "Error: " + s.Err
	case StateEmpty:
		return "no base records"
	case StateSkipped:
		return "skipped"
	}

	out := fmt.Sprintf("%d records", s.Records)
	var notes []string
	if s.Unmatched > 0 {
		notes = append(notes, fmt.Sprintf("%d unmatched", s.Unmatched))
	}
	if s.FailedBatches > 0 {
		notes = append(notes, fmt.Sprintf("%d/%d batches failed", s.FailedBatches, s.Batches))
	}
	if s.Err != "" {
		notes = append(notes, "partial: "+s.Err)
	}
	if len(notes) > 0 {
		out += " (" + strings.Join(notes, ", ") + ")"
	}
	return out
}

// parseStageStatus is the inverse of String for snapshots read back from disk.
// Annotations other than the record count are kept only as text.
func parseStageStatus(text string) StageStatus {
	switch {
	case text == "pending…":
		return StageStatus{State: StatePending}
	case text == "loading…":
		return StageStatus{State: StateLoading}
	case text == "no base records":
		return StageStatus{State: StateEmpty}
	case text == "skipped":
		return StageStatus{State: StateSkipped}
	case strings.HasPrefix(text, "Error: "):
		return StageStatus{State: StateFailed, Err: strings.TrimPrefix(text, "Error: ")}
	}
	head, _, _ := strings.Cut(text, " records")
	n, err := strconv.Atoi(head)
	if err != nil {
		return StageStatus{State: StateFailed, Err: text}
	}
	return StageStatus{State: StateDone, Records: n}
}

// Progress holds one status per stage. Updates only move a stage forward:
// pending, then loading, then a terminal state.
type Progress struct {
	stages [numStages]StageStatus
}

// NewProgress returns a progress with every stage pending.
func NewProgress() *Progress {
	return &Progress{}
}

// Set records st for stage and reports whether it was applied. Transitions
// that would move a stage backwards, or out of a terminal state, are ignored.
func (p *Progress) Set(stage Stage, st StageStatus) bool {
	if stage < 0 || stage >= numStages {
		return false
	}
	cur := p.stages[stage].State
	if cur.terminal() || st.State < cur {
		return false
	}
	p.stages[stage] = st
	return true
}

// Get returns the status of stage.
func (p *Progress) Get(stage Stage) StageStatus {
	if stage < 0 || stage >= numStages {
		return StageStatus{}
	}
	return p.stages[stage]
}

// Failed returns the stages that ended in an error.
func (p *Progress) Failed() []Stage {
	var out []Stage
	for _, s := range Stages {
		if p.stages[s].State == StateFailed {
			out = append(out, s)
		}
	}
	return out
}

// MarshalJSON encodes progress as an object keyed by stage name, in stage order.
func (p *Progress) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range Stages {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(s.String())
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.stages[s].String())
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the object form written by MarshalJSON.
func (p *Progress) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "progress: decode")
	}
	for name, text := range raw {
		s, err := ParseStage(name)
		if err != nil {
			continue
		}
		p.stages[s] = parseStageStatus(text)
	}
	return nil
}
