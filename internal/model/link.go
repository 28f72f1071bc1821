package model

// LinkResult summarizes one linkage stage.
type LinkResult struct {
	Fetched       int
	Matched       int
	Unmatched     int
	Batches       int
	FailedBatches int
	// Err is the first failure of a stage that still produced data.
	Err error
}

// Merge adds o's counts into r, keeping the first error.
func (r *LinkResult) Merge(o LinkResult) {
	r.Fetched += o.Fetched
	r.Matched += o.Matched
	r.Unmatched += o.Unmatched
	r.Batches += o.Batches
	r.FailedBatches += o.FailedBatches
	if r.Err == nil {
		r.Err = o.Err
	}
}

// Status converts r into a completed stage status.
func (r LinkResult) Status() StageStatus {
	st := StageStatus{
		State:         StateDone,
		Records:       r.Matched,
		Unmatched:     r.Unmatched,
		Batches:       r.Batches,
		FailedBatches: r.FailedBatches,
	}
	if r.Err != nil {
		st.Err = r.Err.Error()
	}
	return st
}
