package linker

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parcel-leads/internal/model"
	"github.com/sells-group/parcel-leads/internal/parcel"
	"github.com/sells-group/parcel-leads/internal/soda"
)

// Service request columns.
const (
	complaintID         = "unique_key"
	complaintType       = "complaint_type"
	complaintDescriptor = "descriptor"
	complaintCreated    = "created_date"
	complaintBBL        = "bbl"
)

// LinkComplaints attaches service requests filed within the complaint
// window. Only the request's own parcel code is used; there is no
// address fallback.
func (l *Linker) LinkComplaints(ctx context.Context, roster *model.Roster, now time.Time) (model.LinkResult, error) {
	var res model.LinkResult

	since := now.AddDate(0, 0, -l.cfg.ComplaintWindowDays)
	base := soda.Query{Where: soda.Since(complaintCreated, since)}
	build := func(batch []string) string { return soda.In(complaintBBL, batch) }

	rows, err := l.fetchBatches(ctx, l.datasets.Complaints, rosterKeys(roster), build, base, &res)
	if err != nil {
		return res, eris.Wrap(err, "linker: fetch complaints")
	}

	for _, row := range rows {
		key, ok := parcel.ParseKey(row.String(complaintBBL))
		if !ok {
			res.Unmatched++
			continue
		}
		p, ok := roster.Get(key)
		if !ok {
			res.Unmatched++
			continue
		}
		p.Complaints = append(p.Complaints, model.Complaint{
			ID:          row.String(complaintID),
			Type:        row.String(complaintType),
			Descriptor:  row.String(complaintDescriptor),
			CreatedDate: recordTime(row, complaintCreated),
		})
		res.Matched++
	}
	return res, nil
}
