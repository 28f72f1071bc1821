package linker

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parcel-leads/internal/model"
	"github.com/sells-group/parcel-leads/internal/parcel"
	"github.com/sells-group/parcel-leads/internal/soda"
)

// Housing violation columns.
const (
	violationID     = "violationid"
	violationClass  = "class"
	violationStatus = "violationstatus"
	violationIssued = "novissueddate"
	violationInsp   = "inspectiondate"
	violationBBL    = "bbl"
)

// LinkViolations attaches housing violations by raw parcel code.
func (l *Linker) LinkViolations(ctx context.Context, roster *model.Roster) (model.LinkResult, error) {
	var res model.LinkResult

	build := func(batch []string) string { return soda.In(violationBBL, batch) }
	rows, err := l.fetchBatches(ctx, l.datasets.Violations, rosterKeys(roster), build, soda.Query{}, &res)
	if err != nil {
		return res, eris.Wrap(err, "linker: fetch violations")
	}

	for _, row := range rows {
		key, ok := parcel.ParseKey(row.String(violationBBL))
		if !ok {
			res.Unmatched++
			continue
		}
		p, ok := roster.Get(key)
		if !ok {
			res.Unmatched++
			continue
		}
		p.Violations = append(p.Violations, model.Violation{
			ID:         row.String(violationID),
			Class:      strings.ToUpper(row.String(violationClass)),
			Status:     row.String(violationStatus),
			IssuedDate: recordTime(row, violationIssued, violationInsp),
		})
		res.Matched++
	}
	return res, nil
}
