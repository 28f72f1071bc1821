package linker

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parcel-leads/internal/model"
	"github.com/sells-group/parcel-leads/internal/parcel"
	"github.com/sells-group/parcel-leads/internal/soda"
)

// Building job filing columns.
const (
	permitJob     = "job__"
	permitJobType = "job_type"
	permitStatus  = "job_status"
	permitBorough = "borough"
	permitHouse   = "house__"
	permitStreet  = "street_name"
	permitBlock   = "block"
	permitLot     = "lot"
	permitBBL     = "bbl"
	permitFiled   = "pre__filing_date"
	permitLatest  = "latest_action_date"
)

// LinkPermits attaches job filings by normalized address, using the
// block number to pick between parcels sharing an address, then falls
// back to a raw parcel code and finally the borough/block/lot triple.
// Filings older than the configured lookback are dropped.
func (l *Linker) LinkPermits(ctx context.Context, roster *model.Roster, now time.Time) (model.LinkResult, error) {
	var res model.LinkResult

	byAddress := NewJoinIndex[string]()
	for _, p := range roster.Parcels() {
		if p.AddressKey != "" {
			byAddress.Add(p.AddressKey, p.Key)
		}
	}

	rows, err := l.fetchBatches(ctx, l.datasets.Permits, blockKeys(roster, true),
		blockPredicate(permitBorough, permitBlock, boroughFullName, false), soda.Query{}, &res)
	if err != nil {
		return res, eris.Wrap(err, "linker: fetch permits")
	}

	var cutoff time.Time
	if l.cfg.PermitLookbackYears > 0 {
		cutoff = now.AddDate(-l.cfg.PermitLookbackYears, 0, 0)
	}

	for _, row := range rows {
		permit := model.Permit{
			JobNumber:  row.String(permitJob),
			JobType:    strings.ToUpper(row.String(permitJobType)),
			Status:     row.String(permitStatus),
			FilingDate: recordTime(row, permitFiled, permitLatest),
			House:      row.String(permitHouse),
			Street:     row.String(permitStreet),
		}
		if !cutoff.IsZero() && !permit.FilingDate.IsZero() && permit.FilingDate.Before(cutoff) {
			continue
		}

		key, ok := matchPermit(roster, byAddress, row)
		if !ok {
			res.Unmatched++
			continue
		}
		p, _ := roster.Get(key)
		p.Permits = append(p.Permits, permit)
		res.Matched++
	}
	return res, nil
}

func matchPermit(roster *model.Roster, byAddress *JoinIndex[string], row soda.Record) (parcel.Key, bool) {
	if addr, ok := parcel.NormalizeAddress(row.String(permitHouse), row.String(permitStreet)); ok {
		candidates := byAddress.Lookup(addr)
		switch {
		case len(candidates) == 1:
			return candidates[0], true
		case len(candidates) > 1:
			if k, ok := pickByBlock(candidates, row.String(permitBlock)); ok {
				return k, true
			}
		}
	}

	if k, ok := keyFromRecord(row, permitBBL, permitBorough, permitBlock, permitLot); ok && roster.Has(k) {
		return k, true
	}
	return "", false
}

// pickByBlock returns the first candidate on the permit's block.
func pickByBlock(candidates []parcel.Key, block string) (parcel.Key, bool) {
	want, ok := parcel.ParseBlock(block)
	if !ok {
		return "", false
	}
	for _, k := range candidates {
		if k.BlockNumber() == want {
			return k, true
		}
	}
	return "", false
}
