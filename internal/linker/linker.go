// Package linker joins auxiliary datasets onto the base parcel roster.
// Each dataset uses its own join key; records that do not resolve to a
// roster parcel are counted and dropped.
package linker

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/parcel-leads/internal/config"
	"github.com/sells-group/parcel-leads/internal/model"
	"github.com/sells-group/parcel-leads/internal/parcel"
	"github.com/sells-group/parcel-leads/internal/soda"
)

// Linker fetches auxiliary datasets and attaches their records to a roster.
type Linker struct {
	pager    *soda.Paginator
	datasets config.DatasetsConfig
	cfg      config.LinkerConfig
	log      *zap.Logger
}

// New creates a Linker reading datasets through pager.
func New(pager *soda.Paginator, datasets config.DatasetsConfig, cfg config.LinkerConfig) *Linker {
	if cfg.AreaColumn == "" {
		cfg.AreaColumn = "zipcode"
	}
	if len(cfg.DeedDocTypes) == 0 {
		cfg.DeedDocTypes = []string{"DEED"}
	}
	if len(cfg.MortgageDocTypes) == 0 {
		cfg.MortgageDocTypes = []string{"MTGE", "AGMT"}
	}
	if cfg.ComplaintWindowDays <= 0 {
		cfg.ComplaintWindowDays = 30
	}
	return &Linker{
		pager:    pager,
		datasets: datasets,
		cfg:      cfg,
		log:      zap.L().With(zap.String("component", "linker")),
	}
}

// fetchBatches runs a keyed fetch and folds its batch counts into res.
func (l *Linker) fetchBatches(ctx context.Context, endpoint string, keys []string, build soda.PredicateFunc, base soda.Query, res *model.LinkResult) ([]soda.Record, error) {
	br, err := l.pager.FetchByKeyBatches(ctx, endpoint, keys, 0, build, base)
	if br != nil {
		res.Batches += br.Batches
		res.FailedBatches += br.Failed
		res.Fetched += len(br.Records)
		if br.Failed > 0 && res.Err == nil {
			res.Err = br.FirstErr()
		}
	}
	if err != nil {
		return nil, err
	}
	return br.Records, nil
}

// blockKeys returns one "borough|block" key per distinct block in r.
// padded selects the 5-digit form over the bare number.
func blockKeys(r *model.Roster, padded bool) []string {
	keys := make([]string, 0, r.Len())
	for _, k := range r.Keys() {
		b := k.Block()
		if !padded {
			b = strconv.Itoa(k.BlockNumber())
		}
		keys = append(keys, k.Borough()+"|"+b)
	}
	return soda.UniqueKeys(keys)
}

// blockPredicate filters rows to the blocks in a batch of blockKeys,
// grouped by borough. boroughValue renders a borough digit in the
// dataset's encoding; numeric selects unquoted literals.
func blockPredicate(boroughCol, blockCol string, boroughValue func(string) string, numeric bool) soda.PredicateFunc {
	return func(batch []string) string {
		groups := make(map[string][]string)
		var order []string
		for _, bk := range batch {
			boro, blk, _ := strings.Cut(bk, "|")
			if _, ok := groups[boro]; !ok {
				order = append(order, boro)
			}
			groups[boro] = append(groups[boro], blk)
		}

		clauses := make([]string, 0, len(order))
		for _, boro := range order {
			if numeric {
				clauses = append(clauses, soda.And(soda.EqNum(boroughCol, boroughValue(boro)), soda.InNum(blockCol, groups[boro])))
			} else {
				clauses = append(clauses, soda.And(soda.Eq(boroughCol, boroughValue(boro)), soda.In(blockCol, groups[boro])))
			}
		}
		return soda.Or(clauses...)
	}
}

func boroughDigit(code string) string { return code }

func boroughFullName(code string) string {
	name, _ := parcel.BoroughName(code)
	return name
}

// rosterKeys returns every roster key as a string.
func rosterKeys(r *model.Roster) []string {
	keys := r.Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

// keyFromRecord resolves a row's parcel from a raw code column, then from
// borough/block/lot columns.
func keyFromRecord(rec soda.Record, codeCol, boroughCol, blockCol, lotCol string) (parcel.Key, bool) {
	if codeCol != "" {
		if k, ok := parcel.ParseKey(rec.String(codeCol)); ok {
			return k, true
		}
	}
	if boroughCol == "" {
		return "", false
	}
	boro, ok := parcel.BoroughCode(rec.String(boroughCol))
	if !ok {
		return "", false
	}
	k, err := parcel.BuildKey(boro, rec.String(blockCol), rec.String(lotCol))
	if err != nil {
		return "", false
	}
	return k, true
}

func recordTime(rec soda.Record, cols ...string) time.Time {
	for _, c := range cols {
		if t, ok := rec.Time(c); ok {
			return t
		}
	}
	return time.Time{}
}

func upperSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[strings.ToUpper(strings.TrimSpace(v))] = true
	}
	return out
}
