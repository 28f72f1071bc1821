package linker

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parcel-leads/internal/model"
	"github.com/sells-group/parcel-leads/internal/parcel"
	"github.com/sells-group/parcel-leads/internal/soda"
)

// Legal-description and master-record columns.
const (
	legalDocID   = "document_id"
	legalBorough = "borough"
	legalBlock   = "block"
	legalLot     = "lot"

	masterDocID    = "document_id"
	masterDocType  = "doc_type"
	masterDocDate  = "document_date"
	masterRecorded = "recorded_datetime"
	masterAmount   = "document_amt"
)

// BuildDocIndex links legal-description rows to the roster by borough,
// block and lot, yielding document id to parcel keys.
func (l *Linker) BuildDocIndex(ctx context.Context, roster *model.Roster) (*DocIndex, model.LinkResult, error) {
	var res model.LinkResult
	idx := NewJoinIndex[string]()

	rows, err := l.fetchBatches(ctx, l.datasets.Legals, blockKeys(roster, false),
		blockPredicate(legalBorough, legalBlock, boroughDigit, true), soda.Query{}, &res)
	if err != nil {
		return idx, res, eris.Wrap(err, "linker: fetch legals")
	}

	for _, row := range rows {
		docID := row.String(legalDocID)
		boro, ok := parcel.BoroughCode(row.String(legalBorough))
		if docID == "" || !ok {
			res.Unmatched++
			continue
		}
		key, err := parcel.BuildKey(boro, row.String(legalBlock), row.String(legalLot))
		if err != nil || !roster.Has(key) {
			res.Unmatched++
			continue
		}
		idx.Add(docID, key)
	}
	return idx, res, nil
}

// qualifierSep separates a document type from its qualifier, as in
// "DEED, EXECUTOR".
const qualifierSep = ", "

// docTypeWhere matches each configured type exactly or with a qualifier.
func docTypeWhere(docTypes []string) string {
	clauses := []string{soda.In(masterDocType, docTypes)}
	for _, t := range docTypes {
		clauses = append(clauses, soda.StartsWith(masterDocType, t+qualifierSep))
	}
	return soda.Or(clauses...)
}

// matchDocType reports whether docType is one of allowed, bare or qualified.
func matchDocType(allowed map[string]bool, docType string) bool {
	t := strings.ToUpper(strings.TrimSpace(docType))
	if allowed[t] {
		return true
	}
	if i := strings.Index(t, qualifierSep); i > 0 {
		return allowed[t[:i]]
	}
	return false
}

// fetchMaster reads master records for every document in idx whose type
// is in docTypes, bare or qualified.
func (l *Linker) fetchMaster(ctx context.Context, idx *DocIndex, docTypes []string, res *model.LinkResult) ([]soda.Record, error) {
	base := soda.Query{Where: docTypeWhere(docTypes)}
	build := func(batch []string) string { return soda.In(masterDocID, batch) }
	rows, err := l.fetchBatches(ctx, l.datasets.Master, idx.Keys(), build, base, res)
	if err != nil {
		return nil, eris.Wrap(err, "linker: fetch master records")
	}

	allowed := upperSet(docTypes)
	kept := rows[:0]
	for _, row := range rows {
		if matchDocType(allowed, row.String(masterDocType)) {
			kept = append(kept, row)
		} else {
			res.Unmatched++
		}
	}
	return kept, nil
}

// LinkDeeds links deed records through the legal-description index. The
// latest deed sets each parcel's current sale; every deed is kept in
// the history, newest first. The index is returned for LinkMortgages even when the
// master fetch fails.
func (l *Linker) LinkDeeds(ctx context.Context, roster *model.Roster) (*DocIndex, model.LinkResult, error) {
	idx, res, err := l.BuildDocIndex(ctx, roster)
	if err != nil {
		return nil, res, err
	}
	if idx.Len() == 0 {
		return idx, res, nil
	}

	rows, err := l.fetchMaster(ctx, idx, l.cfg.DeedDocTypes, &res)
	if err != nil {
		return idx, res, err
	}

	for _, row := range sortByDate(rows) {
		keys := idx.Lookup(row.String(masterDocID))
		if len(keys) == 0 {
			res.Unmatched++
			continue
		}
		deed := model.Deed{
			DocumentID: row.String(masterDocID),
			DocType:    strings.ToUpper(row.String(masterDocType)),
			Date:       recordTime(row, masterDocDate, masterRecorded),
		}
		deed.Amount, _ = row.Float(masterAmount)
		for _, k := range keys {
			if p, ok := roster.Get(k); ok {
				p.RecordSale(deed)
				res.Matched++
			}
		}
	}
	return idx, res, nil
}

// LinkMortgages links mortgage records through idx. A nil idx means the
// deed stage never built one, so it is rebuilt here.
func (l *Linker) LinkMortgages(ctx context.Context, roster *model.Roster, idx *DocIndex) (model.LinkResult, error) {
	var res model.LinkResult
	if idx == nil {
		var err error
		idx, res, err = l.BuildDocIndex(ctx, roster)
		if err != nil {
			return res, err
		}
	}
	if idx.Len() == 0 {
		return res, nil
	}

	rows, err := l.fetchMaster(ctx, idx, l.cfg.MortgageDocTypes, &res)
	if err != nil {
		return res, err
	}

	for _, row := range sortByDate(rows) {
		keys := idx.Lookup(row.String(masterDocID))
		if len(keys) == 0 {
			res.Unmatched++
			continue
		}
		m := model.Mortgage{
			DocumentID: row.String(masterDocID),
			DocType:    strings.ToUpper(row.String(masterDocType)),
			Date:       recordTime(row, masterDocDate, masterRecorded),
		}
		m.Amount, _ = row.Float(masterAmount)
		for _, k := range keys {
			if p, ok := roster.Get(k); ok {
				p.Mortgages = append(p.Mortgages, m)
				res.Matched++
			}
		}
	}
	return res, nil
}

// sortByDate orders master rows newest first.
func sortByDate(rows []soda.Record) []soda.Record {
	sort.SliceStable(rows, func(i, j int) bool {
		return recordTime(rows[i], masterDocDate, masterRecorded).After(recordTime(rows[j], masterDocDate, masterRecorded))
	})
	return rows
}
