package linker

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/parcel-leads/internal/model"
	"github.com/sells-group/parcel-leads/internal/parcel"
	"github.com/sells-group/parcel-leads/internal/soda"
)

// Base roster columns.
const (
	baseBBL          = "bbl"
	baseBorough      = "borough"
	baseBlock        = "block"
	baseLot          = "lot"
	baseAddress      = "address"
	baseZip          = "zipcode"
	baseNeighborhood = "neighborhood"
	baseOwner        = "ownername"
	baseUnits        = "unitsres"
	baseLotArea      = "lotarea"
	baseBuiltFAR     = "builtfar"
	baseResidFAR     = "residfar"
	baseCommFAR      = "commfar"
	baseFacilFAR     = "facilfar"
	baseBldgClass    = "bldgclass"
	baseYearBuilt    = "yearbuilt"
)

// FetchBase reads the base roster for area. area must already be
// normalized. A page failure after some rows arrived is reported in the
// result and the partial roster is kept.
func (l *Linker) FetchBase(ctx context.Context, area model.Area) (*model.Roster, model.LinkResult, error) {
	var res model.LinkResult

	abbr, ok := parcel.BoroughAbbr(area.Borough)
	if !ok {
		return nil, res, eris.Errorf("linker: unknown borough %q", area.Borough)
	}
	q := soda.Query{
		Where: soda.And(soda.Eq(baseBorough, abbr), soda.Eq(l.cfg.AreaColumn, area.Code)),
	}

	rows, err := l.pager.FetchAllPages(ctx, l.datasets.Base, q, 0)
	res.Fetched = len(rows)
	if err != nil {
		if len(rows) == 0 {
			return nil, res, eris.Wrap(err, "linker: fetch base roster")
		}
		res.Err = err
		l.log.Warn("base roster is partial", zap.Int("rows", len(rows)), zap.Error(err))
	}

	roster, skipped := BuildRoster(rows, area.Name)
	res.Matched = roster.Len()
	res.Unmatched = skipped
	return roster, res, nil
}

// BuildRoster creates one Parcel per base row that normalizes to a key.
// It returns the count of rows skipped for lacking a key or repeating one.
// fallbackNeighborhood is used for rows without a neighborhood column.
func BuildRoster(rows []soda.Record, fallbackNeighborhood string) (*model.Roster, int) {
	roster := model.NewRoster()
	skipped := 0

	for _, row := range rows {
		key, ok := keyFromRecord(row, baseBBL, baseBorough, baseBlock, baseLot)
		if !ok {
			skipped++
			continue
		}
		if !roster.Add(newParcel(key, row, fallbackNeighborhood)) {
			skipped++
		}
	}
	return roster, skipped
}

func newParcel(key parcel.Key, row soda.Record, fallbackNeighborhood string) *model.Parcel {
	address := strings.Join(strings.Fields(strings.ToUpper(row.String(baseAddress))), " ")
	house, street := parcel.SplitAddress(address)
	addrKey, _ := parcel.NormalizeAddress(house, street)

	neighborhood := row.String(baseNeighborhood)
	if neighborhood == "" {
		neighborhood = fallbackNeighborhood
	}

	p := &model.Parcel{
		Key:           key,
		Raw:           map[string]any(row),
		Address:       address,
		AddressKey:    addrKey,
		ZipCode:       row.String(baseZip),
		Neighborhood:  neighborhood,
		BuildingClass: row.String(baseBldgClass),
		OwnerName:     row.String(baseOwner),
	}
	p.OwnerKey = parcel.NormalizeOwner(p.OwnerName)
	p.YearBuilt, _ = row.Int(baseYearBuilt)
	p.ResidentialUnits, _ = row.Int(baseUnits)
	p.LotArea, _ = row.Float(baseLotArea)
	p.BuiltFAR, _ = row.Float(baseBuiltFAR)
	p.ResidentialFAR, _ = row.Float(baseResidFAR)
	p.CommercialFAR, _ = row.Float(baseCommFAR)
	p.FacilityFAR, _ = row.Float(baseFacilFAR)
	return p
}
