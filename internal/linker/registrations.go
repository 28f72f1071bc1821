package linker

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parcel-leads/internal/model"
	"github.com/sells-group/parcel-leads/internal/parcel"
	"github.com/sells-group/parcel-leads/internal/soda"
)

// Registration and registration contact columns.
const (
	regID       = "registrationid"
	regBuilding = "buildingid"
	regBoroID   = "boroid"
	regBlock    = "block"
	regLot      = "lot"
	regLastDate = "lastregistrationdate"

	contactRegID     = "registrationid"
	contactType      = "type"
	contactCorpName  = "corporationname"
	contactFirstName = "firstname"
	contactLastName  = "lastname"

	contactCorporateOwner  = "CORPORATEOWNER"
	contactIndividualOwner = "INDIVIDUALOWNER"
)

// LinkRegistrations attaches owner registrations by the key rebuilt from
// their borough/block/lot, resolves owner names from the registration
// contacts, and then builds owner portfolios. Portfolios are built even
// when a fetch fails so base-roster owner names still group.
func (l *Linker) LinkRegistrations(ctx context.Context, roster *model.Roster) (res model.LinkResult, err error) {
	defer BuildPortfolios(roster)

	rows, err := l.fetchBatches(ctx, l.datasets.Registrations, blockKeys(roster, false),
		blockPredicate(regBoroID, regBlock, boroughDigit, true), soda.Query{}, &res)
	if err != nil {
		return res, eris.Wrap(err, "linker: fetch registrations")
	}

	byReg := make(map[string][]*model.Parcel)
	for _, row := range rows {
		key, err := parcel.BuildKey(row.String(regBoroID), row.String(regBlock), row.String(regLot))
		if err != nil {
			res.Unmatched++
			continue
		}
		p, ok := roster.Get(key)
		if !ok {
			res.Unmatched++
			continue
		}

		reg := &model.Registration{
			ID:               row.String(regID),
			BuildingID:       row.String(regBuilding),
			LastRegistration: recordTime(row, regLastDate),
		}
		// Keep the most recent registration per parcel.
		if p.Registration != nil && !reg.LastRegistration.After(p.Registration.LastRegistration) {
			continue
		}
		if p.Registration == nil {
			res.Matched++
		}
		p.Registration = reg
		if reg.ID != "" {
			byReg[reg.ID] = append(byReg[reg.ID], p)
		}
	}

	if len(byReg) == 0 {
		return res, nil
	}

	ids := make([]string, 0, len(byReg))
	for _, p := range roster.Parcels() {
		if p.Registration != nil && p.Registration.ID != "" {
			ids = append(ids, p.Registration.ID)
		}
	}

	var contactRes model.LinkResult
	build := func(batch []string) string { return soda.In(contactRegID, batch) }
	contacts, err := l.fetchBatches(ctx, l.datasets.RegistrationContacts, ids, build, soda.Query{}, &contactRes)
	res.Batches += contactRes.Batches
	res.FailedBatches += contactRes.FailedBatches
	if res.Err == nil {
		res.Err = contactRes.Err
	}
	if err != nil {
		// Registrations are linked; only owner names are missing.
		res.Err = eris.Wrap(err, "linker: fetch registration contacts")
		return res, nil
	}

	owners := ownersByRegistration(contacts)
	for id, parcels := range byReg {
		owner, ok := owners[id]
		if !ok {
			continue
		}
		for _, p := range parcels {
			if p.Registration == nil || p.Registration.ID != id {
				continue
			}
			p.Registration.OwnerName = owner.name
			p.Registration.OwnerType = owner.kind
			p.OwnerName = owner.name
			p.OwnerKey = parcel.NormalizeOwner(owner.name)
		}
	}
	return res, nil
}

type owner struct {
	name string
	kind string
}

// ownersByRegistration picks one owner per registration: a corporate
// owner if listed, otherwise an individual owner.
func ownersByRegistration(contacts []soda.Record) map[string]owner {
	out := make(map[string]owner)
	for _, c := range contacts {
		id := c.String(contactRegID)
		if id == "" {
			continue
		}
		kind := strings.ToUpper(c.String(contactType))
		var name string
		switch kind {
		case contactCorporateOwner:
			name = c.String(contactCorpName)
		case contactIndividualOwner:
			name = strings.TrimSpace(c.String(contactFirstName) + " " + c.String(contactLastName))
		default:
			continue
		}
		if name == "" {
			continue
		}
		if cur, ok := out[id]; ok && cur.kind == contactCorporateOwner {
			continue
		}
		out[id] = owner{name: name, kind: kind}
	}
	return out
}

// BuildPortfolios groups roster parcels by normalized owner name. Every
// parcel's portfolio includes itself; parcels without an owner name form
// a portfolio of one.
func BuildPortfolios(roster *model.Roster) {
	byOwner := NewJoinIndex[string]()
	for _, p := range roster.Parcels() {
		if p.OwnerKey != "" {
			byOwner.Add(p.OwnerKey, p.Key)
		}
	}
	for _, p := range roster.Parcels() {
		if p.OwnerKey == "" {
			p.OwnerPortfolio = []parcel.Key{p.Key}
		} else {
			p.OwnerPortfolio = append([]parcel.Key(nil), byOwner.Lookup(p.OwnerKey)...)
		}
		p.PortfolioSize = len(p.OwnerPortfolio)
	}
}
