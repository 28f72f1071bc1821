package model

import "github.com/sells-group/parcel-leads/internal/parcel"

// Roster is the set of parcels seeded from the base dataset. It is owned by
// one stage at a time and preserves insertion order.
type Roster struct {
	order []parcel.Key
	byKey map[parcel.Key]*Parcel
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{byKey: make(map[parcel.Key]*Parcel)}
}

// Add inserts p and reports whether it was new. A second parcel with the
// same key is ignored.
func (r *Roster) Add(p *Parcel) bool {
	if _, ok := r.byKey[p.Key]; ok {
		return false
	}
	r.byKey[p.Key] = p
	r.order = append(r.order, p.Key)
	return true
}

// Get returns the parcel for k.
func (r *Roster) Get(k parcel.Key) (*Parcel, bool) {
	p, ok := r.byKey[k]
	return p, ok
}

// Has reports whether k is in the roster.
func (r *Roster) Has(k parcel.Key) bool {
	_, ok := r.byKey[k]
	return ok
}

// Len returns the number of parcels.
func (r *Roster) Len() int { return len(r.order) }

// Keys returns parcel keys in insertion order.
func (r *Roster) Keys() []parcel.Key {
	out := make([]parcel.Key, len(r.order))
	copy(out, r.order)
	return out
}

// Parcels returns parcels in insertion order.
func (r *Roster) Parcels() []*Parcel {
	out := make([]*Parcel, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.byKey[k])
	}
	return out
}

// Blocks returns the distinct zero-padded block numbers in the roster.
func (r *Roster) Blocks() []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range r.order {
		b := k.Block()
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}
