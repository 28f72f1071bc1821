package linker

import "github.com/sells-group/parcel-leads/internal/parcel"

// JoinIndex maps a dataset-specific key to the roster parcels it names.
// Callers only add keys that exist in the roster.
type JoinIndex[K comparable] struct {
	order []K
	m     map[K][]parcel.Key
}

// NewJoinIndex returns an empty index.
func NewJoinIndex[K comparable]() *JoinIndex[K] {
	return &JoinIndex[K]{m: make(map[K][]parcel.Key)}
}

// Add maps k to key. Repeated pairs are ignored.
func (ix *JoinIndex[K]) Add(k K, key parcel.Key) {
	existing, ok := ix.m[k]
	if !ok {
		ix.order = append(ix.order, k)
	}
	for _, e := range existing {
		if e == key {
			return
		}
	}
	ix.m[k] = append(existing, key)
}

// Lookup returns the parcels mapped to k, in insertion order.
func (ix *JoinIndex[K]) Lookup(k K) []parcel.Key {
	if ix == nil {
		return nil
	}
	return ix.m[k]
}

// Len returns the number of distinct source keys.
func (ix *JoinIndex[K]) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.order)
}

// Keys returns the source keys in insertion order.
func (ix *JoinIndex[K]) Keys() []K {
	if ix == nil {
		return nil
	}
	return append([]K(nil), ix.order...)
}

// DocIndex maps recorded-document ids to parcels via legal descriptions.
type DocIndex = JoinIndex[string]
