package axis

import "sirixgo/node"

// Predicate reports whether key should survive a FilterAxis. §4.11
// requires predicate composition to be short-circuit: NewFilterAxis
// stops evaluating a key's remaining predicates as soon as one fails.
type Predicate func(r Reader, key node.Key) (bool, error)

// NewFilterAxis yields exactly the keys inner would, restricted to
// those for which every predicate holds.
func NewFilterAxis(inner Axis, r Reader, predicates ...Predicate) (Axis, error) {
	var kept []node.Key
	for inner.Valid() {
		key := inner.Key()
		ok, err := matchesAll(r, key, predicates)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, key)
		}
		if err := inner.Next(); err != nil {
			return nil, err
		}
	}
	return newSliceAxis(kept), nil
}

func matchesAll(r Reader, key node.Key, predicates []Predicate) (bool, error) {
	for _, p := range predicates {
		ok, err := p(r, key)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
