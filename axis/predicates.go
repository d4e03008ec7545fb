package axis

import "sirixgo/node"

// NameFilter keeps only Named nodes whose (name, uri) match exactly —
// the predicate §4.10's path-node lookup by (name, uri, kind, level)
// narrows a level-order axis with, alongside PathKindFilter and
// PathLevelFilter.
func NameFilter(nameKey, uriKey int32) Predicate {
	return func(r Reader, key node.Key) (bool, error) {
		n, err := r.NodeAt(key)
		if err != nil {
			return false, err
		}
		named, ok := n.(node.Named)
		if !ok {
			return false, nil
		}
		return named.NameKey() == nameKey && named.URIKey() == uriKey, nil
	}
}

// PathKindFilter keeps only nodes of the given kind.
func PathKindFilter(kind node.Kind) Predicate {
	return func(r Reader, key node.Key) (bool, error) {
		n, err := r.NodeAt(key)
		if err != nil {
			return false, err
		}
		return n.Kind() == kind, nil
	}
}

// PathLevelFilter keeps only nodes exactly level hops below the
// document root, counted by walking ParentKey links.
func PathLevelFilter(level int) Predicate {
	return func(r Reader, key node.Key) (bool, error) {
		depth, err := depthOf(r, key)
		if err != nil {
			return false, err
		}
		return depth == level, nil
	}
}

func depthOf(r Reader, key node.Key) (int, error) {
	depth := 0
	cur := key
	for {
		n, err := r.NodeAt(cur)
		if err != nil {
			return 0, err
		}
		parent := n.ParentKey()
		if parent == node.NullKey {
			return depth, nil
		}
		depth++
		cur = parent
	}
}
