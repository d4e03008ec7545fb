package axis

import "sirixgo/node"

// NewPostOrderAxis yields key's structural descendants in post-order —
// every child visited before its parent — the order §4.9 remove needs
// so a parent's record is never tombstoned while a child still
// references it for traversal, optionally ending with key itself.
func NewPostOrderAxis(r Reader, key node.Key, includeSelf bool) (Axis, error) {
	var keys []node.Key
	if err := collectDescendantsPostOrder(r, key, &keys); err != nil {
		return nil, err
	}
	if includeSelf {
		keys = append(keys, key)
	}
	return newSliceAxis(keys), nil
}

func collectDescendantsPostOrder(r Reader, key node.Key, out *[]node.Key) error {
	children, err := structuralChildren(r, key)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := collectDescendantsPostOrder(r, child, out); err != nil {
			return err
		}
		*out = append(*out, child)
	}
	return nil
}
