package axis

import "sirixgo/node"

// NewDescendantAxis yields key's structural descendants in document
// (pre-)order — a node before any of its children — optionally
// starting with key itself.
func NewDescendantAxis(r Reader, key node.Key, includeSelf bool) (Axis, error) {
	var keys []node.Key
	if includeSelf {
		keys = append(keys, key)
	}
	if err := collectDescendantsPreOrder(r, key, &keys); err != nil {
		return nil, err
	}
	return newSliceAxis(keys), nil
}

func collectDescendantsPreOrder(r Reader, key node.Key, out *[]node.Key) error {
	children, err := structuralChildren(r, key)
	if err != nil {
		return err
	}
	for _, child := range children {
		*out = append(*out, child)
		if err := collectDescendantsPreOrder(r, child, out); err != nil {
			return err
		}
	}
	return nil
}
