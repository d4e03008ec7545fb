package axis

import "sirixgo/node"

// NewChildAxis yields parentKey's direct structural children, in
// left-to-right sibling order.
func NewChildAxis(r Reader, parentKey node.Key) (Axis, error) {
	children, err := structuralChildren(r, parentKey)
	if err != nil {
		return nil, err
	}
	return newSliceAxis(children), nil
}
