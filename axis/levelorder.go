package axis

import "sirixgo/node"

// AllLevels tells NewLevelOrderAxis to visit every level, rather than
// restricting to one.
const AllLevels = -1

// NewLevelOrderAxis yields key's structural descendants breadth-first,
// level by level. filterLevel restricts the sequence to nodes exactly
// that many levels below key (0 == key itself, 1 == its children, and
// so on); pass AllLevels for an unrestricted breadth-first walk.
// includeSelf, when filterLevel is AllLevels or 0, also yields key.
func NewLevelOrderAxis(r Reader, key node.Key, filterLevel int, includeSelf bool) (Axis, error) {
	var keys []node.Key
	type leveled struct {
		key   node.Key
		depth int
	}
	queue := []leveled{{key: key, depth: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth == 0 {
			if includeSelf && (filterLevel == AllLevels || filterLevel == 0) {
				keys = append(keys, cur.key)
			}
		} else if filterLevel == AllLevels || filterLevel == cur.depth {
			keys = append(keys, cur.key)
		}
		if filterLevel != AllLevels && cur.depth >= filterLevel {
			continue
		}
		children, err := structuralChildren(r, cur.key)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			queue = append(queue, leveled{key: child, depth: cur.depth + 1})
		}
	}
	return newSliceAxis(keys), nil
}
