package nodetx

import "errors"

// Sentinel errors for the node write transaction's usage/concurrency
// error kinds (§7: Usage, NotFound, Concurrency).
var (
	ErrNotFound           = errors.New("nodetx: node not found")
	ErrUsage              = errors.New("nodetx: invalid operation for current node kind")
	ErrDuplicateAttribute = errors.New("nodetx: duplicate attribute with identical value")
	ErrDuplicateNamespace = errors.New("nodetx: duplicate namespace prefix")
	ErrCycleForbidden     = errors.New("nodetx: move would make a node its own ancestor")
	ErrInvalidContent     = errors.New("nodetx: value contains a forbidden substring for this node kind")
	ErrClosed             = errors.New("nodetx: transaction already committed, aborted or closed")
	ErrEmptyValue         = errors.New("nodetx: value must be non-empty")
	ErrDirtyOnClose       = errors.New("nodetx: close called with uncommitted mutations pending")
)
