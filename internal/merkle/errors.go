package merkle

import "errors"

// ErrIndexOutOfRange is returned by InclusionPath for an index outside the
// bounds of the leaf sequence.
var ErrIndexOutOfRange = errors.New("merkle: leaf index out of range")
