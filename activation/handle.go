package activation

import "bytes"

// Handle is an opaque reference to an active object, as produced by the
// instantiator of the group that hosts it.
//
// A nil handle means "no handle".
type Handle []byte

// Equal returns true if h and x refer to the same active object.
func (h Handle) Equal(x Handle) bool {
	return bytes.Equal(h, x)
}
