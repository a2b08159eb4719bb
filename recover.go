package utcp

import "github.com/datawire/dlib/derror"

// guard recovers a panic raised by panicInvariant (see errors.go) and
// reports it through *errp as a derror.PanicToError error. Any other
// panic value is not an invariant violation but a genuine bug, so it
// is re-raised instead of being swallowed into an error return.
//
// Usage: `defer guard(&err)` as the first deferred call in any
// exported function that can call panicInvariant.
func guard(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if _, ok := r.(invariantViolation); !ok {
		panic(r)
	}
	*errp = derror.PanicToError(r)
}
