// Package recovery converts panics raised inside handlers, middleware,
// enhancers, and observer callbacks into errors instead of letting them
// crash the per-connection dispatch goroutine.
package recovery

import (
	"fmt"

	"github.com/wsrouter/wsrouter/errs"
)

// Call runs fn and returns the error fn returned; if fn panics, the panic is
// converted into a *errs.RouterError and returned instead. A non-error panic value
// (string, struct, etc.) is wrapped with fmt.Errorf("%v") as the cause.
func Call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r)
		}
	}()
	return fn()
}

// CallVoid runs fn, which returns nothing, recovering any panic into an
// error. Used for observer callbacks (onMessage/onError/onClose), which
// have no return value of their own.
func CallVoid(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r)
		}
	}()
	fn()
	return nil
}

func panicToError(r any) error {
	if e, ok := r.(error); ok {
		return errs.Wrap(errs.State, "panic recovered", e)
	}
	return errs.Wrap(errs.State, "panic recovered", fmt.Errorf("%v", r))
}
