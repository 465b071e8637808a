package wsrouter

import (
	"sync/atomic"

	"github.com/wsrouter/wsrouter/errs"
)

// Next invokes the remainder of the middleware chain.
type Next func(ctx *Context) error

// Middleware wraps one step of the dispatch chain. It MUST call next at most
// once; a second call is a programmer error routed to the error sink.
type Middleware func(ctx *Context, next Next) error

// HandlerFunc is the terminal step of a route's chain.
type HandlerFunc func(ctx *Context) error

// composeChain builds a single Next out of the global middlewares, the
// route's own middlewares, and the handler, in that order, matching the
// dispatch engine's documented composition order.
func composeChain(global, routeScoped []Middleware, handler HandlerFunc) Next {
	chain := make([]Middleware, 0, len(global)+len(routeScoped))
	chain = append(chain, global...)
	chain = append(chain, routeScoped...)

	var build func(i int) Next
	build = func(i int) Next {
		if i >= len(chain) {
			return func(ctx *Context) error { return handler(ctx) }
		}
		mw := chain[i]
		rest := build(i + 1)
		return func(ctx *Context) error {
			var called atomic.Bool
			guarded := func(ctx *Context) error {
				if !called.CompareAndSwap(false, true) {
					err := errs.New(errs.State, "middleware called next() more than once")
					ctx.router.routeError(err, ctx)
					return err
				}
				return rest(ctx)
			}
			return mw(ctx, guarded)
		}
	}
	return build(0)
}
