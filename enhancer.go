package wsrouter

import "sort"

// EnhancerFunc mutates or attaches data to ctx during context construction.
// It may do blocking I/O; Go unifies the "sync vs async enhancer" split the
// source environment drew, since every Go function can block.
type EnhancerFunc func(ctx *Context) error

type enhancer struct {
	fn       EnhancerFunc
	priority int
	order    int
}

// enhancerChain holds enhancers sorted by (Priority asc, registration Order
// asc), the tiebreak achieved by sort.SliceStable over a snapshot.
type enhancerChain struct {
	entries []enhancer
	nextSeq int
}

// coreErrorEnhancerPriority is fixed at -1000 so it always runs before any
// plugin-registered enhancer.
const coreErrorEnhancerPriority = -1000

func newEnhancerChain() *enhancerChain {
	c := &enhancerChain{}
	// Context.Error is a method, already present before any enhancer runs;
	// the core slot at -1000 exists so plugin enhancers provably sort after
	// core setup regardless of the priorities they pick.
	c.register(func(ctx *Context) error {
		return nil
	}, coreErrorEnhancerPriority)
	return c
}

// register appends fn at the given priority, stamping it with the next
// registration-order sequence number.
func (c *enhancerChain) register(fn EnhancerFunc, priority int) {
	c.entries = append(c.entries, enhancer{fn: fn, priority: priority, order: c.nextSeq})
	c.nextSeq++
}

// run executes a priority-and-order-stable snapshot of the chain against
// ctx, stopping (and returning) on the first error.
func (c *enhancerChain) run(ctx *Context) error {
	snapshot := make([]enhancer, len(c.entries))
	copy(snapshot, c.entries)
	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].priority < snapshot[j].priority
	})
	for _, e := range snapshot {
		if err := e.fn(ctx); err != nil {
			return err
		}
	}
	return nil
}
