// Package schema tracks metadata for message schemas registered with a
// router: the wire type string, the message kind, and per-schema options.
//
// The source environment this runtime re-architects attached such metadata
// to schema objects via process-wide symbol keys. Go structs have no
// equivalent runtime side channel, so the descriptor lives in a package-level
// table keyed by reflect.Type, guarded by a sync.RWMutex. Callers never
// touch the table directly; Register/Describe/KindOf/TypeOf/SchemaOpts/
// SetSchemaOpts/CloneWithOpts are the only sanctioned accessors.
package schema

import (
	"reflect"
	"sync"
)

// Kind classifies what a registered schema represents on the wire.
type Kind int

const (
	// KindEvent is a fire-and-forget message with no reply expected.
	KindEvent Kind = iota
	// KindRPC is a request that expects a terminal Reply or Error, and may
	// receive zero or more Progress frames in between.
	KindRPC
)

func (k Kind) String() string {
	switch k {
	case KindRPC:
		return "rpc"
	default:
		return "event"
	}
}

// Opts are per-schema behavioral options a plugin may consult. The
// validation plugin reads ValidateOutgoing; any plugin may extend this
// struct's effective meaning by storing additional data in a schema's
// Descriptor.Extra.
type Opts struct {
	// ValidateOutgoing overrides the validation plugin's default outbound
	// validation behavior for this schema specifically. nil means "use the
	// plugin default".
	ValidateOutgoing *bool
}

// Descriptor is the metadata attached to one registered schema.
type Descriptor struct {
	Type     string
	Kind     Kind
	Opts     Opts
	Response any // present only when Kind == KindRPC: the reply schema
	Extra    map[string]any
}

var (
	mu    sync.RWMutex
	table = map[reflect.Type]Descriptor{}
)

func keyOf(schema any) reflect.Type {
	return reflect.TypeOf(schema)
}

// Register attaches a descriptor to schema's Go type. Re-registering the
// same type overwrites the previous descriptor; this is used by
// CloneWithOpts to install a derived descriptor under a synthetic type.
func Register(schemaInstance any, d Descriptor) {
	mu.Lock()
	defer mu.Unlock()
	table[keyOf(schemaInstance)] = d
}

// Describe returns the descriptor registered for schema, or false if none
// was registered.
func Describe(schemaInstance any) (Descriptor, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := table[keyOf(schemaInstance)]
	return d, ok
}

// TypeOf returns the wire type string for a registered schema, or "" if
// unregistered.
func TypeOf(schemaInstance any) string {
	d, _ := Describe(schemaInstance)
	return d.Type
}

// KindOf returns the registered Kind for a schema. Unregistered schemas
// report KindEvent.
func KindOf(schemaInstance any) Kind {
	d, _ := Describe(schemaInstance)
	return d.Kind
}

// SchemaOpts returns the registered Opts for a schema.
func SchemaOpts(schemaInstance any) Opts {
	d, _ := Describe(schemaInstance)
	return d.Opts
}

// SetSchemaOpts replaces the Opts on an already-registered schema in place.
func SetSchemaOpts(schemaInstance any, opts Opts) {
	mu.Lock()
	defer mu.Unlock()
	k := keyOf(schemaInstance)
	d := table[k]
	d.Opts = opts
	table[k] = d
}

// cloneKey is a distinct named type per clone so each CloneWithOpts call
// gets its own reflect.Type identity in the side table, even though the
// underlying value shape is identical to the schema it derives from.
type cloneKey struct {
	_ byte
}

// CloneWithOpts produces a new schema value carrying the same wire Type and
// Kind as schemaInstance but with opts substituted, and registers it under a
// synthetic type key so it does not alias the original's descriptor.
func CloneWithOpts(schemaInstance any, opts Opts) any {
	d, _ := Describe(schemaInstance)
	d.Opts = opts
	derived := new(cloneKey)
	Register(derived, d)
	return derived
}
