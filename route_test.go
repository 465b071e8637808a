package wsrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func entry(typ string) *RouteEntry {
	return &RouteEntry{Type: typ, Handler: func(ctx *Context) error { return nil }}
}

func TestRouteTableRegisterGetHas(t *testing.T) {
	rt := newRouteTable()
	rt.Register(entry("PING"))

	e, ok := rt.Get("PING")
	assert.True(t, ok)
	assert.Equal(t, "PING", e.Type)
	assert.True(t, rt.Has("PING"))
	assert.False(t, rt.Has("PONG"))
}

func TestRouteTableRegisterReservedPrefixPanics(t *testing.T) {
	rt := newRouteTable()
	assert.Panics(t, func() { rt.Register(entry("__internal")) })
	assert.Panics(t, func() { rt.Register(entry("$control")) })
}

func TestRouteTableRegisterDuplicatePanics(t *testing.T) {
	rt := newRouteTable()
	rt.Register(entry("PING"))
	assert.Panics(t, func() { rt.Register(entry("PING")) })
}

func TestRouteTableList(t *testing.T) {
	rt := newRouteTable()
	rt.Register(entry("A"))
	rt.Register(entry("B"))
	assert.Len(t, rt.List(), 2)
}

func TestRouteTableMergeError(t *testing.T) {
	dst := newRouteTable()
	dst.Register(entry("A"))
	src := newRouteTable()
	src.Register(entry("A"))

	assert.Panics(t, func() { dst.Merge(src, MergeError) })
}

func TestRouteTableMergeSkipKeepsExisting(t *testing.T) {
	dst := newRouteTable()
	original := entry("A")
	dst.Register(original)

	src := newRouteTable()
	src.Register(entry("A"))
	src.Register(entry("B"))

	dst.Merge(src, MergeSkip)

	got, _ := dst.Get("A")
	assert.Same(t, original, got, "MergeSkip must not overwrite an existing entry")
	assert.True(t, dst.Has("B"))
}

func TestRouteTableMergeReplaceOverwrites(t *testing.T) {
	dst := newRouteTable()
	dst.Register(entry("A"))

	src := newRouteTable()
	replacement := entry("A")
	src.Register(replacement)

	dst.Merge(src, MergeReplace)

	got, _ := dst.Get("A")
	assert.Same(t, replacement, got)
}

func TestRouteTableMountPrefixesTypes(t *testing.T) {
	dst := newRouteTable()
	src := newRouteTable()
	src.Register(entry("JOIN"))
	src.Register(entry("LEAVE"))

	dst.Mount("room.", src, MergeError)

	assert.True(t, dst.Has("room.JOIN"))
	assert.True(t, dst.Has("room.LEAVE"))
	assert.False(t, dst.Has("JOIN"), "original unprefixed type must not leak into dst")
}

func TestRouteTableMountDoesNotMutateSource(t *testing.T) {
	src := newRouteTable()
	src.Register(entry("JOIN"))

	dst := newRouteTable()
	dst.Mount("room.", src, MergeError)

	assert.True(t, src.Has("JOIN"))
	assert.False(t, src.Has("room.JOIN"))
}
