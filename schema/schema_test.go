package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wsrouter/wsrouter/schema"
)

type getUser struct {
	ID string `json:"id"`
}

type userResponse struct {
	Name string `json:"name"`
}

func TestRegisterAndDescribe(t *testing.T) {
	req := getUser{}
	resp := userResponse{}
	schema.Register(resp, schema.Descriptor{Type: "USER", Kind: schema.KindEvent})
	schema.Register(req, schema.Descriptor{Type: "GET_USER", Kind: schema.KindRPC, Response: resp})

	assert.Equal(t, "GET_USER", schema.TypeOf(req))
	assert.Equal(t, schema.KindRPC, schema.KindOf(req))

	d, ok := schema.Describe(req)
	assert.True(t, ok)
	assert.Equal(t, resp, d.Response)
}

func TestSetSchemaOpts(t *testing.T) {
	type pingMsg struct{}
	msg := pingMsg{}
	schema.Register(msg, schema.Descriptor{Type: "PING", Kind: schema.KindEvent})

	v := true
	schema.SetSchemaOpts(msg, schema.Opts{ValidateOutgoing: &v})
	opts := schema.SchemaOpts(msg)
	assert.NotNil(t, opts.ValidateOutgoing)
	assert.True(t, *opts.ValidateOutgoing)
}

func TestCloneWithOptsDoesNotAliasOriginal(t *testing.T) {
	type pongMsg struct{}
	msg := pongMsg{}
	schema.Register(msg, schema.Descriptor{Type: "PONG", Kind: schema.KindEvent})

	v := false
	derived := schema.CloneWithOpts(msg, schema.Opts{ValidateOutgoing: &v})

	assert.Equal(t, "PONG", schema.TypeOf(derived))
	derivedOpts := schema.SchemaOpts(derived)
	assert.False(t, *derivedOpts.ValidateOutgoing)

	originalOpts := schema.SchemaOpts(msg)
	assert.Nil(t, originalOpts.ValidateOutgoing)
}

func TestUnregisteredSchemaReportsZeroValues(t *testing.T) {
	type neverRegistered struct{}
	assert.Equal(t, "", schema.TypeOf(neverRegistered{}))
	assert.Equal(t, schema.KindEvent, schema.KindOf(neverRegistered{}))
}
