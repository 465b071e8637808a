// Package msgpack implements codec.Codec over MessagePack, for deployments
// that want a binary wire format instead of the default JSON envelope.
package msgpack

import (
	"github.com/vmihailenco/msgpack/v5"
	"github.com/wsrouter/wsrouter/codec"
)

// Codec (de)serializes frames as MessagePack.
type Codec struct{}

// New constructs a msgpack Codec.
func New() Codec { return Codec{} }

func (Codec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

var _ codec.Codec = Codec{}
