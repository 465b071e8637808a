package wsrouter

import "github.com/google/uuid"

// newClientID mints a new per-connection identifier, minted once per socket
// and held for its lifetime. uuid gives collision-free ids without a
// central counter.
func newClientID() string {
	return uuid.NewString()
}
