// Package uid generates the snowflake identifiers used for connection tokens
// and tickets. IDs are rendered as base58 strings in the API.
package uid

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ID snowflake.ID

var idGen *snowflake.Node

func init() {
	snowflake.Epoch = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

	var err error
	//nolint:gosec // the node id does not need to be cryptographically random
	idGen, err = snowflake.NewNode(rand.Int63n(1024))
	if err != nil {
		panic(err)
	}
}

// New returns an ID from the process wide node. The node is selected when the
// process starts.
func New() ID {
	return ID(idGen.Generate())
}

// Parse a base58 encoded ID.
func Parse(b []byte) (ID, error) {
	id, err := snowflake.ParseBase58(b)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", string(b), err)
	}
	return ID(id), nil
}

func (u ID) String() string {
	return snowflake.ID(u).Base58()
}

func (u ID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *ID) UnmarshalText(b []byte) error {
	id, err := Parse(b)
	if err != nil {
		return err
	}
	*u = id
	return nil
}

// UnmarshalParam allows gin to bind an ID from a uri, query or form parameter.
func (u *ID) UnmarshalParam(param string) error {
	return u.UnmarshalText([]byte(param))
}
