// Package testutil provides in-memory implementations and fixture builders
// for tests across the module. Never import this in production code.
package testutil

import (
	"time"

	"github.com/nimiq/albatross-simulator/crypto"
	"github.com/nimiq/albatross-simulator/protocol"
)

// Validators derives a validator set of the given size with keys 0..n-1.
func Validators(n int) []crypto.PublicKey {
	validators := make([]crypto.PublicKey, n)
	for i := range validators {
		validators[i] = crypto.KeyPairFromID(uint64(i)).PublicKey()
	}
	return validators
}

// Genesis builds a genesis macro block for n validators.
func Genesis(n int) *protocol.MacroBlock {
	return protocol.NewGenesisBlock(Validators(n))
}

// ProtocolConfig returns a small protocol configuration suitable for tests.
func ProtocolConfig(numValidators int) protocol.Config {
	return protocol.Config{
		MicroBlockTimeout: 500 * time.Millisecond,
		MacroBlockTimeout: time.Second,
		NumMicroBlocks:    4,
		NumValidators:     uint16(numValidators),
	}
}
