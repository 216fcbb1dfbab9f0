package protocol

import "github.com/nimiq/albatross-simulator/crypto"

const slashInherentSize = 2 * (4*hashSize + signatureSize)

// SlashInherent is evidence of a micro-block fork: two headers for the same
// slot and view, both signed by the producer. It is surfaced for later
// punishment; no slashing happens in the simulation itself.
type SlashInherent struct {
	Header1        MicroHeader
	Justification1 crypto.Signature
	Header2        MicroHeader
	Justification2 crypto.Signature
}
