package protocol

const transactionSize = 128

// Transaction is a placeholder for chain payload. The protocol carries
// transactions structurally and accounts for their verification cost, but
// does not execute them.
type Transaction struct{}
