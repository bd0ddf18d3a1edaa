// Package ledger implements the in-memory, hash-linked star registry ledger.
//
// The chain begins with a genesis block at height 0 whose PreviousHash is the
// null sentinel. Every later block records the hash of its predecessor, and
// every block's Hash is a SHA-256 digest over its other fields, so tampering
// with any stored block is detectable via ValidateChain.
//
// Appends are serialised per Ledger and re-validate the whole tentative chain
// before committing; readers always see a chain that validated at commit time.
// Nothing is persisted: the chain lives for the lifetime of the process.
package ledger
