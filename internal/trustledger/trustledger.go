// Package trustledger keeps a hash-chained audit log of ownership events:
// verified challenges, ownership transfers and gated server updates.
//
// The chain starts at a genesis entry whose Hash is GenesisHash. Each later
// entry stores the hash of its predecessor, so Verify detects any rewrite.
//
// MemoryLedger serves tests and the memory storage driver; PostgresLedger is
// the durable implementation.
package trustledger
