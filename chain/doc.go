// Package chain implements the transaction engine and addressing model for a
// daisy chain of Zaber actuators sharing one half-duplex serial link.
//
// # Exchanges
//
// A Chain serializes every exchange on its link with a single lock held for
// the full encode, send, receive, decode and validate sequence. Two kinds of
// exchange exist:
//
//   - Execute sends one command and does not wait for a reply. Movement and
//     setting commands use it.
//   - Query sends one command and reads one reply record per addressed
//     actuator. A broadcast query expects one record from every actuator in
//     the chain, an addressed query expects exactly one.
//
// Replies that are malformed, come from an actuator outside the chain, or do
// not carry the expected number of records are structural errors. Query
// retries the whole exchange on a structural error, up to the configured
// retry limit, and then fails with a terminal error wrapping ErrProtocol.
//
// # Chain size
//
// The number of actuators is discovered once with ProbeChainSize, which
// broadcasts an echo command and counts the reply records. Query probes
// lazily when no size is known. Renumber forgets the cached size because the
// hardware reassigns addresses.
//
// # Addressing
//
// Callers name actuators by zero-based chain position with Actuator(n), or
// every actuator with Broadcast. Actuator n is wire address n+1; Broadcast is
// wire address 0.
package chain
