// Package client tracks the set of attached streaming connections.
//
// Each connection is wrapped in a Client that owns a bounded outbound
// queue with a byte budget: writes are all-or-nothing and never block,
// so a stalled consumer costs the broadcaster nothing but a skipped
// frame. The Registry is the single owner of client lifecycle; removal
// is idempotent and resource release happens exactly once no matter
// how many code paths detect the same death.
package client
