// Package broadcast fans captured frames out to every attached stream
// client as a multipart/x-mixed-replace body.
//
// Delivery is best-effort: each client either takes the whole unit
// into its outbound queue or misses this cycle entirely. The
// broadcaster never blocks on network I/O and never writes a partial
// frame.
package broadcast
