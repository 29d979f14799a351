// Package capture pulls frames from the image sensor and feeds the
// cache and the broadcaster.
//
// The sensor driver itself is an external collaborator reached through
// the Source interface; this package owns only the pacing loop and the
// publish/broadcast/release cycle. Transient sensor failures are never
// fatal: the loop backs off and retries until its context is
// cancelled.
package capture
