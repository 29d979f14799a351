// Package gateway accepts single-shot JSON motion commands, normalizes
// them and forwards them over the motor link.
//
// It is deliberately tolerant: alias key spellings, a missing closing
// brace and unknown motion tags are all accepted; only an unparseable
// body is surfaced to the caller, and never past it — a bad command
// cannot crash the process or corrupt the last-command state.
package gateway
