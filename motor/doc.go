// Package motor carries normalized motion commands to the downstream
// motor controller over its serial link.
//
// The wire form is one JSON object per line, {"M":"<motion>","v":<0-255>},
// newline-terminated, matching what the controller firmware parses.
package motor
