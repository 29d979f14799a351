package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// validJPEG builds a marker-correct payload of n bytes, n >= 4.
func validJPEG(n int, fill byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = fill
	}
	buf[0], buf[1] = 0xFF, 0xD8
	buf[n-2], buf[n-1] = 0xFF, 0xD9
	return buf
}

func TestIsJPEG(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"valid frame", validJPEG(64, 0xAA), true},
		{"minimal frame", []byte{0xFF, 0xD8, 0xFF, 0xD9}, true},
		{"empty", nil, false},
		{"too short", []byte{0xFF, 0xD8, 0xD9}, false},
		{"missing SOI", append([]byte{0x00, 0x00}, validJPEG(16, 0)[2:]...), false},
		{"missing EOI", validJPEG(64, 0xAA)[:63], false},
		{"plain text", []byte("not an image at all"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsJPEG(tc.data))
		})
	}
}
