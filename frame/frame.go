package frame

// JPEG stream markers. A frame handed over by the sensor driver must
// start with SOI and end with EOI or it is not safe to put on the wire.
var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// IsJPEG reports whether data looks like a complete JPEG image.
// It checks the SOI/EOI markers only; it does not decode the payload.
func IsJPEG(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	if data[0] != jpegSOI[0] || data[1] != jpegSOI[1] {
		return false
	}
	return data[len(data)-2] == jpegEOI[0] && data[len(data)-1] == jpegEOI[1]
}
