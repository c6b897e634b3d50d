package chatdb

import (
	"bytes"
	"strings"
)

// nsStringMarker identifies the start of the embedded string object
// inside an attributedBody blob.
var nsStringMarker = []byte("NSString")

// markerSkip is the number of header bytes between the marker and the
// length prefix.
const markerSkip = 5

// longLengthSentinel in the first length byte means the true length is
// the following two bytes, little-endian.
const longLengthSentinel = 0x81

// DecodeAttributedBody extracts the plain message text from an
// attributedBody blob. The format is undocumented and varies by OS
// version, so the decoder is total: a missing marker, a truncated blob,
// or any out-of-bounds length yields the empty string rather than an
// error. Invalid UTF-8 sequences are replaced with U+FFFD.
func DecodeAttributedBody(blob []byte) string {
	idx := bytes.Index(blob, nsStringMarker)
	if idx < 0 {
		return ""
	}

	data := blob[idx+len(nsStringMarker):]
	if len(data) <= markerSkip {
		return ""
	}
	data = data[markerSkip:]

	length := int(data[0])
	start := 1
	if data[0] == longLengthSentinel {
		if len(data) < 3 {
			return ""
		}
		length = int(data[1]) | int(data[2])<<8
		start = 3
	}

	if start+length > len(data) {
		return ""
	}

	return strings.ToValidUTF8(string(data[start:start+length]), "�")
}
