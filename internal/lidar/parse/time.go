package parse

import (
	"encoding/binary"
	"time"
)

// LidarTime decodes the calendar timestamp in an MSOP header into seconds
// since the Unix epoch with microsecond resolution. The on-wire year is
// years since 2000 and the calendar fields are UTC civil time; ms and us
// are big-endian u16 sub-second fields.
//
// Returns 0 for a buffer too short to contain the header, matching the
// decoder policy of normalising rather than failing on numeric edge cases.
func LidarTime(pkt []byte) float64 {
	if len(pkt) < msopTimestampOffset+10 {
		return 0
	}
	b := pkt[msopTimestampOffset:]
	sec := time.Date(2000+int(b[0]), time.Month(b[1]), int(b[2]),
		int(b[3]), int(b[4]), int(b[5]), 0, time.UTC).Unix()
	ms := binary.BigEndian.Uint16(b[6:])
	us := binary.BigEndian.Uint16(b[8:])
	return float64(sec) + float64(ms)/1e3 + float64(us)/1e6
}
