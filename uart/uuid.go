package uart

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// UUID is a 128-bit GATT identifier in canonical (big-endian) byte order.
type UUID [16]byte

// ParseUUID parses the standard 8-4-4-4-12 hex form.
func ParseUUID(s string) (UUID, error) {
	var u UUID
	clean := strings.ReplaceAll(s, "-", "")
	if len(clean) != 32 {
		return u, fmt.Errorf("uart: invalid UUID %q", s)
	}
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return u, fmt.Errorf("uart: invalid UUID %q: %w", s, err)
	}
	copy(u[:], raw)
	return u, nil
}

// MustParseUUID is ParseUUID for package-level constants; panics on bad input.
func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// String returns the canonical 8-4-4-4-12 form, uppercase.
func (u UUID) String() string {
	return strings.ToUpper(fmt.Sprintf("%x-%x-%x-%x-%x",
		u[0:4], u[4:6], u[6:8], u[8:10], u[10:16]))
}

// Nordic UART Service identifiers.
var (
	ServiceUUID = MustParseUUID("6E400001-B5A3-F393-E0A9-E50E24DCCA9E")
	RXCharUUID  = MustParseUUID("6E400002-B5A3-F393-E0A9-E50E24DCCA9E") // inbound writes
	TXCharUUID  = MustParseUUID("6E400003-B5A3-F393-E0A9-E50E24DCCA9E") // outbound notifications
)

// Characteristic properties (bitmask).
const (
	PropBroadcast            = 0x01
	PropRead                 = 0x02
	PropWriteWithoutResponse = 0x04
	PropWrite                = 0x08
	PropNotify               = 0x10
	PropIndicate             = 0x20
)

// MaxPayload is the negotiated transport unit size. Frames larger than this
// are never fragmented here; both roles reject them.
const MaxPayload = 128
