// Package advertising encodes and decodes BLE advertising payloads as
// AD (Type-Length-Value) structures: flags, the complete local name and the
// list of 128-bit service UUIDs. UUIDs travel little-endian on the air.
package advertising

import (
	"fmt"

	"github.com/user/uartlink-blue/uart"
)

// AD Types used by this codec (EIR/AD format)
const (
	ADTypeFlags                      = 0x01
	ADTypeComplete128BitServiceUUIDs = 0x07
	ADTypeShortenedLocalName         = 0x08
	ADTypeCompleteLocalName          = 0x09
)

// Advertising flags (used in ADTypeFlags)
const (
	FlagLEGeneralDiscoverableMode = 0x02
	FlagBREDRNotSupported         = 0x04
)

// MaxPayloadLen is the BLE 4.x advertising data limit.
const MaxPayloadLen = 31

// Payload builds an advertising payload declaring the device name and the
// given service UUIDs.
func Payload(name string, services []uart.UUID) ([]byte, error) {
	var buf []byte

	appendField := func(adType byte, data []byte) {
		buf = append(buf, byte(1+len(data)), adType)
		buf = append(buf, data...)
	}

	appendField(ADTypeFlags, []byte{FlagLEGeneralDiscoverableMode | FlagBREDRNotSupported})
	if name != "" {
		appendField(ADTypeCompleteLocalName, []byte(name))
	}
	for _, svc := range services {
		appendField(ADTypeComplete128BitServiceUUIDs, reverse(svc[:]))
	}

	if len(buf) > MaxPayloadLen {
		return nil, fmt.Errorf("advertising: payload is %d bytes (max %d)", len(buf), MaxPayloadLen)
	}
	return buf, nil
}

// fields walks the TLV structures, calling fn for each one. Malformed
// trailing bytes are ignored, matching permissive real-world parsers.
func fields(advData []byte, fn func(adType byte, data []byte)) {
	i := 0
	for i+1 < len(advData) {
		length := int(advData[i])
		if length == 0 || i+1+length > len(advData) {
			return
		}
		fn(advData[i+1], advData[i+2:i+1+length])
		i += 1 + length
	}
}

// DecodeName extracts the local name, preferring the complete form. Returns
// "" when no name field is present.
func DecodeName(advData []byte) string {
	name := ""
	fields(advData, func(adType byte, data []byte) {
		switch adType {
		case ADTypeCompleteLocalName:
			name = string(data)
		case ADTypeShortenedLocalName:
			if name == "" {
				name = string(data)
			}
		}
	})
	return name
}

// DecodeServices extracts the advertised 128-bit service UUIDs.
func DecodeServices(advData []byte) []uart.UUID {
	var out []uart.UUID
	fields(advData, func(adType byte, data []byte) {
		if adType != ADTypeComplete128BitServiceUUIDs {
			return
		}
		for ; len(data) >= 16; data = data[16:] {
			var u uart.UUID
			copy(u[:], reverse(data[:16]))
			out = append(out, u)
		}
	})
	return out
}

// Codec satisfies uart.AdvDecoder.
type Codec struct{}

func (Codec) DecodeName(advData []byte) string {
	return DecodeName(advData)
}

func (Codec) DecodeServices(advData []byte) []uart.UUID {
	return DecodeServices(advData)
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
