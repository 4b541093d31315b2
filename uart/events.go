// Package uart implements the two roles of a BLE UART link: a Central that
// scans for, connects to and talks with an advertising Peripheral over the
// Nordic UART service (one write characteristic inbound to the peripheral,
// one notify characteristic outbound). The radio itself is abstracted behind
// the Transport interface; both roles are driven entirely by the Event
// stream the transport delivers.
package uart

import (
	"encoding/hex"
	"time"
)

// AddrType distinguishes public from random device addresses.
type AddrType uint8

const (
	AddrPublic AddrType = 0x00
	AddrRandom AddrType = 0x01
)

// Addr is a 6-byte device address.
type Addr [6]byte

func (a Addr) String() string {
	return hex.EncodeToString(a[:])
}

// ParseAddr parses a 12-digit hex address, with or without colon separators.
func ParseAddr(s string) (Addr, error) {
	var a Addr
	clean := ""
	for _, r := range s {
		if r != ':' {
			clean += string(r)
		}
	}
	raw, err := hex.DecodeString(clean)
	if err != nil || len(raw) != 6 {
		return a, errInvalidAddr(s)
	}
	copy(a[:], raw)
	return a, nil
}

// ConnHandle identifies one established connection.
type ConnHandle uint16

// NoConn marks the absence of a session. Valid handles never collide with it.
const NoConn ConnHandle = 0xFFFF

// Advertisement PDU types. Only the first two are connectable.
const (
	AdvInd        = 0x00
	AdvDirectInd  = 0x01
	AdvNonconnInd = 0x02
	AdvScanInd    = 0x06
)

// Event is the closed set of transport events. Each role dispatches with a
// single exhaustive type switch, so an unhandled kind is visible at a glance.
type Event interface {
	isEvent()
}

// ScanResultEvent reports one advertisement heard during a scan.
type ScanResultEvent struct {
	AddrType AddrType
	Addr     Addr
	AdvType  uint8
	RSSI     int8
	AdvData  []byte
}

// ScanDoneEvent reports the end of a scan cycle, whether it ran its full
// duration or was stopped early.
type ScanDoneEvent struct{}

// ConnectedEvent reports an established connection.
type ConnectedEvent struct {
	Conn     ConnHandle
	AddrType AddrType
	Addr     Addr
}

// DisconnectedEvent reports a dropped or closed connection.
type DisconnectedEvent struct {
	Conn     ConnHandle
	AddrType AddrType
	Addr     Addr
}

// ServiceResultEvent reports one service found during service discovery.
type ServiceResultEvent struct {
	Conn        ConnHandle
	StartHandle uint16
	EndHandle   uint16
	Service     UUID
}

// ServiceDoneEvent terminates a service discovery request.
type ServiceDoneEvent struct {
	Conn ConnHandle
}

// CharacteristicResultEvent reports one characteristic found during
// characteristic discovery.
type CharacteristicResultEvent struct {
	Conn        ConnHandle
	DefHandle   uint16
	ValueHandle uint16
	Properties  uint8
	Char        UUID
}

// CharacteristicDoneEvent terminates a characteristic discovery request.
type CharacteristicDoneEvent struct {
	Conn ConnHandle
}

// WriteDoneEvent acknowledges a write-with-response.
type WriteDoneEvent struct {
	Conn        ConnHandle
	ValueHandle uint16
	Status      uint8
}

// NotifyEvent carries a notification pushed by the peer.
type NotifyEvent struct {
	Conn        ConnHandle
	ValueHandle uint16
	Data        []byte
}

// CharacteristicWrittenEvent tells a server that a peer wrote one of its
// characteristic values. The new bytes are pulled with ReadCharacteristic.
type CharacteristicWrittenEvent struct {
	Conn        ConnHandle
	ValueHandle uint16
}

// MTUExchangedEvent reports the negotiated payload size for a connection.
type MTUExchangedEvent struct {
	Conn ConnHandle
	MTU  uint16
}

func (ScanResultEvent) isEvent()            {}
func (ScanDoneEvent) isEvent()              {}
func (ConnectedEvent) isEvent()             {}
func (DisconnectedEvent) isEvent()          {}
func (ServiceResultEvent) isEvent()         {}
func (ServiceDoneEvent) isEvent()           {}
func (CharacteristicResultEvent) isEvent()  {}
func (CharacteristicDoneEvent) isEvent()    {}
func (WriteDoneEvent) isEvent()             {}
func (NotifyEvent) isEvent()                {}
func (CharacteristicWrittenEvent) isEvent() {}
func (MTUExchangedEvent) isEvent()          {}

// CharacteristicDef declares one characteristic of a service to register.
type CharacteristicDef struct {
	UUID       UUID
	Properties uint8
	BufferSize int // server-side value buffer, append mode
}

// ServiceDef declares a GATT service to register with the transport.
type ServiceDef struct {
	UUID            UUID
	Characteristics []CharacteristicDef
}

// Transport is the platform radio stack consumed by both roles. Requests
// return immediately; their outcomes arrive later as Events, delivered
// serially to the handler each role registers with its transport.
type Transport interface {
	// Scan starts a bounded scan cycle. A new scan supersedes any scan
	// already in flight.
	Scan(duration time.Duration, intervalUs, windowUs int, active bool) error
	// StopScan ends the current scan early; ScanDone is still delivered.
	StopScan() error
	// Advertise begins broadcasting the given advertising payload.
	Advertise(intervalUs int, payload []byte, connectable bool) error
	Connect(addrType AddrType, addr Addr) error
	Disconnect(conn ConnHandle) error
	ExchangeMTU(conn ConnHandle) error
	DiscoverServices(conn ConnHandle) error
	DiscoverCharacteristics(conn ConnHandle, startHandle, endHandle uint16) error
	WriteCharacteristic(conn ConnHandle, valueHandle uint16, data []byte, withResponse bool) error
	// ReadCharacteristic drains the local value buffer of a registered
	// characteristic (server side).
	ReadCharacteristic(valueHandle uint16) ([]byte, error)
	Notify(conn ConnHandle, valueHandle uint16, data []byte) error
	// RegisterService installs a service and returns the value handles of
	// its characteristics, in declaration order.
	RegisterService(def ServiceDef) ([]uint16, error)
}

// AdvDecoder extracts fields from raw advertising payloads. The encoding is
// owned by a codec collaborator, not by this package.
type AdvDecoder interface {
	DecodeName(advData []byte) string
	DecodeServices(advData []byte) []UUID
}
