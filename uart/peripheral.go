package uart

import (
	"fmt"
	"sync"
	"time"

	"github.com/user/uartlink-blue/logger"
)

// DefaultAdvInterval is the advertising interval in microseconds.
const DefaultAdvInterval = 500000

// Peripheral is the advertiser role: it registers the UART service, keeps
// advertising so new centrals can connect (even while sessions are active),
// buffers inbound writes and fans notifications out to every live session.
//
// All transport events must be fed to HandleEvent from a single dispatch
// goroutine; handlers never block.
type Peripheral struct {
	transport   Transport
	tag         string
	advPayload  []byte
	advInterval int

	rxHandle uint16
	txHandle uint16

	conns *Registry
	rx    *Buffer

	mu        sync.Mutex
	handler   func()
	mtu       uint16
	connected *signal
}

// NewPeripheral registers the UART service (one write characteristic, one
// notify characteristic) with per-characteristic buffers of bufSize bytes
// and begins advertising the given payload. The payload is produced by an
// advertising codec collaborator and should declare the device name and the
// UART service UUID.
func NewPeripheral(t Transport, advPayload []byte, bufSize int, tag string) (*Peripheral, error) {
	if bufSize <= 0 {
		bufSize = MaxPayload
	}
	handles, err := t.RegisterService(ServiceDef{
		UUID: ServiceUUID,
		Characteristics: []CharacteristicDef{
			{UUID: TXCharUUID, Properties: PropNotify, BufferSize: bufSize},
			{UUID: RXCharUUID, Properties: PropWrite, BufferSize: bufSize},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("uart: registering service: %w", err)
	}
	if len(handles) != 2 {
		return nil, fmt.Errorf("uart: expected 2 value handles, got %d", len(handles))
	}

	p := &Peripheral{
		transport:   t,
		tag:         tag,
		advPayload:  advPayload,
		advInterval: DefaultAdvInterval,
		txHandle:    handles[0],
		rxHandle:    handles[1],
		conns:       NewRegistry(),
		rx:          &Buffer{},
		connected:   newSignal(),
	}
	p.advertise()
	return p, nil
}

func (p *Peripheral) advertise() {
	if err := p.transport.Advertise(p.advInterval, p.advPayload, true); err != nil {
		logger.Warn(p.tag, "advertise request failed: %v", err)
	}
}

// OnReceive registers the handler invoked after each inbound write. The
// handler takes no payload; it pulls buffered bytes via Read.
func (p *Peripheral) OnReceive(handler func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
}

// Any returns the number of buffered inbound bytes.
func (p *Peripheral) Any() int {
	return p.rx.Len()
}

// Read removes and returns up to n buffered bytes, or the whole buffer for
// n <= 0. Remaining bytes stay queued in order.
func (p *Peripheral) Read(n int) []byte {
	return p.rx.Read(n)
}

// Write notifies every session registered at call time with the payload.
// Sessions connecting afterwards are not retroactively notified, and no
// delivery acknowledgement is tracked.
func (p *Peripheral) Write(data []byte) error {
	if len(data) > int(p.payloadLimit()) {
		return ErrPayloadTooLarge
	}
	for _, conn := range p.conns.Snapshot() {
		if err := p.transport.Notify(conn, p.txHandle, data); err != nil {
			logger.Warn(p.tag, "notify to session %d failed: %v", conn, err)
		}
	}
	return nil
}

func (p *Peripheral) payloadLimit() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mtu == 0 {
		return MaxPayload
	}
	return p.mtu
}

// Connected reports whether at least one central is connected.
func (p *Peripheral) Connected() bool {
	return p.conns.Len() > 0
}

// WaitConnected blocks until at least one central connects or the timeout
// elapses, reporting which happened.
func (p *Peripheral) WaitConnected(timeout time.Duration) bool {
	return p.connected.wait(timeout)
}

// Close disconnects every registered session and clears the registry.
func (p *Peripheral) Close() {
	for _, conn := range p.conns.Snapshot() {
		if err := p.transport.Disconnect(conn); err != nil {
			logger.Warn(p.tag, "disconnect of session %d failed: %v", conn, err)
		}
	}
	p.conns.Clear()
	p.connected.reset()
}

// HandleEvent dispatches one transport event. Events must arrive serialized;
// the handler only mutates in-memory state and issues further transport
// requests, never blocks.
func (p *Peripheral) HandleEvent(ev Event) {
	switch e := ev.(type) {
	case ConnectedEvent:
		p.conns.Add(e.Conn)
		p.connected.raise()
		logger.Info(p.tag, "new connection %d from %s", e.Conn, e.Addr)
	case DisconnectedEvent:
		p.conns.Remove(e.Conn)
		if p.conns.Len() == 0 {
			p.connected.reset()
		}
		logger.Info(p.tag, "connection %d closed", e.Conn)
		// Always restart advertising so the device stays discoverable.
		p.advertise()
	case CharacteristicWrittenEvent:
		p.onWritten(e)
	case MTUExchangedEvent:
		p.mu.Lock()
		p.mtu = e.MTU
		p.mu.Unlock()
		logger.Debug(p.tag, "negotiated payload size is now %d bytes", e.MTU)
	case ScanResultEvent, ScanDoneEvent, ServiceResultEvent, ServiceDoneEvent,
		CharacteristicResultEvent, CharacteristicDoneEvent, WriteDoneEvent, NotifyEvent:
		// Central-side events; nothing to do in the peripheral role.
	}
}

func (p *Peripheral) onWritten(e CharacteristicWrittenEvent) {
	if !p.conns.Contains(e.Conn) || e.ValueHandle != p.rxHandle {
		return
	}
	data, err := p.transport.ReadCharacteristic(p.rxHandle)
	if err != nil {
		logger.Warn(p.tag, "reading RX value failed: %v", err)
		return
	}
	p.rx.Append(data)

	p.mu.Lock()
	handler := p.handler
	p.mu.Unlock()
	if handler != nil {
		handler()
	}
}
