package radio

import (
	"fmt"
	"sync"
	"time"

	"github.com/user/uartlink-blue/logger"
	"github.com/user/uartlink-blue/uart"
)

// Device is one radio on the medium. It implements uart.Transport; all
// events it produces are queued to a single dispatch goroutine so the role
// state machine sees a serialized stream.
type Device struct {
	air      *Air
	id       string // hardware UUID
	name     string
	addr     uart.Addr
	addrType uart.AddrType

	events    chan uart.Event
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once

	mu             sync.Mutex
	handler        func(uart.Event)
	advertising    bool
	advConnectable bool
	advPayload     []byte
	scanning       bool
	scanGen        int
	db             *attributeDB
	links          map[uart.ConnHandle]*Device
	mtu            uint16
}

// ID returns the device's hardware identifier.
func (d *Device) ID() string { return d.id }

// Addr returns the device's radio address.
func (d *Device) Addr() uart.Addr { return d.addr }

// AddrType returns the device's address type.
func (d *Device) AddrType() uart.AddrType { return d.addrType }

// SetEventHandler registers the event sink, normally a role state machine's
// HandleEvent. Must be called before Start.
func (d *Device) SetEventHandler(handler func(uart.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = handler
}

// Start launches the dispatch goroutine.
func (d *Device) Start() {
	d.startOnce.Do(func() {
		go d.dispatch()
	})
}

// Stop ends event dispatch. Pending events are dropped.
func (d *Device) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
	})
}

func (d *Device) dispatch() {
	for {
		select {
		case <-d.done:
			return
		case ev := <-d.events:
			d.mu.Lock()
			handler := d.handler
			d.mu.Unlock()
			logger.Trace(d.name, "event %T", ev)
			if handler != nil {
				handler(ev)
			}
		}
	}
}

// deliver queues one event for dispatch.
func (d *Device) deliver(ev uart.Event) {
	select {
	case d.events <- ev:
	case <-d.done:
	}
}

func (d *Device) isScanning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scanning
}

func (d *Device) isAdvertising() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.advertising
}

func (d *Device) isConnectable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.advertising && d.advConnectable
}

func (d *Device) scanResultFrom(adv *Device) uart.ScanResultEvent {
	adv.mu.Lock()
	payload := make([]byte, len(adv.advPayload))
	copy(payload, adv.advPayload)
	adv.mu.Unlock()
	return uart.ScanResultEvent{
		AddrType: adv.addrType,
		Addr:     adv.addr,
		AdvType:  uart.AdvInd,
		RSSI:     randomRSSI(),
		AdvData:  payload,
	}
}

// Scan starts a scan cycle. Advertisements already on the air are heard
// immediately; devices that begin advertising during the cycle are heard
// when they start. A new scan supersedes one already in flight.
func (d *Device) Scan(duration time.Duration, intervalUs, windowUs int, active bool) error {
	d.mu.Lock()
	d.scanning = true
	d.scanGen++
	gen := d.scanGen
	d.mu.Unlock()

	for _, adv := range d.air.advertisers(d) {
		d.deliver(d.scanResultFrom(adv))
	}

	time.AfterFunc(duration, func() {
		d.endScan(gen)
	})
	return nil
}

// StopScan ends the current cycle early. ScanDone is still delivered.
func (d *Device) StopScan() error {
	d.mu.Lock()
	gen := d.scanGen
	d.mu.Unlock()
	d.endScan(gen)
	return nil
}

func (d *Device) endScan(gen int) {
	d.mu.Lock()
	if !d.scanning || d.scanGen != gen {
		// A newer scan superseded this cycle.
		d.mu.Unlock()
		return
	}
	d.scanning = false
	d.mu.Unlock()
	d.deliver(uart.ScanDoneEvent{})
}

// Advertise begins broadcasting the payload. Scanners already running hear
// it immediately. Advertising continues across connections so additional
// centrals can connect.
func (d *Device) Advertise(intervalUs int, payload []byte, connectable bool) error {
	d.mu.Lock()
	d.advertising = true
	d.advConnectable = connectable
	d.advPayload = make([]byte, len(payload))
	copy(d.advPayload, payload)
	d.mu.Unlock()

	for _, scanner := range d.air.scanners(d) {
		scanner.deliver(scanner.scanResultFrom(d))
	}
	return nil
}

// Connect establishes a link to the connectable advertiser at addr. Both
// sides receive a Connected event carrying the same handle.
func (d *Device) Connect(addrType uart.AddrType, addr uart.Addr) error {
	peer := d.air.connectableAt(addr)
	if peer == nil {
		return errNoPeer(addr)
	}
	if delay := d.air.connectionDelay(); delay > 0 {
		time.Sleep(delay)
	}

	conn := d.air.allocConn()
	d.mu.Lock()
	d.links[conn] = peer
	d.mu.Unlock()
	peer.mu.Lock()
	peer.links[conn] = d
	peer.mu.Unlock()

	d.deliver(uart.ConnectedEvent{Conn: conn, AddrType: peer.addrType, Addr: peer.addr})
	peer.deliver(uart.ConnectedEvent{Conn: conn, AddrType: d.addrType, Addr: d.addr})
	return nil
}

// Disconnect tears down a link. Both sides receive a Disconnected event.
func (d *Device) Disconnect(conn uart.ConnHandle) error {
	peer, err := d.peer(conn)
	if err != nil {
		return err
	}
	d.mu.Lock()
	delete(d.links, conn)
	d.mu.Unlock()
	peer.mu.Lock()
	delete(peer.links, conn)
	peer.mu.Unlock()

	d.deliver(uart.DisconnectedEvent{Conn: conn, AddrType: peer.addrType, Addr: peer.addr})
	peer.deliver(uart.DisconnectedEvent{Conn: conn, AddrType: d.addrType, Addr: d.addr})
	return nil
}

func (d *Device) peer(conn uart.ConnHandle) (*Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	peer, ok := d.links[conn]
	if !ok {
		return nil, fmt.Errorf("radio: no link with handle %d", conn)
	}
	return peer, nil
}

// ExchangeMTU negotiates the payload size for a link. Both sides learn the
// result.
func (d *Device) ExchangeMTU(conn uart.ConnHandle) error {
	peer, err := d.peer(conn)
	if err != nil {
		return err
	}
	negotiated := uint16(uart.MaxPayload)
	d.mu.Lock()
	d.mtu = negotiated
	d.mu.Unlock()
	peer.mu.Lock()
	peer.mtu = negotiated
	peer.mu.Unlock()

	d.deliver(uart.MTUExchangedEvent{Conn: conn, MTU: negotiated})
	peer.deliver(uart.MTUExchangedEvent{Conn: conn, MTU: negotiated})
	return nil
}

// DiscoverServices walks the peer's attribute table and reports every
// service, terminated by ServiceDone.
func (d *Device) DiscoverServices(conn uart.ConnHandle) error {
	peer, err := d.peer(conn)
	if err != nil {
		return err
	}
	for _, svc := range peer.db.allServices() {
		d.deliver(uart.ServiceResultEvent{
			Conn:        conn,
			StartHandle: svc.start,
			EndHandle:   svc.end,
			Service:     svc.uuid,
		})
	}
	d.deliver(uart.ServiceDoneEvent{Conn: conn})
	return nil
}

// DiscoverCharacteristics reports the peer's characteristics inside a handle
// span, terminated by CharacteristicDone.
func (d *Device) DiscoverCharacteristics(conn uart.ConnHandle, startHandle, endHandle uint16) error {
	peer, err := d.peer(conn)
	if err != nil {
		return err
	}
	for _, c := range peer.db.charsInRange(startHandle, endHandle) {
		d.deliver(uart.CharacteristicResultEvent{
			Conn:        conn,
			DefHandle:   c.defHandle,
			ValueHandle: c.valueHandle,
			Properties:  c.properties,
			Char:        c.uuid,
		})
	}
	d.deliver(uart.CharacteristicDoneEvent{Conn: conn})
	return nil
}

// WriteCharacteristic appends data to the peer's value buffer and tells the
// peer a write arrived. With withResponse the writer gets a WriteDone ack.
func (d *Device) WriteCharacteristic(conn uart.ConnHandle, valueHandle uint16, data []byte, withResponse bool) error {
	peer, err := d.peer(conn)
	if err != nil {
		return err
	}
	d.mu.Lock()
	mtu := d.mtu
	d.mu.Unlock()
	if mtu > 0 && len(data) > int(mtu) {
		return fmt.Errorf("radio: write of %d bytes exceeds MTU %d", len(data), mtu)
	}
	if err := peer.db.appendValue(valueHandle, data); err != nil {
		return err
	}
	peer.deliver(uart.CharacteristicWrittenEvent{Conn: conn, ValueHandle: valueHandle})
	if withResponse {
		d.deliver(uart.WriteDoneEvent{Conn: conn, ValueHandle: valueHandle, Status: 0})
	}
	return nil
}

// ReadCharacteristic drains the local value buffer of a registered
// characteristic.
func (d *Device) ReadCharacteristic(valueHandle uint16) ([]byte, error) {
	return d.db.drain(valueHandle)
}

// Notify pushes data to the link peer as a notification.
func (d *Device) Notify(conn uart.ConnHandle, valueHandle uint16, data []byte) error {
	peer, err := d.peer(conn)
	if err != nil {
		return err
	}
	payload := make([]byte, len(data))
	copy(payload, data)
	peer.deliver(uart.NotifyEvent{Conn: conn, ValueHandle: valueHandle, Data: payload})
	return nil
}

// RegisterService installs a service in the local attribute table.
func (d *Device) RegisterService(def uart.ServiceDef) ([]uint16, error) {
	return d.db.addService(def), nil
}

var _ uart.Transport = (*Device)(nil)
