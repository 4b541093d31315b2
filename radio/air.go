// Package radio simulates a shared BLE medium in memory. An Air holds a set
// of Devices; each Device implements uart.Transport and delivers its events
// on a single dispatch goroutine, so both roles see the serialized event
// stream the state machines require. The simulation covers advertising,
// scanning, connection establishment, MTU exchange, GATT discovery against
// an attribute table, writes and notifications.
package radio

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/uartlink-blue/uart"
)

// Air is the shared medium. Devices registered on the same Air can hear each
// other's advertisements and connect to one another.
type Air struct {
	mu       sync.Mutex
	devices  map[string]*Device
	nextConn uart.ConnHandle
	latency  bool
}

// NewAir creates an empty medium with instant delivery.
func NewAir() *Air {
	return &Air{
		devices:  make(map[string]*Device),
		nextConn: 1,
	}
}

// WithLatency enables randomized connection delays for demo realism.
func (a *Air) WithLatency() *Air {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latency = true
	return a
}

// NewDevice adds a device to the medium. Its hardware identifier is a fresh
// UUID; the radio address is derived from it.
func (a *Air) NewDevice(name string) *Device {
	id := uuid.New()
	var addr uart.Addr
	copy(addr[:], id[:6])

	d := &Device{
		air:      a,
		id:       id.String(),
		name:     name,
		addr:     addr,
		addrType: uart.AddrPublic,
		events:   make(chan uart.Event, eventQueueSize),
		done:     make(chan struct{}),
		db:       newAttributeDB(),
		links:    make(map[uart.ConnHandle]*Device),
	}

	a.mu.Lock()
	a.devices[d.id] = d
	a.mu.Unlock()
	return d
}

// connectableAt finds the advertising, connectable device with the given
// address.
func (a *Air) connectableAt(addr uart.Addr) *Device {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, d := range a.devices {
		if d.addr == addr && d.isConnectable() {
			return d
		}
	}
	return nil
}

// allocConn hands out a connection handle unique across the medium.
func (a *Air) allocConn() uart.ConnHandle {
	a.mu.Lock()
	defer a.mu.Unlock()
	conn := a.nextConn
	a.nextConn++
	return conn
}

// scanners returns the devices currently scanning, except the one given.
func (a *Air) scanners(except *Device) []*Device {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*Device
	for _, d := range a.devices {
		if d != except && d.isScanning() {
			out = append(out, d)
		}
	}
	return out
}

// advertisers returns the devices currently advertising, except the one
// given.
func (a *Air) advertisers(except *Device) []*Device {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*Device
	for _, d := range a.devices {
		if d != except && d.isAdvertising() {
			out = append(out, d)
		}
	}
	return out
}

func (a *Air) connectionDelay() time.Duration {
	a.mu.Lock()
	latency := a.latency
	a.mu.Unlock()
	if !latency {
		return 0
	}
	return randomDelay(MinConnectionDelay, MaxConnectionDelay)
}

// randomDelay returns a random duration between min and max
func randomDelay(min, max time.Duration) time.Duration {
	if min >= max {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func randomRSSI() int8 {
	return int8(MinRSSI + rand.Intn(MaxRSSI-MinRSSI+1))
}

func errNoPeer(addr uart.Addr) error {
	return fmt.Errorf("radio: no connectable peer at %s", addr)
}
