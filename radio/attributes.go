package radio

import (
	"fmt"
	"sync"

	"github.com/user/uartlink-blue/uart"
)

// serviceEntry is one registered service and its handle span.
type serviceEntry struct {
	uuid  uart.UUID
	start uint16
	end   uint16
}

// charEntry is one registered characteristic. Its value buffer works in
// append mode: peer writes accumulate until the owner drains them.
type charEntry struct {
	uuid        uart.UUID
	properties  uint8
	defHandle   uint16
	valueHandle uint16
	bufSize     int
	value       []byte
}

// attributeDB assigns 16-bit handles to registered services and
// characteristics, mirroring a GATT server's attribute table. Handles start
// at 1; a service occupies one declaration handle followed by a declaration
// and a value handle per characteristic.
type attributeDB struct {
	mu         sync.Mutex
	nextHandle uint16
	services   []serviceEntry
	chars      map[uint16]*charEntry // value handle -> entry
}

func newAttributeDB() *attributeDB {
	return &attributeDB{
		nextHandle: 0x0001,
		chars:      make(map[uint16]*charEntry),
	}
}

func (db *attributeDB) alloc() uint16 {
	h := db.nextHandle
	db.nextHandle++
	return h
}

// addService installs a service definition and returns the value handles of
// its characteristics in declaration order.
func (db *attributeDB) addService(def uart.ServiceDef) []uint16 {
	db.mu.Lock()
	defer db.mu.Unlock()

	svc := serviceEntry{uuid: def.UUID, start: db.alloc()}
	valueHandles := make([]uint16, 0, len(def.Characteristics))
	for _, c := range def.Characteristics {
		entry := &charEntry{
			uuid:        c.UUID,
			properties:  c.Properties,
			defHandle:   db.alloc(),
			valueHandle: db.alloc(),
			bufSize:     c.BufferSize,
		}
		db.chars[entry.valueHandle] = entry
		valueHandles = append(valueHandles, entry.valueHandle)
	}
	svc.end = db.nextHandle - 1
	db.services = append(db.services, svc)
	return valueHandles
}

// appendValue adds written bytes to a characteristic's buffer.
func (db *attributeDB) appendValue(valueHandle uint16, data []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	entry, ok := db.chars[valueHandle]
	if !ok {
		return fmt.Errorf("radio: no attribute with value handle 0x%04X", valueHandle)
	}
	if entry.bufSize > 0 && len(entry.value)+len(data) > entry.bufSize {
		return fmt.Errorf("radio: value buffer full for handle 0x%04X", valueHandle)
	}
	entry.value = append(entry.value, data...)
	return nil
}

// drain removes and returns a characteristic's buffered value.
func (db *attributeDB) drain(valueHandle uint16) ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	entry, ok := db.chars[valueHandle]
	if !ok {
		return nil, fmt.Errorf("radio: no attribute with value handle 0x%04X", valueHandle)
	}
	out := entry.value
	entry.value = nil
	return out, nil
}

// allServices returns a snapshot of the registered services.
func (db *attributeDB) allServices() []serviceEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]serviceEntry, len(db.services))
	copy(out, db.services)
	return out
}

// charsInRange returns characteristics whose handles fall inside a span,
// ordered by handle.
func (db *attributeDB) charsInRange(start, end uint16) []charEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []charEntry
	for h := start; h <= end && h != 0; h++ {
		if entry, ok := db.chars[h]; ok {
			out = append(out, *entry)
		}
	}
	return out
}
