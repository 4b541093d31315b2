package uart

import (
	"bytes"
	"sync"
	"time"
)

// fakeTransport records every request so tests can assert on the order and
// arguments of transport calls. Events are fed to the role under test by
// calling HandleEvent directly, which matches the serialized dispatch the
// radio provides.
type fakeTransport struct {
	mu    sync.Mutex
	calls []string

	scanCount    int
	stopCount    int
	advCount     int
	advPayload   []byte
	connectAddr  Addr
	disconnected []ConnHandle
	discovered   [][3]uint16 // conn, start, end
	writes       []fakeWrite
	notifies     []fakeNotify
	readData     [][]byte // scripted ReadCharacteristic results
	svcHandles   []uint16
	svcDef       ServiceDef
}

type fakeWrite struct {
	conn         ConnHandle
	valueHandle  uint16
	data         []byte
	withResponse bool
}

type fakeNotify struct {
	conn        ConnHandle
	valueHandle uint16
	data        []byte
}

func (f *fakeTransport) record(name string) {
	f.calls = append(f.calls, name)
}

func (f *fakeTransport) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeTransport) Scan(duration time.Duration, intervalUs, windowUs int, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("scan")
	f.scanCount++
	return nil
}

func (f *fakeTransport) StopScan() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("stopScan")
	f.stopCount++
	return nil
}

func (f *fakeTransport) Advertise(intervalUs int, payload []byte, connectable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("advertise")
	f.advCount++
	f.advPayload = append([]byte(nil), payload...)
	return nil
}

func (f *fakeTransport) Connect(addrType AddrType, addr Addr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("connect")
	f.connectAddr = addr
	return nil
}

func (f *fakeTransport) Disconnect(conn ConnHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("disconnect")
	f.disconnected = append(f.disconnected, conn)
	return nil
}

func (f *fakeTransport) ExchangeMTU(conn ConnHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("exchangeMTU")
	return nil
}

func (f *fakeTransport) DiscoverServices(conn ConnHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("discoverServices")
	return nil
}

func (f *fakeTransport) DiscoverCharacteristics(conn ConnHandle, startHandle, endHandle uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("discoverCharacteristics")
	f.discovered = append(f.discovered, [3]uint16{uint16(conn), startHandle, endHandle})
	return nil
}

func (f *fakeTransport) WriteCharacteristic(conn ConnHandle, valueHandle uint16, data []byte, withResponse bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("write")
	f.writes = append(f.writes, fakeWrite{conn, valueHandle, append([]byte(nil), data...), withResponse})
	return nil
}

func (f *fakeTransport) ReadCharacteristic(valueHandle uint16) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("read")
	if len(f.readData) == 0 {
		return nil, nil
	}
	out := f.readData[0]
	f.readData = f.readData[1:]
	return out, nil
}

func (f *fakeTransport) Notify(conn ConnHandle, valueHandle uint16, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("notify")
	f.notifies = append(f.notifies, fakeNotify{conn, valueHandle, append([]byte(nil), data...)})
	return nil
}

func (f *fakeTransport) RegisterService(def ServiceDef) ([]uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("registerService")
	f.svcDef = def
	if f.svcHandles == nil {
		f.svcHandles = []uint16{3, 5} // tx, rx in declaration order
	}
	return f.svcHandles, nil
}

// testCodec is a trivial advertising codec for tests: name bytes, a zero
// separator, then raw 16-byte UUIDs.
type testCodec struct{}

func (testCodec) DecodeName(advData []byte) string {
	parts := bytes.SplitN(advData, []byte{0}, 2)
	return string(parts[0])
}

func (testCodec) DecodeServices(advData []byte) []UUID {
	parts := bytes.SplitN(advData, []byte{0}, 2)
	if len(parts) != 2 {
		return nil
	}
	var out []UUID
	for rest := parts[1]; len(rest) >= 16; rest = rest[16:] {
		var u UUID
		copy(u[:], rest[:16])
		out = append(out, u)
	}
	return out
}

func testAdv(name string, services ...UUID) []byte {
	out := append([]byte(name), 0)
	for _, u := range services {
		out = append(out, u[:]...)
	}
	return out
}
