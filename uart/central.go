package uart

import (
	"sync"
	"time"

	"github.com/user/uartlink-blue/logger"
)

// CentralState tracks the central's progress toward a usable session.
type CentralState int

const (
	StateIdle CentralState = iota
	StateScanning
	StateConnecting
	StateExchangingMTU
	StateDiscoveringServices
	StateDiscoveringCharacteristics
	StateReady
	// StateNotReady means the link is up but discovery failed; the session
	// stays unusable until the caller disconnects and retries.
	StateNotReady
)

func (s CentralState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateConnecting:
		return "connecting"
	case StateExchangingMTU:
		return "exchangingMTU"
	case StateDiscoveringServices:
		return "discoveringServices"
	case StateDiscoveringCharacteristics:
		return "discoveringCharacteristics"
	case StateReady:
		return "ready"
	case StateNotReady:
		return "notReady"
	default:
		return "unknown"
	}
}

// ScanTarget is a successful scan result: the peer the central will connect
// to. A nil *ScanTarget in the scan callback means the scan timed out.
type ScanTarget struct {
	AddrType AddrType
	Addr     Addr
	Name     string
}

// ScanCallback receives the scan outcome, exactly once per scan cycle.
type ScanCallback func(target *ScanTarget)

// CentralOptions tunes scan filtering and timing. The zero value is usable;
// unset fields fall back to the defaults below.
type CentralOptions struct {
	TargetName    string
	NamePrefixLen int
	ScanDuration  time.Duration
	ScanInterval  int // microseconds
	ScanWindow    int // microseconds
	AdvertisedMTU uint16
}

// Defaults applied by NewCentral for unset options.
const (
	DefaultNamePrefixLen = 8
	DefaultScanDuration  = 30 * time.Second
	DefaultScanInterval  = 30000
	DefaultScanWindow    = 30000
)

// Central is the initiator role: it scans for a peripheral advertising the
// UART service under a configured name, connects, resolves the RX/TX value
// handles and then exchanges frames. At most one session exists at a time;
// every disconnect fully resets the session-scoped state.
//
// All transport events must be fed to HandleEvent from a single dispatch
// goroutine; handlers never block.
type Central struct {
	transport Transport
	decoder   AdvDecoder
	opts      CentralOptions
	tag       string // log prefix

	mu sync.Mutex

	// cached scan result
	name     string
	addrSet  bool
	addrType AddrType
	addr     Addr

	// session-scoped state
	conn        ConnHandle
	startHandle uint16
	endHandle   uint16
	spanSet     bool
	rxHandle    uint16
	rxSet       bool
	txHandle    uint16
	txSet       bool
	mtu         uint16
	state       CentralState
	// ackPending marks that a received frame still owes an application-level
	// acknowledgement. It is session state, cleared on every reset.
	ackPending bool

	scanCb   ScanCallback
	readyCb  func()
	notifyCb func(data []byte)

	ready *signal
	idle  *signal
}

// NewCentral builds a central over the given transport and advertising
// decoder. Events must be routed to HandleEvent by the caller.
func NewCentral(t Transport, dec AdvDecoder, opts CentralOptions, tag string) *Central {
	if opts.NamePrefixLen <= 0 {
		opts.NamePrefixLen = DefaultNamePrefixLen
	}
	if opts.ScanDuration <= 0 {
		opts.ScanDuration = DefaultScanDuration
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = DefaultScanInterval
	}
	if opts.ScanWindow <= 0 {
		opts.ScanWindow = DefaultScanWindow
	}
	if opts.AdvertisedMTU == 0 {
		opts.AdvertisedMTU = MaxPayload
	}
	c := &Central{
		transport: t,
		decoder:   dec,
		opts:      opts,
		tag:       tag,
		ready:     newSignal(),
		idle:      newSignal(),
	}
	c.resetLocked()
	return c
}

// resetLocked clears every session-scoped field back to the idle
// configuration. Callers hold c.mu.
func (c *Central) resetLocked() {
	c.name = ""
	c.addrSet = false
	c.addrType = 0
	c.addr = Addr{}
	c.conn = NoConn
	c.startHandle = 0
	c.endHandle = 0
	c.spanSet = false
	c.rxHandle = 0
	c.rxSet = false
	c.txHandle = 0
	c.txSet = false
	c.mtu = 0
	c.state = StateIdle
	c.ackPending = false
	c.scanCb = nil
	c.readyCb = nil
	c.notifyCb = nil
	c.ready.reset()
	c.idle.raise()
}

// State returns the current lifecycle state.
func (c *Central) State() CentralState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the session is fully usable: a connection handle
// and both characteristic value handles are resolved. This is the sole
// readiness predicate.
func (c *Central) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectedLocked()
}

func (c *Central) connectedLocked() bool {
	return c.conn != NoConn && c.rxSet && c.txSet
}

// Scan starts a scan cycle bounded by the configured duration. The callback
// fires exactly once, on ScanDone: with the matched target, or with nil if
// the cycle ended without a match. Transient transport errors are swallowed;
// the caller re-issues if desired.
func (c *Central) Scan(cb ScanCallback) {
	c.mu.Lock()
	c.addrSet = false
	c.name = ""
	c.scanCb = cb
	c.state = StateScanning
	c.mu.Unlock()

	if err := c.transport.Scan(c.opts.ScanDuration, c.opts.ScanInterval, c.opts.ScanWindow, true); err != nil {
		logger.Warn(c.tag, "scan request failed: %v", err)
	}
}

// Connect issues a connect request to the peer cached by the last successful
// scan. It returns false, without touching the transport, when no address is
// cached. A true return means only "request accepted": the outcome arrives
// later as a Connected event.
func (c *Central) Connect(readyCb func()) bool {
	c.mu.Lock()
	if !c.addrSet {
		c.mu.Unlock()
		return false
	}
	addrType, addr := c.addrType, c.addr
	c.readyCb = readyCb
	c.state = StateConnecting
	c.mu.Unlock()

	if err := c.transport.Connect(addrType, addr); err != nil {
		logger.Warn(c.tag, "connect request failed: %v", err)
	}
	return true
}

// ConnectTo is Connect with an explicit peer, overriding the cached scan
// result.
func (c *Central) ConnectTo(addrType AddrType, addr Addr, readyCb func()) bool {
	c.mu.Lock()
	c.addrType = addrType
	c.addr = addr
	c.addrSet = true
	c.mu.Unlock()
	return c.Connect(readyCb)
}

// Write sends a frame to the peripheral's RX characteristic. It is a no-op
// when the session is not ready. With withResponse the peer acknowledges via
// a WriteDone event; without, the write is fire-and-forget.
func (c *Central) Write(data []byte, withResponse bool) error {
	c.mu.Lock()
	if !c.connectedLocked() {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if len(data) > int(c.mtuLocked()) {
		c.mu.Unlock()
		return ErrPayloadTooLarge
	}
	conn, rx := c.conn, c.rxHandle
	// The pending-acknowledgement flag clears as soon as the write is
	// issued, not when WriteDone arrives.
	c.ackPending = false
	c.mu.Unlock()

	return c.transport.WriteCharacteristic(conn, rx, data, withResponse)
}

func (c *Central) mtuLocked() uint16 {
	if c.mtu == 0 {
		return MaxPayload
	}
	return c.mtu
}

// OnNotify registers the single handler invoked with each notification
// payload arriving on the session's TX handle.
func (c *Central) OnNotify(cb func(data []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifyCb = cb
}

// AckPending reports whether a received frame still owes an acknowledgement.
func (c *Central) AckPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ackPending
}

// Disconnect requests a transport disconnect for the current session, if
// any, and unconditionally resets to the idle configuration regardless of
// the transport call's outcome.
func (c *Central) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.resetLocked()
	c.mu.Unlock()

	if conn == NoConn {
		return
	}
	if err := c.transport.Disconnect(conn); err != nil {
		logger.Warn(c.tag, "disconnect request failed: %v", err)
	}
}

// WaitReady blocks until the session reaches ready or the timeout elapses,
// reporting which happened.
func (c *Central) WaitReady(timeout time.Duration) bool {
	return c.ready.wait(timeout)
}

// WaitDisconnected blocks until the session is fully reset or the timeout
// elapses, reporting which happened.
func (c *Central) WaitDisconnected(timeout time.Duration) bool {
	return c.idle.wait(timeout)
}

// HandleEvent dispatches one transport event. Events must arrive serialized;
// the handler only mutates in-memory state and issues further transport
// requests, never blocks.
func (c *Central) HandleEvent(ev Event) {
	switch e := ev.(type) {
	case ScanResultEvent:
		c.onScanResult(e)
	case ScanDoneEvent:
		c.onScanDone()
	case ConnectedEvent:
		c.onConnected(e)
	case DisconnectedEvent:
		c.onDisconnected(e)
	case ServiceResultEvent:
		c.onServiceResult(e)
	case ServiceDoneEvent:
		c.onServiceDone(e)
	case CharacteristicResultEvent:
		c.onCharacteristicResult(e)
	case CharacteristicDoneEvent:
		c.onCharacteristicDone(e)
	case WriteDoneEvent:
		logger.Trace(c.tag, "write acknowledged: handle=0x%04X status=%d", e.ValueHandle, e.Status)
	case NotifyEvent:
		c.onNotify(e)
	case CharacteristicWrittenEvent:
		// Server-side event; nothing to do in the central role.
	case MTUExchangedEvent:
		c.onMTUExchanged(e)
	}
}

func (c *Central) onScanResult(e ScanResultEvent) {
	if e.AdvType != AdvInd && e.AdvType != AdvDirectInd {
		return
	}
	if !containsUUID(c.decoder.DecodeServices(e.AdvData), ServiceUUID) {
		return
	}
	name := c.decoder.DecodeName(e.AdvData)
	if name == "" {
		name = "?"
	}
	if !prefixMatch(name, c.opts.TargetName, c.opts.NamePrefixLen) {
		return
	}

	c.mu.Lock()
	c.addrType = e.AddrType
	c.addr = e.Addr // event buffers belong to the transport; Addr is a copy
	c.addrSet = true
	c.name = name
	c.mu.Unlock()

	logger.Debug(c.tag, "matched %s at %s, stopping scan", name, e.Addr)
	if err := c.transport.StopScan(); err != nil {
		logger.Warn(c.tag, "stop scan failed: %v", err)
	}
}

func (c *Central) onScanDone() {
	c.mu.Lock()
	cb := c.scanCb
	c.scanCb = nil // single-shot
	found := c.addrSet
	target := &ScanTarget{AddrType: c.addrType, Addr: c.addr, Name: c.name}
	if c.state == StateScanning {
		c.state = StateIdle
	}
	c.mu.Unlock()

	if cb == nil {
		return
	}
	if found {
		logger.Info(c.tag, "scan done: found %s at %s", target.Name, target.Addr)
		cb(target)
	} else {
		logger.Info(c.tag, "scan done: no peripheral matched %q", c.opts.TargetName)
		cb(nil)
	}
}

func (c *Central) onConnected(e ConnectedEvent) {
	c.mu.Lock()
	if !c.addrSet || e.AddrType != c.addrType || e.Addr != c.addr {
		// Connection notification for an unrelated peer; not an error.
		c.mu.Unlock()
		return
	}
	c.conn = e.Conn
	c.state = StateExchangingMTU
	c.idle.reset()
	conn := c.conn
	c.mu.Unlock()

	logger.Info(c.tag, "connected to %s (handle %d)", e.Addr, e.Conn)
	// MTU must be requested before discovery.
	if err := c.transport.ExchangeMTU(conn); err != nil {
		logger.Warn(c.tag, "mtu exchange request failed: %v", err)
	}
	if err := c.transport.DiscoverServices(conn); err != nil {
		logger.Warn(c.tag, "service discovery request failed: %v", err)
	}
}

func (c *Central) onDisconnected(e DisconnectedEvent) {
	c.mu.Lock()
	if e.Conn != c.conn {
		c.mu.Unlock()
		return
	}
	c.resetLocked()
	c.mu.Unlock()
	logger.Info(c.tag, "disconnected from %s", e.Addr)
}

func (c *Central) onServiceResult(e ServiceResultEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.Conn != c.conn || e.Service != ServiceUUID {
		return
	}
	c.startHandle = e.StartHandle
	c.endHandle = e.EndHandle
	c.spanSet = true
	c.state = StateDiscoveringServices
}

func (c *Central) onServiceDone(e ServiceDoneEvent) {
	c.mu.Lock()
	if e.Conn != c.conn {
		c.mu.Unlock()
		return
	}
	if !c.spanSet {
		c.state = StateNotReady
		c.mu.Unlock()
		logger.Error(c.tag, "UART service is unreachable")
		return
	}
	conn, start, end := c.conn, c.startHandle, c.endHandle
	c.state = StateDiscoveringCharacteristics
	c.mu.Unlock()

	if err := c.transport.DiscoverCharacteristics(conn, start, end); err != nil {
		logger.Warn(c.tag, "characteristic discovery request failed: %v", err)
	}
}

func (c *Central) onCharacteristicResult(e CharacteristicResultEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.Conn != c.conn {
		return
	}
	switch e.Char {
	case RXCharUUID:
		c.rxHandle = e.ValueHandle
		c.rxSet = true
	case TXCharUUID:
		c.txHandle = e.ValueHandle
		c.txSet = true
	}
}

func (c *Central) onCharacteristicDone(e CharacteristicDoneEvent) {
	c.mu.Lock()
	if e.Conn != c.conn {
		c.mu.Unlock()
		return
	}
	if !c.rxSet || !c.txSet {
		c.state = StateNotReady
		c.mu.Unlock()
		logger.Error(c.tag, "UART RX characteristic not discoverable")
		return
	}
	c.state = StateReady
	cb := c.readyCb // persists for the session, unlike the scan callback
	rx, tx := c.rxHandle, c.txHandle
	c.ready.raise()
	c.mu.Unlock()

	logger.Info(c.tag, "session ready (rx=0x%04X tx=0x%04X)", rx, tx)
	if cb != nil {
		cb()
	}
}

func (c *Central) onNotify(e NotifyEvent) {
	c.mu.Lock()
	if e.Conn != c.conn || !c.txSet || e.ValueHandle != c.txHandle {
		c.mu.Unlock()
		return
	}
	c.ackPending = true
	cb := c.notifyCb
	c.mu.Unlock()

	if cb != nil {
		cb(e.Data)
	}
}

func (c *Central) onMTUExchanged(e MTUExchangedEvent) {
	c.mu.Lock()
	if e.Conn != c.conn {
		c.mu.Unlock()
		return
	}
	c.mtu = e.MTU
	c.mu.Unlock()
	logger.Debug(c.tag, "negotiated payload size is now %d bytes", e.MTU)
}

func containsUUID(list []UUID, want UUID) bool {
	for _, u := range list {
		if u == want {
			return true
		}
	}
	return false
}

func prefixMatch(name, target string, n int) bool {
	if len(name) > n {
		name = name[:n]
	}
	if len(target) > n {
		target = target[:n]
	}
	return name == target
}
