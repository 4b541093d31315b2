package radio_test

import (
	"testing"
	"time"

	"github.com/user/uartlink-blue/advertising"
	"github.com/user/uartlink-blue/radio"
	"github.com/user/uartlink-blue/uart"
)

// startPeripheral brings up an advertising UART peripheral on the air.
func startPeripheral(t *testing.T, air *radio.Air, name string) (*uart.Peripheral, *radio.Device) {
	t.Helper()
	dev := air.NewDevice(name)
	payload, err := advertising.Payload(name, []uart.UUID{uart.ServiceUUID})
	if err != nil {
		t.Fatalf("advertising payload: %v", err)
	}
	p, err := uart.NewPeripheral(dev, payload, uart.MaxPayload, name)
	if err != nil {
		t.Fatalf("NewPeripheral: %v", err)
	}
	dev.SetEventHandler(p.HandleEvent)
	dev.Start()
	t.Cleanup(dev.Stop)
	return p, dev
}

// startCentral brings up a central targeting the given peripheral name.
func startCentral(t *testing.T, air *radio.Air, tag, targetName string) (*uart.Central, *radio.Device) {
	t.Helper()
	dev := air.NewDevice(tag)
	c := uart.NewCentral(dev, advertising.Codec{}, uart.CentralOptions{
		TargetName:   targetName,
		ScanDuration: 200 * time.Millisecond,
	}, tag)
	dev.SetEventHandler(c.HandleEvent)
	dev.Start()
	t.Cleanup(dev.Stop)
	return c, dev
}

// connectCentral runs the scan/connect/discovery chain and waits for ready.
func connectCentral(t *testing.T, c *uart.Central) {
	t.Helper()
	c.Scan(func(target *uart.ScanTarget) {
		if target == nil {
			return
		}
		c.Connect(func() {})
	})
	if !c.WaitReady(2 * time.Second) {
		t.Fatal("central did not become ready")
	}
}

func TestEndToEndFrameExchange(t *testing.T) {
	air := radio.NewAir()
	periph, _ := startPeripheral(t, air, "ID000001")
	central, _ := startCentral(t, air, "central", "ID000001")

	received := make(chan []byte, 1)
	central.OnNotify(func(data []byte) { received <- data })

	connectCentral(t, central)
	if !periph.WaitConnected(2 * time.Second) {
		t.Fatal("peripheral never saw the connection")
	}

	// Peripheral reports a sensor frame; the central receives it unchanged.
	if err := periph.Write([]byte("23|45|120")); err != nil {
		t.Fatalf("peripheral Write: %v", err)
	}
	select {
	case data := <-received:
		if string(data) != "23|45|120" {
			t.Fatalf("received %q, want \"23|45|120\"", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never arrived")
	}

	// Central sends a command; the peripheral's buffer receives it in order.
	got := make(chan string, 1)
	periph.OnReceive(func() { got <- string(periph.Read(0)) })
	if err := central.Write([]byte("change LED state"), true); err != nil {
		t.Fatalf("central Write: %v", err)
	}
	select {
	case msg := <-got:
		if msg != "change LED state" {
			t.Fatalf("peripheral read %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("inbound write never arrived")
	}
}

func TestScanTimeoutWithoutMatch(t *testing.T) {
	air := radio.NewAir()
	// The only advertiser carries a different name.
	startPeripheral(t, air, "ID999999")
	central, _ := startCentral(t, air, "central", "ID000001")

	result := make(chan *uart.ScanTarget, 1)
	central.Scan(func(target *uart.ScanTarget) { result <- target })

	select {
	case target := <-result:
		if target != nil {
			t.Fatalf("scan matched %q, want timeout", target.Name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scan callback never fired")
	}
	if central.Connected() {
		t.Fatal("Connected() = true after a failed scan")
	}
}

func TestBroadcastSkipsLateSession(t *testing.T) {
	air := radio.NewAir()
	periph, _ := startPeripheral(t, air, "ID000001")

	first, _ := startCentral(t, air, "central-1", "ID000001")
	firstGot := make(chan []byte, 1)
	first.OnNotify(func(data []byte) { firstGot <- data })
	connectCentral(t, first)

	// Broadcast while only the first central is registered.
	if err := periph.Write([]byte("only-for-first")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	select {
	case data := <-firstGot:
		if string(data) != "only-for-first" {
			t.Fatalf("first central received %q", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first central never notified")
	}

	// A central connecting afterwards must not see that broadcast.
	second, _ := startCentral(t, air, "central-2", "ID000001")
	secondGot := make(chan []byte, 1)
	second.OnNotify(func(data []byte) { secondGot <- data })
	connectCentral(t, second)

	select {
	case data := <-secondGot:
		t.Fatalf("late session received earlier broadcast %q", data)
	case <-time.After(200 * time.Millisecond):
	}

	// Both sessions hear the next broadcast.
	if err := periph.Write([]byte("for-both")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for name, ch := range map[string]chan []byte{"first": firstGot, "second": secondGot} {
		select {
		case data := <-ch:
			if string(data) != "for-both" {
				t.Fatalf("%s central received %q", name, data)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s central missed the broadcast", name)
		}
	}
}

func TestReconnectAfterDisconnect(t *testing.T) {
	air := radio.NewAir()
	periph, _ := startPeripheral(t, air, "ID000001")
	central, _ := startCentral(t, air, "central", "ID000001")

	connectCentral(t, central)
	central.Disconnect()
	if !central.WaitDisconnected(2 * time.Second) {
		t.Fatal("central never returned to idle")
	}

	// Give the peripheral's dispatch a moment to re-advertise.
	deadline := time.After(2 * time.Second)
	for periph.Connected() {
		select {
		case <-deadline:
			t.Fatal("peripheral still thinks it is connected")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// The peripheral re-advertised, so a fresh cycle finds it again.
	connectCentral(t, central)
	if !central.Connected() {
		t.Fatal("second connection did not become ready")
	}
}
