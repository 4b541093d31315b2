package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/user/uartlink-blue/advertising"
	"github.com/user/uartlink-blue/config"
	"github.com/user/uartlink-blue/logger"
	"github.com/user/uartlink-blue/radio"
	"github.com/user/uartlink-blue/sensor"
	"github.com/user/uartlink-blue/uart"
)

// CommandChangeLED is the command frame the central sends to toggle the
// peripheral's LED.
const CommandChangeLED = "change LED state"

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults built in)")
	frames := flag.Int("frames", 5, "number of sensor frames to exchange before exiting")
	periodMs := flag.Int("period", 1000, "sensor report period in milliseconds")
	logLevel := flag.String("log-level", "", "override log level (trace|debug|info|warn|error)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *periodMs > 0 {
		cfg.Peripheral.ReportPeriodMs = *periodMs
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logger.DebugJSON("demo", "configuration", cfg)

	if err := run(cfg, *frames); err != nil {
		fmt.Fprintf(os.Stderr, "demo: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, frames int) error {
	air := radio.NewAir()

	// Peripheral role: advertise the UART service and report sensor frames.
	periphDev := air.NewDevice("periph")
	payload, err := advertising.Payload(cfg.Peripheral.Name, []uart.UUID{uart.ServiceUUID})
	if err != nil {
		return err
	}
	periph, err := uart.NewPeripheral(periphDev, payload, cfg.Peripheral.CharBufferSize, "periph")
	if err != nil {
		return err
	}
	periphDev.SetEventHandler(periph.HandleEvent)
	periphDev.Start()
	defer periphDev.Stop()

	commands := make(chan string, 4)
	periph.OnReceive(func() {
		msg := string(periph.Read(0))
		logger.Info("periph", "data received from central: %s", msg)
		select {
		case commands <- msg:
		default:
		}
	})

	// Central role: find the peripheral by name, connect, listen for frames.
	centralDev := air.NewDevice("central")
	central := uart.NewCentral(centralDev, advertising.Codec{}, uart.CentralOptions{
		TargetName:    cfg.Central.TargetName,
		NamePrefixLen: cfg.Central.NamePrefixLen,
		ScanDuration:  time.Duration(cfg.Central.ScanDurationMs) * time.Millisecond,
		ScanInterval:  cfg.Central.ScanIntervalUs,
		ScanWindow:    cfg.Central.ScanWindowUs,
	}, "central")
	centralDev.SetEventHandler(central.HandleEvent)
	centralDev.Start()
	defer centralDev.Stop()

	received := make(chan string, frames)
	central.OnNotify(func(data []byte) {
		received <- string(data)
	})

	central.Scan(func(target *uart.ScanTarget) {
		if target == nil {
			logger.Error("central", "scan timed out without finding %q", cfg.Central.TargetName)
			return
		}
		central.Connect(func() {
			logger.Info("central", "link ready, waiting for sensor frames")
		})
	})

	connectTimeout := time.Duration(cfg.Central.ConnectTimeoutMs) * time.Millisecond
	if !central.WaitReady(connectTimeout) {
		return fmt.Errorf("link did not become ready within %s", connectTimeout)
	}

	// Sensor loop: one frame per period while a central is connected. The
	// loop owns the LED state; commands from the central arrive on a channel.
	stop := make(chan struct{})
	go func() {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		led := sensor.LED{}
		period := time.Duration(cfg.Peripheral.ReportPeriodMs) * time.Millisecond
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case msg := <-commands:
				if msg == CommandChangeLED {
					led.On = !led.On
					logger.Info("periph", "central command received: LED now on=%v", led.On)
				}
			case <-ticker.C:
				if !periph.Connected() {
					continue
				}
				readings := sensor.Simulate(rng)
				next := sensor.ForIlluminance(readings.Illuminance)
				frame := readings.Frame()
				if err := periph.Write([]byte(frame)); err != nil {
					logger.Warn("periph", "frame not sent: %v", err)
					continue
				}
				logger.Info("periph", "data sent to central: %s", frame)
				if next.On != led.On {
					state := "OFF"
					if next.On {
						state = "ON"
					}
					notice := fmt.Sprintf("New state of peripheral %s, LED was turned %s", cfg.Peripheral.Name, state)
					if err := periph.Write([]byte(notice)); err != nil {
						logger.Warn("periph", "notice not sent: %v", err)
					}
				}
				led = next
			}
		}
	}()
	defer close(stop)

	for count := 0; count < frames; {
		frame := <-received
		readings, err := sensor.ParseFrame(frame)
		if err != nil {
			// LED state notices are plain text, not sensor frames.
			logger.Info("central", "message from peripheral: %s", frame)
			continue
		}
		count++
		logger.Info("central", "temperature %d °C, humidity %d %%, illuminance %d lux",
			readings.Temperature, readings.Humidity, readings.Illuminance)
		if central.AckPending() {
			ack := fmt.Sprintf("ack from central %s", centralDev.Addr())
			if err := central.Write([]byte(ack), false); err != nil {
				logger.Warn("central", "ack not sent: %v", err)
			}
		}
	}

	// Exercise the command path before shutting down.
	if err := central.Write([]byte(CommandChangeLED), true); err != nil {
		logger.Warn("central", "command not sent: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	central.Disconnect()
	if !central.WaitDisconnected(3 * time.Second) {
		logger.Warn("central", "disconnect timed out")
	}
	periph.Close()
	logger.Info("demo", "exchanged %d frames, exiting", frames)
	return nil
}
