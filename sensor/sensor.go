// Package sensor simulates the environmental readings a peripheral reports
// and the LED it drives from measured illuminance.
package sensor

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Readings is one sampling of the simulated environment.
type Readings struct {
	Temperature int // °C
	Humidity    int // %
	Illuminance int // lux
}

// Simulate returns a random sampling within the ranges of the real sensors.
func Simulate(r *rand.Rand) Readings {
	return Readings{
		Temperature: r.Intn(52) - 1, // -1..50
		Humidity:    r.Intn(101),    // 0..100
		Illuminance: r.Intn(201),    // 0..200
	}
}

// Frame renders the readings as the pipe-separated text frame sent over the
// link, e.g. "23|45|120".
func (r Readings) Frame() string {
	return fmt.Sprintf("%d|%d|%d", r.Temperature, r.Humidity, r.Illuminance)
}

// ParseFrame reverses Frame.
func ParseFrame(s string) (Readings, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 3 {
		return Readings{}, fmt.Errorf("sensor: malformed frame %q", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Readings{}, fmt.Errorf("sensor: malformed frame %q: %w", s, err)
		}
		vals[i] = v
	}
	return Readings{Temperature: vals[0], Humidity: vals[1], Illuminance: vals[2]}, nil
}

// LED models the peripheral's indicator LED.
type LED struct {
	On        bool
	Intensity uint8 // 0 (off) to 255 (full on)
}

// ForIlluminance applies the lux thresholds: the LED turns on below 50 lux
// and gets brighter the darker it is; at 40 lux and above it is off.
func ForIlluminance(lux int) LED {
	switch {
	case lux < 10:
		return LED{On: true, Intensity: 255}
	case lux < 20:
		return LED{On: true, Intensity: 180}
	case lux < 30:
		return LED{On: true, Intensity: 120}
	case lux < 40:
		return LED{On: true, Intensity: 60}
	default:
		return LED{}
	}
}
