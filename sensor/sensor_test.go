package sensor

import (
	"math/rand"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	r := Readings{Temperature: 23, Humidity: 45, Illuminance: 120}
	frame := r.Frame()
	if frame != "23|45|120" {
		t.Fatalf("Frame = %q, want \"23|45|120\"", frame)
	}
	parsed, err := ParseFrame(frame)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if parsed != r {
		t.Fatalf("round trip = %+v, want %+v", parsed, r)
	}
}

func TestParseFrameNegativeTemperature(t *testing.T) {
	parsed, err := ParseFrame("-1|0|200")
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if parsed.Temperature != -1 {
		t.Fatalf("Temperature = %d, want -1", parsed.Temperature)
	}
}

func TestParseFrameMalformed(t *testing.T) {
	for _, s := range []string{"", "1|2", "1|2|3|4", "a|b|c"} {
		if _, err := ParseFrame(s); err == nil {
			t.Errorf("ParseFrame(%q) accepted malformed input", s)
		}
	}
}

func TestSimulateStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		r := Simulate(rng)
		if r.Temperature < -1 || r.Temperature > 50 {
			t.Fatalf("temperature %d out of range", r.Temperature)
		}
		if r.Humidity < 0 || r.Humidity > 100 {
			t.Fatalf("humidity %d out of range", r.Humidity)
		}
		if r.Illuminance < 0 || r.Illuminance > 200 {
			t.Fatalf("illuminance %d out of range", r.Illuminance)
		}
	}
}

func TestLEDThresholds(t *testing.T) {
	cases := []struct {
		lux  int
		want LED
	}{
		{0, LED{On: true, Intensity: 255}},
		{9, LED{On: true, Intensity: 255}},
		{10, LED{On: true, Intensity: 180}},
		{25, LED{On: true, Intensity: 120}},
		{39, LED{On: true, Intensity: 60}},
		{40, LED{}},
		{200, LED{}},
	}
	for _, tc := range cases {
		if got := ForIlluminance(tc.lux); got != tc.want {
			t.Errorf("ForIlluminance(%d) = %+v, want %+v", tc.lux, got, tc.want)
		}
	}
}
