package uart

import "testing"

func TestParseUUID(t *testing.T) {
	u, err := ParseUUID("6E400001-B5A3-F393-E0A9-E50E24DCCA9E")
	if err != nil {
		t.Fatalf("ParseUUID: %v", err)
	}
	if u != ServiceUUID {
		t.Fatalf("parsed %s, want %s", u, ServiceUUID)
	}
	if got := u.String(); got != "6E400001-B5A3-F393-E0A9-E50E24DCCA9E" {
		t.Fatalf("String = %q", got)
	}

	for _, bad := range []string{"", "6E400001", "6E400001-B5A3-F393-E0A9-E50E24DCCA9G"} {
		if _, err := ParseUUID(bad); err == nil {
			t.Errorf("ParseUUID(%q) accepted invalid input", bad)
		}
	}
}

func TestParseAddr(t *testing.T) {
	want := Addr{0x02, 0x05, 0x82, 0x06, 0x35, 0x9e}
	for _, s := range []string{"02058206359e", "02:05:82:06:35:9e"} {
		got, err := ParseAddr(s)
		if err != nil {
			t.Fatalf("ParseAddr(%q): %v", s, err)
		}
		if got != want {
			t.Fatalf("ParseAddr(%q) = %v", s, got)
		}
	}
	if _, err := ParseAddr("0205"); err == nil {
		t.Error("short address accepted")
	}
}
