package uart

import "testing"

func TestBufferFIFO(t *testing.T) {
	var b Buffer
	b.Append([]byte("ab"))
	b.Append([]byte("cd"))

	if b.Len() != 4 {
		t.Fatalf("Len = %d, want 4", b.Len())
	}
	if got := string(b.Read(1)); got != "a" {
		t.Fatalf("Read(1) = %q, want \"a\"", got)
	}
	if b.Len() != 3 {
		t.Fatalf("Len = %d after Read(1), want 3", b.Len())
	}
	if got := string(b.Read(0)); got != "bcd" {
		t.Fatalf("Read(0) = %q, want \"bcd\"", got)
	}
	if b.Len() != 0 {
		t.Fatalf("Len = %d after drain, want 0", b.Len())
	}
}

func TestBufferReadPastEnd(t *testing.T) {
	var b Buffer
	b.Append([]byte("xy"))
	if got := string(b.Read(10)); got != "xy" {
		t.Fatalf("Read(10) = %q, want \"xy\"", got)
	}
	if got := b.Read(1); len(got) != 0 {
		t.Fatalf("Read on empty buffer = %q", got)
	}
}
