package uart

import "testing"

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if r.Len() != 0 || r.Contains(1) {
		t.Fatal("new registry is not empty")
	}

	r.Add(1)
	r.Add(2)
	r.Add(2) // idempotent
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}

	if !r.Remove(1) {
		t.Fatal("Remove(1) = false for a registered handle")
	}
	if r.Remove(1) {
		t.Fatal("Remove(1) = true for an absent handle")
	}
	if r.Contains(1) || !r.Contains(2) {
		t.Fatal("membership wrong after Remove")
	}

	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("Len = %d after Clear, want 0", r.Len())
	}
}

func TestRegistrySnapshotIsStable(t *testing.T) {
	r := NewRegistry()
	r.Add(1)
	r.Add(2)

	snap := r.Snapshot()
	r.Add(3)

	if len(snap) != 2 {
		t.Fatalf("snapshot length = %d, want 2", len(snap))
	}
	for _, conn := range snap {
		if conn == 3 {
			t.Fatal("snapshot grew after later Add")
		}
	}
}
