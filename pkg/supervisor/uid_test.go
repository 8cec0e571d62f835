package supervisor

import "testing"

func TestAllocateUIDAvoidsTaken(t *testing.T) {
	taken := map[int]bool{10000: true}

	uid, err := allocateUID(10000, 10001, taken)
	if err != nil {
		t.Fatalf("allocateUID: %v", err)
	}
	if uid != 10001 {
		t.Fatalf("allocateUID = %d, want the one free slot 10001", uid)
	}
}

func TestAllocateUIDExhausted(t *testing.T) {
	taken := map[int]bool{10000: true, 10001: true}
	if _, err := allocateUID(10000, 10001, taken); err == nil {
		t.Fatal("expected an error when the whole range is taken")
	}
}

func TestAllocateUIDRange(t *testing.T) {
	taken := map[int]bool{}
	for i := 0; i < 50; i++ {
		uid, err := allocateUID(100, 200, taken)
		if err != nil {
			t.Fatalf("allocateUID: %v", err)
		}
		if uid < 100 || uid > 200 {
			t.Fatalf("allocateUID = %d, out of range [100,200]", uid)
		}
		taken[uid] = true
	}
}
