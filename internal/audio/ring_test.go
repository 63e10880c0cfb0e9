package audio

import "testing"

func seq(start, n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(start + i)
	}
	return s
}

func TestRingWriteRead(t *testing.T) {
	r := NewRing(8)

	if dropped := r.Write(seq(0, 5)); dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if r.Len() != 5 {
		t.Fatalf("Len = %d, want 5", r.Len())
	}

	dst := make([]int16, 3)
	if n := r.Read(dst); n != 3 {
		t.Fatalf("Read = %d, want 3", n)
	}
	for i, v := range dst {
		if v != int16(i) {
			t.Errorf("dst[%d] = %d, want %d", i, v, i)
		}
	}
	if r.Len() != 2 {
		t.Errorf("Len after read = %d, want 2", r.Len())
	}
}

func TestRingWraparound(t *testing.T) {
	r := NewRing(8)
	r.Write(seq(0, 6))
	r.Read(make([]int16, 6))

	// head is now mid-buffer; this write wraps.
	r.Write(seq(100, 5))

	dst := make([]int16, 5)
	if n := r.Read(dst); n != 5 {
		t.Fatalf("Read = %d, want 5", n)
	}
	for i, v := range dst {
		if v != int16(100+i) {
			t.Errorf("dst[%d] = %d, want %d", i, v, 100+i)
		}
	}
}

func TestRingOverflowDropsOldest(t *testing.T) {
	r := NewRing(8)
	r.Write(seq(0, 8))

	if dropped := r.Write(seq(100, 3)); dropped != 3 {
		t.Fatalf("dropped = %d, want 3", dropped)
	}
	if r.Len() != 8 {
		t.Fatalf("Len = %d, want 8", r.Len())
	}

	dst := make([]int16, 8)
	r.Read(dst)
	// Oldest three (0,1,2) were dropped.
	want := append(seq(3, 5), seq(100, 3)...)
	for i, v := range dst {
		if v != want[i] {
			t.Errorf("dst[%d] = %d, want %d", i, v, want[i])
		}
	}
}

func TestRingWriteLargerThanCapacity(t *testing.T) {
	r := NewRing(4)
	if dropped := r.Write(seq(0, 10)); dropped != 6 {
		t.Fatalf("dropped = %d, want 6", dropped)
	}

	dst := make([]int16, 4)
	r.Read(dst)
	for i, v := range dst {
		if v != int16(6+i) {
			t.Errorf("dst[%d] = %d, want %d (newest survive)", i, v, 6+i)
		}
	}
}

func TestRingReadMoreThanBuffered(t *testing.T) {
	r := NewRing(8)
	r.Write(seq(0, 3))

	dst := make([]int16, 8)
	if n := r.Read(dst); n != 3 {
		t.Fatalf("Read = %d, want 3", n)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestRingDropAndReset(t *testing.T) {
	r := NewRing(8)
	r.Write(seq(0, 6))

	if n := r.Drop(2); n != 2 {
		t.Fatalf("Drop = %d, want 2", n)
	}
	dst := make([]int16, 1)
	r.Read(dst)
	if dst[0] != 2 {
		t.Errorf("oldest after drop = %d, want 2", dst[0])
	}

	r.Reset()
	if r.Len() != 0 {
		t.Errorf("Len after reset = %d, want 0", r.Len())
	}
	if n := r.Drop(5); n != 0 {
		t.Errorf("Drop on empty = %d, want 0", n)
	}
}
