package sequence

import "testing"

func TestNextIsMonotonic(t *testing.T) {
	s := New(0)
	for want := uint64(1); want <= 100; want++ {
		if got := s.Next(); got != want {
			t.Fatalf("Next() = %d, want %d", got, want)
		}
	}
	if got := s.Current(); got != 100 {
		t.Errorf("Current() = %d, want 100", got)
	}
}

func TestStartsAfterSeed(t *testing.T) {
	s := New(41)
	if got := s.Next(); got != 42 {
		t.Errorf("Next() = %d, want 42", got)
	}
}

func TestResetReseeds(t *testing.T) {
	s := New(0)
	s.Next()
	s.Next()

	s.Reset(500)
	if got := s.Current(); got != 500 {
		t.Errorf("Current() after Reset = %d, want 500", got)
	}
	if got := s.Next(); got != 501 {
		t.Errorf("Next() after Reset = %d, want 501", got)
	}
}
