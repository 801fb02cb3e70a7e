package schedule

import "testing"

func TestPlaceTracksLength(t *testing.T) {
	s := New(3)
	s.II = 2

	if s.Placed(0) {
		t.Error("fresh schedule reports op 0 placed")
	}

	s.Place(Placement{Op: 0, PE: 0, Lane: 0, Slot: 0, Reg: 0})
	s.Place(Placement{Op: 1, PE: 1, Lane: 0, Slot: 5, Reg: 1})

	if !s.Placed(0) || !s.Placed(1) || s.Placed(2) {
		t.Error("placement tracking wrong")
	}
	if s.Length != 6 {
		t.Errorf("Length = %d, want 6", s.Length)
	}
	if s.Stages() != 3 {
		t.Errorf("Stages = %d, want 3", s.Stages())
	}
}

func TestRouteFor(t *testing.T) {
	s := New(2)
	s.AddRoute(Route{Edge: 4, Hops: []Hop{{PE: 0, Port: "East", Slot: 1}}})

	r, ok := s.RouteFor(4)
	if !ok || r.Latency() != 1 {
		t.Errorf("RouteFor(4) = %+v, %v", r, ok)
	}
	if _, ok := s.RouteFor(5); ok {
		t.Error("RouteFor(5) found a route that was never added")
	}

	mem := Route{Edge: 1, ViaMemory: true, StoreSlot: 2, LoadSlot: 5}
	if mem.Latency() != 3 {
		t.Errorf("memory route latency = %d, want 3", mem.Latency())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := New(2)
	s.II = 3
	s.Place(Placement{Op: 0, PE: 1, Lane: 0, Slot: 2, Reg: 0})
	s.AddRoute(Route{Edge: 0, Hops: []Hop{{PE: 1, Port: "North", Slot: 3}}})

	c := s.Clone()
	c.Place(Placement{Op: 1, PE: 2, Lane: 0, Slot: 7, Reg: 1})
	c.Routes[0].Hops[0].Port = "South"

	if s.Placed(1) {
		t.Error("placing into the clone leaked into the original")
	}
	if s.Routes[0].Hops[0].Port != "North" {
		t.Error("mutating the clone's hops leaked into the original")
	}
	if s.Length != 3 || c.Length != 8 {
		t.Errorf("lengths = %d, %d, want 3, 8", s.Length, c.Length)
	}
}

func TestFinalizeFreezes(t *testing.T) {
	s := New(1)
	s.Place(Placement{Op: 0, PE: 0, Lane: 0, Slot: 0, Reg: 0})
	s.Finalize()

	if !s.Finalized() {
		t.Fatal("Finalized() = false after Finalize")
	}

	defer func() {
		if recover() == nil {
			t.Error("Place after Finalize did not panic")
		}
	}()
	s.Place(Placement{Op: 0, PE: 1, Lane: 0, Slot: 1, Reg: 0})
}
