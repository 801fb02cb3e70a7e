package mapper

import (
	"errors"
	"testing"
)

func TestTablesRollback(t *testing.T) {
	grid := meshGrid(t, 2, 2, 1)
	tab := newTables(2, grid)

	mark := tab.checkpoint()
	if lane := tab.freeLane(0, 0); lane != 0 {
		t.Fatalf("freeLane = %d, want 0", lane)
	}
	tab.reserveLane(0, 0, 0)
	tab.reservePort(0, "East", 0)
	if reg := tab.allocReg(0); reg != 0 {
		t.Fatalf("allocReg = %d, want 0", reg)
	}

	if tab.freeLane(0, 0) != -1 {
		t.Error("lane still free after reservation")
	}
	if tab.freeLane(0, 2) != -1 {
		t.Error("slot 2 aliases slot 0 at II 2 but reads free")
	}
	if tab.portFree(0, "East", 2) {
		t.Error("port still free at an aliased slot")
	}

	tab.rollback(mark)

	if tab.freeLane(0, 0) != 0 {
		t.Error("lane not released by rollback")
	}
	if !tab.portFree(0, "East", 0) {
		t.Error("port not released by rollback")
	}
	if reg := tab.allocReg(0); reg != 0 {
		t.Errorf("allocReg after rollback = %d, want 0", reg)
	}
}

func TestRegisterFileExhaustion(t *testing.T) {
	grid := meshGrid(t, 2, 2, 1)
	tab := newTables(1, grid)
	for i := 0; i < grid.RegistersPerPE(); i++ {
		if reg := tab.allocReg(1); reg != i {
			t.Fatalf("allocReg #%d = %d", i, reg)
		}
	}
	if reg := tab.allocReg(1); reg != -1 {
		t.Errorf("allocReg past capacity = %d, want -1", reg)
	}
}

func TestRouterFindsShortestPath(t *testing.T) {
	grid := meshGrid(t, 2, 2, 1)
	tab := newTables(4, grid)
	rtr := &router{grid: grid, tab: tab, maxHops: 8}

	from := grid.FlatPE([]int{0, 0})
	to := grid.FlatPE([]int{1, 1})

	route, err := rtr.route(0, from, to, 0, 4)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if route.ViaMemory || len(route.Hops) != 2 {
		t.Fatalf("route = %+v, want 2 NoC hops", route)
	}
	if route.Hops[0].Slot != 0 || route.Hops[1].Slot != 1 {
		t.Errorf("hop slots = %d, %d, want 0, 1", route.Hops[0].Slot, route.Hops[1].Slot)
	}
	for _, h := range route.Hops {
		if tab.portFree(h.PE, h.Port, h.Slot) {
			t.Errorf("hop port %s of PE %d not reserved", h.Port, h.PE)
		}
	}
}

func TestRouterSamePEIsFree(t *testing.T) {
	grid := meshGrid(t, 2, 2, 1)
	tab := newTables(2, grid)
	rtr := &router{grid: grid, tab: tab, maxHops: 8}

	route, err := rtr.route(0, 1, 1, 3, 3)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(route.Hops) != 0 || route.ViaMemory {
		t.Errorf("same-PE route = %+v, want empty", route)
	}
}

func TestRouterFallsBackToMemory(t *testing.T) {
	grid := meshGrid(t, 2, 2, 1)
	tab := newTables(1, grid)
	rtr := &router{grid: grid, tab: tab, maxHops: 8}

	from := grid.FlatPE([]int{0, 0})
	to := grid.FlatPE([]int{1, 1})

	// At II 1 every slot aliases slot 0; blocking both outgoing ports of
	// the origin strands the NoC entirely.
	tab.reservePort(from, "North", 0)
	tab.reservePort(from, "East", 0)

	route, err := rtr.route(0, from, to, 0, 3)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !route.ViaMemory {
		t.Fatalf("route = %+v, want memory round-trip", route)
	}
	if route.StoreSlot != 0 || route.LoadSlot != 1 {
		t.Errorf("store/load slots = %d, %d, want 0, 1", route.StoreSlot, route.LoadSlot)
	}
	if tab.portFree(from, route.StorePort, route.StoreSlot) ||
		tab.portFree(to, route.LoadPort, route.LoadSlot) {
		t.Error("memory ports not reserved")
	}
}

func TestRouterReportsCongestion(t *testing.T) {
	grid := meshGrid(t, 2, 2, 1)
	tab := newTables(1, grid)
	rtr := &router{grid: grid, tab: tab, maxHops: 8}

	// No slack at all.
	_, err := rtr.route(0, 0, 3, 5, 4)
	var congestion *routingCongestionError
	if !errors.As(err, &congestion) {
		t.Fatalf("err = %v, want *routingCongestionError", err)
	}

	// Too tight for the NoC and for the memory round-trip.
	tab.reservePort(0, "North", 0)
	tab.reservePort(0, "East", 0)
	_, err = rtr.route(0, 0, 3, 0, 2)
	if !errors.As(err, &congestion) {
		t.Fatalf("err = %v, want *routingCongestionError", err)
	}
}
