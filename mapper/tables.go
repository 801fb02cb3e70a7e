package mapper

import "github.com/sarchlab/loom/cgra"

type portKey struct {
	pe   int
	port string
	slot int // mod II
}

// tables tracks per-candidate resource occupancy: one operation per PE
// lane per modulo slot, one transfer per port per modulo slot, and the
// per-PE register budget. A journal records every reservation so a failed
// placement attempt can be rolled back.
type tables struct {
	ii   int
	grid *cgra.Grid

	laneBusy []bool // [flatLane*ii + slot%ii]
	portBusy map[portKey]bool
	peLoad   []int
	regUsed  []int

	journal []func()
}

func newTables(ii int, grid *cgra.Grid) *tables {
	return &tables{
		ii:       ii,
		grid:     grid,
		laneBusy: make([]bool, grid.LaneCount()*ii),
		portBusy: map[portKey]bool{},
		peLoad:   make([]int, grid.PECount()),
		regUsed:  make([]int, grid.PECount()),
	}
}

func (t *tables) laneIndex(flatLane, slot int) int {
	return flatLane*t.ii + mod(slot, t.ii)
}

// freeLane returns the lowest lane of the PE free at the slot, or -1.
func (t *tables) freeLane(pe, slot int) int {
	for lane := 0; lane < t.grid.SIMDLanes(); lane++ {
		if !t.laneBusy[t.laneIndex(t.grid.FlatIndex(pe, lane), slot)] {
			return lane
		}
	}
	return -1
}

func (t *tables) reserveLane(pe, lane, slot int) {
	idx := t.laneIndex(t.grid.FlatIndex(pe, lane), slot)
	t.laneBusy[idx] = true
	t.peLoad[pe]++
	t.journal = append(t.journal, func() {
		t.laneBusy[idx] = false
		t.peLoad[pe]--
	})
}

func (t *tables) portFree(pe int, port string, slot int) bool {
	return !t.portBusy[portKey{pe: pe, port: port, slot: mod(slot, t.ii)}]
}

func (t *tables) reservePort(pe int, port string, slot int) {
	key := portKey{pe: pe, port: port, slot: mod(slot, t.ii)}
	t.portBusy[key] = true
	t.journal = append(t.journal, func() { delete(t.portBusy, key) })
}

// allocReg hands out the next register of the PE, or -1 when the register
// file is exhausted. Each resident value keeps a dedicated register.
func (t *tables) allocReg(pe int) int {
	if t.regUsed[pe] >= t.grid.RegistersPerPE() {
		return -1
	}
	reg := t.regUsed[pe]
	t.regUsed[pe]++
	t.journal = append(t.journal, func() { t.regUsed[pe]-- })
	return reg
}

// checkpoint marks the current journal position.
func (t *tables) checkpoint() int {
	return len(t.journal)
}

// rollback undoes every reservation made since the checkpoint.
func (t *tables) rollback(mark int) {
	for i := len(t.journal) - 1; i >= mark; i-- {
		t.journal[i]()
	}
	t.journal = t.journal[:mark]
}

func mod(v, m int) int {
	r := v % m
	if r < 0 {
		r += m
	}
	return r
}
