package main

import "github.com/jcorbin/gopocket/internal/mem"

// VM holds all interpreter state for one program run: the reference counted
// heap, the literal bank and scope stack, and the program counter.
type VM struct {
	logging

	storage ProgramStorage
	display Display
	editor  LineEditor

	// heap holds 8-byte cells; a cell's reference is its address counted
	// down from heapApex, so container offset 0 holds the cell at heapApex.
	heap mem.Bytes

	// stack holds the literal bank followed by scope frames.
	stack mem.Bytes

	memLimit    uint
	heapApex    uint
	heapCells   uint
	strictCalls bool
	seed        int16

	pc       uint32
	next     uint32
	frame    uint
	skipping bool
	quit     bool
	stopped  bool
	err      error

	nargs int
	args  [maxArgs]slot

	rand  randState
	ticks uint
}

// slot identifies a 16-bit reference holder in either the heap or the stack.
type slot struct {
	space *mem.Bytes
	addr  uint
}

func (vm *VM) load16(s slot) uint16 {
	val, err := s.space.Uint16(s.addr)
	vm.haltif(err)
	return val
}

func (vm *VM) stor16(s slot, val uint16) {
	vm.haltif(s.space.PutUint16(s.addr, val))
}

func (vm *VM) loadRef(s slot) ref { return ref(vm.load16(s)) }
