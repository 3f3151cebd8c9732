package main

import (
	"fmt"
	"strconv"
)

// ref is the heap address of a cell; 0 is the nil reference.
type ref uint16

type cellKind uint16

const (
	kindEmpty cellKind = iota
	kindInteger
	kindList
)

func (kind cellKind) String() string {
	switch kind {
	case kindEmpty:
		return "empty"
	case kindInteger:
		return "integer"
	case kindList:
		return "list"
	}
	return fmt.Sprintf("kind(%d)", uint16(kind))
}

const (
	cellSize          = 8
	cellKindOffset    = 0
	cellRefsOffset    = 2
	cellPrimaryOffset = 4
	cellNextOffset    = 6
)

func (vm *VM) cellRef(index uint) ref { return ref(vm.heapApex - index*cellSize) }

// cellOffset maps a reference to its offset in the heap container, halting
// on references that do not name an allocated cell.
func (vm *VM) cellOffset(r ref) uint {
	addr := uint(r)
	if r == 0 || addr > vm.heapApex || (vm.heapApex-addr)%cellSize != 0 {
		vm.halt(badRefError(r))
	}
	off := vm.heapApex - addr
	if off/cellSize >= vm.heapCells {
		vm.halt(badRefError(r))
	}
	return off
}

func (vm *VM) cellField(r ref, field uint) uint16 {
	val, err := vm.heap.Uint16(vm.cellOffset(r) + field)
	vm.haltif(err)
	return val
}

func (vm *VM) setCellField(r ref, field uint, val uint16) {
	vm.haltif(vm.heap.PutUint16(vm.cellOffset(r)+field, val))
}

func (vm *VM) kind(r ref) cellKind   { return cellKind(vm.cellField(r, cellKindOffset)) }
func (vm *VM) refCount(r ref) uint16 { return vm.cellField(r, cellRefsOffset) }
func (vm *VM) primary(r ref) int16   { return int16(vm.cellField(r, cellPrimaryOffset)) }
func (vm *VM) link(r ref) ref        { return ref(vm.cellField(r, cellNextOffset)) }

func (vm *VM) primarySlot(r ref) slot {
	return slot{&vm.heap, vm.cellOffset(r) + cellPrimaryOffset}
}

func (vm *VM) nextSlot(r ref) slot {
	return slot{&vm.heap, vm.cellOffset(r) + cellNextOffset}
}

// allocate returns a fresh cell of the given kind with a zero reference
// count; the lowest indexed Empty cell is reused before the heap grows.
func (vm *VM) allocate(kind cellKind) ref {
	index := uint(0)
	for ; index < vm.heapCells; index++ {
		k, err := vm.heap.Uint16(index*cellSize + cellKindOffset)
		vm.haltif(err)
		if cellKind(k) == kindEmpty {
			break
		}
	}
	if index == vm.heapCells {
		if (index+1)*cellSize > vm.heapApex {
			vm.halt(fmt.Errorf("%w: heap exhausted at %v cells", errOutOfMemory, index))
		}
		vm.checkCapacity(vm.stackTop(), index+1)
		vm.heapCells++
	}
	r := vm.cellRef(index)
	vm.setCellField(r, cellKindOffset, uint16(kind))
	vm.setCellField(r, cellRefsOffset, 0)
	vm.setCellField(r, cellPrimaryOffset, 0)
	vm.setCellField(r, cellNextOffset, 0)
	return r
}

// checkCapacity halts unless the literal bank and scope stack, up to
// stackTop, plus heapCells cells fit within the working memory limit.
func (vm *VM) checkCapacity(stackTop, heapCells uint) {
	if need := stackTop + heapCells*cellSize; need > vm.memLimit {
		vm.halt(fmt.Errorf("%w: need %v bytes, have %v", errOutOfMemory, need, vm.memLimit))
	}
}

func (vm *VM) retain(r ref) {
	n := vm.refCount(r)
	if n == 0xffff {
		vm.halt(errRefOverflow)
	}
	vm.setCellField(r, cellRefsOffset, n+1)
}

// unref decrements r's reference count, returning true if it reached zero.
func (vm *VM) unref(r ref) bool {
	n := vm.refCount(r)
	if n == 0 {
		vm.halt(fmt.Errorf("reference count underflow @%v", uint16(r)))
	}
	n--
	vm.setCellField(r, cellRefsOffset, n)
	return n == 0
}

// setRef points s at target, retaining target before releasing whatever s
// previously held, so that rebinding a slot to its own value is safe.
func (vm *VM) setRef(s slot, target ref) {
	old := vm.loadRef(s)
	if target != 0 {
		vm.retain(target)
	}
	vm.stor16(s, uint16(target))
	if old != 0 && vm.unref(old) {
		vm.release(old)
	}
}

// release frees an unreferenced cell together with everything only it kept
// alive. Work proceeds from an explicit list, so arbitrarily long or deeply
// nested structures never grow the Go stack.
func (vm *VM) release(r ref) {
	work := []ref{r}
	for len(work) > 0 {
		cell := work[len(work)-1]
		work = work[:len(work)-1]
		for cell != 0 {
			if vm.kind(cell) != kindList {
				vm.free(cell)
				break
			}
			if elem := ref(vm.primary(cell)); elem != 0 {
				vm.setCellField(cell, cellPrimaryOffset, 0)
				if vm.unref(elem) {
					work = append(work, elem)
				}
			}
			next := vm.link(cell)
			vm.setCellField(cell, cellNextOffset, 0)
			vm.free(cell)
			if next == 0 || !vm.unref(next) {
				break
			}
			cell = next
		}
	}
}

func (vm *VM) free(r ref) {
	vm.logf("heap", "free @%v %v", uint16(r), vm.kind(r))
	vm.setCellField(r, cellKindOffset, uint16(kindEmpty))
	vm.setCellField(r, cellRefsOffset, 0)
}

func (vm *VM) newInteger(val int16) ref {
	r := vm.allocate(kindInteger)
	vm.setCellField(r, cellPrimaryOffset, uint16(val))
	return r
}

// newList returns a single unlinked list cell holding elem.
func (vm *VM) newList(elem ref) ref {
	r := vm.allocate(kindList)
	if elem != 0 {
		vm.setRef(vm.primarySlot(r), elem)
	}
	return r
}

// newText builds a character list: one Integer per byte plus a terminating
// zero element.
func (vm *VM) newText(text []byte) ref {
	var chain listBuilder
	for _, c := range text {
		if c == 0 {
			break
		}
		chain.append(vm, vm.newInteger(int16(c)))
	}
	chain.append(vm, vm.newInteger(0))
	return chain.head
}

// listBuilder accumulates a list chain; the head stays unreferenced until
// the caller binds it.
type listBuilder struct{ head, tail ref }

func (chain *listBuilder) append(vm *VM, elem ref) {
	cell := vm.newList(elem)
	if chain.head == 0 {
		chain.head = cell
	} else {
		vm.setRef(vm.nextSlot(chain.tail), cell)
	}
	chain.tail = cell
}

// intValue reads r as an integer; nil reads as zero.
func (vm *VM) intValue(r ref) int16 {
	if r == 0 {
		return 0
	}
	if kind := vm.kind(r); kind != kindInteger {
		vm.halt(typeError{r, kindInteger, kind})
	}
	return vm.primary(r)
}

func (vm *VM) isZero(r ref) bool {
	return r == 0 || (vm.kind(r) == kindInteger && vm.primary(r) == 0)
}

func (vm *VM) expectList(r ref) {
	if r == 0 {
		vm.halt(typeError{r, kindList, kindEmpty})
	}
	if kind := vm.kind(r); kind != kindList {
		vm.halt(typeError{r, kindList, kind})
	}
}

// textOf renders a value as bytes: integers in decimal, lists as the
// characters up to their first zero or non-integer element, nil as nothing.
func (vm *VM) textOf(r ref) []byte {
	if r == 0 {
		return nil
	}
	if vm.kind(r) == kindInteger {
		return strconv.AppendInt(nil, int64(vm.primary(r)), 10)
	}
	var text []byte
	for cell := r; cell != 0; cell = vm.link(cell) {
		elem := ref(vm.primary(cell))
		if vm.isZero(elem) || vm.kind(elem) != kindInteger {
			break
		}
		text = append(text, byte(vm.primary(elem)))
	}
	return text
}
