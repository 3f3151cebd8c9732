package main

import "fmt"

// The stack container starts with the literal bank: one reference slot per
// argument position, holding values parsed from literal terms until the end
// of the current tick. Scope frames follow.
const (
	maxArgs           = 10
	literalBankOffset = 0
	stackBase         = literalBankOffset + maxArgs*2
)

// Frame layout within the stack container.
const (
	frameReturnOffset  = 0 // uint32 address of the caller's next command
	framePrevOffset    = 4 // uint16 address of the caller's frame
	frameSizeOffset    = 6 // uint16 frame size, including markers
	frameVarsOffset    = 8
	numVars            = 26
	frameMarkersOffset = frameVarsOffset + numVars*2
	markerSize         = 4
)

// Control markers; any value >= 0 is the address of a WHL command to
// re-evaluate when its END is reached.
const (
	markerInterpret int32 = -1
	markerIgnore    int32 = -2
)

func (vm *VM) literalSlot(i int) slot { return slot{&vm.stack, literalBankOffset + uint(i)*2} }

func (vm *VM) varSlot(frame uint, i int) slot {
	return slot{&vm.stack, frame + frameVarsOffset + uint(i)*2}
}

func (vm *VM) frameUint16(frame, field uint) uint {
	val, err := vm.stack.Uint16(frame + field)
	vm.haltif(err)
	return uint(val)
}

func (vm *VM) frameSize(frame uint) uint { return vm.frameUint16(frame, frameSizeOffset) }
func (vm *VM) framePrev(frame uint) uint { return vm.frameUint16(frame, framePrevOffset) }

func (vm *VM) frameReturn(frame uint) uint32 {
	val, err := vm.stack.Uint32(frame + frameReturnOffset)
	vm.haltif(err)
	return val
}

func (vm *VM) stackTop() uint { return vm.frame + vm.frameSize(vm.frame) }

// initFrame writes a fresh frame header at frame with all variables unset.
func (vm *VM) initFrame(frame, prev uint, ret uint32) {
	vm.checkCapacity(frame+frameMarkersOffset, vm.heapCells)
	if frame+frameMarkersOffset > 0xffff {
		vm.halt(fmt.Errorf("%w: scope stack exceeds 64KiB", errOutOfMemory))
	}
	vm.haltif(vm.stack.PutUint32(frame+frameReturnOffset, ret))
	vm.haltif(vm.stack.PutUint16(frame+framePrevOffset, uint16(prev)))
	vm.haltif(vm.stack.PutUint16(frame+frameSizeOffset, frameMarkersOffset))
	var zero [numVars * 2]byte
	vm.haltif(vm.stack.Stor(frame+frameVarsOffset, zero[:]...))
}

// pushFrame starts a new frame above the current one, returning its address.
func (vm *VM) pushFrame(ret uint32) uint {
	frame := vm.stackTop()
	vm.initFrame(frame, vm.frame, ret)
	vm.logf("call", "frame @%v ret @%v", frame, ret)
	return frame
}

// releaseVars unbinds every variable in frame.
func (vm *VM) releaseVars(frame uint) {
	for i := 0; i < numVars; i++ {
		vm.setRef(vm.varSlot(frame, i), 0)
	}
}

// returnFrame ends the current frame: its variables are released, and
// control resumes in the caller, or the program stops if this was the
// outermost frame.
func (vm *VM) returnFrame() {
	vm.releaseVars(vm.frame)
	if vm.frame == stackBase {
		vm.logf("ret", "stop")
		vm.stopped = true
		return
	}
	ret, prev := vm.frameReturn(vm.frame), vm.framePrev(vm.frame)
	vm.logf("ret", "frame @%v -> @%v ret @%v", vm.frame, prev, ret)
	vm.frame = prev
	vm.pc = ret
	vm.skipping = false
}

// unwind releases every frame from the current one down to the outermost.
func (vm *VM) unwind() {
	for {
		vm.releaseVars(vm.frame)
		if vm.frame == stackBase {
			return
		}
		vm.frame = vm.framePrev(vm.frame)
	}
}

func (vm *VM) markerCount() int {
	return int(vm.frameSize(vm.frame)-frameMarkersOffset) / markerSize
}

func (vm *VM) markerAddr(i int) uint {
	return vm.frame + frameMarkersOffset + uint(i)*markerSize
}

func (vm *VM) marker(i int) int32 {
	val, err := vm.stack.Uint32(vm.markerAddr(i))
	vm.haltif(err)
	return int32(val)
}

func (vm *VM) setMarker(i int, m int32) {
	vm.haltif(vm.stack.PutUint32(vm.markerAddr(i), uint32(m)))
}

func (vm *VM) pushMarker(m int32) {
	size := vm.frameSize(vm.frame) + markerSize
	vm.checkCapacity(vm.frame+size, vm.heapCells)
	if vm.frame+size > 0xffff {
		vm.halt(fmt.Errorf("%w: scope stack exceeds 64KiB", errOutOfMemory))
	}
	vm.haltif(vm.stack.PutUint32(vm.frame+size-markerSize, uint32(m)))
	vm.haltif(vm.stack.PutUint16(vm.frame+frameSizeOffset, uint16(size)))
}

func (vm *VM) popMarker() int32 {
	n := vm.markerCount()
	if n == 0 {
		vm.halt(errStackUnderflow)
	}
	m := vm.marker(n - 1)
	size := vm.frameSize(vm.frame) - markerSize
	vm.haltif(vm.stack.PutUint16(vm.frame+frameSizeOffset, uint16(size)))
	return m
}
