package main

import (
	"context"
	"errors"
	"fmt"
)

func (vm *VM) run(ctx context.Context, name string) error {
	start, found := vm.storage.Lookup(name)
	if !found {
		return undefinedError(name)
	}
	vm.reset(start)
	vm.logf("run", "%q @%v", name, start)
	for !vm.stopped {
		if err := ctx.Err(); err != nil {
			vm.abort(err)
			break
		}
		if vm.display.PollCancel() {
			vm.abort(ErrCanceled)
			break
		}
		vm.step()
	}
	return vm.err
}

// reset prepares a fresh heap and scope stack, with the outermost frame
// about to execute the command at start.
func (vm *VM) reset(start uint32) {
	if vm.heapApex == 0 || vm.heapApex%cellSize != 0 || vm.heapApex > 0xffff {
		vm.halt(fmt.Errorf("%w: heap apex %v must be a positive multiple of %v below 65536",
			errBadConfig, vm.heapApex, cellSize))
	}
	if vm.memLimit < stackBase+frameMarkersOffset || vm.memLimit > 0xffff {
		vm.halt(fmt.Errorf("%w: memory limit %v out of range", errBadConfig, vm.memLimit))
	}

	vm.heap.Reset()
	vm.heap.Limit = vm.heapApex
	vm.stack.Reset()
	vm.stack.Limit = 0x10000
	vm.heapCells = 0

	vm.frame = stackBase
	vm.initFrame(stackBase, 0, 0)
	vm.releaseLiterals()

	vm.rand = randState{value: vm.seed}
	vm.pc, vm.next = start, start
	vm.skipping, vm.quit, vm.stopped = false, false, false
	vm.err = nil
	vm.ticks = 0
}

// abort unwinds every frame and stops the program with err.
func (vm *VM) abort(err error) {
	vm.logf("abort", "%v", err)
	vm.unwind()
	vm.releaseLiterals()
	vm.stopped = true
	vm.err = err
}

// step runs one tick: a single command, or a single skipped line, or the
// return from a frame whose text has ended.
func (vm *VM) step() {
	vm.ticks++
	at := vm.pc
	if vm.peek(at) == 0 {
		vm.returnFrame()
		return
	}

	name, end := vm.scanName(at)
	if vm.skipping {
		end = vm.lineEnd(end)
		vm.skip(name)
		vm.advance(end)
		return
	}

	if vm.logfn != nil {
		vm.logf("exec", "@%v %s", at, vm.lineAt(at))
	}
	if name == "" {
		vm.advance(vm.lineEnd(end))
		return
	}

	end = vm.parseArgs(end)
	vm.setNext(end)
	if op, isBuiltin := builtinCodes[name]; isBuiltin {
		builtinTable[op](vm)
	} else {
		vm.call(name)
	}
	if !vm.stopped {
		vm.releaseLiterals()
		if vm.quit {
			vm.quit = false
			vm.returnFrame()
		} else {
			vm.pc = vm.next
		}
	}
}

// setNext points vm.next past the line ending at end; at the end of text
// it stays on the NUL, so that the following tick returns from the frame.
func (vm *VM) setNext(end uint32) {
	if vm.peek(end) == '\n' {
		end++
	}
	vm.next = end
}

func (vm *VM) advance(end uint32) {
	vm.setNext(end)
	vm.pc = vm.next
}

// skip tracks IF, WHL, and END nesting while skipping.
func (vm *VM) skip(name string) {
	vm.logf("skip", "@%v %s", vm.pc, name)
	switch name {
	case "IF", "WHL":
		vm.pushMarker(markerIgnore)
	case "END":
		if vm.popMarker() == markerInterpret {
			vm.skipping = false
		}
	}
}

// call binds the current arguments to A, B, ... in a new frame and
// transfers control to the named program.
func (vm *VM) call(name string) {
	start, found := vm.storage.Lookup(name)
	if !found {
		if vm.strictCalls {
			vm.halt(undefinedError(name))
		}
		vm.logf("call", "undefined %q", name)
		return
	}
	frame := vm.pushFrame(vm.next)
	for i := 0; i < vm.nargs; i++ {
		vm.setRef(vm.varSlot(frame, i), vm.loadRef(vm.args[i]))
	}
	vm.frame = frame
	vm.next = start
}

func (vm *VM) arg(i int) slot {
	if i >= vm.nargs {
		vm.halt(argumentError(i + 1))
	}
	return vm.args[i]
}

func (vm *VM) argRef(i int) ref {
	if i >= vm.nargs {
		return 0
	}
	return vm.loadRef(vm.args[i])
}

func (vm *VM) argInt(i int) int16 { return vm.intValue(vm.argRef(i)) }

// interact handles a collaborator error: cancellation unwinds the program,
// anything else halts it.
func (vm *VM) interact(err error) bool {
	if errors.Is(err, ErrCanceled) {
		vm.abort(ErrCanceled)
		return false
	}
	vm.haltif(err)
	return true
}
