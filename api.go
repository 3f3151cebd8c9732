package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jcorbin/gopocket/internal/panicerr"
)

// ProgramStorage provides read access to stored program text.
// Program text is addressed by absolute byte address; Lookup returns the
// address of the first text byte of the named program.
type ProgramStorage interface {
	Lookup(name string) (start uint32, found bool)
	ByteAt(addr uint32) (byte, error)
}

// Display renders PRINT output and reports the user's cancel request.
// RenderText should return ErrCanceled if the user canceled while the text
// was shown.
type Display interface {
	RenderText(text []byte) error
	PollCancel() bool
}

// LineEditor collects a line of text for INPUT.
type LineEditor interface {
	EditLine(initial []byte) ([]byte, error)
}

func New(opts ...VMOption) *VM {
	var vm VM
	defaultOptions.apply(&vm)
	VMOptions(opts...).apply(&vm)
	return &vm
}

// Run executes the named program until it finishes, halts on an error, is
// canceled through the Display, or ctx is done.
func (vm *VM) Run(ctx context.Context, name string) error {
	err := panicerr.Recover("VM", func() error {
		return vm.run(ctx, name)
	})
	var he haltError
	if errors.As(err, &he) {
		err = he.error
	}
	return err
}

// HeapStats reports the number of live heap cells and the heap high-water
// mark in cells.
func (vm *VM) HeapStats() (live, cells int) {
	for i := uint(0); i < vm.heapCells; i++ {
		if vm.kind(vm.cellRef(i)) != kindEmpty {
			live++
		}
	}
	return live, int(vm.heapCells)
}

// Dump writes a human readable description of the heap and scope stack.
func (vm *VM) Dump(out io.Writer) error {
	return panicerr.Recover("VM.Dump", func() error {
		dump := vmDumper{vm: vm, out: out}
		dump.dump()
		return nil
	})
}

func (vm *VM) String() string {
	return fmt.Sprintf("pc:%v frame:%v heap:%v", vm.pc, vm.frame, vm.heapCells)
}

func WithStorage(storage ProgramStorage) VMOption { return withStorage{storage} }
func WithDisplay(display Display) VMOption        { return withDisplay{display} }
func WithLineEditor(editor LineEditor) VMOption   { return withLineEditor{editor} }
func WithMemLimit(limit uint) VMOption            { return memLimitOption(limit) }
func WithHeapApex(apex uint) VMOption             { return heapApexOption(apex) }
func WithSeed(seed int16) VMOption                { return seedOption(seed) }
func WithStrictCalls(strict bool) VMOption        { return strictCallsOption(strict) }

func WithLogf(logfn func(mess string, args ...interface{})) VMOption { return withLogfn(logfn) }
