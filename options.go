package main

import "github.com/jcorbin/gopocket/internal/progstore"

type VMOption interface{ apply(vm *VM) }

// VMOptions combines many options into one.
func VMOptions(opts ...VMOption) VMOption {
	var res optionList
	for _, opt := range opts {
		switch impl := opt.(type) {
		case nil:
		case optionList:
			res = append(res, impl...)
		default:
			res = append(res, opt)
		}
	}
	if len(res) == 1 {
		return res[0]
	}
	return res
}

type optionList []VMOption

func (opts optionList) apply(vm *VM) {
	for _, opt := range opts {
		opt.apply(vm)
	}
}

const (
	defaultMemLimit = 32768
	defaultHeapApex = 32000
	defaultSeed     = 0x2ba5
)

var defaultOptions = VMOptions(
	withStorage{progstore.New(progstore.DefaultSlots, progstore.DefaultSlotSize)},
	withDisplay{discardDisplay{}},
	withLineEditor{emptyEditor{}},
	memLimitOption(defaultMemLimit),
	heapApexOption(defaultHeapApex),
	seedOption(defaultSeed),
)

type withLogfn func(mess string, args ...interface{})

func (logfn withLogfn) apply(vm *VM) { vm.logfn = logfn }

type withStorage struct{ ProgramStorage }
type withDisplay struct{ Display }
type withLineEditor struct{ LineEditor }
type memLimitOption uint
type heapApexOption uint
type seedOption int16
type strictCallsOption bool

func (o withStorage) apply(vm *VM) {
	if o.ProgramStorage != nil {
		vm.storage = o.ProgramStorage
	}
}

func (o withDisplay) apply(vm *VM) {
	if o.Display != nil {
		vm.display = o.Display
	}
}

func (o withLineEditor) apply(vm *VM) {
	if o.LineEditor != nil {
		vm.editor = o.LineEditor
	}
}

func (lim memLimitOption) apply(vm *VM)  { vm.memLimit = uint(lim) }
func (apex heapApexOption) apply(vm *VM) { vm.heapApex = uint(apex) }
func (seed seedOption) apply(vm *VM)     { vm.seed = int16(seed) }
func (b strictCallsOption) apply(vm *VM) { vm.strictCalls = bool(b) }

type discardDisplay struct{}

func (discardDisplay) RenderText([]byte) error { return nil }
func (discardDisplay) PollCancel() bool        { return false }

type emptyEditor struct{}

func (emptyEditor) EditLine([]byte) ([]byte, error) { return nil, nil }
