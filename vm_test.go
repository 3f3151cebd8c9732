package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/gopocket/internal/logio"
	"github.com/jcorbin/gopocket/internal/panicerr"
	"github.com/jcorbin/gopocket/internal/progstore"
)

type vmTestCases []vmTestCase

func (vmts vmTestCases) run(t *testing.T) {
	{
		var exclusive []vmTestCase
		for _, vmt := range vmts {
			if vmt.exclusive {
				exclusive = append(exclusive, vmt)
			}
		}
		if len(exclusive) > 0 {
			vmts = exclusive
		}
	}
	for _, vmt := range vmts {
		t.Run(vmt.name, vmt.run)
	}
}

func vmTest(name string) (vmt vmTestCase) {
	vmt.name = name
	return vmt
}

type optFunc func(vm *VM)

func (f optFunc) apply(vm *VM) { f(vm) }

type vmTestCase struct {
	name     string
	programs []progstore.BundleProgram
	opts     []VMOption
	display  testDisplay
	editor   testEditor
	ops      []func(vm *VM)
	ticks    int
	expect   []func(t *testing.T, vm *VM)
	timeout  time.Duration
	wantErr  error
	checkErr func(t *testing.T, err error)

	allowLive bool
	exclusive bool
}

func (vmt vmTestCase) exclusiveTest() vmTestCase {
	vmt.exclusive = true
	return vmt
}

// withProgram stores a program; the first one stored is the one run.
func (vmt vmTestCase) withProgram(name string, lines ...string) vmTestCase {
	vmt.programs = append(vmt.programs, progstore.BundleProgram{
		Name: name,
		Text: strings.Join(lines, "\n"),
	})
	return vmt
}

func (vmt vmTestCase) withOptions(opts ...VMOption) vmTestCase {
	vmt.opts = append(vmt.opts, opts...)
	return vmt
}

func (vmt vmTestCase) withMemLimit(limit uint) vmTestCase {
	return vmt.withOptions(WithMemLimit(limit))
}

func (vmt vmTestCase) withInput(lines ...string) vmTestCase {
	vmt.editor.lines = append(vmt.editor.lines, lines...)
	return vmt
}

func (vmt vmTestCase) withInputCanceled() vmTestCase {
	vmt.editor.cancel = true
	return vmt
}

// cancelAtPrint makes the n-th PRINT report a cancel.
func (vmt vmTestCase) cancelAtPrint(n int) vmTestCase {
	vmt.display.cancelAt = n
	return vmt
}

// cancelAtTick makes the n-th cancel poll report a cancel.
func (vmt vmTestCase) cancelAtTick(n int) vmTestCase {
	vmt.display.pollAt = n
	return vmt
}

// do runs ops on a freshly reset VM, instead of running a program to
// completion; any ticks requested run afterwards.
func (vmt vmTestCase) do(ops ...func(vm *VM)) vmTestCase {
	vmt.ops = append(vmt.ops, ops...)
	return vmt
}

// withTicks runs only the first n ticks of the program.
func (vmt vmTestCase) withTicks(n int) vmTestCase {
	vmt.ticks = n
	return vmt
}

func (vmt vmTestCase) withTimeout(timeout time.Duration) vmTestCase {
	vmt.timeout = timeout
	return vmt
}

func (vmt vmTestCase) allowLiveCells() vmTestCase {
	vmt.allowLive = true
	return vmt
}

func (vmt vmTestCase) expectError(err error) vmTestCase {
	vmt.wantErr = err
	return vmt
}

func (vmt vmTestCase) expectErrorThat(check func(t *testing.T, err error)) vmTestCase {
	vmt.checkErr = check
	return vmt
}

func (vmt vmTestCase) expectThat(expect func(t *testing.T, vm *VM)) vmTestCase {
	vmt.expect = append(vmt.expect, expect)
	return vmt
}

func (vmt vmTestCase) expectOutput(lines ...string) vmTestCase {
	vmt.expect = append(vmt.expect, func(t *testing.T, vm *VM) {
		disp := vm.display.(*testDisplay)
		if lines == nil {
			lines = []string{}
		}
		out := disp.out
		if out == nil {
			out = []string{}
		}
		assert.Equal(t, lines, out, "expected display output")
	})
	return vmt
}

// expectValue checks a variable of the current frame, rendered by
// valueString.
func (vmt vmTestCase) expectValue(name byte, value string) vmTestCase {
	vmt.expect = append(vmt.expect, func(t *testing.T, vm *VM) {
		r := vm.loadRef(vm.varSlot(vm.frame, int(name-'A')))
		assert.Equal(t, value, valueString(vm, r), "expected %c value", name)
	})
	return vmt
}

func (vmt vmTestCase) expectVar(name byte, value int16) vmTestCase {
	return vmt.expectValue(name, strconv.Itoa(int(value)))
}

func (vmt vmTestCase) expectHeap(live, cells int) vmTestCase {
	vmt.expect = append(vmt.expect, func(t *testing.T, vm *VM) {
		gotLive, gotCells := vm.HeapStats()
		assert.Equal(t, live, gotLive, "expected live heap cells")
		if cells >= 0 {
			assert.Equal(t, cells, gotCells, "expected heap high-water cells")
		}
	})
	return vmt
}

func (vmt vmTestCase) expectFrames(n int) vmTestCase {
	vmt.expect = append(vmt.expect, func(t *testing.T, vm *VM) {
		assert.Equal(t, n, frameDepth(vm), "expected active frame count")
	})
	return vmt
}

func (vmt vmTestCase) expectMarkers(markers ...int32) vmTestCase {
	vmt.expect = append(vmt.expect, func(t *testing.T, vm *VM) {
		got := []int32{}
		for i := 0; i < vm.markerCount(); i++ {
			got = append(got, vm.marker(i))
		}
		if markers == nil {
			markers = []int32{}
		}
		assert.Equal(t, markers, got, "expected flow markers")
	})
	return vmt
}

// expectLoopAt expects a single WHL marker, at the given offset into a
// program's text.
func (vmt vmTestCase) expectLoopAt(name string, offset uint32) vmTestCase {
	vmt.expect = append(vmt.expect, func(t *testing.T, vm *VM) {
		start, found := vm.storage.Lookup(name)
		require.True(t, found, "expected program %q", name)
		if assert.Equal(t, 1, vm.markerCount(), "expected one flow marker") {
			assert.Equal(t, int32(start+offset), vm.marker(0), "expected loop marker")
		}
	})
	return vmt
}

func (vmt vmTestCase) expectSkipping(skipping bool) vmTestCase {
	vmt.expect = append(vmt.expect, func(t *testing.T, vm *VM) {
		assert.Equal(t, skipping, vm.skipping, "expected skipping state")
	})
	return vmt
}

func (vmt vmTestCase) run(t *testing.T) {
	if len(vmt.programs) == 0 {
		vmt = vmt.withProgram("MAIN")
	}

	var trace []string
	vm := vmt.buildVM(t, func(mess string, args ...interface{}) {
		trace = append(trace, fmt.Sprintf(mess, args...))
	})

	timeout := vmt.timeout
	if timeout == 0 {
		timeout = time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	defer func() {
		if t.Failed() {
			for _, line := range trace {
				t.Log(line)
			}
			vmt.dumpToTest(t, vm)
		}
	}()

	err := vmt.runVM(ctx, vm)
	switch {
	case vmt.checkErr != nil:
		vmt.checkErr(t, err)
	case vmt.wantErr != nil:
		assert.True(t, errors.Is(err, vmt.wantErr), "expected error: %v\ngot: %+v", vmt.wantErr, err)
	default:
		assert.NoError(t, err, "unexpected VM run error")
	}

	if err == nil || errors.Is(err, ErrCanceled) || errors.Is(err, context.DeadlineExceeded) {
		assert.Empty(t, auditRefs(vm), "reference count audit")
		if vmt.ticks == 0 && len(vmt.ops) == 0 && !vmt.allowLive {
			live, _ := vm.HeapStats()
			assert.Equal(t, 0, live, "expected no live heap cells after the run")
		}
	}

	for _, expect := range vmt.expect {
		expect(t, vm)
	}
}

func (vmt vmTestCase) runVM(ctx context.Context, vm *VM) error {
	entry := vmt.programs[0].Name
	if vmt.ticks == 0 && len(vmt.ops) == 0 {
		return vm.Run(ctx, entry)
	}
	err := panicerr.Recover("vmTestCase", func() error {
		start, found := vm.storage.Lookup(entry)
		if !found {
			return undefinedError(entry)
		}
		vm.reset(start)
		for _, op := range vmt.ops {
			op(vm)
		}
		for i := 0; i < vmt.ticks && !vm.stopped; i++ {
			vm.step()
		}
		return vm.err
	})
	var he haltError
	if errors.As(err, &he) {
		err = he.error
	}
	return err
}

func (vmt vmTestCase) buildVM(t *testing.T, logfn func(mess string, args ...interface{})) *VM {
	store := testStore(t)
	for _, prog := range vmt.programs {
		require.NoError(t, store.Save(prog.Name, []byte(prog.Text)), "storing %q", prog.Name)
	}
	disp := vmt.display
	editor := vmt.editor
	return New(
		WithStorage(store),
		WithDisplay(&disp),
		WithLineEditor(&editor),
		WithLogf(logfn),
		VMOptions(vmt.opts...),
	)
}

func (vmt vmTestCase) dumpToTest(t *testing.T, vm *VM) {
	lw := logio.Writer{Logf: t.Logf}
	defer lw.Close()
	vm.Dump(&lw)
}

// testStore returns a store holding name, text pairs.
func testStore(t *testing.T, nameTextPairs ...string) *progstore.Store {
	require.True(t, len(nameTextPairs)%2 == 0, "must be given name, text pairs")
	store := progstore.New(8, 512)
	for i := 0; i < len(nameTextPairs); i += 2 {
		require.NoError(t, store.Save(nameTextPairs[i], []byte(nameTextPairs[i+1])))
	}
	return store
}

type testDisplay struct {
	out      []string
	renders  int
	cancelAt int
	polls    int
	pollAt   int
}

func (disp *testDisplay) RenderText(text []byte) error {
	disp.renders++
	if disp.renders == disp.cancelAt {
		return ErrCanceled
	}
	disp.out = append(disp.out, string(text))
	return nil
}

func (disp *testDisplay) PollCancel() bool {
	disp.polls++
	return disp.polls == disp.pollAt
}

type testEditor struct {
	lines  []string
	cancel bool
}

var errNoInput = errors.New("no more test input")

func (ed *testEditor) EditLine(initial []byte) ([]byte, error) {
	if ed.cancel {
		return nil, fmt.Errorf("editing: %w", ErrCanceled)
	}
	if len(ed.lines) == 0 {
		return nil, errNoInput
	}
	line := ed.lines[0]
	ed.lines = ed.lines[1:]
	return []byte(line), nil
}

// valueString renders a heap value: integers in decimal, lists in
// parentheses, nil references as "nil".
func valueString(vm *VM, r ref) string {
	var sb strings.Builder
	var write func(r ref, depth int)
	write = func(r ref, depth int) {
		if r == 0 {
			sb.WriteString("nil")
			return
		}
		switch kind := vm.kind(r); kind {
		case kindInteger:
			sb.WriteString(strconv.Itoa(int(vm.primary(r))))
		case kindList:
			if depth > 8 {
				sb.WriteString("(...)")
				return
			}
			sb.WriteByte('(')
			for cell := r; cell != 0; cell = vm.link(cell) {
				if cell != r {
					sb.WriteByte(' ')
				}
				write(ref(vm.primary(cell)), depth+1)
			}
			sb.WriteByte(')')
		default:
			sb.WriteString(kind.String())
		}
	}
	write(r, 0)
	return sb.String()
}

func frameDepth(vm *VM) int {
	n := 1
	for frame := vm.frame; frame > stackBase; frame = vm.framePrev(frame) {
		n++
	}
	return n
}

// auditRefs checks that every cell's reference count equals the number of
// slots referring to it, and that only Empty cells are unreferenced.
func auditRefs(vm *VM) (problems []string) {
	if vm.stack.Size() == 0 {
		return nil
	}
	want := make(map[ref]int)
	count := func(r ref) {
		if r != 0 {
			want[r]++
		}
	}
	for i := 0; i < maxArgs; i++ {
		count(vm.loadRef(vm.literalSlot(i)))
	}
	for frame := vm.frame; ; frame = vm.framePrev(frame) {
		for v := 0; v < numVars; v++ {
			count(vm.loadRef(vm.varSlot(frame, v)))
		}
		if frame <= stackBase {
			break
		}
	}
	for i := uint(0); i < vm.heapCells; i++ {
		if r := vm.cellRef(i); vm.kind(r) == kindList {
			count(ref(vm.primary(r)))
			count(vm.link(r))
		}
	}
	for i := uint(0); i < vm.heapCells; i++ {
		r := vm.cellRef(i)
		kind, refs := vm.kind(r), int(vm.refCount(r))
		switch {
		case kind == kindEmpty && want[r] != 0:
			problems = append(problems, fmt.Sprintf("@%v empty but referenced %v times", uint16(r), want[r]))
		case kind == kindEmpty && refs != 0:
			problems = append(problems, fmt.Sprintf("@%v empty with refs:%v", uint16(r), refs))
		case kind != kindEmpty && refs != want[r]:
			problems = append(problems, fmt.Sprintf("@%v %v refs:%v referenced %v times", uint16(r), kind, refs, want[r]))
		}
	}
	return problems
}
