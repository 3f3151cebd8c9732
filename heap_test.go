package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_heap(t *testing.T) {
	var (
		first, reused ref
		liveBefore    int
	)
	vmTestCases{
		vmTest("allocate reuses lowest empty cell").do(
			func(vm *VM) {
				first = vm.newInteger(1)
				vm.setRef(vm.varSlot(vm.frame, 0), first)
				vm.setRef(vm.varSlot(vm.frame, 1), vm.newInteger(2))
				vm.setRef(vm.varSlot(vm.frame, 0), 0)
				reused = vm.newInteger(3)
				vm.setRef(vm.varSlot(vm.frame, 2), reused)
			},
		).expectThat(func(t *testing.T, vm *VM) {
			assert.Equal(t, first, reused, "expected first cell to be reused")
		}).expectValue('A', "nil").
			expectValue('B', "2").
			expectValue('C', "3").
			expectHeap(2, 2),

		vmTest("cells count down from apex").withOptions(WithHeapApex(800)).do(
			func(vm *VM) {
				vm.setRef(vm.varSlot(vm.frame, 0), vm.newInteger(1))
				vm.setRef(vm.varSlot(vm.frame, 1), vm.newInteger(2))
			},
		).expectThat(func(t *testing.T, vm *VM) {
			assert.Equal(t, ref(800), vm.loadRef(vm.varSlot(vm.frame, 0)))
			assert.Equal(t, ref(792), vm.loadRef(vm.varSlot(vm.frame, 1)))
		}),

		vmTest("release long list").withOptions(
			WithHeapApex(65528),
			WithMemLimit(65535),
		).do(
			func(vm *VM) {
				var chain listBuilder
				elem := vm.newInteger(7)
				for i := 0; i < 5000; i++ {
					chain.append(vm, elem)
				}
				vm.setRef(vm.varSlot(vm.frame, 0), chain.head)
				liveBefore, _ = vm.HeapStats()
				vm.setRef(vm.varSlot(vm.frame, 0), 0)
			},
		).expectThat(func(t *testing.T, vm *VM) {
			assert.Equal(t, 5001, liveBefore, "expected live cells before release")
		}).expectHeap(0, 5001),

		vmTest("release deep nesting").withOptions(
			WithHeapApex(65528),
			WithMemLimit(65535),
		).do(
			func(vm *VM) {
				inner := vm.newInteger(1)
				for i := 0; i < 3000; i++ {
					inner = vm.newList(inner)
				}
				vm.setRef(vm.varSlot(vm.frame, 0), inner)
				vm.setRef(vm.varSlot(vm.frame, 0), 0)
			},
		).expectHeap(0, 3001),

		vmTest("shared elements survive").do(
			func(vm *VM) {
				elem := vm.newText([]byte("HI"))
				vm.setRef(vm.varSlot(vm.frame, 1), elem)
				var chain listBuilder
				chain.append(vm, elem)
				chain.append(vm, elem)
				vm.setRef(vm.varSlot(vm.frame, 0), chain.head)
				vm.setRef(vm.varSlot(vm.frame, 0), 0)
			},
		).expectValue('B', "(72 73 0)").
			expectHeap(6, 8),

		vmTest("heap exhausted").withOptions(WithHeapApex(64)).do(
			func(vm *VM) {
				for i := 0; i < 9; i++ {
					vm.setRef(vm.varSlot(vm.frame, i), vm.newInteger(int16(i)))
				}
			},
		).expectError(errOutOfMemory),

		vmTest("stack and heap share the limit").withMemLimit(stackBase + frameMarkersOffset + 3*cellSize).do(
			func(vm *VM) {
				vm.setRef(vm.varSlot(vm.frame, 0), vm.newInteger(1))
				vm.setRef(vm.varSlot(vm.frame, 1), vm.newInteger(2))
				vm.pushMarker(markerInterpret)
				vm.pushMarker(markerInterpret)
				vm.setRef(vm.varSlot(vm.frame, 2), vm.newInteger(3))
			},
		).expectError(errOutOfMemory),

		vmTest("bad reference").do(
			func(vm *VM) { vm.kind(ref(vm.heapApex)) },
		).expectError(badRefError(defaultHeapApex)),
	}.run(t)
}

func Test_VM_Dump(t *testing.T) {
	vmTestCases{
		vmTest("frames and heap").withProgram("MAIN",
			"= A 5",
			`= B "HI"`,
			"WHL 1",
			"F A",
		).withProgram("F",
			"IF 0",
		).withTicks(5).expectThat(func(t *testing.T, vm *VM) {
			var out strings.Builder
			assert.NoError(t, vm.Dump(&out))
			dump := out.String()
			assert.Contains(t, dump, "# VM Dump")
			assert.Contains(t, dump, "# Frame @20 ret: @0 size: 64")
			assert.Contains(t, dump, "  A = @32000 5")
			assert.Contains(t, dump, "  B = @31984 (72 73 0)")
			assert.Contains(t, dump, "markers: interpret")
			assert.Contains(t, dump, "# Heap @32000 live: 7 cells: 8")
			assert.Contains(t, dump, "  @32000 integer refs:2 5")
		}),
	}.run(t)
}
