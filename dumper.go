package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

type fmtBuf interface {
	Len() int
	Write(p []byte) (n int, err error)
	WriteByte(c byte) error
	WriteString(s string) (n int, err error)
}

type vmDumper struct {
	vm  *VM
	out io.Writer

	addrWidth int
}

func (dump vmDumper) dump() {
	fmt.Fprintf(dump.out, "# VM Dump\n")
	fmt.Fprintf(dump.out, "  pc: @%v skipping: %v stopped: %v ticks: %v\n",
		dump.vm.pc, dump.vm.skipping, dump.vm.stopped, dump.vm.ticks)
	if dump.vm.stack.Size() == 0 {
		return
	}
	dump.dumpLiterals()
	dump.dumpFrames()
	dump.dumpHeap()
}

func (dump *vmDumper) dumpLiterals() {
	var buf strings.Builder
	for i := 0; i < maxArgs; i++ {
		if r := dump.vm.loadRef(dump.vm.literalSlot(i)); r != 0 {
			fmt.Fprintf(&buf, " %v:@%v", i, uint16(r))
		}
	}
	if buf.Len() > 0 {
		fmt.Fprintf(dump.out, "  literals:%v\n", buf.String())
	}
}

func (dump *vmDumper) dumpFrames() {
	var frames []uint
	for frame := dump.vm.frame; ; frame = dump.vm.framePrev(frame) {
		frames = append(frames, frame)
		if frame <= stackBase {
			break
		}
	}
	var buf strings.Builder
	for i := len(frames) - 1; i >= 0; i-- {
		frame := frames[i]
		fmt.Fprintf(&buf, "# Frame @%v ret: @%v size: %v",
			frame, dump.vm.frameReturn(frame), dump.vm.frameSize(frame))
		for v := 0; v < numVars; v++ {
			if r := dump.vm.loadRef(dump.vm.varSlot(frame, v)); r != 0 {
				fmt.Fprintf(&buf, "\n  %c = ", 'A'+v)
				dump.formatValue(&buf, r)
			}
		}
		if frame == dump.vm.frame {
			if n := dump.vm.markerCount(); n > 0 {
				buf.WriteString("\n  markers:")
				for j := 0; j < n; j++ {
					buf.WriteByte(' ')
					dump.formatMarker(&buf, dump.vm.marker(j))
				}
			}
		}
		buf.WriteByte('\n')
		io.WriteString(dump.out, buf.String())
		buf.Reset()
	}
}

func (dump *vmDumper) formatMarker(buf fmtBuf, m int32) {
	switch m {
	case markerInterpret:
		buf.WriteString("interpret")
	case markerIgnore:
		buf.WriteString("ignore")
	default:
		buf.WriteString("loop@")
		buf.WriteString(strconv.Itoa(int(m)))
	}
}

func (dump *vmDumper) dumpHeap() {
	live, cells := dump.vm.HeapStats()
	fmt.Fprintf(dump.out, "# Heap @%v live: %v cells: %v\n", dump.vm.heapApex, live, cells)
	if dump.addrWidth == 0 {
		dump.addrWidth = len(strconv.Itoa(int(dump.vm.heapApex)))
	}
	var buf strings.Builder
	for i := uint(0); i < dump.vm.heapCells; i++ {
		r := dump.vm.cellRef(i)
		kind := dump.vm.kind(r)
		if kind == kindEmpty {
			continue
		}
		fmt.Fprintf(&buf, "  @%*v %v refs:%v", dump.addrWidth, uint16(r), kind, dump.vm.refCount(r))
		switch kind {
		case kindInteger:
			fmt.Fprintf(&buf, " %v", dump.vm.primary(r))
		case kindList:
			fmt.Fprintf(&buf, " elem:@%v next:@%v", uint16(dump.vm.primary(r)), uint16(dump.vm.link(r)))
		}
		buf.WriteByte('\n')
		io.WriteString(dump.out, buf.String())
		buf.Reset()
	}
}

// formatValue writes a short rendering of a value: integers in decimal,
// lists as their element references with any text they spell.
func (dump *vmDumper) formatValue(buf fmtBuf, r ref) {
	fmt.Fprintf(buf, "@%v ", uint16(r))
	switch kind := dump.vm.kind(r); kind {
	case kindInteger:
		buf.WriteString(strconv.Itoa(int(dump.vm.primary(r))))
	case kindList:
		buf.WriteByte('(')
		n := 0
		for cell := r; cell != 0 && n < 16; cell = dump.vm.link(cell) {
			if n > 0 {
				buf.WriteByte(' ')
			}
			elem := ref(dump.vm.primary(cell))
			if elem != 0 && dump.vm.kind(elem) == kindInteger {
				buf.WriteString(strconv.Itoa(int(dump.vm.primary(elem))))
			} else {
				fmt.Fprintf(buf, "@%v", uint16(elem))
			}
			n++
		}
		buf.WriteByte(')')
	default:
		buf.WriteString(kind.String())
	}
}
