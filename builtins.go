package main

import "strconv"

type opcode uint8

// The catalogue order is stable: opcode values match the device's
// builtin table.
const (
	opAssign     opcode = iota // =      A = B
	opAdd                      // +      A = B + C
	opSub                      // -      A = B - C
	opMul                      // *      A = B * C
	opDiv                      // /      A = B / C
	opMod                      // %      A = B % C
	opEqual                    // ==     A = 1 if B == C else 0
	opGreater                  // >      A = 1 if B > C else 0
	opNot                      // !      A = logical not B
	opInvert                   // ~      A = bitwise not B
	opOr                       // |      A = B | C
	opAnd                      // &      A = B & C
	opShiftLeft                // <<     A = B << C
	opShiftRight               // >>     A = B >> C
	opIf                       // IF     run to END if A is nonzero
	opEnd                      // END    close IF or WHL
	opWhile                    // WHL    loop to END while A is nonzero
	opBreak                    // BRK    leave the innermost WHL
	opReturn                   // RET    return from the current program
	opRand                     // RAND   A = random number below B
	opStr                      // STR    A = decimal text of B
	opInt                      // INT    A = integer parsed from text B
	opLen                      // LEN    A = length of list B
	opTrunc                    // TRUNC  cut list A to B elements
	opGet                      // GET    A = element C of list B
	opSet                      // SET    element B of list A = C
	opPrint                    // PRINT  show A
	opInput                    // INPUT  A = line of text from the user

	opMax
)

var builtinTable [opMax]func(vm *VM)
var builtinNames [opMax]string
var builtinCodes map[string]opcode

func (op opcode) String() string {
	if op < opMax {
		return builtinNames[op]
	}
	return "op(" + strconv.Itoa(int(op)) + ")"
}

func init() {
	builtinTable = [...]func(vm *VM){
		(*VM).assign,
		arith(func(a, b int16) int16 { return a + b }),
		arith(func(a, b int16) int16 { return a - b }),
		arith(func(a, b int16) int16 { return a * b }),
		(*VM).div,
		(*VM).mod,
		arith(func(a, b int16) int16 { return truth(a == b) }),
		arith(func(a, b int16) int16 { return truth(a > b) }),
		unary(func(a int16) int16 { return truth(a == 0) }),
		unary(func(a int16) int16 { return ^a }),
		arith(func(a, b int16) int16 { return a | b }),
		arith(func(a, b int16) int16 { return a & b }),
		arith(func(a, b int16) int16 { return a << uint16(b) }),
		arith(func(a, b int16) int16 { return a >> uint16(b) }),
		(*VM).ifThen,
		(*VM).end,
		(*VM).while,
		(*VM).brk,
		(*VM).ret,
		(*VM).random,
		(*VM).str,
		(*VM).integer,
		(*VM).length,
		(*VM).truncate,
		(*VM).get,
		(*VM).set,
		(*VM).print,
		(*VM).input,
	}

	builtinNames = [...]string{
		"=", "+", "-", "*", "/", "%", "==", ">", "!", "~", "|", "&", "<<", ">>",
		"IF", "END", "WHL", "BRK", "RET", "RAND", "STR", "INT", "LEN", "TRUNC",
		"GET", "SET", "PRINT", "INPUT",
	}

	builtinCodes = make(map[string]opcode, len(builtinNames))
	for op, name := range builtinNames {
		builtinCodes[name] = opcode(op)
	}
	// the device keyboard enters ~ as 0x9c
	builtinCodes["\x9c"] = opInvert
}

func truth(b bool) int16 {
	if b {
		return 1
	}
	return 0
}

func arith(f func(a, b int16) int16) func(vm *VM) {
	return func(vm *VM) {
		vm.setInt(f(vm.argInt(1), vm.argInt(2)))
	}
}

func unary(f func(a int16) int16) func(vm *VM) {
	return func(vm *VM) {
		vm.setInt(f(vm.argInt(1)))
	}
}

// setInt binds a new integer to the destination argument.
func (vm *VM) setInt(val int16) {
	dest := vm.arg(0)
	vm.setRef(dest, vm.newInteger(val))
}

func (vm *VM) assign() {
	vm.setRef(vm.arg(0), vm.argRef(1))
}

func (vm *VM) divisor(i int) int16 {
	d := vm.argInt(i)
	if d == 0 {
		vm.halt(errDivideByZero)
	}
	return d
}

func (vm *VM) div() {
	a, b := vm.argInt(1), vm.divisor(2)
	vm.setInt(a / b)
}

func (vm *VM) mod() {
	a, b := vm.argInt(1), vm.divisor(2)
	vm.setInt(a % b)
}

func (vm *VM) ifThen() {
	cond := vm.argInt(0)
	vm.pushMarker(markerInterpret)
	if cond == 0 {
		vm.skipping = true
	}
}

func (vm *VM) end() {
	if m := vm.popMarker(); m >= 0 {
		vm.next = uint32(m)
	}
}

func (vm *VM) while() {
	if vm.argInt(0) != 0 {
		vm.pushMarker(int32(vm.pc))
	} else {
		vm.pushMarker(markerInterpret)
		vm.skipping = true
	}
}

// brk skips to the END of the innermost loop: IF markers above it are set to
// be ignored, and the loop's own marker becomes a plain block marker.
func (vm *VM) brk() {
	for i := vm.markerCount() - 1; i >= 0; i-- {
		switch m := vm.marker(i); {
		case m == markerInterpret:
			vm.setMarker(i, markerIgnore)
		case m >= 0:
			vm.setMarker(i, markerInterpret)
			vm.skipping = true
			return
		}
	}
	vm.halt(errBreakOutside)
}

func (vm *VM) ret() { vm.quit = true }

func (vm *VM) random() {
	n := vm.divisor(1)
	vm.setInt(vm.rand.next() % n)
}

func (vm *VM) str() {
	text := strconv.AppendInt(nil, int64(vm.argInt(1)), 10)
	vm.setRef(vm.arg(0), vm.newText(text))
}

func (vm *VM) integer() {
	vm.setInt(parseDecimal(vm.textOf(vm.argRef(1))))
}

func (vm *VM) length() {
	n := int16(0)
	if list := vm.argRef(1); list != 0 {
		vm.expectList(list)
		for cell := list; cell != 0; cell = vm.link(cell) {
			if vm.isZero(ref(vm.primary(cell))) {
				break
			}
			n++
		}
	}
	vm.setInt(n)
}

func (vm *VM) truncate() {
	list := vm.argRef(0)
	vm.expectList(list)
	n := vm.argInt(1)
	if n <= 0 {
		vm.setRef(vm.primarySlot(list), 0)
		vm.setRef(vm.nextSlot(list), 0)
		return
	}
	// the walk stops on a zero element, so a text terminator is kept
	cell := list
	for i := int16(1); i < n; i++ {
		if vm.isZero(ref(vm.primary(cell))) {
			break
		}
		next := vm.link(cell)
		if next == 0 {
			break
		}
		cell = next
	}
	vm.setRef(vm.nextSlot(cell), 0)
}

func (vm *VM) get() {
	dest := vm.arg(0)
	list := vm.argRef(1)
	vm.expectList(list)
	cell := list
	for i := vm.argInt(2); i > 0; i-- {
		if cell = vm.link(cell); cell == 0 {
			vm.setRef(dest, vm.newInteger(0))
			return
		}
	}
	vm.setRef(dest, ref(vm.primary(cell)))
}

func (vm *VM) set() {
	list := vm.argRef(0)
	vm.expectList(list)
	val := vm.argRef(2)
	cell := list
	for i := vm.argInt(1); i > 0; i-- {
		next := vm.link(cell)
		if next == 0 {
			next = vm.newList(vm.newInteger(0))
			vm.setRef(vm.nextSlot(cell), next)
		}
		cell = next
	}
	vm.setRef(vm.primarySlot(cell), val)
}

func (vm *VM) print() {
	text := vm.textOf(vm.argRef(0))
	vm.logf("print", "%q", text)
	vm.interact(vm.display.RenderText(text))
}

func (vm *VM) input() {
	dest := vm.arg(0)
	line, err := vm.editor.EditLine(nil)
	if vm.interact(err) {
		vm.setRef(dest, vm.newText(line))
	}
}
