package main

import (
	"errors"
	"fmt"
	"io"
)

const maxCommandName = 32

func (vm *VM) peek(addr uint32) byte {
	c, err := vm.storage.ByteAt(addr)
	if errors.Is(err, io.EOF) {
		return 0
	}
	vm.haltif(err)
	return c
}

// lineAt returns the text of the line starting at addr, for diagnostics.
func (vm *VM) lineAt(addr uint32) string {
	var line []byte
	for c := vm.peek(addr); c != 0 && c != '\n' && len(line) < 80; c = vm.peek(addr) {
		line = append(line, c)
		addr++
	}
	return string(line)
}

// lineEnd returns the address of the newline or NUL ending the line at addr.
func (vm *VM) lineEnd(addr uint32) uint32 {
	for c := vm.peek(addr); c != 0 && c != '\n'; c = vm.peek(addr) {
		addr++
	}
	return addr
}

// scanName reads a command name, returning it and the address of the
// character that ended it. Overlong names are truncated; they can match
// neither a builtin nor a stored program.
func (vm *VM) scanName(at uint32) (string, uint32) {
	var name [maxCommandName]byte
	n := 0
	for c := vm.peek(at); c != ' ' && c != '\n' && c != 0; c = vm.peek(at) {
		if n < len(name) {
			name[n] = c
			n++
		}
		at++
	}
	return string(name[:n]), at
}

func (vm *VM) syntaxErrorf(at uint32, mess string, args ...interface{}) {
	vm.halt(syntaxError{at, vm.lineAt(vm.pc), fmt.Sprintf(mess, args...)})
}

// parseArgs parses space separated terms starting at at, binding vm.args;
// it returns the address of the newline or NUL ending the command.
func (vm *VM) parseArgs(at uint32) uint32 {
	vm.nargs = 0
	for {
		switch c := vm.peek(at); c {
		case '\n', 0:
			return at
		case ' ':
			at++
			continue
		}
		if vm.nargs >= maxArgs {
			vm.syntaxErrorf(at, "more than %v arguments", maxArgs)
		}
		at = vm.parseTerm(at, vm.nargs)
		vm.nargs++
		switch c := vm.peek(at); c {
		case ' ', '\n', 0:
		default:
			vm.syntaxErrorf(at, "unexpected %q after argument", c)
		}
	}
}

// parseTerm parses one term into argument position i: variables bind their
// frame slot directly, literals are built in the heap and held by the
// literal bank.
func (vm *VM) parseTerm(at uint32, i int) uint32 {
	switch c := vm.peek(at); {
	case c == '-' || isDigit(c):
		val, end := vm.parseInt(at)
		vm.bindLiteral(i, vm.newInteger(val))
		return end
	case 'A' <= c && c <= 'Z':
		vm.args[i] = vm.varSlot(vm.frame, int(c-'A'))
		return at + 1
	case c == '(':
		return vm.parseList(at+1, i)
	case c == '"':
		return vm.parseString(at+1, i)
	default:
		vm.syntaxErrorf(at, "unexpected %q", c)
		return at
	}
}

func (vm *VM) bindLiteral(i int, r ref) {
	s := vm.literalSlot(i)
	vm.setRef(s, r)
	vm.args[i] = s
}

// releaseLiterals clears the literal bank at the end of every tick.
func (vm *VM) releaseLiterals() {
	for i := 0; i < maxArgs; i++ {
		vm.setRef(vm.literalSlot(i), 0)
	}
	vm.nargs = 0
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

// parseInt reads an optionally negative decimal, wrapping to 16 bits.
func (vm *VM) parseInt(at uint32) (int16, uint32) {
	neg := false
	if vm.peek(at) == '-' {
		neg = true
		at++
	}
	var val int16
	for c := vm.peek(at); isDigit(c); c = vm.peek(at) {
		val = val*10 + int16(c-'0')
		at++
	}
	if neg {
		val = -val
	}
	return val, at
}

func (vm *VM) parseList(at uint32, i int) uint32 {
	var chain listBuilder
	for {
		switch c := vm.peek(at); c {
		case ')':
			if chain.head == 0 {
				chain.head = vm.newList(0)
			}
			vm.bindLiteral(i, chain.head)
			return at + 1
		case ' ':
			at++
			continue
		case '\n', 0:
			vm.syntaxErrorf(at, "unterminated list")
		}
		at = vm.parseTerm(at, i)
		chain.append(vm, vm.loadRef(vm.args[i]))
		switch c := vm.peek(at); c {
		case ' ', ')', '\n', 0:
		default:
			vm.syntaxErrorf(at, "unexpected %q in list", c)
		}
	}
}

func (vm *VM) parseString(at uint32, i int) uint32 {
	var chain listBuilder
	for {
		c := vm.peek(at)
		switch c {
		case '\n', 0:
			vm.syntaxErrorf(at, "unterminated string")
		case '"':
			chain.append(vm, vm.newInteger(0))
			vm.bindLiteral(i, chain.head)
			return at + 1
		}
		chain.append(vm, vm.newInteger(int16(c)))
		at++
	}
}

// parseDecimal converts text the way INT does: an optional leading minus
// then decimal digits, stopping at the first other character.
func parseDecimal(text []byte) int16 {
	neg := false
	if len(text) > 0 && text[0] == '-' {
		neg = true
		text = text[1:]
	}
	var val int16
	for _, c := range text {
		if !isDigit(c) {
			break
		}
		val = val*10 + int16(c-'0')
	}
	if neg {
		val = -val
	}
	return val
}
