package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jcorbin/gopocket/internal/console"
	"github.com/jcorbin/gopocket/internal/mem"
)

func (vm *VM) halt(err error) {
	// ignore any panics while logging
	func() {
		defer func() { recover() }()
		vm.logf("halt", "error: %v", err)
	}()

	panic(haltError{err})
}

func (vm *VM) haltif(err error) {
	if err != nil {
		var lim mem.LimitError
		if errors.As(err, &lim) {
			err = fmt.Errorf("%w: %v", errOutOfMemory, err)
		}
		vm.halt(err)
	}
}

type haltError struct{ error }

func (err haltError) Error() string {
	if err.error != nil {
		return fmt.Sprintf("halted: %v", err.error)
	}
	return "halted"
}
func (err haltError) Unwrap() error { return err.error }

// ErrCanceled is returned by Run when the cancel signal aborts a program.
// Display and LineEditor implementations return it (or wrap it) when the user
// cancels during PRINT or INPUT.
var ErrCanceled = console.ErrCanceled

var (
	errOutOfMemory    = errors.New("out of working memory")
	errDivideByZero   = errors.New("division by zero")
	errStackUnderflow = errors.New("END without IF or WHL")
	errBreakOutside   = errors.New("BRK outside of WHL")
	errRefOverflow    = errors.New("reference count overflow")
	errBadConfig      = errors.New("invalid configuration")
)

// IsOutOfMemory reports whether err is due to exhausting working memory.
func IsOutOfMemory(err error) bool { return errors.Is(err, errOutOfMemory) }

type syntaxError struct {
	at   uint32
	line string
	mess string
}

func (se syntaxError) Error() string {
	return fmt.Sprintf("syntax error @%v in %q: %v", se.at, se.line, se.mess)
}

type typeError struct {
	at   ref
	want cellKind
	got  cellKind
}

func (te typeError) Error() string {
	return fmt.Sprintf("type error: expected %v, got %v @%v", te.want, te.got, uint16(te.at))
}

type argumentError int

func (i argumentError) Error() string { return fmt.Sprintf("missing argument %v", int(i)) }

type undefinedError string

func (name undefinedError) Error() string { return fmt.Sprintf("undefined program %q", string(name)) }

type badRefError ref

func (r badRefError) Error() string { return fmt.Sprintf("invalid heap reference @%v", uint16(r)) }

type logging struct {
	logfn func(mess string, args ...interface{})

	markWidth int
}

func (log *logging) logf(mark, mess string, args ...interface{}) {
	if log.logfn == nil {
		return
	}
	if n := log.markWidth - len(mark); n > 0 {
		for _, r := range mark {
			mark = strings.Repeat(string(r), n) + mark
			break
		}
	} else if n < 0 {
		log.markWidth = len(mark)
	}
	if len(args) > 0 {
		mess = fmt.Sprintf(mess, args...)
	}
	log.logfn("%v %v", mark, mess)
}
