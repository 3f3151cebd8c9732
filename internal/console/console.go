// Package console implements the device's display, cancel button and line
// editor on top of a host terminal or plain streams.
//
// On an interactive terminal PRINT waits for a single key press (Escape or
// Ctrl-C cancels the running program) and INPUT uses a readline-style editor.
// Otherwise output is written through without waiting, and input lines are
// read from a queue of streams, making scripted runs possible.
package console

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/peterh/liner"
	"golang.org/x/term"
	"golang.org/x/text/encoding/charmap"

	"github.com/jcorbin/gopocket/internal/fileinput"
	"github.com/jcorbin/gopocket/internal/flushio"
	"github.com/jcorbin/gopocket/internal/runeio"
)

// ErrCanceled is returned when the user presses the cancel key.
var ErrCanceled = errors.New("canceled")

const (
	keyInterrupt = 0x03
	keyEscape    = 0x1b

	// DefaultPrompt is shown by the interactive line editor.
	DefaultPrompt = "? "
)

// Console implements text rendering, cancel polling and line editing.
type Console struct {
	out      flushio.WriteFlusher
	charset  *charmap.Charmap
	prompt   string
	canceled atomic.Bool

	// interactive terminal state; zero values when not on a terminal
	keys *os.File
	tty  bool

	lines fileinput.Input
}

// Option customizes a Console.
type Option func(con *Console)

// WithCharset decodes device character codes through the given code page
// before rendering; the default is ISO 8859-1.
func WithCharset(cm *charmap.Charmap) Option {
	return func(con *Console) { con.charset = cm }
}

// WithPrompt sets the interactive INPUT prompt.
func WithPrompt(prompt string) Option {
	return func(con *Console) { con.prompt = prompt }
}

// WithTranscript copies everything rendered into w too.
func WithTranscript(w io.Writer) Option {
	return func(con *Console) {
		con.out = flushio.Tee(con.out, flushio.NewWriteFlusher(w))
	}
}

// New creates a console that renders to out and reads from in. Interactive
// behavior is enabled when both are terminals.
func New(in io.Reader, out io.Writer, opts ...Option) *Console {
	con := &Console{
		out:     flushio.NewWriteFlusher(out),
		charset: charmap.ISO8859_1,
		prompt:  DefaultPrompt,
	}
	if inf, ok := in.(*os.File); ok && term.IsTerminal(int(inf.Fd())) {
		if outf, ok := out.(*os.File); ok && term.IsTerminal(int(outf.Fd())) {
			con.keys = inf
			con.tty = true
		}
	}
	if !con.tty && in != nil {
		con.lines.Queue = append(con.lines.Queue, in)
	}
	for _, opt := range opts {
		opt(con)
	}
	return con
}

// Interactive returns true if the console is driving a terminal.
func (con *Console) Interactive() bool { return con.tty }

// Cancel raises the cancel signal; it is safe to call from any goroutine,
// such as a signal handler.
func (con *Console) Cancel() { con.canceled.Store(true) }

// PollCancel reports, and clears, any raised cancel signal.
func (con *Console) PollCancel() bool { return con.canceled.Swap(false) }

// RenderText writes text as one display line, then blocks until it is
// acknowledged. Returns ErrCanceled if the user cancels instead.
func (con *Console) RenderText(text []byte) error {
	if err := con.render(text); err != nil {
		return err
	}
	if !con.tty {
		return nil
	}
	key, err := con.readKey()
	if err != nil {
		return err
	}
	if key == keyEscape || key == keyInterrupt {
		return ErrCanceled
	}
	return nil
}

func (con *Console) render(text []byte) error {
	for _, c := range text {
		if _, err := runeio.WriteVisibleRune(con.out, con.charset.DecodeByte(c)); err != nil {
			return err
		}
	}
	if _, err := con.out.Write([]byte{'\n'}); err != nil {
		return err
	}
	return con.out.Flush()
}

func (con *Console) readKey() (byte, error) {
	fd := int(con.keys.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return 0, fmt.Errorf("entering raw mode: %w", err)
	}
	defer term.Restore(fd, state)
	var buf [1]byte
	if _, err := con.keys.Read(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// EditLine lets the user edit initial, returning the resulting text encoded
// in the device character set.
func (con *Console) EditLine(initial []byte) ([]byte, error) {
	if con.tty {
		return con.editInteractive(initial)
	}
	_, line, err := con.lines.ReadLine()
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return con.encode(string(line)), nil
}

func (con *Console) editInteractive(initial []byte) ([]byte, error) {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	var sb bytes.Buffer
	for _, c := range initial {
		sb.WriteRune(con.charset.DecodeByte(c))
	}

	line, err := ln.PromptWithSuggestion(con.prompt, sb.String(), -1)
	if errors.Is(err, liner.ErrPromptAborted) {
		return nil, ErrCanceled
	} else if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return con.encode(line), nil
}

// encode maps a host string into device character codes, replacing anything
// the code page cannot represent with '?'.
func (con *Console) encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		c, ok := con.charset.EncodeRune(r)
		if !ok || c == 0 {
			c = '?'
		}
		out = append(out, c)
	}
	return out
}
