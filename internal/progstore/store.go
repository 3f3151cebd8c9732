// Package progstore implements the persistent program storage of the device:
// a fixed number of fixed-size slots, each holding a named, NUL-terminated
// program text.
//
// Slot layout:
//
//	[0]        occupied flag (0 free, 1 used)
//	[1:17]     name, NUL padded
//	[17]       NUL name terminator
//	[18:]      program text, NUL terminated
package progstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Reference geometry of the device's storage chip.
const (
	DefaultSlots    = 32
	DefaultSlotSize = 4096

	MaxNameLength = 16

	flagOffset = 0
	nameOffset = 1
	textOffset = nameOffset + MaxNameLength + 1

	slotFree = 0
	slotUsed = 1
)

// Storage errors.
var (
	ErrNotFound    = errors.New("program not found")
	ErrExists      = errors.New("program already exists")
	ErrFull        = errors.New("no free program slot")
	ErrBadName     = errors.New("invalid program name")
	ErrTextTooLong = errors.New("program text too long")
	ErrBadImage    = errors.New("invalid storage image")
)

// Entry describes one occupied slot.
type Entry struct {
	Slot int
	Name string
	Size int
}

// Store holds a storage image in memory; it is only persisted by an explicit
// WriteTo.
type Store struct {
	slotSize int
	image    []byte
}

// New returns an empty (formatted) store.
func New(slots, slotSize int) *Store {
	var st Store
	st.Format(slots, slotSize)
	return &st
}

// Format discards all programs, resizing the store to the given geometry.
// Non-positive values select the reference geometry.
func (st *Store) Format(slots, slotSize int) {
	if slots <= 0 {
		slots = DefaultSlots
	}
	if slotSize <= textOffset+1 {
		slotSize = DefaultSlotSize
	}
	st.slotSize = slotSize
	st.image = make([]byte, slots*slotSize)
}

// Slots returns the number of slots.
func (st *Store) Slots() int {
	if st.slotSize == 0 {
		return 0
	}
	return len(st.image) / st.slotSize
}

// SlotSize returns the size of each slot in bytes.
func (st *Store) SlotSize() int { return st.slotSize }

// MaxText returns the longest program text that fits in a slot.
func (st *Store) MaxText() int { return st.slotSize - textOffset - 1 }

// ByteAt returns the image byte at an absolute storage address.
func (st *Store) ByteAt(addr uint32) (byte, error) {
	if uint64(addr) >= uint64(len(st.image)) {
		return 0, fmt.Errorf("storage read @%v: %w", addr, io.EOF)
	}
	return st.image[addr], nil
}

// Lookup returns the absolute address of the named program's text.
func (st *Store) Lookup(name string) (start uint32, found bool) {
	if i := st.find(name); i >= 0 {
		return uint32(st.textStart(i)), true
	}
	return 0, false
}

// List returns all occupied slots in slot order.
func (st *Store) List() (entries []Entry) {
	for i, n := 0, st.Slots(); i < n; i++ {
		if st.used(i) {
			entries = append(entries, Entry{
				Slot: i,
				Name: st.name(i),
				Size: len(st.text(i)),
			})
		}
	}
	return entries
}

// Text returns a copy of the named program's text.
func (st *Store) Text(name string) ([]byte, error) {
	i := st.find(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return append([]byte(nil), st.text(i)...), nil
}

// Create makes a new empty program.
func (st *Store) Create(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if st.find(name) >= 0 {
		return fmt.Errorf("%w: %q", ErrExists, name)
	}
	i := st.free()
	if i < 0 {
		return ErrFull
	}
	st.writeHeader(i, name)
	st.writeText(i, nil)
	return nil
}

// Save writes the named program's text, creating it if necessary.
func (st *Store) Save(name string, text []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	if i := bytes.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}
	if len(text) > st.MaxText() {
		return fmt.Errorf("%w: %q is %v bytes, max %v", ErrTextTooLong, name, len(text), st.MaxText())
	}
	i := st.find(name)
	if i < 0 {
		if i = st.free(); i < 0 {
			return ErrFull
		}
		st.writeHeader(i, name)
	}
	st.writeText(i, text)
	return nil
}

// Delete frees the named program's slot.
func (st *Store) Delete(name string) error {
	i := st.find(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	slot := st.slot(i)
	for j := range slot {
		slot[j] = 0
	}
	slot[flagOffset] = slotFree
	return nil
}

// Rename changes a program's name, keeping its slot.
func (st *Store) Rename(oldName, newName string) error {
	if err := checkName(newName); err != nil {
		return err
	}
	i := st.find(oldName)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, oldName)
	}
	if j := st.find(newName); j >= 0 && j != i {
		return fmt.Errorf("%w: %q", ErrExists, newName)
	}
	st.writeHeader(i, newName)
	return nil
}

// WriteTo writes the raw storage image.
func (st *Store) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(st.image)
	return int64(n), err
}

// ReadFrom replaces the store contents with an image read from r; the image
// length must be a multiple of the current slot size.
func (st *Store) ReadFrom(r io.Reader) (int64, error) {
	if st.slotSize == 0 {
		st.Format(0, 0)
	}
	var buf bytes.Buffer
	n, err := buf.ReadFrom(r)
	if err != nil {
		return n, err
	}
	image := buf.Bytes()
	if len(image) == 0 || len(image)%st.slotSize != 0 {
		return n, fmt.Errorf("%w: %v bytes is not a multiple of slot size %v", ErrBadImage, len(image), st.slotSize)
	}
	for i := 0; i < len(image); i += st.slotSize {
		if flag := image[i+flagOffset]; flag != slotFree && flag != slotUsed {
			return n, fmt.Errorf("%w: slot %v has flag %#02x", ErrBadImage, i/st.slotSize, flag)
		}
	}
	st.image = image
	return n, nil
}

func checkName(name string) error {
	if len(name) == 0 || len(name) > MaxNameLength {
		return fmt.Errorf("%w: %q must be 1-%v bytes", ErrBadName, name, MaxNameLength)
	}
	if i := bytes.IndexAny([]byte(name), " \n\x00"); i >= 0 {
		return fmt.Errorf("%w: %q contains %q", ErrBadName, name, name[i])
	}
	return nil
}

func (st *Store) slot(i int) []byte {
	return st.image[i*st.slotSize : (i+1)*st.slotSize]
}

func (st *Store) used(i int) bool { return st.slot(i)[flagOffset] == slotUsed }

func (st *Store) textStart(i int) int { return i*st.slotSize + textOffset }

func (st *Store) name(i int) string {
	name := st.slot(i)[nameOffset : nameOffset+MaxNameLength]
	if j := bytes.IndexByte(name, 0); j >= 0 {
		name = name[:j]
	}
	return string(name)
}

func (st *Store) text(i int) []byte {
	text := st.slot(i)[textOffset:]
	if j := bytes.IndexByte(text, 0); j >= 0 {
		text = text[:j]
	}
	return text
}

func (st *Store) find(name string) int {
	for i, n := 0, st.Slots(); i < n; i++ {
		if st.used(i) && st.name(i) == name {
			return i
		}
	}
	return -1
}

func (st *Store) free() int {
	for i, n := 0, st.Slots(); i < n; i++ {
		if !st.used(i) {
			return i
		}
	}
	return -1
}

func (st *Store) writeHeader(i int, name string) {
	slot := st.slot(i)
	slot[flagOffset] = slotUsed
	header := slot[nameOffset:textOffset]
	n := copy(header, name)
	for j := n; j < len(header); j++ {
		header[j] = 0
	}
}

func (st *Store) writeText(i int, text []byte) {
	slot := st.slot(i)[textOffset:]
	n := copy(slot, text)
	for j := n; j < len(slot); j++ {
		slot[j] = 0
	}
}
