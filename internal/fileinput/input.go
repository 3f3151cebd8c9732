// Package fileinput reads lines sequentially through a queue of named input
// streams, tracking where each line came from.
package fileinput

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// Location names a line in an Input file.
type Location struct {
	Name string
	Line int
}

// Line combines a Location along with a bytes.Buffer for handling it.
type Line struct {
	Location
	bytes.Buffer
}

func (loc Location) String() string { return fmt.Sprintf("%v:%v", loc.Name, loc.Line) }
func (il Line) String() string      { return fmt.Sprintf("%v %q", il.Location, il.Buffer.String()) }

// Input implements sequential line reading through a Queue of one or more
// input streams. The last read line is retained to facilitate user feedback.
type Input struct {
	rr    *bufio.Reader
	in    io.Reader
	Queue []io.Reader
	Last  Line
	Scan  Line
}

// ReadLine reads the next line, without its line feed, moving on to the next
// queued stream at end of file. Returns io.EOF once every stream is
// exhausted and no partial line remains.
func (in *Input) ReadLine() (Location, []byte, error) {
	for {
		if in.rr == nil && !in.nextIn() {
			return in.Last.Location, nil, io.EOF
		}
		r, _, err := in.rr.ReadRune()
		if err == nil {
			if r == '\n' {
				in.nextLine()
				return in.Last.Location, in.Last.Bytes(), nil
			}
			if r != '\r' {
				in.Scan.WriteRune(r)
			}
			continue
		}
		if err != io.EOF {
			return in.Scan.Location, nil, err
		}
		partial := in.Scan.Len() > 0
		in.nextIn()
		if partial {
			return in.Last.Location, in.Last.Bytes(), nil
		}
	}
}

func (in *Input) nextLine() {
	in.Last.Reset()
	in.Last.Name = in.Scan.Name
	in.Last.Line = in.Scan.Line
	in.Last.Write(in.Scan.Bytes())
	in.Scan.Reset()
	in.Scan.Line++
}

func (in *Input) nextIn() bool {
	if in.rr != nil {
		in.nextLine()
		if cl, ok := in.in.(io.Closer); ok {
			cl.Close()
		}
		in.rr, in.in = nil, nil
	}
	if len(in.Queue) > 0 {
		r := in.Queue[0]
		in.Queue = in.Queue[1:]
		in.in = r
		in.rr = bufio.NewReader(r)
		in.Scan.Name = nameOf(r)
		in.Scan.Line = 1
	}
	return in.rr != nil
}

func nameOf(obj interface{}) string {
	if nom, ok := obj.(interface{ Name() string }); ok {
		return nom.Name()
	}
	return fmt.Sprintf("<unnamed %T>", obj)
}
