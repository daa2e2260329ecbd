// SPDX-License-Identifier: GPL-2.0-only

package protocol

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/efficientgo/core/errors"
)

// MaxLineBytes bounds a single wire message. A line exceeding this is a
// protocol violation severe enough to warrant closing the connection with no
// response, per spec.md §6.
const MaxLineBytes = 1 << 20 // 1 MiB

// ErrLineTooLong is returned by Decoder.ReadCommand when a line exceeds MaxLineBytes.
var ErrLineTooLong = errors.New("line exceeds maximum command length")

// Decoder reads newline-delimited JSON commands off a connection.
type Decoder struct {
	scanner *bufio.Scanner
}

func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 4096), MaxLineBytes)
	return &Decoder{scanner: s}
}

// ReadCommand returns the next command. io.EOF signals a clean close.
func (d *Decoder) ReadCommand() (Command, error) {
	if !d.scanner.Scan() {
		if err := d.scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				return Command{}, ErrLineTooLong
			}
			return Command{}, err
		}
		return Command{}, io.EOF
	}
	line := d.scanner.Bytes()
	if len(line) == 0 {
		// Blank lines are tolerated as keepalive noise; caller loops again.
		return Command{}, errBlankLine
	}
	var cmd Command
	if err := json.Unmarshal(line, &cmd); err != nil {
		return Command{}, &DecodeError{Raw: string(line), Err: err}
	}
	return cmd, nil
}

var errBlankLine = errors.New("blank line")

// IsBlankLine reports whether err is the sentinel for an empty input line,
// which callers should silently skip rather than treat as a protocol error.
func IsBlankLine(err error) bool {
	return errors.Is(err, errBlankLine)
}

// DecodeError wraps a JSON decode failure with the offending raw line so the
// dispatcher can report a helpful error response.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string { return "invalid JSON: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Encoder writes responses and events as newline-terminated JSON.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) WriteResponse(r Response) error {
	return e.writeJSON(r)
}

func (e *Encoder) WriteEvent(ev Event) error {
	return e.writeJSON(ev)
}

func (e *Encoder) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal wire message")
	}
	b = append(b, '\n')
	_, err = e.w.Write(b)
	return err
}
