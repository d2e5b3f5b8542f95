/*
Copyright 2024 Tim St. Pierre
Software model of a 1602 LCD behind a PCF8574 I2C backpack
*/

// Package lcdsim emulates an HD44780 2x16 character LCD wired to a PCF8574
// backpack, seen from the I²C bus.
//
// The model works on whole frames: each 4-byte write must carry one logical
// byte as two enable-strobed nibbles. Anything else is rejected, which makes
// the simulator a strict checker of the framing. The power-on 8-bit state of
// the controller is not modelled; the reset pulses of the handshake decode as
// plain function set instructions.
package lcdsim

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

const (
	// Visible window.
	Rows = 2
	Cols = 16

	// DDRAM columns per line.
	lineLen = 40

	frameSize = 4

	bitRS     = 0x01
	bitRW     = 0x02
	bitEnable = 0x04
	bitX      = 0x08
)

var (
	ErrFraming = errors.New("lcdsim: malformed frame")
	ErrNoRead  = errors.New("lcdsim: the backpack is write only")
)

// Bus is an i2c.Bus with a single simulated display on it.
type Bus struct {
	mu   sync.Mutex
	addr uint16

	ddram [Rows][lineLen]byte
	row   int
	col   int
	shift int

	increment  bool
	entryShift bool
	displayOn  bool
	cursorOn   bool
	blinkOn    bool
	twoLine    bool
	cgram      bool

	frames int
}

// New returns a bus with a display answering at the 7-bit address addr.
func New(addr uint16) *Bus {
	b := &Bus{addr: addr}
	b.clear()
	return b
}

func (b *Bus) String() string {
	return fmt.Sprintf("lcdsim(%#x)", b.addr)
}

// Tx implements i2c.Bus.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr != b.addr {
		return fmt.Errorf("lcdsim: no device at %#x", addr)
	}
	if len(r) != 0 {
		return ErrNoRead
	}
	if len(w)%frameSize != 0 {
		return fmt.Errorf("%w: %d bytes is not a whole number of frames", ErrFraming, len(w))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < len(w); i += frameSize {
		value, data, err := decode(w[i : i+frameSize])
		if err != nil {
			return err
		}
		b.frames++
		if data {
			b.write(value)
		} else {
			b.exec(value)
		}
	}
	return nil
}

// SetSpeed implements i2c.Bus. Any speed is accepted.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	return nil
}

// Close implements i2c.BusCloser.
func (b *Bus) Close() error {
	return nil
}

// Frames returns the number of frames accepted so far.
func (b *Bus) Frames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// Line returns the 16 characters currently visible on row, or an empty string
// when the display is switched off.
func (b *Bus) Line(row int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.line(row)
}

// Lines returns both visible rows.
func (b *Bus) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, Rows)
	for r := range out {
		out[r] = b.line(r)
	}
	return out
}

// Cursor returns the DDRAM position the next character goes to.
func (b *Bus) Cursor() (row, col int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.row, b.col
}

// Shift returns how many columns the window has moved left of the origin.
func (b *Bus) Shift() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shift
}

// DisplayOn reports the display control flags.
func (b *Bus) DisplayOn() (on, cursor, blink bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.displayOn, b.cursorOn, b.blinkOn
}

// TwoLine reports whether function set selected 2-line mode.
func (b *Bus) TwoLine() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.twoLine
}

func (b *Bus) line(row int) string {
	if !b.displayOn || row < 0 || row >= Rows {
		return ""
	}
	var sb strings.Builder
	for c := 0; c < Cols; c++ {
		sb.WriteByte(b.ddram[row][mod(c+b.shift, lineLen)])
	}
	return sb.String()
}

// decode checks a frame and returns the byte it carries.
func decode(f []byte) (byte, bool, error) {
	rs := f[0] & bitRS
	for i, v := range f {
		if v&bitX == 0 {
			return 0, false, fmt.Errorf("%w: byte %d %#02x drops the X bit", ErrFraming, i, v)
		}
		if v&bitRW != 0 {
			return 0, false, fmt.Errorf("%w: byte %d %#02x requests a read", ErrFraming, i, v)
		}
		if v&bitRS != rs {
			return 0, false, fmt.Errorf("%w: byte %d %#02x changes RS mid frame", ErrFraming, i, v)
		}
		strobe := i%2 == 0
		if (v&bitEnable != 0) != strobe {
			return 0, false, fmt.Errorf("%w: byte %d %#02x has the wrong enable level", ErrFraming, i, v)
		}
	}
	if f[0]&0xF0 != f[1]&0xF0 || f[2]&0xF0 != f[3]&0xF0 {
		return 0, false, fmt.Errorf("%w: nibble changed while latching % x", ErrFraming, f)
	}
	return f[0]&0xF0 | f[2]>>4, rs == bitRS, nil
}

// exec runs an instruction.
func (b *Bus) exec(v byte) {
	switch {
	case v&0x80 != 0:
		b.cgram = false
		b.setAddress(v & 0x7F)
	case v&0x40 != 0:
		b.cgram = true
	case v&0x20 != 0:
		b.twoLine = v&0x08 != 0
	case v&0x10 != 0:
		right := v&0x04 != 0
		if v&0x08 == 0 {
			b.advance(right)
		} else if right {
			b.shift = mod(b.shift-1, lineLen)
		} else {
			b.shift = mod(b.shift+1, lineLen)
		}
	case v&0x08 != 0:
		b.displayOn = v&0x04 != 0
		b.cursorOn = v&0x02 != 0
		b.blinkOn = v&0x01 != 0
	case v&0x04 != 0:
		b.increment = v&0x02 != 0
		b.entryShift = v&0x01 != 0
	case v&0x02 != 0:
		b.row, b.col, b.shift = 0, 0, 0
	case v == 0x01:
		b.clear()
	}
}

// write stores a character at the cursor and moves on.
func (b *Bus) write(v byte) {
	if b.cgram {
		return
	}
	b.ddram[b.row][b.col] = v
	b.advance(b.increment)
	if b.entryShift {
		if b.increment {
			b.shift = mod(b.shift+1, lineLen)
		} else {
			b.shift = mod(b.shift-1, lineLen)
		}
	}
}

// advance moves the cursor one position, wrapping from the end of one line to
// the start of the other in 2-line mode.
func (b *Bus) advance(forward bool) {
	if forward {
		b.col++
		if b.col == lineLen {
			b.col = 0
			b.nextLine()
		}
		return
	}
	b.col--
	if b.col < 0 {
		b.col = lineLen - 1
		b.nextLine()
	}
}

func (b *Bus) nextLine() {
	if b.twoLine {
		b.row = 1 - b.row
	}
}

// setAddress maps a DDRAM address, 0x00-0x27 for line 0 and 0x40-0x67 for
// line 1. Addresses in the gaps wrap within the line.
func (b *Bus) setAddress(a byte) {
	b.row = 0
	if a&0x40 != 0 {
		b.row = 1
	}
	b.col = int(a&0x3F) % lineLen
}

func (b *Bus) clear() {
	for r := range b.ddram {
		for c := range b.ddram[r] {
			b.ddram[r][c] = ' '
		}
	}
	b.row, b.col, b.shift = 0, 0, 0
	b.increment = true
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}

var _ i2c.BusCloser = &Bus{}
