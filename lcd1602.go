/*
Copyright 2024 Tim St. Pierre
Controls a 1602 character LCD display using I2C backpack
Thanks to Dave Cheney for figuring out the registers!
*/

// Package lcd1602 drives a 2x16 HD44780 character LCD wired to a PCF8574 I²C
// backpack. The controller runs in 4-bit mode and is only ever written to:
// there is no busy flag polling, every operation waits out the controller's
// worst case execution time instead.
//
// All operations block and take a context; none are safe for concurrent use.
package lcd1602

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
)

// DefaultAddress is the backpack's 7-bit address, 0x4E in 8-bit notation.
const DefaultAddress = 0x27

const (
	// Commands
	CMD_Reset           = 0x30
	CMD_Four_Bit        = 0x20
	CMD_Function_Set    = 0x28 // 4-bit, 2 lines, 5x8 dots
	CMD_Display_On      = 0x0C // cursor off, blink off
	CMD_Clear_Display   = 0x01
	CMD_Entry_Increment = 0x06
	CMD_Return_Home     = 0x02
	CMD_Shift_Right     = 0x1C
	CMD_Shift_Left      = 0x18
	CMD_DDRAM_Row0      = 0x80
	CMD_DDRAM_Row1      = 0xC0
)

const (
	Rows = 2
	Cols = 16

	// ScrollSteps is the number of left shifts ScrollDisplayLeft performs,
	// one per DDRAM column of a line.
	ScrollSteps = 40
)

// Delays in milliseconds.
const (
	delayPowerOn = 50
	delayCommand = 1
	delayInit    = 100
	delayScroll  = 750
)

var initSequence = []struct {
	cmd   byte
	delay int
}{
	{CMD_Reset, 5},
	{CMD_Reset, 1},
	{CMD_Reset, 10},
	{CMD_Four_Bit, delayCommand},
	{CMD_Function_Set, delayCommand},
	{CMD_Display_On, delayCommand},
	{CMD_Clear_Display, delayCommand},
	{CMD_Entry_Increment, delayInit},
}

type Dev struct {
	c     conn.Conn
	opts  Opts
	sleep SleepFunc
	log   log.FieldLogger

	// pending carries the result of a transfer abandoned by transmit.
	pending chan error
}

func (d *Dev) String() string {
	return fmt.Sprintf("lcd1602{%s}", d.c)
}

// NewI2C returns a new device that communicates over I²C. The display is
// initialized before NewI2C returns.
//
// Use default options if nil is used.
func NewI2C(ctx context.Context, b i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	addr, err := opts.i2cAddr()
	if err != nil {
		return nil, err
	}
	if opts.BusSpeed != 0 {
		if err := b.SetSpeed(opts.BusSpeed); err != nil {
			return nil, fmt.Errorf("lcd1602 %#x: %w", addr, err)
		}
	}
	d := makeDev(&i2c.Dev{Bus: b, Addr: addr}, opts)
	d.log = d.log.WithField("addr", fmt.Sprintf("%#x", addr))
	if err := d.Init(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func makeDev(c conn.Conn, opts *Opts) *Dev {
	return &Dev{
		c:     c,
		opts:  *opts,
		sleep: opts.sleeper(),
		log:   opts.logger(),
	}
}

// Init runs the controller's power-on handshake: three reset pulses, the
// switch to 4-bit mode, then function set, display on, clear and entry mode.
// Each step waits out its worst case execution time.
//
// Init is the only recovery after a failed transfer.
func (d *Dev) Init(ctx context.Context) error {
	d.log.Info("Initializing display")
	if err := d.pause(ctx, delayPowerOn); err != nil {
		return err
	}
	for _, step := range initSequence {
		if err := d.command(ctx, step.cmd, step.delay); err != nil {
			return err
		}
	}
	return nil
}

// Halt clears the screen.
func (d *Dev) Halt() error {
	return d.Clear(context.Background())
}

// Clear blanks the display and returns the cursor home.
func (d *Dev) Clear(ctx context.Context) error {
	return d.command(ctx, CMD_Clear_Display, delayCommand)
}

// Home returns the cursor and the display window to the origin without
// touching the content.
func (d *Dev) Home(ctx context.Context) error {
	return d.command(ctx, CMD_Return_Home, delayCommand)
}

// SetCursor moves the cursor to row 0-1, col 0-15.
func (d *Dev) SetCursor(ctx context.Context, row, col int) error {
	if col < 0 || col >= Cols {
		return fmt.Errorf("%w: col %d", ErrInvalidCursorPosition, col)
	}
	var base byte
	switch row {
	case 0:
		base = CMD_DDRAM_Row0
	case 1:
		base = CMD_DDRAM_Row1
	default:
		return fmt.Errorf("%w: row %d", ErrInvalidCursorPosition, row)
	}
	return d.command(ctx, base|byte(col), delayCommand)
}

// SendChar writes c at the cursor. Only the low byte of c reaches the
// controller, which maps it through its own character ROM.
func (d *Dev) SendChar(ctx context.Context, c rune) error {
	return d.send(ctx, byte(c), Data)
}

// SendString writes s at the cursor, pausing after every character.
func (d *Dev) SendString(ctx context.Context, s string) error {
	for _, c := range s {
		if err := d.SendChar(ctx, c); err != nil {
			return err
		}
		if err := d.pause(ctx, delayCommand); err != nil {
			return err
		}
	}
	return nil
}

// SendInt writes n in base 10 at the cursor. Negative numbers are prefixed
// with '-'.
func (d *Dev) SendInt(ctx context.Context, n int) error {
	var mag uint64
	if n < 0 {
		if err := d.SendChar(ctx, '-'); err != nil {
			return err
		}
		// -(n+1) keeps math.MinInt in range.
		mag = uint64(-(n + 1)) + 1
	} else {
		mag = uint64(n)
	}

	digits := 0
	for tmp := mag; ; {
		digits++
		tmp /= 10
		if tmp == 0 {
			break
		}
	}
	str := make([]byte, digits)
	for i := digits - 1; i >= 0; i-- {
		str[i] = byte(mag%10) + '0'
		mag /= 10
	}
	for _, c := range str {
		if err := d.SendChar(ctx, rune(c)); err != nil {
			return err
		}
	}
	return d.pause(ctx, delayCommand)
}

// Print moves the cursor to row, col and writes s.
func (d *Dev) Print(ctx context.Context, row, col int, s string) error {
	if err := d.SetCursor(ctx, row, col); err != nil {
		return err
	}
	return d.SendString(ctx, s)
}

// Write implements io.Writer. Bytes are sent as-is with the same per
// character pause as SendString.
func (d *Dev) Write(buf []byte) (int, error) {
	ctx := context.Background()
	for i, c := range buf {
		if err := d.send(ctx, c, Data); err != nil {
			return i, err
		}
		if err := d.pause(ctx, delayCommand); err != nil {
			return i, err
		}
	}
	return len(buf), nil
}

// ShiftDisplayRight moves the visible window so the content appears one
// column further right. The cursor address and DDRAM are untouched.
func (d *Dev) ShiftDisplayRight(ctx context.Context) error {
	return d.command(ctx, CMD_Shift_Right, delayCommand)
}

// ShiftDisplayLeft is the mirror of ShiftDisplayRight.
func (d *Dev) ShiftDisplayLeft(ctx context.Context) error {
	return d.command(ctx, CMD_Shift_Left, delayCommand)
}

// ScrollDisplayLeft shifts the display left ScrollSteps times, 750ms apart,
// taking about 30 seconds. Cancel ctx to stop early; the window stays where
// the last completed shift left it.
func (d *Dev) ScrollDisplayLeft(ctx context.Context) error {
	for i := 0; i < ScrollSteps; i++ {
		if err := d.ShiftDisplayLeft(ctx); err != nil {
			return err
		}
		if err := d.pause(ctx, delayScroll); err != nil {
			return err
		}
	}
	return nil
}

var _ conn.Resource = &Dev{}
