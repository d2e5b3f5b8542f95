/*
Copyright 2024 Tim St. Pierre
Options for lcd1602 character display
*/
package lcd1602

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
)

// SleepFunc blocks for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Opts struct {
	// The I²C slave address, 7-bit. 0x27 is the 0x4E write address of the
	// backpack in 8-bit notation.
	I2CAddr uint16
	// Upper bound for a single frame transfer. 0 disables the bound.
	Timeout time.Duration
	// Bus clock to request before talking to the display. 0 leaves the bus
	// speed alone.
	BusSpeed physic.Frequency
	// Delay primitive. nil uses a timer.
	Sleep SleepFunc
	// nil logs to the logrus standard logger.
	Logger log.FieldLogger
}

var DefaultOpts = Opts{
	I2CAddr: DefaultAddress,
	Timeout: 100 * time.Millisecond,
}

func (o *Opts) i2cAddr() (uint16, error) {
	switch o.I2CAddr {
	case 0:
		// Default address.
		return DefaultAddress, nil
	case 0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27:
		return o.I2CAddr, nil
	case 0x38, 0x39, 0x3A, 0x3B, 0x3C, 0x3D, 0x3E, 0x3F:
		// PCF8574A
		return o.I2CAddr, nil
	default:
		return 0, fmt.Errorf("%w: %#x", ErrUnsupportedAddress, o.I2CAddr)
	}
}

func (o *Opts) sleeper() SleepFunc {
	if o.Sleep != nil {
		return o.Sleep
	}
	return sleep
}

func (o *Opts) logger() log.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.StandardLogger()
}

// sleep is the default SleepFunc.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
