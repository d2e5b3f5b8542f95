/*
Copyright 2024 Tim St. Pierre
Frame transfers to the I²C backpack
*/
package lcd1602

import (
	"context"
	"fmt"
	"time"
)

// send frames value and writes it to the backpack.
func (d *Dev) send(ctx context.Context, value byte, mode Mode) error {
	f := Frame(value, mode)
	d.log.Debugf("Writing %s %#02x % x", mode, value, f[:])
	if err := d.transmit(ctx, f[:]); err != nil {
		return fmt.Errorf("lcd1602: %s %#02x: %w", mode, value, err)
	}
	return nil
}

// transmit writes buf in a single bus transaction. The transfer is bounded by
// Opts.Timeout and abandoned if ctx is done first. An abandoned transfer is
// kept pending and the next call waits for it, under the same bounds, before
// starting its own so frames never overlap on the bus.
func (d *Dev) transmit(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var timeout <-chan time.Time
	if d.opts.Timeout > 0 {
		t := time.NewTimer(d.opts.Timeout)
		defer t.Stop()
		timeout = t.C
	}
	if d.pending != nil {
		select {
		case err := <-d.pending:
			d.pending = nil
			if err != nil {
				d.log.Debugf("Abandoned transfer finished: %v", err)
			}
		case <-timeout:
			return fmt.Errorf("%w: previous transfer still in flight", ErrTransportTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if timeout == nil && ctx.Done() == nil {
		return d.classify(d.c.Tx(buf, nil))
	}

	done := make(chan error, 1)
	go func() {
		done <- d.c.Tx(buf, nil)
	}()
	select {
	case err := <-done:
		return d.classify(err)
	case <-timeout:
		d.pending = done
		return fmt.Errorf("%w after %s", ErrTransportTimeout, d.opts.Timeout)
	case <-ctx.Done():
		d.pending = done
		return ctx.Err()
	}
}

func (d *Dev) classify(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransportFailure, err)
}

// pause applies a controller settle delay.
func (d *Dev) pause(ctx context.Context, ms int) error {
	if err := d.sleep(ctx, time.Duration(ms)*time.Millisecond); err != nil {
		return fmt.Errorf("lcd1602: delay %dms: %w", ms, err)
	}
	return nil
}

// command sends a command byte followed by a settle delay.
func (d *Dev) command(ctx context.Context, cmd byte, delayMS int) error {
	if err := d.send(ctx, cmd, Command); err != nil {
		return err
	}
	return d.pause(ctx, delayMS)
}
