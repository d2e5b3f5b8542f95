/*
Copyright 2024 Tim St. Pierre
Errors reported by the lcd1602 driver
*/
package lcd1602

import "errors"

var (
	// ErrTransportFailure is returned when the bus did not accept a frame.
	// The bus error is wrapped alongside it.
	ErrTransportFailure = errors.New("lcd1602: transport failure")
	// ErrTransportTimeout is returned when a frame transfer did not complete
	// within Opts.Timeout. The controller state is undefined afterwards; run
	// Init again. Init does not reach the bus before the stuck transfer ends.
	ErrTransportTimeout = errors.New("lcd1602: transport timeout")
	// ErrInvalidCursorPosition is returned by SetCursor for a row outside 0-1
	// or a column outside 0-15.
	ErrInvalidCursorPosition = errors.New("lcd1602: invalid cursor position")
	// ErrUnsupportedAddress is returned by NewI2C for an address the
	// PCF8574 family cannot be strapped to.
	ErrUnsupportedAddress = errors.New("lcd1602: given address not supported by device")
)
