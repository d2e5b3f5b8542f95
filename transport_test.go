/*
Copyright 2024 Tim St. Pierre
*/
package lcd1602

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

var errNack = errors.New("no ack")

// failingBus accepts the first ok writes and fails the rest.
type failingBus struct {
	ok     int
	writes int
}

func (b *failingBus) String() string                    { return "failing" }
func (b *failingBus) SetSpeed(f physic.Frequency) error { return nil }

func (b *failingBus) Tx(addr uint16, w, r []byte) error {
	b.writes++
	if b.writes > b.ok {
		return errNack
	}
	return nil
}

// stuckBus never completes a transfer until released.
type stuckBus struct {
	release chan struct{}
}

func (b *stuckBus) String() string                    { return "stuck" }
func (b *stuckBus) SetSpeed(f physic.Frequency) error { return nil }

func (b *stuckBus) Tx(addr uint16, w, r []byte) error {
	<-b.release
	return nil
}

// gateBus holds back the transfer numbered hold until release is closed and
// records the order in which transfers complete.
type gateBus struct {
	hold    int
	release chan struct{}

	mu       sync.Mutex
	started  int
	inFlight int
	overlap  bool
	done     [][]byte
}

func (b *gateBus) String() string                    { return "gate" }
func (b *gateBus) SetSpeed(f physic.Frequency) error { return nil }

func (b *gateBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	b.started++
	n := b.started
	b.inFlight++
	if b.inFlight > 1 {
		b.overlap = true
	}
	b.mu.Unlock()
	if n == b.hold {
		<-b.release
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = append(b.done, append([]byte(nil), w...))
	b.inFlight--
	return nil
}

func (b *gateBus) stats() (started int, done [][]byte, overlap bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started, append([][]byte(nil), b.done...), b.overlap
}

func checkCompleted(t *testing.T, bus *gateBus, expected []i2ctest.IO) {
	t.Helper()
	_, done, overlap := bus.stats()
	if overlap {
		t.Error("transfers overlapped on the bus")
	}
	if len(done) != 8+len(expected) {
		t.Fatalf("expected %d completed transfers, got %d", 8+len(expected), len(done))
	}
	for i, op := range expected {
		if !bytes.Equal(done[8+i], op.W) {
			t.Errorf("transfer %d: expected % x, got % x", 8+i, op.W, done[8+i])
		}
	}
}

func TestTransportWaitsForTimedOutTransfer(t *testing.T) {
	bus := &gateBus{hold: 8 + 1, release: make(chan struct{})}
	s := &delays{}
	dev, err := NewI2C(context.Background(), bus, testOpts(s))
	if err != nil {
		t.Fatal(err)
	}
	dev.opts.Timeout = 10 * time.Millisecond
	if err := dev.SetCursor(context.Background(), 0, 5); !errors.Is(err, ErrTransportTimeout) {
		t.Fatalf("expected ErrTransportTimeout, got %v", err)
	}
	// The stuck frame holds back every later one.
	if err := dev.Clear(context.Background()); !errors.Is(err, ErrTransportTimeout) {
		t.Fatalf("expected ErrTransportTimeout, got %v", err)
	}
	if started, _, _ := bus.stats(); started != 8+1 {
		t.Errorf("expected no transfer to start while one is in flight, %d started", started)
	}

	close(bus.release)
	dev.opts.Timeout = time.Second
	if err := dev.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	checkCompleted(t, bus, frames(Command, 0x85, 0x30, 0x30, 0x30, 0x20, 0x28, 0x0C, 0x01, 0x06))
}

func TestTransportWaitsForCanceledTransfer(t *testing.T) {
	bus := &gateBus{hold: 8 + 1, release: make(chan struct{})}
	s := &delays{}
	dev, err := NewI2C(context.Background(), bus, testOpts(s))
	if err != nil {
		t.Fatal(err)
	}
	dev.opts.Timeout = 0
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := dev.SendChar(ctx, 'a'); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	// Waiting for the stuck frame is bounded by ctx.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	if err := dev.SendChar(ctx2, 'b'); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if started, _, _ := bus.stats(); started != 8+1 {
		t.Errorf("expected no transfer to start while one is in flight, %d started", started)
	}

	close(bus.release)
	if err := dev.SendChar(context.Background(), 'c'); err != nil {
		t.Fatal(err)
	}
	checkCompleted(t, bus, frames(Data, 'a', 'c'))
}

func TestTransportFailure(t *testing.T) {
	s := &delays{}
	_, err := NewI2C(context.Background(), &failingBus{}, testOpts(s))
	if !errors.Is(err, ErrTransportFailure) {
		t.Fatalf("expected ErrTransportFailure, got %v", err)
	}
	if !errors.Is(err, errNack) {
		t.Errorf("expected the bus error to be wrapped, got %v", err)
	}
	// Only the power-on delay ran.
	checkDelays(t, s, 50)
}

func TestTransportFailureMidString(t *testing.T) {
	bus := &failingBus{ok: 8 + 2}
	s := &delays{}
	dev, err := NewI2C(context.Background(), bus, testOpts(s))
	if err != nil {
		t.Fatal(err)
	}
	s.d = nil
	err = dev.SendString(context.Background(), "abcd")
	if !errors.Is(err, ErrTransportFailure) {
		t.Fatalf("expected ErrTransportFailure, got %v", err)
	}
	// No retry: the third character fails and nothing after it is sent.
	if bus.writes != 8+3 {
		t.Errorf("expected %d writes, got %d", 8+3, bus.writes)
	}
	checkDelays(t, s, 1, 1)

	n, err := dev.Write([]byte("xyz"))
	if n != 0 || !errors.Is(err, ErrTransportFailure) {
		t.Errorf("Write: expected 0 and ErrTransportFailure, got %d %v", n, err)
	}
}

func TestTransportTimeout(t *testing.T) {
	bus := &stuckBus{release: make(chan struct{})}
	defer close(bus.release)
	s := &delays{}
	opts := testOpts(s)
	opts.Timeout = 10 * time.Millisecond
	start := time.Now()
	_, err := NewI2C(context.Background(), bus, opts)
	if !errors.Is(err, ErrTransportTimeout) {
		t.Fatalf("expected ErrTransportTimeout, got %v", err)
	}
	if errors.Is(err, ErrTransportFailure) {
		t.Error("a timeout is not a failure")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not bound the transfer")
	}
}

func TestTransportCanceledWhileStuck(t *testing.T) {
	bus := &stuckBus{release: make(chan struct{})}
	defer close(bus.release)
	s := &delays{}
	opts := testOpts(s)
	opts.Timeout = 0
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := NewI2C(ctx, bus, opts)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestTransportNoTimeout(t *testing.T) {
	bus := &i2ctest.Record{}
	s := &delays{}
	opts := testOpts(s)
	opts.Timeout = 0
	dev, err := NewI2C(context.Background(), bus, opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.SetCursor(context.Background(), 0, 5); err != nil {
		t.Fatal(err)
	}
	checkOps(t, bus.Ops[8:], frames(Command, 0x85))
}
