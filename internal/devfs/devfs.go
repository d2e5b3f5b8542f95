/*
Copyright 2024 Tim St. Pierre
I²C bus on top of Linux i2c-dev nodes
*/

// Package devfs exposes a /dev/i2c-N character device as a periph i2c.Bus,
// for hosts where periph's own host drivers are not wanted.
package devfs

import (
	"fmt"
	"sync"

	expi2c "golang.org/x/exp/io/i2c"
	"golang.org/x/exp/io/i2c/driver"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// DefaultDevice is the bus the Raspberry Pi exposes on its header.
const DefaultDevice = "/dev/i2c-1"

// Bus opens one device handle per slave address on first use.
type Bus struct {
	name string
	o    driver.Opener

	mu   sync.Mutex
	devs map[uint16]*expi2c.Device
}

// Open returns a bus backed by the i2c-dev node at path.
func Open(path string) *Bus {
	return New(path, &expi2c.Devfs{Dev: path})
}

// New returns a bus backed by o.
func New(name string, o driver.Opener) *Bus {
	return &Bus{name: name, o: o, devs: map[uint16]*expi2c.Device{}}
}

func (b *Bus) String() string {
	return b.name
}

// Tx implements i2c.Bus. The write and the read are issued as two separate
// transactions.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	dev, err := b.device(addr)
	if err != nil {
		return err
	}
	if len(w) != 0 {
		if err := dev.Write(w); err != nil {
			return fmt.Errorf("devfs %s: write %#x: %w", b.name, addr, err)
		}
	}
	if len(r) != 0 {
		if err := dev.Read(r); err != nil {
			return fmt.Errorf("devfs %s: read %#x: %w", b.name, addr, err)
		}
	}
	return nil
}

// SetSpeed implements i2c.Bus. The clock of an i2c-dev node is set by the
// kernel driver, so only 0 is accepted.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	if f == 0 {
		return nil
	}
	return fmt.Errorf("devfs %s: bus speed is fixed by the kernel, cannot set %s", b.name, f)
}

// Close releases every device handle.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var first error
	for addr, dev := range b.devs {
		if err := dev.Close(); err != nil && first == nil {
			first = err
		}
		delete(b.devs, addr)
	}
	return first
}

func (b *Bus) device(addr uint16) (*expi2c.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if dev, ok := b.devs[addr]; ok {
		return dev, nil
	}
	dev, err := expi2c.Open(b.o, int(addr))
	if err != nil {
		return nil, fmt.Errorf("devfs %s: open %#x: %w", b.name, addr, err)
	}
	b.devs[addr] = dev
	return dev, nil
}

var _ i2c.BusCloser = &Bus{}
