/*
Copyright 2024 Tim St. Pierre
4-bit framing of command and data bytes for the PCF8574 backpack
*/
package lcd1602

// Mode selects the controller register a byte is written to.
type Mode bool

const (
	Command Mode = false
	Data    Mode = true
)

func (m Mode) String() string {
	if m == Data {
		return "data"
	}
	return "command"
}

// Expander output bits, laid out [D7 D6 D5 D4 X E RW RS].
const (
	bitRS     = 0x01
	bitRW     = 0x02 // never set, the driver only writes
	bitEnable = 0x04
	bitX      = 0x08 // not wired to the LCD, must stay high

	ctrlCommandEnable = bitX | bitEnable         // 0x0C
	ctrlCommandLatch  = bitX                     // 0x08
	ctrlDataEnable    = bitX | bitEnable | bitRS // 0x0D
	ctrlDataLatch     = bitX | bitRS             // 0x09
	nibbleMask        = 0xF0
)

// FrameSize is the number of bus bytes needed for one logical byte.
const FrameSize = 4

// Frame encodes value into the four expander writes that clock it into the
// controller: high nibble with enable high then low, then the low nibble the
// same way. The expander drives D4-D7 from its top four outputs, so the low
// nibble is shifted up.
func Frame(value byte, mode Mode) [FrameSize]byte {
	high := value & nibbleMask
	low := (value << 4) & nibbleMask
	enable, latch := byte(ctrlCommandEnable), byte(ctrlCommandLatch)
	if mode == Data {
		enable, latch = ctrlDataEnable, ctrlDataLatch
	}
	return [FrameSize]byte{high | enable, high | latch, low | enable, low | latch}
}
