//go:build linux

package gpio

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// BCM2835 GPIO register offsets, in 32-bit words from the start of the
// GPIO block. /dev/gpiomem maps the block at offset zero.
const (
	gpfsel0 = 0x00 / 4 // function select, 3 bits per pin, 10 pins per word
	gpset0  = 0x1c / 4 // pin output set
	gpclr0  = 0x28 / 4 // pin output clear
	gplev0  = 0x34 / 4 // pin level
)

const gpioMemDevice = "/dev/gpiomem"

// RpiChip drives Raspberry Pi GPIO through the memory-mapped BCM2835
// register block. All pin operations are single register accesses, safe to
// issue from the real-time output path.
type RpiChip struct {
	mem  []byte
	regs *[1024]uint32
}

// OpenRpiChip maps the GPIO register block. Requires access to
// /dev/gpiomem (the gpio group on Raspberry Pi OS).
func OpenRpiChip() (*RpiChip, error) {
	fd, err := unix.Open(gpioMemDevice, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("gpio: open %s: %w", gpioMemDevice, err)
	}
	defer unix.Close(fd)

	mem, err := unix.Mmap(fd, 0, 4096, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("gpio: mmap %s: %w", gpioMemDevice, err)
	}

	return &RpiChip{
		mem:  mem,
		regs: (*[1024]uint32)(unsafe.Pointer(&mem[0])),
	}, nil
}

// Close unmaps the register block. No pins may be used afterwards.
func (c *RpiChip) Close() error {
	if c.mem == nil {
		return nil
	}
	err := unix.Munmap(c.mem)
	c.mem = nil
	c.regs = nil
	return err
}

// Open returns a handle for the given Broadcom pin number.
func (c *RpiChip) Open(id PinID) (DigitalPin, error) {
	if id > 53 {
		return nil, fmt.Errorf("gpio: invalid Broadcom pin number %d", id)
	}
	return &rpiPin{chip: c, id: id}, nil
}

// setFunction programs the 3-bit function select field for a pin.
// 0b000 selects input, 0b001 output.
func (c *RpiChip) setFunction(id PinID, fn uint32) {
	reg := gpfsel0 + int(id)/10
	shift := (uint(id) % 10) * 3
	// Read-modify-write; fsel registers are shared between pins, so this
	// must not race with another writer. Pin ownership is exclusive but
	// adjacent pins share a register, hence the CAS loop.
	for {
		old := atomic.LoadUint32(&c.regs[reg])
		val := (old &^ (0x7 << shift)) | (fn << shift)
		if atomic.CompareAndSwapUint32(&c.regs[reg], old, val) {
			return
		}
	}
}

type rpiPin struct {
	chip *RpiChip
	id   PinID
}

func (p *rpiPin) MakeDigitalInput() {
	p.chip.setFunction(p.id, 0x0)
}

func (p *rpiPin) MakeDigitalOutput(initial Level) {
	p.DigitalWrite(initial)
	p.chip.setFunction(p.id, 0x1)
}

func (p *rpiPin) DigitalRead() Level {
	reg := gplev0 + int(p.id)/32
	return Level(atomic.LoadUint32(&p.chip.regs[reg])&(1<<(uint(p.id)%32)) != 0)
}

func (p *rpiPin) DigitalWrite(level Level) {
	// Set and clear have dedicated write-only registers, so no
	// read-modify-write is needed on the output path.
	reg := gpclr0
	if level == High {
		reg = gpset0
	}
	atomic.StoreUint32(&p.chip.regs[reg+int(p.id)/32], 1<<(uint(p.id)%32))
}

func (p *rpiPin) ID() PinID {
	return p.id
}
