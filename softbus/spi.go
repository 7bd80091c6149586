package softbus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/flavioheleno/mcuscript/gpiobridge"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"
)

// SPI is a write-only SPI port driving the bridge SPI clock, data and CS
// slots. Words of 9 bits are passed as two bytes, most significant first,
// of which only bit 0 of the first byte is used.
type SPI struct {
	mu        sync.Mutex
	d         Dispatcher
	cs        bool
	connected bool
}

var _ spi.PortCloser = (*SPI)(nil)

// NewSPI returns a port. useCS frames each transfer with the CS line.
func NewSPI(d Dispatcher, useCS bool) *SPI {
	return &SPI{d: d, cs: useCS}
}

func (s *SPI) String() string {
	return "softbus.SPI"
}

// Close implements spi.PortCloser.
func (s *SPI) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

// LimitSpeed implements spi.PortCloser. The clock rate is set by the bridge
// delays, so it is accepted and ignored.
func (s *SPI) LimitSpeed(f physic.Frequency) error {
	if f <= 0 {
		return errors.New("softbus: invalid SPI speed")
	}
	return nil
}

// Connect implements spi.Port. Only modes 0 and 3, MSB first, with 8 or 9
// bits per word are supported.
func (s *SPI) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if bits != 8 && bits != 9 {
		return nil, fmt.Errorf("softbus: unsupported word size %d", bits)
	}
	if mode&spi.LSBFirst != 0 {
		return nil, errors.New("softbus: LSB first is not supported")
	}
	m := mode & spi.Mode3
	if m != spi.Mode0 && m != spi.Mode3 {
		return nil, fmt.Errorf("softbus: unsupported mode %s", m)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil, errors.New("softbus: Connect cannot be called twice")
	}
	s.connected = true
	c := &spiConn{
		d:     s.d,
		bits:  bits,
		idle:  m == spi.Mode3,
		useCS: s.cs && mode&spi.NoCS == 0,
	}
	// The bridge init leaves every line high; the first pulse needs the
	// clock at its idle level to produce an edge.
	s.d.Dispatch(gpiobridge.MsgGPIOSPIClock, level(c.idle))
	return c, nil
}

type spiConn struct {
	mu    sync.Mutex
	d     Dispatcher
	bits  int
	idle  bool // clock idle level
	useCS bool
}

var _ drivers.SPI = (*spiConn)(nil)

func (c *spiConn) String() string {
	return fmt.Sprintf("softbus.SPI(%d bits)", c.bits)
}

func (c *spiConn) Duplex() conn.Duplex {
	return conn.Half
}

// Tx implements conn.Conn.
func (c *spiConn) Tx(w, r []byte) error {
	if len(r) != 0 {
		return ErrReadUnsupported
	}
	if c.bits == 9 && len(w)%2 != 0 {
		return errors.New("softbus: 9-bit words need an even number of bytes")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.chipSelect(true)
	if c.bits == 9 {
		for i := 0; i < len(w); i += 2 {
			c.shift(uint16(w[i]&1)<<8|uint16(w[i+1]), 9)
		}
	} else {
		for _, v := range w {
			c.shift(uint16(v), 8)
		}
	}
	c.chipSelect(false)
	return nil
}

// TxPackets implements spi.Conn.
func (c *spiConn) TxPackets(p []spi.Packet) error {
	for i := range p {
		if err := c.Tx(p[i].W, p[i].R); err != nil {
			return err
		}
	}
	return nil
}

// Transfer implements drivers.SPI. Nothing is read back, 0 is returned.
func (c *spiConn) Transfer(b byte) (byte, error) {
	if c.bits != 8 {
		return 0, errors.New("softbus: Transfer needs 8-bit words")
	}
	return 0, c.Tx([]byte{b}, nil)
}

func (c *spiConn) chipSelect(active bool) {
	if !c.useCS {
		return
	}
	c.d.Dispatch(gpiobridge.MsgGPIOCS, level(!active))
}

// shift sends the n low bits of v, most significant first. Data is set
// before each clock pulse and sampled on its trailing edge.
func (c *spiConn) shift(v uint16, n int) {
	for i := n - 1; i >= 0; i-- {
		c.d.Dispatch(gpiobridge.MsgGPIOSPIData, level(v&(1<<uint(i)) != 0))
		c.d.Dispatch(gpiobridge.MsgGPIOSPIClock, level(!c.idle))
		c.d.Dispatch(gpiobridge.MsgDelayNano, 1)
		c.d.Dispatch(gpiobridge.MsgGPIOSPIClock, level(c.idle))
	}
}
