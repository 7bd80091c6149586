// Package ssd1306 controls a SSD1306 monochrome OLED display via I²C or SPI.
//
// The SSD1306 drives up to 128x64 pixels. Both 4-wire SPI (separate D/C line)
// and 3-wire SPI (9-bit words carrying the D/C bit) are supported.
//
// See the examples for how to use this package.
package ssd1306

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/flavioheleno/mcuscript/ssd1306/image1bit"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"
)

// DefaultAddr is the I²C address of most SSD1306 breakouts (SA0 low).
const DefaultAddr = 0x3C

// Opts is the configuration for the SSD1306 display.
type Opts struct {
	// Display dimensions in pixels
	W int // Width (default: 128, must be between 1 and 128)
	H int // Height (default: 64, must be a multiple of 8 and ≤64)

	// Rotation and mirroring
	Rotated       bool // 180° rotation
	Sequential    bool // Sequential COM pin configuration (128x32 panels)
	SwapTopBottom bool // Swap top/bottom display halves

	// I²C address (default: DefaultAddr). Ignored for SPI.
	Addr uint16

	// Optional hardware reset pin
	RST gpio.PinOut // Reset pin (optional, nil if not used)

	// Sleep times the reset pulse (default: time.Sleep)
	Sleep func(time.Duration)
}

type wiring uint8

const (
	wireI2C wiring = iota
	wireSPI4
	wireSPI3
)

// Dev is the device handle for the SSD1306 display.
type Dev struct {
	// Communication
	c    conn.Conn   // I²C device or SPI connection
	dc   gpio.PinOut // Data/Command pin, 4-wire SPI only
	rst  gpio.PinOut // Reset pin (optional)
	wire wiring

	// Display geometry
	rect image.Rectangle

	// Pixel buffers
	buffer []byte                 // What the display RAM currently holds
	next   *image1bit.VerticalLSB // Frame being composed

	// State
	halted bool
}

var (
	errHalted     = errors.New("ssd1306: halted")
	errBufferSize = errors.New("ssd1306: invalid buffer size")
	errInvalidDC  = errors.New("ssd1306: use nil for dc to use 3-wire mode, do not use gpio.INVALID")
)

var _ drivers.Displayer = (*Dev)(nil)

// NewI2C creates a new SSD1306 device connected via I²C.
//
// opts can be nil to use defaults (128x64 display at DefaultAddr).
func NewI2C(b i2c.Bus, opts *Opts) (*Dev, error) {
	opts, err := resolveOpts(opts)
	if err != nil {
		return nil, err
	}
	addr := opts.Addr
	if addr == 0 {
		addr = DefaultAddr
	}
	return newDev(&i2c.Dev{Bus: b, Addr: addr}, nil, wireI2C, opts)
}

// NewSPI creates a new SSD1306 device connected via SPI.
//
// With a dc pin the port is used as a 4-wire bus with 8-bit words. With a nil
// dc the port is used as a 3-wire bus with 9-bit words, the D/C bit being sent
// ahead of each byte.
//
// opts can be nil to use defaults (128x64 display).
func NewSPI(p spi.Port, dc gpio.PinOut, opts *Opts) (*Dev, error) {
	if dc == gpio.INVALID {
		return nil, errInvalidDC
	}
	opts, err := resolveOpts(opts)
	if err != nil {
		return nil, err
	}
	bits, wire := 8, wireSPI4
	if dc == nil {
		bits, wire = 9, wireSPI3
	}
	// SSD1306 is specified up to 10MHz serial clock; stay below it.
	c, err := p.Connect(8*physic.MegaHertz, spi.Mode0, bits)
	if err != nil {
		return nil, fmt.Errorf("ssd1306: %w", err)
	}
	return newDev(c, dc, wire, opts)
}

// resolveOpts applies defaults and validates options.
func resolveOpts(opts *Opts) (*Opts, error) {
	if opts == nil {
		opts = &Opts{W: 128, H: 64}
	}
	o := *opts
	if o.W == 0 {
		o.W = 128
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	if o.H == 0 {
		o.H = 64
	}
	if o.W < 0 || o.W > 128 {
		return nil, errors.New("ssd1306: width must be between 1 and 128")
	}
	if o.H < 0 || o.H%8 != 0 || o.H > 64 {
		return nil, errors.New("ssd1306: height must be a multiple of 8 between 8 and 64")
	}
	return &o, nil
}

func newDev(c conn.Conn, dc gpio.PinOut, wire wiring, opts *Opts) (*Dev, error) {
	d := &Dev{
		c:      c,
		dc:     dc,
		rst:    opts.RST,
		wire:   wire,
		rect:   image.Rect(0, 0, opts.W, opts.H),
		buffer: make([]byte, opts.W*opts.H/8),
	}
	if err := d.init(opts); err != nil {
		return nil, err
	}
	return d, nil
}

// init sends the initialization sequence to the display.
func (d *Dev) init(opts *Opts) error {
	// Hardware reset sequence (if RST pin is provided)
	if d.rst != nil {
		if err := d.rst.Out(gpio.Low); err != nil {
			return fmt.Errorf("ssd1306: failed to pull RST low: %w", err)
		}
		opts.Sleep(10 * time.Millisecond)

		if err := d.rst.Out(gpio.High); err != nil {
			return fmt.Errorf("ssd1306: failed to pull RST high: %w", err)
		}
		opts.Sleep(10 * time.Millisecond)
	}

	// Segment remap and COM scan direction encode the rotation.
	remap, scan := byte(0xA1), byte(0xC8)
	if opts.Rotated {
		remap, scan = 0xA0, 0xC0
	}
	comPins := byte(0x12)
	if opts.Sequential {
		comPins = 0x02
	}
	if opts.SwapTopBottom {
		comPins |= 0x20
	}

	cmds := []byte{
		0xAE,       // Display OFF
		0xD5, 0x80, // Clock divider and oscillator frequency
		0xA8, byte(opts.H - 1), // MUX ratio
		0xD3, 0x00, // Display offset
		0x40,       // Start line 0
		0x8D, 0x14, // Charge pump on
		0x20, 0x00, // Horizontal addressing mode
		remap,
		scan,
		0xDA, comPins, // COM pins hardware configuration
		0x81, 0xCF, // Contrast
		0xD9, 0xF1, // Pre-charge period
		0xDB, 0x40, // VCOMH deselect level
		0xA4, // Display follows RAM
		0xA6, // Normal display mode
		0x2E, // Deactivate scroll
	}
	if err := d.sendCommands(cmds); err != nil {
		return err
	}

	// Clear display RAM
	if err := d.writeRect(0, 0, d.rect.Dx(), d.rect.Dy()/8, make([]byte, len(d.buffer))); err != nil {
		return err
	}

	// Turn display ON
	return d.sendCommand(0xAF)
}

// sendCommand sends a single command byte.
func (d *Dev) sendCommand(cmd byte) error {
	return d.sendCommands([]byte{cmd})
}

// sendCommands sends a slice of command bytes.
func (d *Dev) sendCommands(cmds []byte) error {
	return d.send(cmds, false)
}

// sendData sends a slice of data bytes.
func (d *Dev) sendData(data []byte) error {
	return d.send(data, true)
}

func (d *Dev) send(b []byte, data bool) error {
	switch d.wire {
	case wireI2C:
		// Control byte: Co=0, D/C# selects command (0x00) or data (0x40).
		ctrl := byte(0x00)
		if data {
			ctrl = 0x40
		}
		return d.c.Tx(append([]byte{ctrl}, b...), nil)
	case wireSPI3:
		// 9-bit words, two bytes each, D/C# as the most significant bit.
		words := make([]byte, 0, 2*len(b))
		dcBit := byte(0)
		if data {
			dcBit = 1
		}
		for _, v := range b {
			words = append(words, dcBit, v)
		}
		return d.c.Tx(words, nil)
	default:
		level := gpio.Low
		if data {
			level = gpio.High
		}
		if err := d.dc.Out(level); err != nil {
			return err
		}
		return d.c.Tx(b, nil)
	}
}

// writeRect writes page data to a rectangular region of the display.
// x and width are in pixels, page and pages are in 8-row units.
func (d *Dev) writeRect(x, page, width, pages int, pixels []byte) error {
	commands := []byte{
		0x21, byte(x), byte(x + width - 1), // Column address
		0x22, byte(page), byte(page + pages - 1), // Page address
	}
	if err := d.sendCommands(commands); err != nil {
		return err
	}
	return d.sendData(pixels)
}

// ColorModel returns the color model of the display.
func (d *Dev) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds returns the image bounds of the display.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Write writes raw page data to the display in VerticalLSB format.
// The data must be exactly d.rect.Dx() * d.rect.Dy() / 8 bytes.
func (d *Dev) Write(pixels []byte) (int, error) {
	if d.halted {
		return 0, errHalted
	}
	if len(pixels) != len(d.buffer) {
		return 0, errBufferSize
	}
	if err := d.writeRect(0, 0, d.rect.Dx(), d.rect.Dy()/8, pixels); err != nil {
		return 0, err
	}
	copy(d.buffer, pixels)
	if d.next != nil {
		copy(d.next.Pix, pixels)
	}
	return len(pixels), nil
}

// Draw draws an image onto the display, sending only the pages and columns
// that changed since the last update.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	if d.halted {
		return errHalted
	}

	// Clip to display bounds
	dst = dst.Intersect(d.rect)
	if dst.Empty() {
		return nil
	}

	d.lazyNext()

	// Fast path: a full frame already in the display RAM layout
	if srcImg, ok := src.(*image1bit.VerticalLSB); ok && dst == d.rect && sp == (image.Point{}) && srcImg.Rect == d.rect {
		copy(d.next.Pix, srcImg.Pix)
	} else {
		draw.Draw(d.next, dst, src, sp, draw.Src)
	}
	return d.flush()
}

func (d *Dev) lazyNext() {
	if d.next == nil {
		d.next = image1bit.NewVerticalLSB(d.rect)
		copy(d.next.Pix, d.buffer)
	}
}

// flush sends the changed region of next to the display.
func (d *Dev) flush() error {
	minCol, maxCol, minPage, maxPage := d.calculateDiff()
	if minCol > maxCol {
		// No changes
		return nil
	}

	changedData := d.extractRegion(minCol, maxCol, minPage, maxPage)
	if err := d.writeRect(minCol, minPage, maxCol-minCol+1, maxPage-minPage+1, changedData); err != nil {
		return err
	}
	copy(d.buffer, d.next.Pix)
	return nil
}

// calculateDiff compares the displayed and next buffers to find the minimal
// changed region. Returns (minCol, maxCol, minPage, maxPage); minCol > maxCol
// when nothing changed.
func (d *Dev) calculateDiff() (minCol, maxCol, minPage, maxPage int) {
	width := d.rect.Dx()
	pages := d.rect.Dy() / 8

	minCol, maxCol = width, -1
	minPage, maxPage = pages, -1

	for p := 0; p < pages; p++ {
		start := p * width
		end := start + width
		if bytes.Equal(d.buffer[start:end], d.next.Pix[start:end]) {
			continue
		}
		if p < minPage {
			minPage = p
		}
		if p > maxPage {
			maxPage = p
		}
		for x := 0; x < width; x++ {
			if d.buffer[start+x] != d.next.Pix[start+x] {
				if x < minCol {
					minCol = x
				}
				if x > maxCol {
					maxCol = x
				}
			}
		}
	}
	return
}

// extractRegion extracts the page data for a rectangular region.
func (d *Dev) extractRegion(minCol, maxCol, minPage, maxPage int) []byte {
	width := maxCol - minCol + 1
	stride := d.rect.Dx()

	result := make([]byte, 0, width*(maxPage-minPage+1))
	for p := minPage; p <= maxPage; p++ {
		start := p*stride + minCol
		result = append(result, d.next.Pix[start:start+width]...)
	}
	return result
}

// Size implements drivers.Displayer.
func (d *Dev) Size() (x, y int16) {
	return int16(d.rect.Dx()), int16(d.rect.Dy())
}

// SetPixel implements drivers.Displayer. The pixel is only sent on Display.
func (d *Dev) SetPixel(x, y int16, c color.RGBA) {
	d.lazyNext()
	d.next.Set(int(x), int(y), c)
}

// Display implements drivers.Displayer.
func (d *Dev) Display() error {
	if d.halted {
		return errHalted
	}
	d.lazyNext()
	return d.flush()
}

// SetContrast sets the display contrast (0-255).
func (d *Dev) SetContrast(contrast byte) error {
	if d.halted {
		return errHalted
	}
	return d.sendCommands([]byte{0x81, contrast})
}

// Invert inverts the display colors (lit becomes dark and vice versa).
func (d *Dev) Invert(invert bool) error {
	if d.halted {
		return errHalted
	}
	mode := byte(0xA6) // Normal display
	if invert {
		mode = 0xA7 // Inverted display
	}
	return d.sendCommand(mode)
}

// SetPowerSave turns the panel off (true) or on (false) without losing RAM.
func (d *Dev) SetPowerSave(save bool) error {
	if d.halted {
		return errHalted
	}
	if save {
		return d.sendCommand(0xAE)
	}
	return d.sendCommand(0xAF)
}

// Halt powers off the display.
// After calling Halt, the display will not respond to further commands
// until the device is re-initialized.
func (d *Dev) Halt() error {
	d.halted = true
	return d.sendCommand(0xAE) // Display OFF
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("ssd1306.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}
