package display

import (
	"image"
	"image/color"

	"github.com/flavioheleno/mcuscript/ssd1306/image1bit"
	"periph.io/x/conn/v3/display"
	"tinygo.org/x/drivers"
)

// Platform brings a panel up for a Config and takes it down again.
type Platform interface {
	// Setup configures the interface described by cfg and returns the panel.
	Setup(cfg Config) (display.Drawer, error)
	// Teardown releases what Setup acquired for panel.
	Teardown(panel display.Drawer) error
}

// DisplayerPanel adapts a TinyGo drivers.Displayer to display.Drawer.
type DisplayerPanel struct {
	D drivers.Displayer
}

var _ display.Drawer = (*DisplayerPanel)(nil)

func (p *DisplayerPanel) String() string {
	return "display.DisplayerPanel"
}

// Halt implements conn.Resource. Displayers that can sleep are put to sleep.
func (p *DisplayerPanel) Halt() error {
	if s, ok := p.D.(interface{ Sleep(bool) error }); ok {
		return s.Sleep(true)
	}
	return nil
}

// ColorModel implements display.Drawer.
func (p *DisplayerPanel) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds implements display.Drawer.
func (p *DisplayerPanel) Bounds() image.Rectangle {
	w, h := p.D.Size()
	return image.Rect(0, 0, int(w), int(h))
}

// Draw implements display.Drawer by setting every pixel of the area and
// calling Display.
func (p *DisplayerPanel) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	dst = dst.Intersect(p.Bounds())
	for y := dst.Min.Y; y < dst.Max.Y; y++ {
		for x := dst.Min.X; x < dst.Max.X; x++ {
			c := color.RGBAModel.Convert(src.At(sp.X+x-dst.Min.X, sp.Y+y-dst.Min.Y)).(color.RGBA)
			p.D.SetPixel(int16(x), int16(y), c)
		}
	}
	return p.D.Display()
}
