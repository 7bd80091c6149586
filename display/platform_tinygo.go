//go:build tinygo

package display

import (
	"errors"
	"fmt"
	"machine"

	"periph.io/x/conn/v3/display"
	"tinygo.org/x/drivers/ssd1306"
)

// FirmwarePlatform sets the display up on the microcontroller. Only hardware
// I²C on I2C0 is wired.
type FirmwarePlatform struct {
	Addr uint16 // default: 0x3C
}

func defaultPlatform() Platform {
	return &FirmwarePlatform{}
}

// Setup implements Platform.
func (p *FirmwarePlatform) Setup(cfg Config) (display.Drawer, error) {
	if cfg.Mode != ModeI2CHW {
		return nil, fmt.Errorf("display: mode %s is not available on this target", cfg.Mode)
	}
	bus := machine.I2C0
	if err := bus.Configure(machine.I2CConfig{Frequency: 400000}); err != nil {
		return nil, fmt.Errorf("display: %w", err)
	}
	addr := p.Addr
	if addr == 0 {
		addr = 0x3C
	}
	dev := ssd1306.NewI2C(bus)
	dev.Configure(ssd1306.Config{
		Address: addr,
		Width:   int16(cfg.W),
		Height:  int16(cfg.H),
	})
	dev.ClearDisplay()
	return &DisplayerPanel{D: dev}, nil
}

// Teardown implements Platform.
func (p *FirmwarePlatform) Teardown(panel display.Drawer) error {
	if panel == nil {
		return errors.New("display: no panel")
	}
	return nil
}
