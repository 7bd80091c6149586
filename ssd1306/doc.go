// Package ssd1306 controls a SSD1306 OLED display via I²C or SPI.
//
// The SSD1306 is a monochrome OLED controller supporting up to 128×64 pixels.
// This driver implements the display.Drawer interface from periph.io and the
// drivers.Displayer interface from TinyGo.
//
// # Display Characteristics
//
// - 1 bit per pixel
// - 128×64 or 128×32 panels, any width up to 128
// - Adjustable contrast (0-255)
// - Display inversion and power save
// - Page-addressed RAM: 8 rows per byte, see package image1bit
//
// # Hardware Connection
//
// I²C panels only need SCL and SDA. SPI panels come in two flavours:
//
//	Display Pin → 4-wire SPI      → 3-wire SPI
//	D0/SCK      → SPI Clock       → SPI Clock
//	D1/SDA      → SPI Data (MOSI) → SPI Data (MOSI)
//	DC          → GPIO            → GND (unused)
//	CS          → SPI Chip Select → SPI Chip Select
//	RES         → Optional GPIO   → Optional GPIO
//
// In 3-wire mode the data/command selection travels as a ninth bit ahead of
// every byte, so the port must accept 9-bit words.
//
// # Basic Usage
//
//	package main
//
//	import (
//		"image"
//		"log"
//
//		"github.com/flavioheleno/mcuscript/ssd1306"
//		"github.com/flavioheleno/mcuscript/ssd1306/image1bit"
//		"periph.io/x/conn/v3/i2c/i2creg"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		if _, err := host.Init(); err != nil {
//			log.Fatal(err)
//		}
//		bus, err := i2creg.Open("")
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer bus.Close()
//
//		dev, err := ssd1306.NewI2C(bus, &ssd1306.Opts{W: 128, H: 64})
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer dev.Halt()
//
//		img := image1bit.NewVerticalLSB(dev.Bounds())
//		img.SetBit(64, 32, image1bit.On)
//		if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// # Differential Updates
//
// Draw keeps a copy of what the display RAM holds and only transfers the
// smallest column/page window covering the changes.
package ssd1306
