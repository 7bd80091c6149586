// Package image1bit provides a 1-bit monochrome image format for the SSD1306 display controller.
//
// The SSD1306 stores 8 vertical pixels per byte. A 128x64 panel has 8 pages of
// 128 bytes each.
//
// Memory layout example for the first column of a page:
//
//	Rows:  0 1 2 3 4 5 6 7
//	Bits:  1 0 0 0 0 0 0 1
//	Byte:  0x81 (bit 0 = row 0, bit 7 = row 7)
//
// This package provides:
//
// - Bit: a color type with two values, On and Off
// - BitModel: a color model thresholding standard Go colors to Bit
// - VerticalLSB: a draw.Image implementation matching the SSD1306 RAM layout
//
// Example usage:
//
//	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
//	img.SetBit(10, 20, image1bit.On)
//	draw.Draw(img, img.Bounds(), image.NewUniform(image1bit.Off), image.Point{}, draw.Src)
package image1bit
