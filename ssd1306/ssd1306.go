// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ssd1306

// The SSD1306 is a monochrome OLED controller with 128x64 bits of GDDRAM
// organised in 8 pages of 128 column bytes.
//
// https://cdn-shop.adafruit.com/datasheets/SSD1306.pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

const (
	_CHARGEPUMP          = 0x8D
	_COMSCANDEC          = 0xC8
	_COMSCANINC          = 0xC0
	_DEACTIVATE_SCROLL   = 0x2E
	_DISPLAYALLON_RESUME = 0xA4
	_DISPLAYOFF          = 0xAE
	_DISPLAYON           = 0xAF
	_INVERTDISPLAY       = 0xA7
	_MEMORYMODE          = 0x20
	_NORMALDISPLAY       = 0xA6
	_PAGESTARTADDRESS    = 0xB0
	_SEGREMAP            = 0xA0
	_SETCOMPINS          = 0xDA
	_SETCONTRAST         = 0x81
	_SETDISPLAYCLOCKDIV  = 0xD5
	_SETDISPLAYOFFSET    = 0xD3
	_SETHIGHCOLUMN       = 0x10
	_SETLOWCOLUMN        = 0x00
	_SETMULTIPLEX        = 0xA8
	_SETSEGMENTREMAP     = 0xA1
	_SETSTARTLINE        = 0x40
)

const (
	i2cCmd  = 0x00 // I²C transaction has stream of command bytes
	i2cData = 0x40 // I²C transaction has stream of data bytes
)

// Orientation selects the segment and COM remapping of the panel.
type Orientation byte

// Possible orientations.
const (
	// Up scans columns 0 to 127 and rows top to bottom.
	Up Orientation = iota
	// Down rotates the picture by 180°.
	Down
)

func (o Orientation) String() string {
	if o == Down {
		return "Down"
	}
	return "Up"
}

// FrameRate determines scrolling speed.
type FrameRate byte

// Possible frame rates. The value determines the number of refreshes between
// movement. The lower value, the higher speed.
const (
	FrameRate2   FrameRate = 7
	FrameRate3   FrameRate = 4
	FrameRate4   FrameRate = 5
	FrameRate5   FrameRate = 0
	FrameRate25  FrameRate = 6
	FrameRate64  FrameRate = 1
	FrameRate128 FrameRate = 2
	FrameRate256 FrameRate = 3
)

// ScrollDirection is used for scrolling.
type ScrollDirection byte

// Possible scrolling directions.
const (
	Left    ScrollDirection = 0x27
	Right   ScrollDirection = 0x26
	UpRight ScrollDirection = 0x29
	UpLeft  ScrollDirection = 0x2A
)

// DefaultOpts is the recommended default options, for a 128x64 panel.
var DefaultOpts = Opts{
	W:           128,
	H:           64,
	Addr:        0x3C,
	Orientation: Up,
	Sequential:  false,
	Contrast:    0x7F,
}

// Opts128x32 is the options for the common 128x32 panels.
var Opts128x32 = Opts{
	W:           128,
	H:           32,
	Addr:        0x3C,
	Orientation: Up,
	Sequential:  true,
	Contrast:    0x7F,
}

// Opts defines the options for the device.
type Opts struct {
	// W is the panel width, a multiple of 8 up to 128.
	W int
	// H is the panel height, a multiple of 8 up to 64. Each 8 rows form one
	// bank.
	H int
	// Addr is the I²C address of the display. 0 selects DefaultOpts.Addr.
	Addr uint16
	// Orientation is applied by Init.
	Orientation Orientation
	// Sequential corresponds to the Sequential/Alternative COM pin configuration
	// in the OLED panel hardware. Try toggling this if half the rows appear to be
	// missing on your display. Particularly on 32 pixel height displays.
	Sequential bool
	// Contrast is sent during initialization.
	Contrast byte
}

// NewI2C returns a Dev object that communicates over I²C to a SSD1306 display
// controller.
//
// The display is initialized, cleared and flushed before returning.
func NewI2C(b i2c.Bus, opts *Opts) (*Dev, error) {
	o := *opts
	if o.Addr == 0 {
		o.Addr = DefaultOpts.Addr
	}
	return New(&i2c.Dev{Bus: b, Addr: o.Addr}, &o)
}

// New returns a Dev object that sends its commands and data on c. Each Tx on
// c must be one bus transaction.
func New(c conn.Conn, opts *Opts) (*Dev, error) {
	if opts.W < 8 || opts.W > 128 || opts.W&7 != 0 {
		return nil, fmt.Errorf("ssd1306: invalid width %d", opts.W)
	}
	if opts.H < 8 || opts.H > 64 || opts.H&7 != 0 {
		return nil, fmt.Errorf("ssd1306: invalid height %d", opts.H)
	}
	rect := image.Rect(0, 0, opts.W, opts.H)
	d := &Dev{
		c:     c,
		opts:  *opts,
		rect:  rect,
		img:   image1bit.NewVerticalLSB(rect),
		prev:  make([]byte, opts.W*opts.H/8),
		dirty: make([]bool, opts.H/8),
		cols:  opts.W / cellWidth,
	}
	if err := d.Init(opts.Orientation); err != nil {
		return nil, err
	}
	return d, nil
}

// Dev is an open handle to the display controller.
//
// Drawing methods only modify the in-memory bitmap and mark the banks they
// touch as dirty. Render sends the dirty banks to the panel.
//
// Dev is not safe for concurrent use.
type Dev struct {
	c    conn.Conn
	opts Opts
	rect image.Rectangle

	// img is the bitmap. Its Pix is the GDDRAM layout: one bank of W column
	// bytes per 8 rows, bit 0 at the top.
	img *image1bit.VerticalLSB
	// prev is scratch space to detect the banks changed by Draw.
	prev []byte
	// dirty has one flag per bank; set when the bank differs from what the
	// panel last acknowledged.
	dirty []bool
	// cols is the number of text cells per bank.
	cols int

	scrolled bool
	halted   bool
}

func (d *Dev) String() string {
	return fmt.Sprintf("ssd1306.Dev{%s, %s}", d.c, d.rect.Max)
}

// ColorModel implements display.Drawer.
//
// It is a one bit color model, as implemented by image1bit.Bit.
func (d *Dev) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds implements display.Drawer. Min is guaranteed to be {0, 0}.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Banks returns the number of 8 pixel high banks.
func (d *Dev) Banks() int {
	return len(d.dirty)
}

// Cols returns the number of text cells per bank.
func (d *Dev) Cols() int {
	return d.cols
}

// Image returns the bitmap. It must be treated as read only; modify it
// through the drawing methods so dirty tracking stays accurate.
func (d *Dev) Image() *image1bit.VerticalLSB {
	return d.img
}

// Init replays the controller bring-up sequence for orientation o, then
// clears the panel.
func (d *Dev) Init(o Orientation) error {
	d.opts.Orientation = o
	if err := d.sendCommand(initCmd(&d.opts)); err != nil {
		return fmt.Errorf("ssd1306: init: %w", err)
	}
	return d.Clear()
}

func initCmd(opts *Opts) []byte {
	segRemap, comScan := byte(_SEGREMAP), byte(_COMSCANINC)
	if opts.Orientation == Down {
		segRemap, comScan = _SETSEGMENTREMAP, _COMSCANDEC
	}
	// See page 40.
	comPins := byte(0x02)
	if !opts.Sequential {
		comPins |= 0x10
	}
	// The order is mandated by the application note; page 64. The vendor
	// sequence goes out unchanged in a single command burst, except the
	// multiplex ratio: H-1 is 0x3F for 64 rows where the vendor sends 0xBF,
	// which also sets a reserved bit.
	return []byte{
		_SETMULTIPLEX, byte(opts.H - 1), // Multiplex ratio (number of lines to display)
		_SETDISPLAYOFFSET, 0x00, // Display offset; 0
		_SETSTARTLINE,        // Display start line; 0
		segRemap,             // Segment remap
		comScan,              // COM output scan direction
		_SETCOMPINS, comPins, // COM pins hardware configuration
		_SETCONTRAST, opts.Contrast,
		_DISPLAYALLON_RESUME,      // Display follows GDDRAM content
		_NORMALDISPLAY,            // 1 bit lit
		_SETDISPLAYCLOCKDIV, 0x80, // Power on reset oscillator settings
		_CHARGEPUMP, 0x14, // Enable charge pump regulator; page 62
		_DISPLAYON,
		_MEMORYMODE, 0x02, // Page addressing mode
	}
}

// Render sends every dirty bank to the panel: a page select command then
// the bank content in one data burst.
//
// A bank flag is only cleared once both transfers succeeded. On error the
// failing bank and the following dirty banks remain dirty, so the next call
// retries them.
func (d *Dev) Render() error {
	if d.scrolled {
		if err := d.StopScroll(); err != nil {
			return err
		}
	}
	stride := d.img.Stride
	for page, dirty := range d.dirty {
		if !dirty {
			continue
		}
		err := d.sendCommand([]byte{
			_PAGESTARTADDRESS | byte(page),
			_SETLOWCOLUMN,
			_SETHIGHCOLUMN,
		})
		if err != nil {
			return fmt.Errorf("ssd1306: render bank %d: %w", page, err)
		}
		if err := d.sendData(d.img.Pix[page*stride : (page+1)*stride]); err != nil {
			return fmt.Errorf("ssd1306: render bank %d: %w", page, err)
		}
		d.dirty[page] = false
	}
	return nil
}

// IsDirty reports whether any bank has changes not yet sent to the panel.
func (d *Dev) IsDirty() bool {
	for _, dirty := range d.dirty {
		if dirty {
			return true
		}
	}
	return false
}

// Draw implements display.Drawer.
//
// src is copied into the bitmap, only the banks whose bytes changed are
// marked dirty, then Render is called.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	if img, ok := src.(*image1bit.VerticalLSB); ok && r == d.rect && img.Rect == d.rect && sp.X == 0 && sp.Y == 0 {
		// Exact size, full frame, image1bit encoding: fast path!
		_, err := d.Write(img.Pix)
		return err
	}
	copy(d.prev, d.img.Pix)
	draw.Src.Draw(d.img, r, src, sp)
	d.markChanged()
	return d.Render()
}

// Write writes a buffer of pixels to the display.
//
// The format is unsual as each byte represent 8 vertical pixels at a time. The
// format is horizontal bands of 8 pixels high.
//
// This function accepts the content of image1bit.VerticalLSB.Pix.
func (d *Dev) Write(pixels []byte) (int, error) {
	if len(pixels) != len(d.img.Pix) {
		return 0, fmt.Errorf("ssd1306: invalid pixel stream length; expected %d bytes, got %d bytes", len(d.img.Pix), len(pixels))
	}
	copy(d.prev, d.img.Pix)
	copy(d.img.Pix, pixels)
	d.markChanged()
	if err := d.Render(); err != nil {
		return 0, err
	}
	return len(pixels), nil
}

// markChanged flags the banks that differ from d.prev.
func (d *Dev) markChanged() {
	stride := d.img.Stride
	for page := range d.dirty {
		x, y := page*stride, (page+1)*stride
		if !bytes.Equal(d.prev[x:y], d.img.Pix[x:y]) {
			d.dirty[page] = true
		}
	}
}

// Invert the display (black on white vs white on black).
//
// The bitmap is not modified.
func (d *Dev) Invert(blackOnWhite bool) error {
	b := []byte{_NORMALDISPLAY}
	if blackOnWhite {
		b[0] = _INVERTDISPLAY
	}
	return d.sendCommand(b)
}

// SetContrast changes the screen contrast.
func (d *Dev) SetContrast(level byte) error {
	return d.sendCommand([]byte{_SETCONTRAST, level})
}

// Scroll scrolls an horizontal band.
//
// Only one scrolling operation can happen at a time. The next Render stops
// it and resends the whole bitmap.
//
// Both startLine and endLine must be multiples of 8.
//
// Use -1 for endLine to extend to the bottom of the display.
func (d *Dev) Scroll(o ScrollDirection, rate FrameRate, startLine, endLine int) error {
	h := d.rect.Dy()
	if endLine == -1 {
		endLine = h
	}
	if startLine >= endLine {
		return fmt.Errorf("ssd1306: startLine (%d) must be lower than endLine (%d)", startLine, endLine)
	}
	if startLine&7 != 0 || startLine < 0 || startLine >= h {
		return fmt.Errorf("ssd1306: invalid startLine %d", startLine)
	}
	if endLine&7 != 0 || endLine < 0 || endLine > h {
		return fmt.Errorf("ssd1306: invalid endLine %d", endLine)
	}

	startPage := uint8(startLine / 8)
	endPage := uint8(endLine / 8)
	d.scrolled = true
	if o == Left || o == Right {
		// page 28
		// <op>, dummy, <start page>, <rate>,  <end page>, <dummy>, <dummy>, <ENABLE>
		return d.sendCommand([]byte{byte(o), 0x00, startPage, byte(rate), endPage - 1, 0x00, 0xFF, 0x2F})
	}
	// page 29
	// <op>, dummy, <start page>, <rate>,  <end page>, <offset>, <ENABLE>
	// page 30: 0xA3 permits to set rows for scroll area.
	return d.sendCommand([]byte{byte(o), 0x00, startPage, byte(rate), endPage - 1, 0x01, 0x2F})
}

// StopScroll stops any scrolling previously set. Scrolling shifts the panel
// memory, so every bank is marked dirty.
func (d *Dev) StopScroll() error {
	if err := d.sendCommand([]byte{_DEACTIVATE_SCROLL}); err != nil {
		return err
	}
	d.scrolled = false
	d.markAll()
	return nil
}

// Halt turns off the display.
//
// Sending any other command afterward reenables the display.
func (d *Dev) Halt() error {
	d.halted = false
	err := d.sendCommand([]byte{_DISPLAYOFF})
	if err == nil {
		d.halted = true
	}
	return err
}

// DisplayOn turns the display back on after Halt.
func (d *Dev) DisplayOn() error {
	if d.halted {
		return d.sendCommand(nil)
	}
	return d.sendCommand([]byte{_DISPLAYON})
}

func (d *Dev) markAll() {
	for i := range d.dirty {
		d.dirty[i] = true
	}
}

func (d *Dev) sendData(c []byte) error {
	if d.halted {
		// Transparently enable the display.
		if err := d.sendCommand(nil); err != nil {
			return err
		}
	}
	return d.c.Tx(append([]byte{i2cData}, c...), nil)
}

func (d *Dev) sendCommand(c []byte) error {
	if d.halted {
		// Transparently enable the display.
		c = append([]byte{_DISPLAYON}, c...)
	}
	if err := d.c.Tx(append([]byte{i2cCmd}, c...), nil); err != nil {
		return err
	}
	d.halted = false
	return nil
}

var _ display.Drawer = &Dev{}
