// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package termscreen implements a monochrome display.Drawer that outputs to
// a terminal using ANSI color codes.
//
// It accepts the same bank layout as the ssd1306 package, so a frame can be
// previewed on the console while it is sent to the panel, or instead of it.
package termscreen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// DefaultOpts is a 128x64 white on black preview on stdout.
var DefaultOpts = Opts{
	W:   128,
	H:   64,
	On:  color.NRGBA{255, 255, 255, 255},
	Off: color.NRGBA{0, 0, 0, 255},
}

// Opts represents the options available for this display.
type Opts struct {
	// W and H are the size in pixels. H must be a multiple of 8.
	W, H int
	// Palette defaults to ansi256.Default.
	Palette *ansi256.Palette
	// On and Off are the colors of lit and unlit pixels.
	On, Off color.NRGBA
	// Out defaults to a colorable stdout.
	Out io.Writer

	_ struct{}
}

// Dev is a monochrome panel emulator that outputs to the console.
//
// Each frame is redrawn in place: after the first one the cursor is moved
// back up before drawing.
type Dev struct {
	w       io.Writer
	palette ansi256.Palette
	on, off string

	img    *image1bit.VerticalLSB
	buf    bytes.Buffer
	frames int
}

// New returns a Dev that displays at the console.
func New(opts *Opts) (*Dev, error) {
	if opts.W <= 0 || opts.H <= 0 || opts.H&7 != 0 {
		return nil, fmt.Errorf("termscreen: invalid size %dx%d", opts.W, opts.H)
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := opts.Out
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	d := &Dev{
		w:       w,
		palette: *p,
		img:     image1bit.NewVerticalLSB(image.Rect(0, 0, opts.W, opts.H)),
	}
	d.on = d.palette.Block(opts.On)
	d.off = d.palette.Block(opts.Off)
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("TermScreen{%s}", d.img.Rect.Max)
}

// Halt implements conn.Resource.
//
// It resets the terminal colors so the console is not corrupted.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\033[0m\n"))
	return err
}

// Write accepts the content of an image1bit.VerticalLSB.Pix of the same
// size and writes it to the console.
func (d *Dev) Write(pixels []byte) (int, error) {
	if len(pixels) != len(d.img.Pix) {
		return 0, fmt.Errorf("termscreen: invalid pixel stream length; expected %d bytes, got %d bytes", len(d.img.Pix), len(pixels))
	}
	copy(d.img.Pix, pixels)
	if err := d.refresh(); err != nil {
		return 0, err
	}
	return len(pixels), nil
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	return d.img.Rect
}

// Draw implements display.Drawer.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	draw.Src.Draw(d.img, r, src, sp)
	return d.refresh()
}

func (d *Dev) refresh() error {
	// This code is designed to minimize the amount of memory allocated per call.
	d.buf.Reset()
	if d.frames != 0 {
		fmt.Fprintf(&d.buf, "\033[%dA", d.img.Rect.Dy())
	}
	for y := 0; y < d.img.Rect.Dy(); y++ {
		_, _ = d.buf.WriteString("\r")
		for x := 0; x < d.img.Rect.Dx(); x++ {
			if d.img.BitAt(x, y) {
				_, _ = d.buf.WriteString(d.on)
			} else {
				_, _ = d.buf.WriteString(d.off)
			}
		}
		_, _ = d.buf.WriteString("\033[0m\n")
	}
	d.frames++
	_, err := d.buf.WriteTo(d.w)
	return err
}

var _ display.Drawer = &Dev{}
var _ fmt.Stringer = &Dev{}
