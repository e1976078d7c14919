// Copyright 2023 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ssd1306

import (
	"fmt"
	"image"
	"math"
	"math/rand"

	"github.com/GermanBionicSystems/oledtwi/font5x7"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// cellWidth is the width of a text cell: one glyph and one blank column.
const cellWidth = font5x7.Advance

// circleStep is the angle increment of Circle, in radians. Large circles are
// under-sampled and show gaps.
const circleStep = 0.025

// Clear zeroes the bitmap, marks every bank dirty and renders.
func (d *Dev) Clear() error {
	for i := range d.img.Pix {
		d.img.Pix[i] = 0
	}
	d.markAll()
	return d.Render()
}

// Noise fills the bitmap with random bytes from r and renders.
func (d *Dev) Noise(r *rand.Rand) error {
	_, _ = r.Read(d.img.Pix)
	d.markAll()
	return d.Render()
}

// SetPage replaces bank page with data, which must be Bounds().Dx() bytes.
// An out of range page is ignored.
func (d *Dev) SetPage(page int, data []byte) error {
	if page < 0 || page >= len(d.dirty) {
		return nil
	}
	stride := d.img.Stride
	if len(data) != stride {
		return fmt.Errorf("ssd1306: invalid page length; expected %d bytes, got %d bytes", stride, len(data))
	}
	copy(d.img.Pix[page*stride:], data)
	d.dirty[page] = true
	return nil
}

// SetPixel lights the pixel at (x, y). Coordinates outside the panel are
// ignored.
func (d *Dev) SetPixel(x, y int) {
	if !d.inside(x, y) {
		return
	}
	d.img.Pix[x+(y/8)*d.img.Stride] |= 1 << uint(y&7)
	d.dirty[y/8] = true
}

// Pixel reports whether the pixel at (x, y) is lit in the bitmap.
func (d *Dev) Pixel(x, y int) bool {
	if !d.inside(x, y) {
		return false
	}
	return d.img.Pix[x+(y/8)*d.img.Stride]&(1<<uint(y&7)) != 0
}

// Line draws a line from (x0, y0) to (x1, y1), both included.
//
// If any coordinate is outside the panel nothing is drawn, even the visible
// part. Both axes advance by a float32 increment accumulated over
// max(|dx|, |dy|) steps and each position is truncated to the pixel. The end
// point is plotted exactly, since the accumulated error may fall short of it.
func (d *Dev) Line(x0, y0, x1, y1 int) {
	if !d.inside(x0, y0) || !d.inside(x1, y1) {
		return
	}
	dx, dy := x1-x0, y1-y0
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		d.SetPixel(x0, y0)
		return
	}
	xinc, yinc := float32(dx)/float32(steps), float32(dy)/float32(steps)
	x, y := float32(x0), float32(y0)
	for i := 0; i < steps; i++ {
		d.SetPixel(int(x), int(y))
		x += xinc
		y += yinc
	}
	d.SetPixel(x1, y1)
}

// Circle plots the circle of center (cx, cy) and radius r at a fixed
// angular step. Points outside the panel are clipped.
func (d *Dev) Circle(cx, cy int, r float64) {
	for a := float32(0); a <= 2*math.Pi; a += circleStep {
		s, c := math.Sincos(float64(a))
		d.SetPixel(int(c*r+float64(cx)), int(s*r+float64(cy)))
	}
}

// Char copies the glyph for c into text cell (col, row). col and row wrap
// around Cols() and Banks(). Codes missing from the font render blank.
func (d *Dev) Char(col, row int, c byte) {
	col, row = wrap(col, d.cols), wrap(row, len(d.dirty))
	g := font5x7.Glyph(c)
	copy(d.img.Pix[row*d.img.Stride+col*cellWidth:], g[:])
	d.dirty[row] = true
}

// Text draws s one byte per cell from (col, row). Past the last column it
// continues on the next row, and past the last row it restarts at the top.
func (d *Dev) Text(col, row int, s string) {
	col, row = wrap(col, d.cols), wrap(row, len(d.dirty))
	for i := 0; i < len(s); i++ {
		d.Char(col, row, s[i])
		if col++; col >= d.cols {
			col = 0
			if row++; row >= len(d.dirty) {
				row = 0
			}
		}
	}
}

// DrawText draws s with its top left corner at pixel (x, y). Unlike Text it
// is not aligned on banks, and characters outside the panel are clipped.
func (d *Dev) DrawText(x, y int, s string) {
	f := font5x7.Face()
	drawer := font.Drawer{
		Dst:  d.img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: f,
		Dot:  fixed.P(x, y+f.Ascent),
	}
	copy(d.prev, d.img.Pix)
	drawer.DrawString(s)
	d.markChanged()
}

func (d *Dev) inside(x, y int) bool {
	return x >= 0 && x < d.rect.Dx() && y >= 0 && y < d.rect.Dy()
}

func wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
