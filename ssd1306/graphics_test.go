// Copyright 2023 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ssd1306

import (
	"bytes"
	"testing"

	"github.com/GermanBionicSystems/oledtwi/font5x7"
	"github.com/google/go-cmp/cmp"
)

func countLit(d *Dev) int {
	n := 0
	for _, b := range d.img.Pix {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}

func snapshot(d *Dev) ([]byte, []bool) {
	return append([]byte(nil), d.img.Pix...), append([]bool(nil), d.dirty...)
}

func assertUnchanged(t *testing.T, d *Dev, pix []byte, dirty []bool) {
	t.Helper()
	if !bytes.Equal(pix, d.img.Pix) {
		t.Fatal("bitmap modified")
	}
	if diff := cmp.Diff(dirty, d.dirty); diff != "" {
		t.Fatalf("dirty flags (-want +got):\n%s", diff)
	}
}

func TestSetPixel(t *testing.T) {
	d, _ := newTestDev(t, &DefaultOpts)
	d.SetPixel(5, 13)
	if !d.Pixel(5, 13) {
		t.Fatal("pixel not lit")
	}
	if got := d.img.Pix[128+5]; got != 1<<5 {
		t.Fatalf("bank byte = %#x", got)
	}
	if diff := cmp.Diff(d.dirty, []bool{false, true, false, false, false, false, false, false}); diff != "" {
		t.Fatalf("dirty flags (-got +want):\n%s", diff)
	}
	// Idempotent.
	d.SetPixel(5, 13)
	if countLit(d) != 1 {
		t.Fatalf("%d pixels lit", countLit(d))
	}
}

func TestSetPixel_outOfRange(t *testing.T) {
	d, _ := newTestDev(t, &DefaultOpts)
	pix, dirty := snapshot(d)
	for _, p := range [][2]int{{-1, 0}, {0, -1}, {128, 0}, {0, 64}, {1000, 1000}} {
		d.SetPixel(p[0], p[1])
		if d.Pixel(p[0], p[1]) {
			t.Errorf("Pixel(%d, %d) lit", p[0], p[1])
		}
	}
	assertUnchanged(t, d, pix, dirty)
}

func TestLine(t *testing.T) {
	d, _ := newTestDev(t, &DefaultOpts)
	d.Line(0, 0, 10, 0)
	if n := countLit(d); n != 11 {
		t.Fatalf("horizontal line lit %d pixels", n)
	}
	for x := 0; x <= 10; x++ {
		if !d.Pixel(x, 0) {
			t.Fatalf("pixel %d not lit", x)
		}
	}
}

func TestLine_endpoints(t *testing.T) {
	for _, tc := range []struct {
		x0, y0, x1, y1 int
		lit            int
	}{
		{0, 0, 0, 0, 1},
		{0, 0, 0, 63, 64},
		{0, 0, 3, 6, 7},
		{10, 5, 0, 0, 11},
		{127, 63, 0, 0, 128},
	} {
		d, _ := newTestDev(t, &DefaultOpts)
		d.Line(tc.x0, tc.y0, tc.x1, tc.y1)
		if !d.Pixel(tc.x0, tc.y0) || !d.Pixel(tc.x1, tc.y1) {
			t.Errorf("Line(%d, %d, %d, %d) missed an endpoint", tc.x0, tc.y0, tc.x1, tc.y1)
		}
		if n := countLit(d); n != tc.lit {
			t.Errorf("Line(%d, %d, %d, %d) lit %d pixels, want %d", tc.x0, tc.y0, tc.x1, tc.y1, n, tc.lit)
		}
	}
}

// accumulatedLine rasterizes a line into a bank ordered bitmap of width w,
// stepping both axes with float32 increments.
func accumulatedLine(w, h, x0, y0, x1, y1 int) []byte {
	pix := make([]byte, w*h/8)
	set := func(x, y int) {
		pix[y/8*w+x] |= 1 << uint(y%8)
	}
	n := abs(x1 - x0)
	if m := abs(y1 - y0); m > n {
		n = m
	}
	if n == 0 {
		set(x0, y0)
		return pix
	}
	fx, fy := float32(x0), float32(y0)
	sx, sy := float32(x1-x0)/float32(n), float32(y1-y0)/float32(n)
	for ; n > 0; n-- {
		set(int(fx), int(fy))
		fx += sx
		fy += sy
	}
	set(x1, y1)
	return pix
}

func TestLine_accumulatedSteps(t *testing.T) {
	d, _ := newTestDev(t, &DefaultOpts)
	for x1 := 0; x1 < 128; x1++ {
		for y1 := 0; y1 < 64; y1++ {
			for i := range d.img.Pix {
				d.img.Pix[i] = 0
			}
			d.Line(5, 7, x1, y1)
			if want := accumulatedLine(128, 64, 5, 7, x1, y1); !bytes.Equal(d.img.Pix, want) {
				t.Fatalf("Line(5, 7, %d, %d) differs from the accumulated rasterization", x1, y1)
			}
		}
	}
}

func TestLine_outOfRange(t *testing.T) {
	d, _ := newTestDev(t, &DefaultOpts)
	pix, dirty := snapshot(d)
	d.Line(0, 0, 128, 0)
	d.Line(-1, 0, 10, 0)
	d.Line(0, 0, 10, 64)
	d.Line(5, -3, 5, 3)
	assertUnchanged(t, d, pix, dirty)
}

func TestCircle(t *testing.T) {
	d, _ := newTestDev(t, &DefaultOpts)
	d.Circle(64, 32, 10)
	for _, p := range [][2]int{{74, 32}, {64, 41}} {
		if !d.Pixel(p[0], p[1]) {
			t.Errorf("Pixel(%d, %d) not lit", p[0], p[1])
		}
	}
	if d.Pixel(64, 32) {
		t.Error("center lit")
	}
	if !d.IsDirty() {
		t.Fatal("not dirty")
	}
}

func TestCircle_clipped(t *testing.T) {
	d, _ := newTestDev(t, &DefaultOpts)
	d.Circle(0, 0, 10)
	if !d.Pixel(10, 0) || !d.Pixel(0, 9) {
		t.Fatal("visible quarter not drawn")
	}
	if d.dirty[7] {
		t.Fatal("bank 7 marked dirty")
	}
}

func TestChar(t *testing.T) {
	d, _ := newTestDev(t, &DefaultOpts)
	d.Char(1, 2, 'A')
	g := font5x7.Glyph('A')
	off := 2*128 + 1*cellWidth
	if diff := cmp.Diff(d.img.Pix[off:off+font5x7.Width], g[:]); diff != "" {
		t.Fatalf("glyph (-got +want):\n%s", diff)
	}
	if !d.dirty[2] {
		t.Fatal("bank 2 not dirty")
	}

	// Wrapped cell and unknown code.
	d.Char(1, 2, 'B')
	d.Char(1+d.Cols(), 2+d.Banks(), 0xC8)
	if !bytes.Equal(d.img.Pix[off:off+font5x7.Width], make([]byte, font5x7.Width)) {
		t.Fatal("unknown code not drawn blank")
	}
}

func TestText(t *testing.T) {
	d, _ := newTestDev(t, &DefaultOpts)
	if d.Cols() != 21 {
		t.Fatalf("Cols() = %d", d.Cols())
	}
	d.Text(20, 0, "AB")
	a, b := font5x7.Glyph('A'), font5x7.Glyph('B')
	if !bytes.Equal(d.img.Pix[120:125], a[:]) {
		t.Fatalf("A = % x", d.img.Pix[120:125])
	}
	if !bytes.Equal(d.img.Pix[128:133], b[:]) {
		t.Fatalf("B = % x", d.img.Pix[128:133])
	}
	if diff := cmp.Diff(d.dirty, []bool{true, true, false, false, false, false, false, false}); diff != "" {
		t.Fatalf("dirty flags (-got +want):\n%s", diff)
	}
}

func TestText_wrapsToTop(t *testing.T) {
	d, _ := newTestDev(t, &DefaultOpts)
	d.Text(20, 7, "AB")
	a, b := font5x7.Glyph('A'), font5x7.Glyph('B')
	if !bytes.Equal(d.img.Pix[7*128+120:7*128+125], a[:]) {
		t.Fatal("A not in the last cell")
	}
	if !bytes.Equal(d.img.Pix[0:5], b[:]) {
		t.Fatal("B not wrapped to the first cell")
	}
}

func TestDrawText(t *testing.T) {
	d, bus := newTestDev(t, &DefaultOpts)
	d.DrawText(0, 4, "A")
	if diff := cmp.Diff(d.dirty, []bool{true, true, false, false, false, false, false, false}); diff != "" {
		t.Fatalf("dirty flags (-got +want):\n%s", diff)
	}
	// The first column of 'A' is 0x7C: rows 2 to 6 of the glyph.
	for y := 6; y <= 10; y++ {
		if !d.Pixel(0, y) {
			t.Fatalf("Pixel(0, %d) not lit", y)
		}
	}
	if d.Pixel(0, 5) || d.Pixel(0, 11) {
		t.Fatal("glyph drawn outside its rows")
	}
	if len(bus.ops) != 0 {
		t.Fatal("DrawText rendered")
	}
}
