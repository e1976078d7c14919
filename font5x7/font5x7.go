// Copyright 2023 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package font5x7 is a fixed width 5x7 bitmap font covering printable ASCII
// plus a "degrees Celsius" glyph at code 0x1F.
//
// Glyphs are stored as column bytes, least significant bit at the top, which
// is the native layout of page addressed monochrome controllers like the
// SSD1306: a glyph can be copied as is into a display bank.
package font5x7

import (
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/font/basicfont"
)

const (
	// Width is the number of columns of a glyph.
	Width = 5
	// Height is the number of rows of a glyph column. The last row is blank.
	Height = 8
	// Advance is the width of a character cell: the glyph plus one blank
	// column.
	Advance = Width + 1
	// First is the lowest code in the table.
	First = 0x1F
	// Last is the highest code in the table.
	Last = 0x7E
	// Degrees is the extension code rendering "°C".
	Degrees = 0x1F
)

// Glyph returns the columns for code c. Codes outside [First, Last] render
// as a space.
func Glyph(c byte) [Width]byte {
	if c < First || c > Last {
		c = ' '
	}
	var g [Width]byte
	i := int(c-First) * Width
	copy(g[:], table[i:i+Width])
	return g
}

// Face returns the font as a golang.org/x/image/font.Face, for use with
// font.Drawer at arbitrary pixel positions.
//
// The dot is on the baseline, 7 pixels below the top of the glyph. The
// returned value is shared and must not be modified.
func Face() *basicfont.Face {
	faceOnce.Do(func() {
		face = newFace()
	})
	return face
}

var (
	faceOnce sync.Once
	face     *basicfont.Face
)

func newFace() *basicfont.Face {
	n := Last - First + 1
	mask := image.NewAlpha(image.Rect(0, 0, Width, n*Height))
	for g := 0; g < n; g++ {
		for x := 0; x < Width; x++ {
			col := table[g*Width+x]
			for y := 0; y < Height; y++ {
				if col&(1<<uint(y)) != 0 {
					mask.SetAlpha(x, g*Height+y, color.Alpha{A: 0xFF})
				}
			}
		}
	}
	return &basicfont.Face{
		Advance: Advance,
		Width:   Width,
		Height:  Height,
		Ascent:  Height - 1,
		Descent: 1,
		Mask:    mask,
		Ranges: []basicfont.Range{
			{Low: First, High: Last + 1, Offset: 0},
			{Low: '\u2103', High: '\u2104', Offset: Degrees - First},
			// Unknown runes fall back to U+FFFD in basicfont; draw a space.
			{Low: '\ufffd', High: '\ufffe', Offset: ' ' - First},
		},
	}
}
