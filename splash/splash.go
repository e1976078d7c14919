// Copyright 2023 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package splash rasterizes a boot screen for monochrome panels: a line of
// TrueType text in a rounded frame, with a row of dots underneath.
//
// The result is an image1bit.VerticalLSB so it can be handed to
// ssd1306.Dev.Draw and take the full frame fast path.
package splash

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// DefaultOpts is a 128x64 splash.
var DefaultOpts = Opts{
	W:    128,
	H:    64,
	Text: "periph",
	Size: 16,
	Dots: 8,
}

// Opts describes the splash screen.
type Opts struct {
	// W and H are the size in pixels.
	W, H int
	// Text is drawn centered in the upper part.
	Text string
	// Size is the font size in points, at 72 DPI.
	Size float64
	// Dots is the number of dots drawn below the frame. 0 disables them.
	Dots int
}

// Render draws the splash described by opts.
func Render(opts *Opts) (*image1bit.VerticalLSB, error) {
	if opts.W <= 0 || opts.H <= 0 {
		return nil, fmt.Errorf("splash: invalid size %dx%d", opts.W, opts.H)
	}
	if opts.Size <= 0 {
		return nil, errors.New("splash: invalid font size")
	}
	f, err := regular()
	if err != nil {
		return nil, err
	}
	w, h := float64(opts.W), float64(opts.H)
	dc := gg.NewContext(opts.W, opts.H)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	dc.SetRGB(1, 1, 1)
	dc.SetLineWidth(1)

	dc.SetFontFace(truetype.NewFace(f, &truetype.Options{Size: opts.Size}))
	text := opts.Text
	tw, th := dc.MeasureString(text)
	padding := 4.0
	top := h / 3
	if opts.Text != "" {
		dc.DrawRoundedRectangle((w-tw)/2-padding, top-th/2-padding, tw+2*padding, th+2*padding, padding)
		dc.Stroke()
		dc.DrawStringAnchored(text, w/2, top, 0.5, 0.5)
	}
	if opts.Dots > 0 {
		step := w / float64(opts.Dots+1)
		r := step / 4
		for i := 1; i <= opts.Dots; i++ {
			dc.DrawCircle(float64(i)*step, h*5/6, r)
		}
		dc.Fill()
	}

	img := image1bit.NewVerticalLSB(image.Rect(0, 0, opts.W, opts.H))
	draw.Draw(img, img.Bounds(), dc.Image(), image.Point{}, draw.Src)
	return img, nil
}

var (
	regularOnce sync.Once
	regularFont *truetype.Font
	regularErr  error
)

func regular() (*truetype.Font, error) {
	regularOnce.Do(func() {
		regularFont, regularErr = truetype.Parse(goregular.TTF)
		if regularErr != nil {
			regularErr = fmt.Errorf("splash: %w", regularErr)
		}
	})
	return regularFont, regularErr
}
