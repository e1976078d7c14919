// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package panelsink mirrors a monochrome panel over HTTP. Client requests get
// an initial snapshot of the bitmap and are updated further on every change.
//
// The protocol is the one IP cameras use for "MJPEG"
// (https://en.wikipedia.org/wiki/Motion_JPEG): an endless
// multipart/x-mixed-replace response, here with one PNG image per part.
//
// OLED panels are small, so frames are scaled up by an integer factor.
// Clients can override Opts.Scale with the "scale" URL parameter
// ("?scale=8").
package panelsink

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"net/http"
	"sync"

	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// MaxScale is the largest accepted scaling factor.
const MaxScale = 16

// DefaultOpts mirrors a 128x64 panel, white on black, 4 times larger.
var DefaultOpts = Opts{
	W:     128,
	H:     64,
	Scale: 4,
}

// Opts for panelsink devices.
type Opts struct {
	// W and H are the size of the bitmap in pixels.
	W, H int
	// Scale is the default scaling factor. 0 selects 1.
	Scale int
	// On and Off are the colors of lit and unlit pixels. nil selects white
	// and black.
	On, Off color.Color
}

// Dev is a display.Drawer that streams its content to HTTP clients.
type Dev struct {
	scale   int
	palette color.Palette

	mu       sync.Mutex
	img      *image1bit.VerticalLSB
	clients  map[*client]struct{}
	snapshot map[int][]byte
}

// New creates a new panelsink device instance. All pixels are off.
func New(opts *Opts) (*Dev, error) {
	if opts.W <= 0 || opts.H <= 0 {
		return nil, fmt.Errorf("panelsink: invalid size %dx%d", opts.W, opts.H)
	}
	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}
	if scale < 0 || scale > MaxScale {
		return nil, fmt.Errorf("panelsink: invalid scale %d", opts.Scale)
	}
	on, off := opts.On, opts.Off
	if on == nil {
		on = color.White
	}
	if off == nil {
		off = color.Black
	}
	return &Dev{
		scale:    scale,
		palette:  color.Palette{off, on},
		img:      image1bit.NewVerticalLSB(image.Rect(0, 0, opts.W, opts.H)),
		clients:  map[*client]struct{}{},
		snapshot: map[int][]byte{},
	}, nil
}

// String returns the name of the device.
func (d *Dev) String() string {
	return "PanelSink"
}

// Halt implements conn.Resource and terminates all running client requests
// asynchronously.
func (d *Dev) Halt() error {
	d.mu.Lock()
	d.terminateClientsLocked()
	d.mu.Unlock()
	return nil
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
func (d *Dev) Draw(dstRect image.Rectangle, src image.Image, srcPts image.Point) error {
	d.mu.Lock()
	draw.Src.Draw(d.img, dstRect, src, srcPts)
	d.bufferChangedLocked()
	d.mu.Unlock()
	return nil
}

// Write accepts the content of an image1bit.VerticalLSB.Pix of the same size,
// like ssd1306.Dev.Write. Clients are only notified when the bitmap changed.
func (d *Dev) Write(pixels []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(pixels) != len(d.img.Pix) {
		return 0, fmt.Errorf("panelsink: invalid pixel stream length; expected %d bytes, got %d bytes", len(d.img.Pix), len(pixels))
	}
	if !bytes.Equal(d.img.Pix, pixels) {
		copy(d.img.Pix, pixels)
		d.bufferChangedLocked()
	}
	return len(pixels), nil
}

var _ display.Drawer = (*Dev)(nil)
var _ http.Handler = (*Dev)(nil)
