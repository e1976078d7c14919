// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package panelsink

import (
	"bytes"
	"image"
	"image/png"
	"sync"
)

type pngEncoderBufferPool sync.Pool

func (p *pngEncoderBufferPool) Get() *png.EncoderBuffer {
	buf, _ := (*sync.Pool)(p).Get().(*png.EncoderBuffer)
	return buf
}

func (p *pngEncoderBufferPool) Put(buf *png.EncoderBuffer) {
	(*sync.Pool)(p).Put(buf)
}

// pngEncoder is shared by all devices. Two color paletted images compress
// well, so favor size over speed.
var pngEncoder = png.Encoder{
	CompressionLevel: png.BestCompression,
	BufferPool:       &pngEncoderBufferPool{},
}

// frameLocked returns the bitmap scaled by scale as a two color image.
func (d *Dev) frameLocked(scale int) *image.Paletted {
	r := d.img.Rect
	out := image.NewPaletted(image.Rect(0, 0, r.Dx()*scale, r.Dy()*scale), d.palette)
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			if !d.img.BitAt(x, y) {
				continue
			}
			for dy := 0; dy < scale; dy++ {
				i := out.PixOffset(x*scale, y*scale+dy)
				for dx := 0; dx < scale; dx++ {
					out.Pix[i+dx] = 1
				}
			}
		}
	}
	return out
}

func (d *Dev) encodeBufferLocked(scale int) ([]byte, error) {
	buf := bytes.NewBuffer(bufferPool.Get().([]byte)[:0])
	if err := pngEncoder.Encode(buf, d.frameLocked(scale)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
