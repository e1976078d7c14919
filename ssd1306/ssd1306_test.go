// Copyright 2023 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ssd1306

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

var errInjected = errors.New("injected failure")

// fakeBus records writes and fails the failAt-th Tx (1-based) when set.
type fakeBus struct {
	ops    []i2ctest.IO
	calls  int
	failAt int
}

func (f *fakeBus) String() string {
	return "fakeBus"
}

func (f *fakeBus) SetSpeed(physic.Frequency) error {
	return nil
}

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {
	f.calls++
	if f.calls == f.failAt {
		return errInjected
	}
	f.ops = append(f.ops, i2ctest.IO{Addr: addr, W: append([]byte(nil), w...)})
	return nil
}

func cmdOp(b ...byte) i2ctest.IO {
	return i2ctest.IO{Addr: 0x3C, W: append([]byte{i2cCmd}, b...)}
}

func dataOp(b []byte) i2ctest.IO {
	return i2ctest.IO{Addr: 0x3C, W: append([]byte{i2cData}, b...)}
}

func bankOps(page int, data []byte) []i2ctest.IO {
	return []i2ctest.IO{
		cmdOp(_PAGESTARTADDRESS|byte(page), _SETLOWCOLUMN, _SETHIGHCOLUMN),
		dataOp(data),
	}
}

func diffOps(t *testing.T, got, want []i2ctest.IO) {
	t.Helper()
	if diff := cmp.Diff(got, want, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("bus traffic (-got +want):\n%s", diff)
	}
}

func newTestDev(t *testing.T, opts *Opts) (*Dev, *fakeBus) {
	t.Helper()
	bus := &fakeBus{}
	d, err := NewI2C(bus, opts)
	if err != nil {
		t.Fatal(err)
	}
	bus.ops = nil
	return d, bus
}

func TestNewI2C(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts Opts
		init []byte
	}{
		{
			name: "128x64",
			opts: DefaultOpts,
			init: []byte{0xA8, 0x3F, 0xD3, 0x00, 0x40, 0xA0, 0xC0, 0xDA, 0x12, 0x81, 0x7F, 0xA4, 0xA6, 0xD5, 0x80, 0x8D, 0x14, 0xAF, 0x20, 0x02},
		},
		{
			name: "128x32",
			opts: Opts128x32,
			init: []byte{0xA8, 0x1F, 0xD3, 0x00, 0x40, 0xA0, 0xC0, 0xDA, 0x02, 0x81, 0x7F, 0xA4, 0xA6, 0xD5, 0x80, 0x8D, 0x14, 0xAF, 0x20, 0x02},
		},
		{
			name: "64x48 down",
			opts: Opts{W: 64, H: 48, Orientation: Down, Contrast: 0xCF},
			init: []byte{0xA8, 0x2F, 0xD3, 0x00, 0x40, 0xA1, 0xC8, 0xDA, 0x12, 0x81, 0xCF, 0xA4, 0xA6, 0xD5, 0x80, 0x8D, 0x14, 0xAF, 0x20, 0x02},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := &i2ctest.Record{}
			d, err := NewI2C(rec, &tc.opts)
			if err != nil {
				t.Fatal(err)
			}
			want := []i2ctest.IO{cmdOp(tc.init...)}
			empty := make([]byte, tc.opts.W)
			for page := 0; page < tc.opts.H/8; page++ {
				want = append(want, bankOps(page, empty)...)
			}
			diffOps(t, rec.Ops, want)
			if d.IsDirty() {
				t.Fatal("dirty after initialization")
			}
			if got := d.Banks(); got != tc.opts.H/8 {
				t.Fatalf("Banks() = %d", got)
			}
			if got := d.Bounds(); got != image.Rect(0, 0, tc.opts.W, tc.opts.H) {
				t.Fatalf("Bounds() = %v", got)
			}
		})
	}
}

func TestNewI2C_defaultAddrNotShared(t *testing.T) {
	opts := Opts{W: 128, H: 64}
	rec := &i2ctest.Record{}
	if _, err := NewI2C(rec, &opts); err != nil {
		t.Fatal(err)
	}
	if opts.Addr != 0 {
		t.Fatal("NewI2C modified the caller's options")
	}
	if rec.Ops[0].Addr != DefaultOpts.Addr {
		t.Fatalf("addr = %#x", rec.Ops[0].Addr)
	}
}

func TestNew_invalidSize(t *testing.T) {
	for _, o := range []Opts{
		{W: 0, H: 64},
		{W: 130, H: 64},
		{W: 100, H: 64},
		{W: 128, H: 0},
		{W: 128, H: 72},
		{W: 128, H: 30},
	} {
		bus := &fakeBus{}
		if _, err := NewI2C(bus, &o); err == nil {
			t.Errorf("NewI2C(%dx%d) succeeded", o.W, o.H)
		}
		if len(bus.ops) != 0 {
			t.Errorf("NewI2C(%dx%d) sent %d transactions", o.W, o.H, len(bus.ops))
		}
	}
}

func TestNew_initFailure(t *testing.T) {
	bus := &fakeBus{failAt: 1}
	if _, err := NewI2C(bus, &DefaultOpts); !errors.Is(err, errInjected) {
		t.Fatalf("NewI2C() error = %v", err)
	}
}

func TestClearThenRender(t *testing.T) {
	d, bus := newTestDev(t, &DefaultOpts)
	d.SetPixel(1, 1)
	if err := d.Clear(); err != nil {
		t.Fatal(err)
	}
	if d.IsDirty() {
		t.Fatal("dirty after Clear")
	}
	bus.ops = nil
	if err := d.Render(); err != nil {
		t.Fatal(err)
	}
	if len(bus.ops) != 0 {
		t.Fatalf("clean Render sent %d transactions", len(bus.ops))
	}
}

func TestRender_onlyDirtyBanks(t *testing.T) {
	d, bus := newTestDev(t, &DefaultOpts)
	d.SetPixel(3, 10)
	d.SetPixel(127, 63)
	if !d.IsDirty() {
		t.Fatal("not dirty after SetPixel")
	}
	if err := d.Render(); err != nil {
		t.Fatal(err)
	}
	bank1 := make([]byte, 128)
	bank1[3] = 1 << 2
	bank7 := make([]byte, 128)
	bank7[127] = 1 << 7
	want := append(bankOps(1, bank1), bankOps(7, bank7)...)
	diffOps(t, bus.ops, want)
	if d.IsDirty() {
		t.Fatal("dirty after Render")
	}
}

func TestRender_failureKeepsDirty(t *testing.T) {
	for _, tc := range []struct {
		name   string
		failAt int
		dirty  []bool
	}{
		{"first select", 1, []bool{true, false, true, false, false, false, false, false}},
		{"first burst", 2, []bool{true, false, true, false, false, false, false, false}},
		{"second select", 3, []bool{false, false, true, false, false, false, false, false}},
		{"second burst", 4, []bool{false, false, true, false, false, false, false, false}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d, bus := newTestDev(t, &DefaultOpts)
			bus.calls = 0
			bus.failAt = tc.failAt
			d.SetPixel(0, 0)
			d.SetPixel(0, 20)
			if err := d.Render(); !errors.Is(err, errInjected) {
				t.Fatalf("Render() error = %v", err)
			}
			if diff := cmp.Diff(d.dirty, tc.dirty); diff != "" {
				t.Fatalf("dirty flags (-got +want):\n%s", diff)
			}
			bus.ops = nil
			if err := d.Render(); err != nil {
				t.Fatal(err)
			}
			want := 0
			for _, dirty := range tc.dirty {
				if dirty {
					want += 2
				}
			}
			if len(bus.ops) != want {
				t.Fatalf("retry sent %d transactions, want %d", len(bus.ops), want)
			}
			if d.IsDirty() {
				t.Fatal("dirty after successful retry")
			}
		})
	}
}

func TestDraw(t *testing.T) {
	d, bus := newTestDev(t, &DefaultOpts)
	white := &image.Uniform{C: color.White}
	if err := d.Draw(image.Rect(8, 0, 16, 8), white, image.Point{}); err != nil {
		t.Fatal(err)
	}
	bank0 := make([]byte, 128)
	for x := 8; x < 16; x++ {
		bank0[x] = 0xFF
	}
	diffOps(t, bus.ops, bankOps(0, bank0))

	// Same content: nothing to send.
	bus.ops = nil
	if err := d.Draw(image.Rect(8, 0, 16, 8), white, image.Point{}); err != nil {
		t.Fatal(err)
	}
	if len(bus.ops) != 0 {
		t.Fatalf("unchanged Draw sent %d transactions", len(bus.ops))
	}
}

func TestDraw_fullFrame(t *testing.T) {
	d, bus := newTestDev(t, &Opts128x32)
	img := image1bit.NewVerticalLSB(d.Bounds())
	img.Set(5, 30, image1bit.On)
	if err := d.Draw(d.Bounds(), img, image.Point{}); err != nil {
		t.Fatal(err)
	}
	bank3 := make([]byte, 128)
	bank3[5] = 1 << 6
	diffOps(t, bus.ops, bankOps(3, bank3))
	if !d.Pixel(5, 30) {
		t.Fatal("pixel not set")
	}
}

func TestWrite(t *testing.T) {
	d, bus := newTestDev(t, &Opts128x32)
	if _, err := d.Write(make([]byte, 10)); err == nil {
		t.Fatal("Write() accepted a short buffer")
	}
	pix := make([]byte, 512)
	pix[256] = 0x81
	n, err := d.Write(pix)
	if err != nil || n != 512 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	diffOps(t, bus.ops, bankOps(2, pix[256:384]))
}

func TestCommands(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			cmdOp(_INVERTDISPLAY),
			cmdOp(_NORMALDISPLAY),
			cmdOp(_SETCONTRAST, 0x10),
			cmdOp(_DISPLAYOFF),
			// Any command after Halt turns the display back on.
			cmdOp(_DISPLAYON, _NORMALDISPLAY),
			cmdOp(_DISPLAYOFF),
			cmdOp(_DISPLAYON),
			cmdOp(_DISPLAYON),
		},
		DontPanic: true,
	}
	d := &Dev{c: &i2c.Dev{Bus: bus, Addr: 0x3C}, rect: image.Rect(0, 0, 128, 64)}
	if err := d.Invert(true); err != nil {
		t.Fatal(err)
	}
	if err := d.Invert(false); err != nil {
		t.Fatal(err)
	}
	if err := d.SetContrast(0x10); err != nil {
		t.Fatal(err)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if err := d.Invert(false); err != nil {
		t.Fatal(err)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if err := d.DisplayOn(); err != nil {
		t.Fatal(err)
	}
	if err := d.DisplayOn(); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestInvert_keepsBitmap(t *testing.T) {
	d, _ := newTestDev(t, &DefaultOpts)
	d.SetPixel(2, 2)
	before := append([]byte(nil), d.img.Pix...)
	if err := d.Invert(true); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, d.img.Pix) {
		t.Fatal("Invert modified the bitmap")
	}
}

func TestScroll(t *testing.T) {
	d, bus := newTestDev(t, &DefaultOpts)
	if err := d.Scroll(Left, FrameRate2, 0, -1); err != nil {
		t.Fatal(err)
	}
	if err := d.Scroll(UpRight, FrameRate5, 8, 16); err != nil {
		t.Fatal(err)
	}
	for _, tc := range [][2]int{{8, 8}, {3, 16}, {0, 12}, {0, 72}} {
		if err := d.Scroll(Right, FrameRate2, tc[0], tc[1]); err == nil {
			t.Errorf("Scroll(%d, %d) succeeded", tc[0], tc[1])
		}
	}
	want := []i2ctest.IO{
		cmdOp(byte(Left), 0x00, 0, byte(FrameRate2), 7, 0x00, 0xFF, 0x2F),
		cmdOp(byte(UpRight), 0x00, 1, byte(FrameRate5), 1, 0x01, 0x2F),
	}
	diffOps(t, bus.ops, want)

	// Rendering stops scrolling and resends everything.
	bus.ops = nil
	if err := d.Render(); err != nil {
		t.Fatal(err)
	}
	if got := len(bus.ops); got != 1+2*8 {
		t.Fatalf("Render after Scroll sent %d transactions", got)
	}
	diffOps(t, bus.ops[:1], []i2ctest.IO{cmdOp(_DEACTIVATE_SCROLL)})
}

func TestSetPage(t *testing.T) {
	d, bus := newTestDev(t, &Opts128x32)
	page := bytes.Repeat([]byte{0xAA}, 128)
	if err := d.SetPage(4, page); err != nil {
		t.Fatal(err)
	}
	if err := d.SetPage(-1, page); err != nil {
		t.Fatal(err)
	}
	if d.IsDirty() {
		t.Fatal("out of range SetPage marked a bank")
	}
	if err := d.SetPage(1, page[:5]); err == nil {
		t.Fatal("SetPage() accepted a short page")
	}
	if err := d.SetPage(1, page); err != nil {
		t.Fatal(err)
	}
	if err := d.Render(); err != nil {
		t.Fatal(err)
	}
	diffOps(t, bus.ops, bankOps(1, page))
}

func TestNoise(t *testing.T) {
	d, bus := newTestDev(t, &Opts128x32)
	if err := d.Noise(rand.New(rand.NewSource(1))); err != nil {
		t.Fatal(err)
	}
	if len(bus.ops) != 8 {
		t.Fatalf("Noise sent %d transactions", len(bus.ops))
	}
	if bytes.Equal(d.img.Pix, make([]byte, 512)) {
		t.Fatal("Noise left the bitmap empty")
	}
}

func TestString(t *testing.T) {
	d, _ := newTestDev(t, &DefaultOpts)
	if s := d.String(); s == "" {
		t.Fatal("empty String()")
	}
	if d.ColorModel() != image1bit.BitModel {
		t.Fatal("unexpected color model")
	}
}
