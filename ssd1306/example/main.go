// Copyright 2023 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Command example exercises an SSD1306 panel: text, shapes, a splash screen
// and noise.
//
// With -sim the panel is replaced by a simulated TWI peripheral and the bus
// traffic is summarized at the end. Add -preview to see every frame in the
// terminal, or -http to watch the panel from a browser; the program then keeps
// serving until interrupted.
//
// Hardware setup: connect the panel SDA/SCL to the host I²C bus, address 0x3C.
package main

import (
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/GermanBionicSystems/oledtwi/font5x7"
	"github.com/GermanBionicSystems/oledtwi/panelsink"
	"github.com/GermanBionicSystems/oledtwi/splash"
	"github.com/GermanBionicSystems/oledtwi/ssd1306"
	"github.com/GermanBionicSystems/oledtwi/termscreen"
	"github.com/GermanBionicSystems/oledtwi/twi"
	"github.com/GermanBionicSystems/oledtwi/twi/twitest"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var (
	sim      = flag.Bool("sim", false, "use a simulated TWI peripheral instead of the host bus")
	busName  = flag.String("bus", "", "I²C bus name (empty for default)")
	height   = flag.Int("height", 64, "panel height in pixels: a multiple of 8 up to 64")
	flip     = flag.Bool("flip", false, "rotate the picture by 180°")
	preview  = flag.Bool("preview", false, "mirror every frame on the terminal")
	httpAddr = flag.String("http", "", "serve a live copy of the panel on this address, e.g. :8080")
	demoMode = flag.String("demo", "all", "demo to run: all, text, shapes, splash, noise")
	delay    = flag.Duration("delay", 2*time.Second, "pause between demos")
)

// lcdAddr is the I/O expander of a character LCD commonly sharing the bus.
const lcdAddr = 0x27

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)
	if flag.NArg() != 0 {
		log.Fatal("unexpected argument, try -help")
	}

	var panel *twitest.Recorder
	if *sim {
		panel = &twitest.Recorder{}
		if err := setupSim(panel); err != nil {
			log.Fatal(err)
		}
		*busName = twi.DefaultOpts.Name
	} else if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	b, err := i2creg.Open(*busName)
	if err != nil {
		log.Fatal(err)
	}
	defer b.Close()
	if c, ok := b.(*twi.Dev); ok {
		scan(c)
	}

	opts, err := panelOpts(*height, *flip)
	if err != nil {
		log.Fatalf("invalid -height: %v", err)
	}
	dev, err := ssd1306.NewI2C(b, &opts)
	if err != nil {
		log.Fatalf("failed to initialize ssd1306: %v", err)
	}
	log.Printf("%s: %d banks, %d text columns", dev, dev.Banks(), dev.Cols())

	var mirrors []io.Writer
	if *preview {
		o := termscreen.DefaultOpts
		o.W, o.H = opts.W, opts.H
		term, err := termscreen.New(&o)
		if err != nil {
			log.Fatal(err)
		}
		defer term.Halt()
		mirrors = append(mirrors, term)
	}
	if *httpAddr != "" {
		o := panelsink.DefaultOpts
		o.W, o.H = opts.W, opts.H
		sink, err := panelsink.New(&o)
		if err != nil {
			log.Fatal(err)
		}
		defer sink.Halt()
		mirrors = append(mirrors, sink)
		go func() {
			log.Fatal(http.ListenAndServe(*httpAddr, sink))
		}()
		log.Printf("mirroring on http://%s/", *httpAddr)
	}

	if err := run(dev, io.MultiWriter(mirrors...), *demoMode); err != nil {
		log.Fatal(err)
	}
	if panel != nil {
		n := 0
		for _, op := range panel.Ops {
			n += len(op.W)
		}
		log.Printf("panel received %d transactions, %d bytes", len(panel.Ops), n)
	}
	if *httpAddr != "" {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		<-c
	}
	if err := dev.Halt(); err != nil {
		log.Fatal(err)
	}
}

// panelOpts returns the options for a 128 pixels wide panel of the given
// height. Panels up to 32 rows use sequential COM pins.
func panelOpts(height int, flip bool) (ssd1306.Opts, error) {
	if height < 8 || height > 64 || height%8 != 0 {
		return ssd1306.Opts{}, fmt.Errorf("%d is not a multiple of 8 in [8, 64]", height)
	}
	opts := ssd1306.DefaultOpts
	if height <= 32 {
		opts = ssd1306.Opts128x32
	}
	opts.H = height
	if flip {
		opts.Orientation = ssd1306.Down
	}
	return opts, nil
}

// setupSim registers a simulated controller with the panel and an LCD
// expander attached.
func setupSim(panel twitest.Target) error {
	regs := twitest.NewSim(map[uint16]twitest.Target{
		ssd1306.DefaultOpts.Addr: panel,
		lcdAddr:                  &twitest.Expander{},
	})
	c := twi.New(regs, &twi.DefaultOpts)
	if err := c.Init(16*physic.MegaHertz, twi.FastMode); err != nil {
		return err
	}
	return twi.RegisterBus(c, 0)
}

func scan(c *twi.Dev) {
	var found [128]byte
	if err := c.Scan(&found); err != nil {
		log.Printf("scan: %v", err)
		return
	}
	for _, a := range found {
		if a == 0 {
			continue
		}
		switch a {
		case byte(ssd1306.DefaultOpts.Addr):
			log.Printf("0x%02X: ssd1306", a)
		case lcdAddr:
			log.Printf("0x%02X: LCD I/O expander", a)
		default:
			log.Printf("0x%02X: unknown device", a)
		}
	}
}

// run executes the demos selected by mode, copying each resulting frame to
// mirror.
func run(dev *ssd1306.Dev, mirror io.Writer, mode string) error {
	demos := []struct {
		name string
		fn   func(*ssd1306.Dev) error
	}{
		{"text", runText},
		{"shapes", runShapes},
		{"splash", runSplash},
		{"noise", runNoise},
	}
	ran := false
	for _, d := range demos {
		if mode != "all" && mode != d.name {
			continue
		}
		if ran {
			time.Sleep(*delay)
		}
		ran = true
		log.Printf("demo %s", d.name)
		if err := d.fn(dev); err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		if _, err := mirror.Write(dev.Image().Pix); err != nil {
			return err
		}
	}
	if !ran {
		return fmt.Errorf("unknown demo %q", mode)
	}
	return nil
}

func runText(dev *ssd1306.Dev) error {
	if err := dev.Clear(); err != nil {
		return err
	}
	name, _ := os.Hostname()
	dev.Text(0, 0, "Hello from periph!")
	dev.Text(0, 1, name)
	dev.Text(0, 2, fmt.Sprintf("21.5%c", font5x7.Degrees))
	dev.DrawText(40, 2*8+4, "offset")
	return dev.Render()
}

func runShapes(dev *ssd1306.Dev) error {
	if err := dev.Clear(); err != nil {
		return err
	}
	r := dev.Bounds()
	w, h := r.Dx(), r.Dy()
	dev.Line(0, 0, w-1, h-1)
	dev.Line(0, h-1, w-1, 0)
	dev.Circle(w/2, h/2, float64(h)/2-2)
	dev.Circle(w/2, h/2, float64(h)/4)
	return dev.Render()
}

func runSplash(dev *ssd1306.Dev) error {
	o := splash.DefaultOpts
	r := dev.Bounds()
	o.W, o.H = r.Dx(), r.Dy()
	img, err := splash.Render(&o)
	if err != nil {
		return err
	}
	return dev.Draw(r, img, image.Point{})
}

func runNoise(dev *ssd1306.Dev) error {
	return dev.Noise(rand.New(rand.NewSource(time.Now().UnixNano())))
}
