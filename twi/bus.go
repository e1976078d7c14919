// Copyright 2023 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package twi

import (
	"errors"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
)

// Tx implements i2c.Bus.
//
// The write phase and the read phase are joined with a repeated START. The
// last byte read is not acknowledged. STOP ends the transaction, including
// after a failure that left the bus held by this controller.
//
// Both w and r empty only checks that addr acknowledges.
func (d *Dev) Tx(addr uint16, w, r []byte) error {
	if err := d.tx(addr, w, r); err != nil {
		if d.open {
			_ = d.Stop()
		}
		return err
	}
	return nil
}

func (d *Dev) tx(addr uint16, w, r []byte) error {
	if len(w) != 0 || len(r) == 0 {
		if err := d.Begin(addr, Write); err != nil {
			return err
		}
		if len(w) == 0 {
			return d.Stop()
		}
		for i, b := range w {
			last := i == len(w)-1 && len(r) == 0
			if err := d.Transmit(b, last); err != nil {
				return err
			}
		}
		if len(r) == 0 {
			return nil
		}
	}
	if err := d.Begin(addr, Read); err != nil {
		return err
	}
	for i := range r {
		ack, last := Ack, i == len(r)-1
		if last {
			ack = Nack
		}
		v, err := d.Receive(ack, last)
		if err != nil {
			return err
		}
		r[i] = v
	}
	return nil
}

// SetSpeed implements i2c.Bus.
//
// The bus clock recorded by the last Init is reused.
func (d *Dev) SetSpeed(f physic.Frequency) error {
	if !d.ready {
		return &BusError{Op: "speed", Err: ErrNotInitialized}
	}
	return d.Init(d.busClock, f)
}

// Close implements i2c.BusCloser.
//
// It disables the peripheral and powers it down. Init brings it back.
func (d *Dev) Close() error {
	if d.open {
		if err := d.Stop(); err != nil {
			return err
		}
	}
	d.r.Store(TWCR, 0)
	d.r.Store(PRR, d.r.Load(PRR)|PRTWI)
	d.ready = false
	return nil
}

// RegisterBus publishes d in the i2creg registry under its name, so that
// i2creg.Open(d.String()) returns it. number is the bus number, or -1.
func RegisterBus(d *Dev, number int) error {
	if d == nil {
		return errors.New("twi: nil controller")
	}
	return i2creg.Register(d.name, nil, number, func() (i2c.BusCloser, error) {
		return d, nil
	})
}

var _ i2c.BusCloser = &Dev{}
