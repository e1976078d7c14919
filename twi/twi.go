// Copyright 2023 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package twi

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Direction is the R/W bit sent along the address.
type Direction byte

// Possible directions.
const (
	Write Direction = 0
	Read  Direction = 1
)

func (d Direction) String() string {
	if d == Read {
		return "Read"
	}
	return "Write"
}

// AckPolicy tells Receive whether to acknowledge the byte.
//
// Nack is used on the last byte of a read so the target releases the bus.
type AckPolicy bool

// Possible acknowledge policies.
const (
	Ack  AckPolicy = true
	Nack AckPolicy = false
)

// Standard bus rates.
const (
	StandardMode = 100 * physic.KiloHertz
	FastMode     = 400 * physic.KiloHertz
)

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Name:    "TWI0",
	Timeout: 25 * time.Millisecond,
}

// Opts defines the options for the controller.
type Opts struct {
	// Name is returned by String() and used by Register.
	Name string
	// Timeout bounds every wait on the peripheral. Zero selects
	// DefaultOpts.Timeout.
	Timeout time.Duration
}

// Dev is an open handle to the TWI master.
//
// It is not safe for concurrent use. A single foreground task owns the bus.
type Dev struct {
	r       Registers
	name    string
	timeout time.Duration

	busClock physic.Frequency
	rate     physic.Frequency
	ready    bool

	// open is true between a START that won the bus and the next STOP.
	open bool
	addr uint16
}

// New returns a controller using the given registers. Init must be called
// before any transaction.
func New(r Registers, opts *Opts) *Dev {
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{r: r, name: opts.Name, timeout: opts.Timeout}
	if d.name == "" {
		d.name = DefaultOpts.Name
	}
	if d.timeout <= 0 {
		d.timeout = DefaultOpts.Timeout
	}
	return d
}

func (d *Dev) String() string {
	return d.name
}

// Divisor returns the TWBR value producing rate from busClock with a
// prescaler of 1: SCL = busClock / (16 + 2*TWBR).
func Divisor(busClock, rate physic.Frequency) (byte, error) {
	if busClock <= 0 || rate <= 0 {
		return 0, ErrRateUnreachable
	}
	fac := float64(busClock)/2/float64(rate) - 8
	if fac < 1 || fac > 255 {
		return 0, fmt.Errorf("%w: %s from %s", ErrRateUnreachable, rate, busClock)
	}
	return byte(fac), nil
}

// Init computes the divisor for rate, powers the peripheral and programs
// it.
func (d *Dev) Init(busClock, rate physic.Frequency) error {
	div, err := Divisor(busClock, rate)
	if err != nil {
		return fmt.Errorf("twi: %w", err)
	}
	d.r.Store(PRR, d.r.Load(PRR)&^PRTWI)
	d.r.Store(TWSR, d.r.Load(TWSR)&^PrescalerMask)
	d.r.Store(TWBR, div)
	d.r.Store(TWCR, TWEN)
	d.busClock = busClock
	d.rate = rate
	d.ready = true
	d.open = false
	return nil
}

// Speed returns the rate programmed by the last successful Init.
func (d *Dev) Speed() physic.Frequency {
	return d.rate
}

// Begin asserts START, then sends addr with the direction bit.
//
// On ErrNoAck the bus is still held; the caller must call Stop.
func (d *Dev) Begin(addr uint16, dir Direction) error {
	const op = "start"
	if !d.ready {
		return &BusError{Op: op, Addr: addr, Err: ErrNotInitialized}
	}
	if addr < 1 || addr > 126 {
		return &BusError{Op: op, Addr: addr, Err: ErrInvalidAddress}
	}
	d.addr = addr
	d.r.Store(TWCR, TWINT|TWSTA|TWEN)
	if err := d.waitInt(); err != nil {
		return d.fail(op, err)
	}
	if s := d.status(); s != StatusStart && s != StatusRepeatedStart {
		return d.fail(op, ErrArbitrationLost)
	}
	d.open = true

	d.r.Store(TWDR, byte(addr<<1)|byte(dir))
	d.r.Store(TWCR, TWINT|TWEN)
	if err := d.waitInt(); err != nil {
		return d.fail(op, err)
	}
	want := StatusAddrWriteAck
	if dir == Read {
		want = StatusAddrReadAck
	}
	switch d.status() {
	case want:
		return nil
	case StatusArbitrationLost:
		return d.fail(op, ErrArbitrationLost)
	default:
		return d.fail(op, ErrNoAck)
	}
}

// Transmit sends one byte on the open transaction. When stop is true, STOP
// is asserted after the byte was acknowledged.
func (d *Dev) Transmit(v byte, stop bool) error {
	const op = "write"
	if !d.open {
		return &BusError{Op: op, Addr: d.addr, Err: ErrNoTransaction}
	}
	d.r.Store(TWDR, v)
	d.r.Store(TWCR, TWINT|TWEN)
	if err := d.waitInt(); err != nil {
		return d.fail(op, err)
	}
	switch d.status() {
	case StatusDataWriteAck:
	case StatusArbitrationLost:
		return d.fail(op, ErrArbitrationLost)
	default:
		return d.fail(op, ErrNoAck)
	}
	if stop {
		return d.Stop()
	}
	return nil
}

// Receive reads one byte from the open transaction, acknowledging it
// according to ack. When stop is true, STOP is asserted after the byte.
func (d *Dev) Receive(ack AckPolicy, stop bool) (byte, error) {
	const op = "read"
	if !d.open {
		return 0, &BusError{Op: op, Addr: d.addr, Err: ErrNoTransaction}
	}
	ctl, want := TWINT|TWEN, StatusDataReadNack
	if ack {
		ctl |= TWEA
		want = StatusDataReadAck
	}
	d.r.Store(TWCR, ctl)
	if err := d.waitInt(); err != nil {
		return 0, d.fail(op, err)
	}
	if d.status() != want {
		return 0, d.fail(op, ErrFraming)
	}
	v := d.r.Load(TWDR)
	if stop {
		return v, d.Stop()
	}
	return v, nil
}

// Stop asserts STOP and waits for the peripheral to clear it.
func (d *Dev) Stop() error {
	d.open = false
	d.r.Store(TWCR, TWINT|TWSTO|TWEN)
	if err := d.poll(func() bool { return d.r.Load(TWCR)&TWSTO == 0 }); err != nil {
		return &BusError{Op: "stop", Addr: d.addr, Status: d.status(), Err: err}
	}
	return nil
}

// Scan tries every address in [1, 126] with a write START. results[a] is
// set to a when the device acknowledged, 0 otherwise. STOP is sent after
// every attempt so the bus is left idle.
//
// An error is only returned when the bus stops responding, after a last STOP
// attempt.
func (d *Dev) Scan(results *[128]byte) error {
	if !d.ready {
		return &BusError{Op: "scan", Err: ErrNotInitialized}
	}
	results[0] = 0
	results[127] = 0
	for addr := uint16(1); addr <= 126; addr++ {
		results[addr] = 0
		err := d.Begin(addr, Write)
		if err == nil {
			results[addr] = byte(addr)
		} else if errors.Is(err, ErrBusTimeout) {
			// Best effort, the peripheral may still release the bus.
			_ = d.Stop()
			return err
		}
		if err := d.Stop(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dev) status() byte {
	return d.r.Load(TWSR) & StatusMask
}

// fail builds the error for op. Arbitration loss and timeouts leave the bus
// in an unknown state so the transaction is considered closed.
func (d *Dev) fail(op string, err error) error {
	if err == ErrArbitrationLost || err == ErrBusTimeout {
		d.open = false
	}
	return &BusError{Op: op, Addr: d.addr, Status: d.status(), Err: err}
}

func (d *Dev) waitInt() error {
	return d.poll(func() bool { return d.r.Load(TWCR)&TWINT != 0 })
}

func (d *Dev) poll(done func() bool) error {
	if done() {
		return nil
	}
	deadline := time.Now().Add(d.timeout)
	for !done() {
		if time.Now().After(deadline) {
			return ErrBusTimeout
		}
	}
	return nil
}
