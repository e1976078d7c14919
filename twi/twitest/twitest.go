// Copyright 2023 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package twitest models the TWI peripheral so the twi controller can be
// exercised without hardware.
//
// Sim implements twi.Registers. Every operation completes as soon as TWCR is
// written, unless Stall or StallStop is set. Devices are attached as Target
// values keyed by their 7-bit address.
package twitest

import (
	"sync"

	"github.com/GermanBionicSystems/oledtwi/twi"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

// Target is a device attached to the simulated bus.
type Target interface {
	// Start is called when the target is addressed. Returning false NACKs
	// the address.
	Start(addr uint16, dir twi.Direction) bool
	// Write receives one byte from the master. Returning false NACKs it.
	Write(b byte) bool
	// Read returns the next byte for the master.
	Read() byte
	// Stop is called when the transaction ends.
	Stop()
}

type state int

const (
	idle state = iota
	addressing
	writing
	reading
	rejected
)

// Sim is a simulated TWI peripheral.
type Sim struct {
	mu sync.Mutex

	// Targets maps a 7-bit address to the device answering it.
	Targets map[uint16]Target
	// LoseArbitration makes every START report arbitration lost.
	LoseArbitration bool
	// Stall keeps TWINT cleared so no operation ever completes.
	Stall bool
	// StallStop keeps TWSTO set after a STOP request.
	StallStop bool

	// Starts and Stops count the START and STOP conditions requested.
	Starts int
	Stops  int

	regs  [5]byte
	state state
	cur   Target
}

// NewSim returns a powered down peripheral with the given targets.
func NewSim(targets map[uint16]Target) *Sim {
	if targets == nil {
		targets = map[uint16]Target{}
	}
	s := &Sim{Targets: targets}
	s.regs[twi.PRR] = twi.PRTWI
	s.regs[twi.TWSR] = twi.StatusNoInfo
	return s
}

// Load implements twi.Registers.
func (s *Sim) Load(r twi.Register) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[r]
}

// Store implements twi.Registers.
func (s *Sim) Store(r twi.Register, v byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch r {
	case twi.TWCR:
		s.control(v)
	case twi.TWSR:
		// Only the prescaler bits are writable.
		s.regs[r] = s.regs[r]&twi.StatusMask | v&twi.PrescalerMask
	default:
		s.regs[r] = v
	}
}

// Powered reports whether PRR lets the peripheral run and TWEN is set.
func (s *Sim) Powered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[twi.PRR]&twi.PRTWI == 0 && s.regs[twi.TWCR]&twi.TWEN != 0
}

// BitRate returns the current TWBR value.
func (s *Sim) BitRate() byte {
	return s.Load(twi.TWBR)
}

func (s *Sim) control(v byte) {
	if v&twi.TWEN == 0 {
		s.regs[twi.TWCR] = v
		s.end()
		return
	}
	if v&twi.TWSTO != 0 {
		s.Stops++
		s.end()
		s.regs[twi.TWCR] = v &^ twi.TWINT
		if !s.StallStop {
			s.regs[twi.TWCR] &^= twi.TWSTO
		}
		s.setStatus(twi.StatusNoInfo)
		return
	}
	if v&twi.TWINT == 0 {
		// Configuration only; TWINT is not touched.
		s.regs[twi.TWCR] = s.regs[twi.TWCR]&twi.TWINT | v
		return
	}
	s.regs[twi.TWCR] = v &^ twi.TWINT
	if v&twi.TWSTA != 0 {
		s.start()
	} else {
		s.step(v&twi.TWEA != 0)
	}
	if !s.Stall {
		s.regs[twi.TWCR] |= twi.TWINT
	}
}

func (s *Sim) start() {
	s.Starts++
	if s.LoseArbitration {
		s.end()
		s.setStatus(twi.StatusArbitrationLost)
		return
	}
	if s.state == idle {
		s.setStatus(twi.StatusStart)
	} else {
		s.setStatus(twi.StatusRepeatedStart)
	}
	s.state = addressing
}

func (s *Sim) step(ack bool) {
	switch s.state {
	case addressing:
		b := s.regs[twi.TWDR]
		addr, dir := uint16(b>>1), twi.Direction(b&1)
		t := s.Targets[addr]
		if t == nil || !t.Start(addr, dir) {
			s.cur = nil
			s.state = rejected
			if dir == twi.Read {
				s.setStatus(twi.StatusAddrReadNack)
			} else {
				s.setStatus(twi.StatusAddrWriteNack)
			}
			return
		}
		s.cur = t
		if dir == twi.Read {
			s.state = reading
			s.setStatus(twi.StatusAddrReadAck)
		} else {
			s.state = writing
			s.setStatus(twi.StatusAddrWriteAck)
		}
	case writing:
		if s.cur.Write(s.regs[twi.TWDR]) {
			s.setStatus(twi.StatusDataWriteAck)
		} else {
			s.setStatus(twi.StatusDataWriteNack)
		}
	case reading:
		s.regs[twi.TWDR] = s.cur.Read()
		if ack {
			s.setStatus(twi.StatusDataReadAck)
		} else {
			s.setStatus(twi.StatusDataReadNack)
		}
	default:
		s.setStatus(twi.StatusNoInfo)
	}
}

func (s *Sim) end() {
	if s.cur != nil {
		s.cur.Stop()
	}
	s.cur = nil
	s.state = idle
}

func (s *Sim) setStatus(code byte) {
	s.regs[twi.TWSR] = code | s.regs[twi.TWSR]&twi.PrescalerMask
}

// Recorder is a Target that acknowledges everything and records each
// transaction as an i2ctest.IO, comparable with the output of
// i2ctest.Record.
type Recorder struct {
	// Ops holds one entry per transaction. A write followed by a read joined
	// with a repeated START is a single entry.
	Ops []i2ctest.IO
	// Response is consumed by reads. 0xFF is returned once it is empty.
	Response []byte
	// AckLimit, when positive, is the number of data bytes acknowledged in
	// total. Every byte after it is NACKed.
	AckLimit int

	acked   int
	current *i2ctest.IO
}

// Start implements Target.
func (r *Recorder) Start(addr uint16, dir twi.Direction) bool {
	if dir == twi.Read && r.current != nil && r.current.Addr == addr && len(r.current.R) == 0 {
		return true
	}
	r.Ops = append(r.Ops, i2ctest.IO{Addr: addr})
	r.current = &r.Ops[len(r.Ops)-1]
	return true
}

// Write implements Target.
func (r *Recorder) Write(b byte) bool {
	if r.AckLimit > 0 && r.acked >= r.AckLimit {
		return false
	}
	r.acked++
	r.current.W = append(r.current.W, b)
	return true
}

// Read implements Target.
func (r *Recorder) Read() byte {
	b := byte(0xFF)
	if len(r.Response) != 0 {
		b, r.Response = r.Response[0], r.Response[1:]
	}
	r.current.R = append(r.current.R, b)
	return b
}

// Stop implements Target.
func (r *Recorder) Stop() {
	r.current = nil
}

// Expander is a Target modeling an 8 bit quasi-bidirectional I/O expander
// like the PCF8574 found on character LCD backpacks.
//
// Each written byte sets the output latch. A read returns the latch with the
// pins listed in Low pulled to ground by external circuitry.
type Expander struct {
	// Latch is the last byte written. It powers up as 0xFF.
	Latch byte
	// Low lists the pins held low externally.
	Low byte
	// Writes counts the bytes written.
	Writes int

	started bool
}

// Start implements Target.
func (e *Expander) Start(addr uint16, dir twi.Direction) bool {
	if !e.started {
		e.Latch = 0xFF
		e.started = true
	}
	return true
}

// Write implements Target.
func (e *Expander) Write(b byte) bool {
	e.Latch = b
	e.Writes++
	return true
}

// Read implements Target.
func (e *Expander) Read() byte {
	return e.Latch &^ e.Low
}

// Stop implements Target.
func (e *Expander) Stop() {
}

var _ Target = &Recorder{}
var _ Target = &Expander{}
