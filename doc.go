// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package oledtwi is a container for a small OLED display stack: a
// register-level TWI (I²C) master, a 5x7 bitmap font and an SSD1306 driver
// that only sends the 8 pixel banks that changed.
//
// See the ssd1306/example command for an end to end demo, which also runs
// against a simulated bus with -sim.
package oledtwi
