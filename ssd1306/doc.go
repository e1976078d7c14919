// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ssd1306 controls a monochrome OLED display driven by a SSD1306
// controller over I²C.
//
// The driver keeps a copy of the display memory: a bitmap split in banks of
// 8 pixel rows, each bank being one column byte per pixel column. Drawing
// methods (SetPixel, Line, Circle, Char, Text, DrawText) only touch that
// bitmap and flag the banks they modify. Render then sends the flagged banks,
// one page select command and one data burst each. On a 100kHz bus a full
// 128x64 frame takes about 100ms, so sending only the changed banks matters.
//
// A bank flag is cleared once the panel acknowledged the bank. A failed
// Render leaves the remaining banks flagged and the next call retries them.
//
// Text uses the 5x7 font of package font5x7 in 6 pixel wide cells: 21 cells
// per bank on a 128 pixel wide panel.
//
// # Datasheets
//
// https://cdn-shop.adafruit.com/datasheets/SSD1306.pdf
//
// Application note with the initialization flow:
//
// https://www.mikrocontroller.net/attachment/366436/SSD1306_Application_Note.pdf
package ssd1306
