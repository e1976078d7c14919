// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package panelsink

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"net/textproto"
	"sort"
	"strconv"
)

// randomBoundary generates a MIME multipart boundary compatible with RFC 2046
// (section 5.1.1).
func randomBoundary() string {
	var buf [34]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", buf[:])
}

type partWriter struct {
	u        io.Writer
	boundary string
	started  bool
	buf      bytes.Buffer
}

func makePartWriter(u io.Writer) *partWriter {
	return &partWriter{
		u:        u,
		boundary: randomBoundary(),
	}
}

// writeFrame sends a single part of a MIME multipart entity followed by the
// boundary line, so the client can display it immediately.
//
// The caller-owned headers are modified to set a Content-Length header.
//
// mime/multipart.Writer only emits the boundary when the next part starts,
// which would delay every frame until the following change.
func (w *partWriter) writeFrame(header textproto.MIMEHeader, body []byte) error {
	header.Set("Content-Length", strconv.Itoa(len(body)))

	w.buf.Reset()
	if !w.started {
		fmt.Fprintf(&w.buf, "--%s\r\n", w.boundary)
		w.started = true
	}

	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range header[name] {
			fmt.Fprintf(&w.buf, "%s: %s\r\n", name, value)
		}
	}
	w.buf.WriteString("\r\n")
	w.buf.Write(body)
	fmt.Fprintf(&w.buf, "\r\n--%s\r\n", w.boundary)

	_, err := w.buf.WriteTo(w.u)
	return err
}
