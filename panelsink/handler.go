// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package panelsink

import (
	"fmt"
	"log"
	"mime"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"sync"
)

// bufferPool stores reusable []byte instances.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return []byte(nil)
	},
}

func (d *Dev) scaleFromQuery(values url.Values) (int, error) {
	value := values.Get("scale")
	if value == "" {
		return d.scale, nil
	}
	scale, err := strconv.Atoi(value)
	if err != nil || scale < 1 || scale > MaxScale {
		return 0, fmt.Errorf("invalid scale %q, must be in [1, %d]", value, MaxScale)
	}
	return scale, nil
}

type client struct {
	refresh   chan struct{}
	terminate chan struct{}
}

func (d *Dev) bufferChangedLocked() {
	for scale, buffer := range d.snapshot {
		if buffer != nil {
			//lint:ignore SA6002 buffer is []byte and thus pointer-like
			bufferPool.Put(buffer)
		}
		delete(d.snapshot, scale)
	}

	for c := range d.clients {
		select {
		case c.refresh <- struct{}{}:
		default:
		}
	}
}

func (d *Dev) terminateClientsLocked() {
	for c := range d.clients {
		select {
		case c.terminate <- struct{}{}:
		default:
		}
	}
}

// grabSnapshot returns a copy of the encoded frame, encoding it once per
// change and scale.
func (d *Dev) grabSnapshot(scale int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	encoded, ok := d.snapshot[scale]
	if !ok {
		var err error
		if encoded, err = d.encodeBufferLocked(scale); err != nil {
			return nil, err
		}
		d.snapshot[scale] = encoded
	}

	return append(bufferPool.Get().([]byte)[:0], encoded...), nil
}

// ServeHTTP handles HTTP GET requests and sends a stream of PNG images
// representing the bitmap in response.
func (d *Dev) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.Body.Close(); err != nil {
		log.Printf("panelsink: closing request body failed: %v", err)
	}

	if r.Method != http.MethodGet {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	scale, err := d.scaleFromQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pw := makePartWriter(w)

	w.Header().Set("Content-Type",
		mime.FormatMediaType("multipart/x-mixed-replace", map[string]string{
			"boundary": pw.boundary,
		}))

	c := &client{
		refresh:   make(chan struct{}, 1),
		terminate: make(chan struct{}, 1),
	}

	d.mu.Lock()
	d.clients[c] = struct{}{}
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.clients, c)
		d.mu.Unlock()
	}()

	partHeaders := make(textproto.MIMEHeader)
	partHeaders.Set("Content-Type", "image/png")
	partHeaders.Set("Content-Transfer-Encoding", "binary")

	for {
		payload, err := d.grabSnapshot(scale)
		if err != nil {
			log.Printf("panelsink: encoding frame failed: %v", err)
			return
		}
		err = pw.writeFrame(partHeaders, payload)

		//lint:ignore SA6002 payload is []byte and thus pointer-like
		bufferPool.Put(payload)

		if err != nil {
			// Errors cause the request to be silently terminated. There's no
			// good way to deliver an error message to the client within an
			// image stream.
			return
		}

		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		select {
		case <-c.refresh:
		case <-c.terminate:
			return
		case <-r.Context().Done():
			return
		}
	}
}
