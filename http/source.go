// Copyright 2023 Koverse, Inc.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/koverse/kdp"
	"github.com/koverse/kdp/json"
	"github.com/pkg/errors"
)

// JSONSource implements kdp.Source by listening for HTTP POST requests and
// decoding a stream of json objects from each body. Records are returned in
// the order they were decoded.
type JSONSource struct {
	addr     string
	listener net.Listener
	server   *http.Server
	records  chan record
	idle     time.Duration
	max      int
	n        int
	log      kdp.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// JSONSourceOption is a functional option type for JSONSource.
type JSONSourceOption func(j *JSONSource)

// WithAddr is an option for the JSONSource which causes it to bind to the given
// address.
func WithAddr(addr string) JSONSourceOption {
	return func(j *JSONSource) {
		j.addr = addr
	}
}

// WithListener is an option for JSONSource which causes it to use the given
// listener. It will infer the address from the listener.
func WithListener(l net.Listener) JSONSourceOption {
	return func(j *JSONSource) {
		j.listener = l
		j.addr = l.Addr().String()
	}
}

// WithBuffer sets how many decoded records may wait for a call to Record
// before requests block.
func WithBuffer(n int) JSONSourceOption {
	return func(j *JSONSource) {
		if n > -1 {
			j.records = make(chan record, n)
		}
	}
}

// WithIdleTimeout makes Record return io.EOF once nothing has arrived for d.
func WithIdleTimeout(d time.Duration) JSONSourceOption {
	return func(j *JSONSource) {
		j.idle = d
	}
}

// WithMaxRecords makes Record return io.EOF after n records. Zero means no
// limit.
func WithMaxRecords(n int) JSONSourceOption {
	return func(j *JSONSource) {
		j.max = n
	}
}

// WithLogger sets the logger for rejected requests.
func WithLogger(log kdp.Logger) JSONSourceOption {
	return func(j *JSONSource) {
		j.log = log
	}
}

// NewJSONSource creates a JSONSource and starts serving.
func NewJSONSource(opts ...JSONSourceOption) (*JSONSource, error) {
	j := &JSONSource{
		records: make(chan record, 3),
		log:     kdp.NopLogger{},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}

	if j.listener == nil {
		var err error
		j.listener, err = net.Listen("tcp", j.addr)
		if err != nil {
			return nil, errors.Wrapf(err, "listening on '%s'", j.addr)
		}
	}
	if tl, ok := j.listener.(*net.TCPListener); ok {
		j.listener = tcpKeepAliveListener{tl}
	}

	j.server = &http.Server{
		Addr:    j.addr,
		Handler: j,
	}
	go func() {
		err := j.server.Serve(j.listener)
		if err != nil && err != http.ErrServerClosed {
			select {
			case j.records <- record{err: errors.Wrap(err, "serving")}:
			case <-j.done:
			}
		}
	}()
	return j, nil
}

// Addr gets the address that the JSONSource is listening on.
func (j *JSONSource) Addr() string {
	if j.listener != nil {
		return j.listener.Addr().String()
	}
	return j.addr
}

type record struct {
	data interface{}
	err  error
}

// Record returns the next decoded json object as a map[string]interface{}.
// It returns io.EOF after Close, after the maximum number of records, or
// when the idle timeout passes with nothing received. It is not safe for
// concurrent use.
func (j *JSONSource) Record() (interface{}, error) {
	if j.max > 0 && j.n >= j.max {
		return nil, io.EOF
	}
	var timeout <-chan time.Time
	if j.idle > 0 {
		t := time.NewTimer(j.idle)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case rec := <-j.records:
		j.n++
		return rec.data, rec.err
	case <-j.done:
		// records already decoded are still handed out
		select {
		case rec := <-j.records:
			j.n++
			return rec.data, rec.err
		default:
			return nil, io.EOF
		}
	case <-timeout:
		return nil, io.EOF
	}
}

// Close stops the server. Requests in flight are rejected.
func (j *JSONSource) Close() error {
	var err error
	j.closeOnce.Do(func() {
		close(j.done)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = j.server.Shutdown(ctx)
	})
	return errors.Wrap(err, "shutting down server")
}

// ServeHTTP implements http.Handler for JSONSource. It answers 204 once
// every object in the body has been queued.
func (j *JSONSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		err := errors.Errorf("unsupported method: %v", r.Method)
		j.log.Printf("rejecting request from %s: %v", r.RemoteAddr, err)
		http.Error(w, err.Error(), http.StatusMethodNotAllowed)
		return
	}
	src := json.NewSource(r.Body)
	n := 0
	for {
		rec, err := src.Record()
		if err == io.EOF {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			err := errors.Wrapf(err, "decoding json after %d objects", n)
			j.log.Printf("rejecting request from %s: %v", r.RemoteAddr, err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		select {
		case j.records <- record{data: rec}:
			n++
		case <-j.done:
			http.Error(w, "source closed", http.StatusServiceUnavailable)
			return
		}
	}
}

// tcpKeepAliveListener is copied from net/http

type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (ln tcpKeepAliveListener) Accept() (c net.Conn, err error) {
	tc, err := ln.AcceptTCP()
	if err != nil {
		return
	}
	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(3 * time.Minute)
	return tc, nil
}
