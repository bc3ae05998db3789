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
	"net"
	"time"

	"github.com/koverse/kdp"
	"github.com/pkg/errors"
)

// Main holds the options for writing json posted over HTTP to a dataset.
type Main struct {
	kdp.Main    `flag:"!embed"`
	Bind        string        `help:"Listen for post requests on this address."`
	Buffer      int           `help:"Number of decoded records to hold while waiting to be written."`
	IdleTimeout time.Duration `help:"Stop when no record arrives for this long. 0 waits forever."`
	MaxRecords  int           `help:"Stop after this many records. 0 means no limit."`

	Listener net.Listener `flag:"-"`
}

// NewMain gets a new Main with default values.
func NewMain() *Main {
	m := &Main{
		Main:   *kdp.NewMain(),
		Bind:   ":12121",
		Buffer: 1000,
	}
	m.NewSource = m.newSource
	return m
}

func (m *Main) newSource() (kdp.Source, error) {
	opts := []JSONSourceOption{
		WithBuffer(m.Buffer),
		WithIdleTimeout(m.IdleTimeout),
		WithMaxRecords(m.MaxRecords),
		WithLogger(m.Log()),
	}
	if m.Listener != nil {
		opts = append(opts, WithListener(m.Listener))
	} else {
		opts = append(opts, WithAddr(m.Bind))
	}
	src, err := NewJSONSource(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "getting json source")
	}
	m.Log().Printf("listening on %s", src.Addr())
	return src, nil
}
