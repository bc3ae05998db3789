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

package kafka

import (
	"net/http"
	"time"

	"github.com/koverse/kdp"
	"github.com/pkg/errors"
)

// Main holds the options for ingesting records from Kafka into a dataset.
type Main struct {
	kdp.Main    `flag:"!embed"`
	Hosts       []string      `help:"Comma separated list of Kafka hosts and ports"`
	Topics      []string      `help:"Comma separated list of Kafka topics"`
	Group       string        `help:"Kafka group"`
	RegistryURL string        `help:"URL of the confluent schema registry. Pass an empty string to use JSON instead of Avro."`
	MaxMsgs     int           `help:"Stop after this many messages. 0 means no limit."`
	IdleTimeout time.Duration `help:"Stop when no message arrives for this long. 0 waits forever."`

	NewConsumer func(hosts, topics []string, group string, log kdp.Logger) (Consumer, error) `flag:"-"`
	Registry    *http.Client                                                                 `flag:"-"`
}

// NewMain returns a new Main.
func NewMain() *Main {
	m := &Main{
		Main:        *kdp.NewMain(),
		Hosts:       []string{"localhost:9092"},
		Topics:      []string{"test"},
		Group:       "group0",
		RegistryURL: "localhost:8081",
		NewConsumer: NewClusterConsumer,
		Registry:    http.DefaultClient,
	}
	m.NewSource = m.newSource
	return m
}

func (m *Main) newSource() (kdp.Source, error) {
	consumer, err := m.NewConsumer(m.Hosts, m.Topics, m.Group, m.Log())
	if err != nil {
		return nil, errors.Wrap(err, "opening kafka source")
	}
	var src *Source
	var ret kdp.Source
	if m.RegistryURL == "" {
		src = NewSource()
		ret = src
	} else {
		csrc := NewConfluentSource()
		csrc.RegistryURL = m.RegistryURL
		csrc.Client = m.Registry
		src, ret = &csrc.Source, csrc
	}
	src.Hosts, src.Topics, src.Group = m.Hosts, m.Topics, m.Group
	src.MaxMsgs, src.IdleTimeout = m.MaxMsgs, m.IdleTimeout
	src.Log = m.Log()
	src.consumer = consumer
	return ret, nil
}
