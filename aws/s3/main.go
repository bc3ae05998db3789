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

package s3

import (
	"github.com/koverse/kdp"
	"github.com/koverse/kdp/csv"
	"github.com/koverse/kdp/json"
	"github.com/pkg/errors"
)

// Main contains the configuration for an ingester with an S3 Source.
type Main struct {
	kdp.Main `flag:"!embed"`
	Bucket   string `help:"S3 bucket name from which to read objects."`
	Prefix   string `help:"Only objects in the bucket matching this prefix will be used."`
	Region   string `help:"AWS region to use."`
	Endpoint string `help:"Custom S3 endpoint, for S3 compatible stores."`
	Format   string `help:"Format of the objects: json or csv."`

	RawOpts []RawOption `flag:"-"`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	m := &Main{
		Main:   *kdp.NewMain(),
		Region: "us-east-1",
		Format: "json",
	}
	m.NewSource = m.newSource
	return m
}

func (m *Main) newSource() (kdp.Source, error) {
	opts := append([]RawOption{
		OptRawRegion(m.Region),
		OptRawPrefix(m.Prefix),
		OptRawEndpoint(m.Endpoint),
	}, m.RawOpts...)
	rs, err := NewRawSource(m.Bucket, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "getting s3 source")
	}
	m.Log().Printf("found %d objects in %s", rs.Len(), m.Bucket)
	switch m.Format {
	case "json":
		return json.NewSourceFromRawSource(rs), nil
	case "csv":
		return csv.NewSourceFromRawSource(rs, csv.OptSrcLogger(m.Log())), nil
	default:
		return nil, errors.Errorf("unknown format %q", m.Format)
	}
}
