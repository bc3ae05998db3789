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
	"context"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/koverse/kdp"
	"github.com/pkg/errors"
)

// RawOption is a functional option for RawSource.
type RawOption func(rs *RawSource)

// OptRawRegion sets the AWS region.
func OptRawRegion(region string) RawOption {
	return func(rs *RawSource) {
		rs.region = region
	}
}

// OptRawPrefix tells the source to list only the objects in the bucket that
// match the specified prefix.
func OptRawPrefix(prefix string) RawOption {
	return func(rs *RawSource) {
		rs.prefix = prefix
	}
}

// OptRawEndpoint sets a custom S3 endpoint, such as a local S3 compatible
// store. Path style addressing is used with it.
func OptRawEndpoint(endpoint string) RawOption {
	return func(rs *RawSource) {
		rs.endpoint = endpoint
	}
}

// OptRawClient sets the S3 client, in which case no session is created.
func OptRawClient(client s3iface.S3API) RawOption {
	return func(rs *RawSource) {
		rs.s3 = client
	}
}

// OptRawContext sets the context for S3 requests.
func OptRawContext(ctx context.Context) RawOption {
	return func(rs *RawSource) {
		rs.ctx = ctx
	}
}

// RawSource is a kdp.RawSource over the objects of an S3 bucket.
type RawSource struct {
	bucket   string
	prefix   string
	region   string
	endpoint string
	ctx      context.Context

	s3      s3iface.S3API
	mu      sync.Mutex
	objects []*s3.Object
	objIdx  int
}

// NewRawSource lists the objects of bucket. Objects are fetched one at a time
// by NextReader.
func NewRawSource(bucket string, opts ...RawOption) (*RawSource, error) {
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	rs := &RawSource{
		bucket: bucket,
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(rs)
	}
	if rs.s3 == nil {
		cfg := &aws.Config{Region: aws.String(rs.region)}
		if rs.endpoint != "" {
			cfg.Endpoint = aws.String(rs.endpoint)
			cfg.S3ForcePathStyle = aws.Bool(true)
		}
		sess, err := session.NewSession(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "getting new session")
		}
		rs.s3 = s3.New(sess)
	}
	err := rs.s3.ListObjectsPagesWithContext(rs.ctx, &s3.ListObjectsInput{
		Bucket: aws.String(rs.bucket),
		Prefix: aws.String(rs.prefix),
	}, func(page *s3.ListObjectsOutput, lastPage bool) bool {
		for _, obj := range page.Contents {
			// skip "directory" placeholders
			if strings.HasSuffix(aws.StringValue(obj.Key), "/") && aws.Int64Value(obj.Size) == 0 {
				continue
			}
			rs.objects = append(rs.objects, obj)
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing objects in %s", rs.bucket)
	}
	return rs, nil
}

// Len returns the number of objects listed.
func (rs *RawSource) Len() int { return len(rs.objects) }

type objReader struct {
	name string
	meta map[string]interface{}
	body io.ReadCloser
}

func (o *objReader) Read(buf []byte) (n int, err error) {
	return o.body.Read(buf)
}

func (o *objReader) Close() error {
	return o.body.Close()
}

func (o *objReader) Name() string {
	return o.name
}

func (o *objReader) Meta() map[string]interface{} {
	return o.meta
}

// NextReader implements kdp.RawSource.
func (rs *RawSource) NextReader() (kdp.NamedReadCloser, error) {
	rs.mu.Lock()
	if rs.objIdx >= len(rs.objects) {
		rs.mu.Unlock()
		return nil, io.EOF
	}
	obj := rs.objects[rs.objIdx]
	rs.objIdx++
	rs.mu.Unlock()

	result, err := rs.s3.GetObjectWithContext(rs.ctx, &s3.GetObjectInput{
		Bucket: aws.String(rs.bucket),
		Key:    obj.Key,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %v", aws.StringValue(obj.Key))
	}
	return &objReader{
		name: aws.StringValue(obj.Key),
		meta: map[string]interface{}{
			"bucket": rs.bucket,
			"size":   aws.Int64Value(obj.Size),
		},
		body: result.Body,
	}, nil
}
