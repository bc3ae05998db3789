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
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/elodina/go-avro"
	"github.com/koverse/kdp"
	"github.com/koverse/kdp/test"
	"github.com/linkedin/goavro"
	"github.com/pkg/errors"
)

type fakeConsumer struct {
	mu     sync.Mutex
	msgs   chan *sarama.ConsumerMessage
	marked []int64
	closed bool
}

func newFakeConsumer(values ...[]byte) *fakeConsumer {
	c := &fakeConsumer{msgs: make(chan *sarama.ConsumerMessage, len(values))}
	for i, v := range values {
		c.msgs <- &sarama.ConsumerMessage{Topic: "test", Offset: int64(i), Value: v}
	}
	return c
}

func (c *fakeConsumer) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func (c *fakeConsumer) MarkOffset(msg *sarama.ConsumerMessage, metadata string) {
	c.mu.Lock()
	c.marked = append(c.marked, msg.Offset)
	c.mu.Unlock()
}

func (c *fakeConsumer) Close() error {
	c.closed = true
	return nil
}

func TestSource(t *testing.T) {
	tests := []struct {
		name      string
		values    []string
		maxMsgs   int
		closeChan bool
		expRecs   int
		expErr    string
		expMarked []int64
	}{
		{name: "max msgs", values: []string{`{"a":1}`, `{"a":2}`, `{"a":3}`}, maxMsgs: 2, expRecs: 2, expMarked: []int64{0, 1}},
		{name: "idle", values: []string{`{"a":1}`}, expRecs: 1, expMarked: []int64{0}},
		{name: "bad json", values: []string{`{"a":1}`, `nope`}, expRecs: 1, expErr: "unmarshaling json at test/0/1", expMarked: []int64{0}},
		{name: "closed", values: []string{`{"a":1}`}, closeChan: true, expRecs: 1, expErr: "channel closed", expMarked: []int64{0}},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			vals := make([][]byte, 0, len(tst.values))
			for _, v := range tst.values {
				vals = append(vals, []byte(v))
			}
			consumer := newFakeConsumer(vals...)
			if tst.closeChan {
				close(consumer.msgs)
			}
			src := NewSource()
			src.MaxMsgs = tst.maxMsgs
			src.IdleTimeout = 50 * time.Millisecond
			src.consumer = consumer

			n := 0
			var err error
			for {
				var rec interface{}
				rec, err = src.Record()
				if err != nil {
					break
				}
				if _, ok := rec.(map[string]interface{})["a"]; !ok {
					t.Fatalf("unexpected record %v", rec)
				}
				n++
			}
			test.MustBe(t, tst.expRecs, n)
			if tst.expErr == "" {
				test.MustBe(t, io.EOF, err)
			} else if err == nil || !strings.Contains(err.Error(), tst.expErr) {
				t.Fatalf("expected error containing %q, got %v", tst.expErr, err)
			}
			test.MustBe(t, tst.expMarked, consumer.marked)
			test.ErrNil(t, src.Close(), "closing source")
			if !consumer.closed {
				t.Fatalf("consumer not closed")
			}
		})
	}
}

func TestSourceNotOpen(t *testing.T) {
	if _, err := NewSource().Record(); err == nil {
		t.Fatalf("expected error from unopened source")
	}
}

func TestConfluentSource(t *testing.T) {
	regURL := StartFakeRegistry(t)
	source := NewConfluentSource()
	source.RegistryURL = regURL
	data := GetAvroEncodedValue(t)
	val := append([]byte{0, 0, 0, 0, 1}, data...)

	parsedRec, err := source.decodeAvroValueWithSchemaRegistry(val)
	if err != nil {
		t.Fatal(err)
	}

	if parsedRec.(map[string]interface{})["mysubthing"].(map[string]interface{})["subdub"] != 3.14 {
		t.Fatalf("parsed and original are different")
	}

	if _, err := source.decodeAvroValueWithSchemaRegistry(append([]byte{0, 0, 0, 0, 2}, data...)); err == nil || !strings.Contains(err.Error(), "unknown id") {
		t.Fatalf("expected unknown schema error, got %v", err)
	}
	if _, err := source.decodeAvroValueWithSchemaRegistry(append([]byte{1, 0, 0, 0, 1}, data...)); err == nil {
		t.Fatalf("expected magic byte error")
	}
}

var value = map[string]interface{}{
	"thing_string": "blah",
	"thing_int":    34,
	"mysubthing": map[string]interface{}{
		"com.koverse.thing.SubThing": map[string]interface{}{
			"substring": map[string]interface{}{"string": "blahsub"},
			"subdub":    map[string]interface{}{"double": 3.14},
		},
	},
}

func GetAvroEncodedValue(t *testing.T) []byte {
	codec, err := goavro.NewCodec(schema1)
	if err != nil {
		t.Fatal(err)
	}

	data, err := codec.BinaryFromNative([]byte{}, value)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestElodinaDecode(t *testing.T) {
	data := GetAvroEncodedValue(t)

	schema, err := avro.ParseSchema(schema1)
	if err != nil {
		t.Fatal(err)
	}
	gomap, err := avroDecode(schema, data)
	if err != nil {
		t.Fatal(err)
	}
	if gomap["thing_int"].(int32) != 34 {
		t.Fatalf("unexpected decoded map: %v", gomap)
	}
}

// StartFakeRegistry serves schema1 as schema id 1 and returns its URL.
func StartFakeRegistry(t *testing.T) string {
	server := httptest.NewServer(http.HandlerFunc(RegistryHandler))
	t.Cleanup(server.Close)
	return server.URL
}

var schema1 = `{
    "fields": [
        {
            "name": "thing_string",
            "type": "string"
        },
        {
            "name": "thing_int",
            "type": "int"
        },
        {
            "name": "mysubthing",
            "type": [
                "null",
                {
                    "fields": [
                       {
                            "name": "substring",
                            "type": [
                                "null",
                                "string"
                            ]
                        },
                        {
                            "name": "subdub",
                            "type": [
                                "null",
                                "double"
                            ]
                        }
                    ],
                    "name": "SubThing",
                    "type": "record"
                }
            ]
        }
    ],
    "name": "Thing",
    "namespace": "com.koverse.thing",
    "type": "record"
}`

func RegistryHandler(w http.ResponseWriter, r *http.Request) {
	var id int32
	_, err := fmt.Sscanf(r.URL.Path, "/schemas/ids/%d", &id)
	if err != nil {
		http.Error(w, errors.Wrap(err, "extracting id from path").Error(), http.StatusBadRequest)
		return
	}
	if id != 1 {
		http.Error(w, fmt.Sprintf("unknown id: %d", id), http.StatusNotFound)
		return
	}
	if err := json.NewEncoder(w).Encode(Schema{Schema: schema1, ID: 1}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func TestMainIngest(t *testing.T) {
	f := test.NewFakePlatform()
	defer f.Close()
	f.AddDataset("ds1", nil)
	regURL := StartFakeRegistry(t)
	avroVal := append([]byte{0, 0, 0, 0, 1}, GetAvroEncodedValue(t)...)

	tests := []struct {
		name     string
		registry string
		values   [][]byte
		exp      []map[string]interface{}
	}{
		{
			name:   "json",
			values: [][]byte{[]byte(`{"a": 1}`), []byte(`{"a": 2}`)},
			exp:    []map[string]interface{}{{"a": int64(1)}, {"a": int64(2)}},
		},
		{
			name:     "avro",
			registry: regURL,
			values:   [][]byte{avroVal},
			exp: []map[string]interface{}{{
				"thing_string": "blah",
				"thing_int":    int64(34),
				"mysubthing":   map[string]interface{}{"substring": "blahsub", "subdub": 3.14},
			}},
		},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			consumer := newFakeConsumer(tst.values...)
			m := NewMain()
			m.RegistryURL = tst.registry
			m.MaxMsgs = len(tst.values)
			m.KdpURL = f.URL
			m.KdpJWT = test.StaticJWT
			m.DatasetName = tst.name
			m.WorkspaceID = "ws1"
			m.LogPath = filepath.Join(t.TempDir(), "log")
			m.ConnOpts = []kdp.ConnOption{kdp.OptConnHTTPClient(f.Client())}
			m.NewConsumer = func(hosts, topics []string, group string, log kdp.Logger) (Consumer, error) {
				test.MustBe(t, []string{"localhost:9092"}, hosts)
				return consumer, nil
			}
			test.ErrNil(t, m.Run(), "running main")
			test.MustBe(t, tst.exp, f.Rows(m.DatasetID))
			if !consumer.closed {
				t.Fatalf("consumer not closed")
			}
			test.MustBe(t, len(tst.values), len(consumer.marked))
		})
	}
}
