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
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	cluster "github.com/bsm/sarama-cluster"
	"github.com/elodina/go-avro"
	jsoniter "github.com/json-iterator/go"
	"github.com/koverse/kdp"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Consumer is the part of a consumer group client used by Source.
// *cluster.Consumer implements it.
type Consumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	MarkOffset(msg *sarama.ConsumerMessage, metadata string)
	Close() error
}

// NewClusterConsumer joins group as a consumer of topics, starting from the
// oldest offset when the group has none committed. Errors and rebalance
// notifications are logged.
func NewClusterConsumer(hosts, topics []string, group string, logger kdp.Logger) (Consumer, error) {
	sarama.Logger = log.New(ioutil.Discard, "", 0)
	config := cluster.NewConfig()
	config.Config.Version = sarama.V0_10_0_0
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Group.Return.Notifications = true

	consumer, err := cluster.NewConsumer(hosts, group, topics, config)
	if err != nil {
		return nil, errors.Wrap(err, "getting new consumer")
	}

	go func() {
		for err := range consumer.Errors() {
			logger.Printf("kafka consumer error: %v", err)
		}
	}()
	go func() {
		for ntf := range consumer.Notifications() {
			logger.Printf("rebalanced: %+v", ntf)
		}
	}()
	return consumer, nil
}

// Source implements the kdp.Source interface using kafka as a data source.
type Source struct {
	Hosts  []string
	Topics []string
	Group  string
	// Type is "json" for map[string]interface{} records or "raw" for the
	// *sarama.ConsumerMessage itself.
	Type string
	// MaxMsgs stops the Source after that many messages when positive.
	MaxMsgs int
	// IdleTimeout stops the Source when no message arrives for that long.
	// Zero waits forever.
	IdleTimeout time.Duration
	Log         kdp.Logger

	numMsgs  int
	last     *sarama.ConsumerMessage
	consumer Consumer
}

// NewSource gets a new Source
func NewSource() *Source {
	return &Source{
		Hosts:  []string{"localhost:9092"},
		Topics: []string{"test"},
		Group:  "group0",
		Type:   "json",
		Log:    kdp.NopLogger{},
	}
}

// Record returns the value of the next kafka message. The offset of a
// message is marked once the following record is requested, so a message is
// only committed after the caller is done with it.
func (s *Source) Record() (interface{}, error) {
	if s.consumer == nil {
		return nil, errors.New("source is not open")
	}
	if s.last != nil {
		s.consumer.MarkOffset(s.last, "")
		s.last = nil
	}
	if s.MaxMsgs > 0 {
		if s.numMsgs >= s.MaxMsgs {
			return nil, io.EOF
		}
	}
	var timeout <-chan time.Time
	if s.IdleTimeout > 0 {
		timer := time.NewTimer(s.IdleTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	var msg *sarama.ConsumerMessage
	var ok bool
	select {
	case msg, ok = <-s.consumer.Messages():
		if !ok {
			return nil, errors.New("messages channel closed")
		}
	case <-timeout:
		s.Log.Printf("no message for %v, stopping", s.IdleTimeout)
		return nil, io.EOF
	}
	s.numMsgs++
	s.last = msg
	switch s.Type {
	case "json":
		parsed := make(map[string]interface{})
		err := json.Unmarshal(msg.Value, &parsed)
		if err != nil {
			return nil, errors.Wrapf(err, "unmarshaling json at %s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
		}
		return parsed, nil
	case "raw":
		return msg, nil
	default:
		return nil, errors.Errorf("unsupported kafka message type: '%v'", s.Type)
	}
}

// Open initializes the kafka source.
func (s *Source) Open() error {
	if s.consumer != nil {
		return nil
	}
	if s.Log == nil {
		s.Log = kdp.NopLogger{}
	}
	var err error
	s.consumer, err = NewClusterConsumer(s.Hosts, s.Topics, s.Group, s.Log)
	return err
}

// Close marks the last message and closes the underlying kafka consumer.
func (s *Source) Close() error {
	if s.consumer == nil {
		return nil
	}
	if s.last != nil {
		s.consumer.MarkOffset(s.last, "")
		s.last = nil
	}
	err := s.consumer.Close()
	return errors.Wrap(err, "closing kafka consumer")
}

// ConfluentSource implements kdp.Source using Kafka and the Confluent schema
// registry. Message values are Avro with the registry's wire format: a zero
// magic byte and a 4 byte schema id ahead of the encoded datum.
type ConfluentSource struct {
	Source
	RegistryURL string
	Client      *http.Client

	lock  sync.RWMutex
	cache map[int32]avro.Schema
}

// NewConfluentSource returns a new ConfluentSource.
func NewConfluentSource() *ConfluentSource {
	src := &ConfluentSource{
		Source: *NewSource(),
		Client: http.DefaultClient,
		cache:  make(map[int32]avro.Schema),
	}
	src.Type = "raw"
	return src
}

// Record returns the next value from kafka.
func (s *ConfluentSource) Record() (interface{}, error) {
	rec, err := s.Source.Record()
	if err != nil {
		return rec, err
	}
	msg, ok := rec.(*sarama.ConsumerMessage)
	if !ok {
		return rec, errors.Errorf("record is not a raw kafka record, but a %T", rec)
	}
	return s.decodeAvroValueWithSchemaRegistry(msg.Value)
}

func (s *ConfluentSource) decodeAvroValueWithSchemaRegistry(val []byte) (interface{}, error) {
	if len(val) <= 5 || val[0] != 0 {
		return nil, errors.Errorf("unexpected magic byte or length in avro kafka value, should be 0x00, but got 0x%.8x", val)
	}
	id := int32(binary.BigEndian.Uint32(val[1:]))
	codec, err := s.getCodec(id)
	if err != nil {
		return nil, errors.Wrap(err, "getting avro codec")
	}
	ret, err := avroDecode(codec, val[5:])
	return ret, errors.Wrap(err, "decoding avro record")
}

// The Schema type is an object produced by the schema registry.
type Schema struct {
	Schema  string `json:"schema"`  // The actual AVRO schema
	Subject string `json:"subject"` // Subject where the schema is registered for
	Version int    `json:"version"` // Version within this subject
	ID      int    `json:"id"`      // Registry's unique id
}

func (s *ConfluentSource) registryURL() string {
	if strings.HasPrefix(s.RegistryURL, "http://") || strings.HasPrefix(s.RegistryURL, "https://") {
		return strings.TrimSuffix(s.RegistryURL, "/")
	}
	return "http://" + strings.TrimSuffix(s.RegistryURL, "/")
}

func (s *ConfluentSource) getCodec(id int32) (avro.Schema, error) {
	s.lock.RLock()
	if codec, ok := s.cache[id]; ok {
		s.lock.RUnlock()
		return codec, nil
	}
	s.lock.RUnlock()
	s.lock.Lock()
	defer s.lock.Unlock()
	if codec, ok := s.cache[id]; ok {
		return codec, nil
	}
	r, err := s.Client.Get(fmt.Sprintf("%s/schemas/ids/%d", s.registryURL(), id))
	if err != nil {
		return nil, errors.Wrap(err, "getting schema from registry")
	}
	defer r.Body.Close()
	if r.StatusCode >= 300 {
		bod, err := ioutil.ReadAll(r.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get schema, code: %d, no body", r.StatusCode)
		}
		return nil, errors.Errorf("failed to get schema, code: %d, resp: %s", r.StatusCode, bod)
	}
	schema := &Schema{}
	if err := json.NewDecoder(r.Body).Decode(schema); err != nil {
		return nil, errors.Wrap(err, "decoding schema from registry")
	}
	codec, err := avro.ParseSchema(schema.Schema)
	if err != nil {
		return nil, errors.Wrap(err, "parsing schema")
	}
	s.cache[id] = codec
	return codec, nil
}

func avroDecode(codec avro.Schema, data []byte) (map[string]interface{}, error) {
	reader := avro.NewGenericDatumReader()
	// SetSchema must be called before calling Read
	reader.SetSchema(codec)
	decoder := avro.NewBinaryDecoder(data)
	decodedRecord := avro.NewGenericRecord(codec)
	if err := reader.Read(decodedRecord, decoder); err != nil {
		return nil, errors.Wrap(err, "reading generic datum")
	}
	return decodedRecord.Map(), nil
}
