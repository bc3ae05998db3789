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

package boltdb

import (
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

var checkpointBucket = []byte("checkpoints")

// Checkpointer is a kdp.Checkpointer which keeps the last record read from
// each dataset in a bolt database file.
type Checkpointer struct {
	Db *bolt.DB
}

// NewCheckpointer opens (creating if necessary) the bolt database at
// filename.
func NewCheckpointer(filename string) (*Checkpointer, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(checkpointBucket)
		return errors.Wrap(err, "creating checkpoint bucket")
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return &Checkpointer{Db: db}, nil
}

// Checkpoint returns the id of the last record read from datasetID, or ""
// if there is none.
func (c *Checkpointer) Checkpoint(datasetID string) (recordID string, err error) {
	err = c.Db.View(func(tx *bolt.Tx) error {
		// the returned slice is only valid within the transaction
		recordID = string(tx.Bucket(checkpointBucket).Get([]byte(datasetID)))
		return nil
	})
	return recordID, errors.Wrap(err, "reading checkpoint")
}

// SetCheckpoint records recordID as the last record read from datasetID.
func (c *Checkpointer) SetCheckpoint(datasetID, recordID string) error {
	if datasetID == "" {
		return errors.New("dataset id is required")
	}
	err := c.Db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(checkpointBucket).Put([]byte(datasetID), []byte(recordID))
	})
	return errors.Wrapf(err, "saving checkpoint of %s", datasetID)
}

// Checkpoints returns every saved checkpoint, keyed by dataset id.
func (c *Checkpointer) Checkpoints() (map[string]string, error) {
	ret := make(map[string]string)
	err := c.Db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(checkpointBucket).ForEach(func(k, v []byte) error {
			ret[string(k)] = string(v)
			return nil
		})
	})
	return ret, errors.Wrap(err, "listing checkpoints")
}

// Close syncs and closes the database.
func (c *Checkpointer) Close() error {
	err := c.Db.Sync()
	if err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return c.Db.Close()
}
