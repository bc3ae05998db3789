package leveldb

import (
	"os"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var prefix = []byte("checkpoint/")

func key(datasetID string) []byte {
	return append(append([]byte{}, prefix...), datasetID...)
}

// Checkpointer is a kdp.Checkpointer which stores the last record read from
// each dataset in a leveldb directory.
type Checkpointer struct {
	db *leveldb.DB
	// Sync makes each SetCheckpoint wait for the write to reach disk.
	Sync bool
}

// NewCheckpointer opens (creating if necessary) a leveldb database in
// dirname.
func NewCheckpointer(dirname string) (*Checkpointer, error) {
	if err := os.MkdirAll(dirname, 0700); err != nil {
		return nil, errors.Wrap(err, "making directory")
	}
	db, err := leveldb.OpenFile(dirname, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %v", dirname)
	}
	return &Checkpointer{db: db, Sync: true}, nil
}

// Checkpoint returns the id of the last record read from datasetID, or ""
// if there is none.
func (c *Checkpointer) Checkpoint(datasetID string) (string, error) {
	val, err := c.db.Get(key(datasetID), nil)
	if err == leveldb.ErrNotFound {
		return "", nil
	} else if err != nil {
		return "", errors.Wrapf(err, "getting checkpoint of %s", datasetID)
	}
	return string(val), nil
}

// SetCheckpoint records recordID as the last record read from datasetID.
func (c *Checkpointer) SetCheckpoint(datasetID, recordID string) error {
	if datasetID == "" {
		return errors.New("dataset id is required")
	}
	err := c.db.Put(key(datasetID), []byte(recordID), &opt.WriteOptions{Sync: c.Sync})
	return errors.Wrapf(err, "saving checkpoint of %s", datasetID)
}

// Checkpoints returns every saved checkpoint, keyed by dataset id.
func (c *Checkpointer) Checkpoints() (map[string]string, error) {
	ret := make(map[string]string)
	iter := c.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		ret[string(iter.Key()[len(prefix):])] = string(iter.Value())
	}
	return ret, errors.Wrap(iter.Error(), "iterating checkpoints")
}

// Close closes the underlying leveldb.
func (c *Checkpointer) Close() error {
	return errors.Wrap(c.db.Close(), "closing leveldb")
}
