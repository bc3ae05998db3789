package cmd

import (
	"context"
	"io"

	"github.com/koverse/kdp"
	"github.com/koverse/kdp/boltdb"
	"github.com/koverse/kdp/leveldb"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Checkpoint stores for ReadMain.
const (
	CheckpointBolt    = "bolt"
	CheckpointLevelDB = "leveldb"
)

// ReadMain reads a dataset and prints its rows to Stdout, one JSON object
// per line.
type ReadMain struct {
	Platform         `flag:"!embed"`
	DatasetID        string `help:"ID of the dataset to read."`
	BatchSize        int    `help:"Number of records per read request."`
	StartingRecordID string `help:"Read the records after this one. Overrides any checkpoint."`
	Limit            int    `help:"Stop after this many rows. 0 reads the whole dataset."`
	CheckpointPath   string `help:"Save the read position here and resume from it on the next run."`
	CheckpointStore  string `help:"Checkpoint store at checkpoint-path: bolt (a file) or leveldb (a directory)."`
	Concurrency      int    `help:"Read the ranges between the dataset's splits with this many concurrent readers. Cannot be combined with checkpoints."`
}

// NewReadMain returns a ReadMain with the default configuration.
func NewReadMain(stdout io.Writer) *ReadMain {
	return &ReadMain{
		Platform:        newPlatform(stdout),
		BatchSize:       kdp.DefaultReadBatchSize,
		CheckpointStore: CheckpointBolt,
	}
}

func (m *ReadMain) checkpointer() (kdp.Checkpointer, error) {
	if m.CheckpointPath == "" {
		return nil, nil
	}
	switch m.CheckpointStore {
	case CheckpointBolt:
		return boltdb.NewCheckpointer(m.CheckpointPath)
	case CheckpointLevelDB:
		return leveldb.NewCheckpointer(m.CheckpointPath)
	default:
		return nil, errors.Errorf("unknown checkpoint store '%s'", m.CheckpointStore)
	}
}

// Run reads the dataset.
func (m *ReadMain) Run(ctx context.Context) error {
	if m.DatasetID == "" {
		return errors.New("dataset-id is required")
	}
	if m.Concurrency > 0 && m.CheckpointPath != "" {
		return errors.New("concurrency and checkpoint-path cannot be combined")
	}
	conn, jwt, err := m.connect(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(m.Stdout)
	if m.Concurrency > 0 {
		rows, err := conn.ReadDatasetParallel(ctx, m.DatasetID, jwt, m.BatchSize, m.Concurrency)
		if err != nil {
			return errors.Wrap(err, "reading dataset")
		}
		for i, row := range rows {
			if m.Limit > 0 && i >= m.Limit {
				break
			}
			if err := enc.Encode(row); err != nil {
				return errors.Wrap(err, "printing row")
			}
		}
		return nil
	}

	cp, err := m.checkpointer()
	if err != nil {
		return errors.Wrap(err, "opening checkpoints")
	}
	if cp != nil {
		defer func() {
			if err := cp.Close(); err != nil {
				m.log.Printf("closing checkpoints: %v", err)
			}
		}()
	}
	src, err := conn.NewReadSource(ctx, m.DatasetID, jwt, kdp.ReadOptions{
		StartingRecordID: m.StartingRecordID,
		BatchSize:        m.BatchSize,
	}, cp)
	if err != nil {
		return errors.Wrap(err, "getting read source")
	}
	n := 0
	for m.Limit <= 0 || n < m.Limit {
		rec, err := src.Record()
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Wrap(err, "reading dataset")
		}
		if err := enc.Encode(rec); err != nil {
			return errors.Wrap(err, "printing row")
		}
		n++
	}
	m.log.Printf("read %d rows from %s, last record %s", n, m.DatasetID, src.LastRecordID())
	return nil
}

// NewReadCommand returns a cobra command wrapping a ReadMain.
func NewReadCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := NewReadMain(stdout)
	return newCommand("read", "print the rows of a dataset as line separated json", m, func(cmd *cobra.Command, args []string) error {
		return m.Run(context.Background())
	})
}

func init() {
	subcommandFns["read"] = NewReadCommand
}
