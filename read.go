package kdp

import (
	"context"
	"io"

	"github.com/koverse/kdp/api"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Read defaults.
const (
	DefaultReadBatchSize  = 100000
	DefaultRangeBatchSize = 10
)

// ReadOptions control a sequential read.
type ReadOptions struct {
	// StartingRecordID is the record after which reading starts. Empty
	// reads from the beginning of the dataset.
	StartingRecordID string

	// BatchSize is the number of records requested per page. Zero means
	// DefaultReadBatchSize.
	BatchSize int
}

func (o ReadOptions) batchSize() (int, error) {
	if o.BatchSize < 0 {
		return 0, errors.Errorf("batch size must be positive, got %d", o.BatchSize)
	}
	if o.BatchSize == 0 {
		return DefaultReadBatchSize, nil
	}
	return o.BatchSize, nil
}

// Row returns the user data of rec, which the Platform keeps under
// api.DataStoreKey. Records without one are returned whole.
func Row(rec api.Record) map[string]interface{} {
	if ds, ok := rec[api.DataStoreKey].(map[string]interface{}); ok {
		return ds
	}
	return map[string]interface{}(rec)
}

// ReadDataset reads every record of a dataset, in order, starting after
// opts.StartingRecordID. Pages are requested until the Platform reports there
// are no more.
func (c *Conn) ReadDataset(ctx context.Context, datasetID, jwt string, opts ReadOptions) ([]map[string]interface{}, error) {
	src, err := c.NewReadSource(ctx, datasetID, jwt, opts, nil)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]interface{}, 0)
	for {
		page, err := src.nextPage()
		if err == io.EOF {
			return rows, nil
		} else if err != nil {
			return nil, err
		}
		for _, rec := range page {
			rows = append(rows, Row(rec))
		}
	}
}

// ReadSource is a Source over the rows of a dataset. Pages are fetched as the
// rows are consumed. It is not safe for concurrent use.
type ReadSource struct {
	ctx       context.Context
	conn      *Conn
	datasetID string
	jwt       string
	batchSize int
	cp        Checkpointer

	next    string
	started bool
	more    bool
	buf     []api.Record
	pending bool
}

// NewReadSource returns a ReadSource for datasetID. When cp is non-nil and
// opts.StartingRecordID is empty, reading resumes after the record saved by
// cp, and the position is saved each time a page has been consumed.
func (c *Conn) NewReadSource(ctx context.Context, datasetID, jwt string, opts ReadOptions, cp Checkpointer) (*ReadSource, error) {
	if datasetID == "" {
		return nil, errors.New("dataset id is required")
	}
	batchSize, err := opts.batchSize()
	if err != nil {
		return nil, err
	}
	s := &ReadSource{
		ctx:       ctx,
		conn:      c,
		datasetID: datasetID,
		jwt:       jwt,
		batchSize: batchSize,
		cp:        cp,
		next:      opts.StartingRecordID,
	}
	if cp != nil && s.next == "" {
		s.next, err = cp.Checkpoint(datasetID)
		if err != nil {
			return nil, errors.Wrap(err, "getting checkpoint")
		}
		if s.next != "" {
			c.log.Printf("resuming read of %s after record %s", datasetID, s.next)
		}
	}
	return s, nil
}

// Record implements Source. Each record is a map[string]interface{} row.
func (s *ReadSource) Record() (interface{}, error) {
	for len(s.buf) == 0 {
		page, err := s.nextPage()
		if err != nil {
			return nil, err
		}
		s.buf = page
	}
	rec := s.buf[0]
	s.buf = s.buf[1:]
	return Row(rec), nil
}

// LastRecordID is the id of the last record of the most recently fetched
// page.
func (s *ReadSource) LastRecordID() string { return s.next }

func (s *ReadSource) nextPage() ([]api.Record, error) {
	if err := s.checkpoint(); err != nil {
		return nil, err
	}
	if s.started && !s.more {
		return nil, io.EOF
	}
	batch, err := s.conn.client.PostReadInSequence(s.ctx, api.SequenceReadRequest{
		DatasetID:        s.datasetID,
		StartingRecordID: s.next,
		BatchSize:        s.batchSize,
	}, api.WithBearerToken(s.jwt))
	if err != nil {
		return nil, errors.Wrapf(err, "reading dataset %s after '%s'", s.datasetID, s.next)
	}
	if batch.More && len(batch.Records) == 0 {
		return nil, errors.Errorf("read of dataset %s made no progress after '%s'", s.datasetID, s.next)
	}
	s.started = true
	s.more = batch.More
	if batch.LastRecordID != "" {
		s.next = batch.LastRecordID
	}
	s.pending = true
	s.conn.stats.Count("kdp.read.records", int64(len(batch.Records)), 1)
	s.conn.log.Debugf("read %d records from %s, more: %v", len(batch.Records), s.datasetID, batch.More)
	return batch.Records, nil
}

func (s *ReadSource) checkpoint() error {
	if s.cp == nil || !s.pending {
		return nil
	}
	s.pending = false
	return errors.Wrap(s.cp.SetCheckpoint(s.datasetID, s.next), "saving checkpoint")
}

// GetSplits returns the split points of a dataset.
func (c *Conn) GetSplits(ctx context.Context, datasetID, jwt string) ([]string, error) {
	splits, err := c.client.GetSplits(ctx, datasetID, api.WithBearerToken(jwt))
	if err != nil {
		return nil, errors.Wrapf(err, "getting splits of %s", datasetID)
	}
	return splits.Splits, nil
}

// ReadBatch reads one batch of records between two record ids. A batchSize of
// zero means DefaultRangeBatchSize.
func (c *Conn) ReadBatch(ctx context.Context, datasetID, startingRecordID, endingRecordID string, excludeStartingRecordID bool, batchSize int, jwt string) (*api.RecordBatch, error) {
	if batchSize == 0 {
		batchSize = DefaultRangeBatchSize
	}
	batch, err := c.client.PostRead(ctx, api.ReadRangeRequest{
		DatasetID:               datasetID,
		StartingRecordID:        startingRecordID,
		EndingRecordID:          endingRecordID,
		ExcludeStartingRecordID: excludeStartingRecordID,
		BatchSize:               batchSize,
	}, api.WithBearerToken(jwt))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s from '%s' to '%s'", datasetID, startingRecordID, endingRecordID)
	}
	return batch, nil
}

// readRange reads all records in (start, end], or [start, end] when
// includeStart is set.
func (c *Conn) readRange(ctx context.Context, datasetID, start, end string, includeStart bool, batchSize int, jwt string) ([]map[string]interface{}, error) {
	rows := make([]map[string]interface{}, 0)
	exclude := !includeStart
	for {
		batch, err := c.ReadBatch(ctx, datasetID, start, end, exclude, batchSize, jwt)
		if err != nil {
			return nil, err
		}
		for _, rec := range batch.Records {
			rows = append(rows, Row(rec))
		}
		c.stats.Count("kdp.read.records", int64(len(batch.Records)), 1)
		if !batch.More || batch.LastRecordID == "" || batch.LastRecordID == start {
			return rows, nil
		}
		start = batch.LastRecordID
		exclude = true
	}
}

// ReadDatasetParallel reads the ranges between the dataset's split points
// with up to concurrency concurrent readers and returns the rows in split
// order. A concurrency <= 0 reads every range at once.
func (c *Conn) ReadDatasetParallel(ctx context.Context, datasetID, jwt string, batchSize, concurrency int) ([]map[string]interface{}, error) {
	if batchSize < 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", batchSize)
	}
	if batchSize == 0 {
		batchSize = DefaultReadBatchSize
	}
	splits, err := c.GetSplits(ctx, datasetID, jwt)
	if err != nil {
		return nil, err
	}
	// n split points make n+1 ranges; the first starts at the beginning and
	// the last runs to the end of the dataset.
	bounds := make([]string, 0, len(splits)+2)
	bounds = append(bounds, "")
	bounds = append(bounds, splits...)
	bounds = append(bounds, "")
	parts := make([][]map[string]interface{}, len(bounds)-1)

	eg, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		eg.SetLimit(concurrency)
	}
	for i := 0; i < len(bounds)-1; i++ {
		i := i
		eg.Go(func() error {
			rows, err := c.readRange(ctx, datasetID, bounds[i], bounds[i+1], i == 0, batchSize, jwt)
			if err != nil {
				return errors.Wrapf(err, "reading range %d", i)
			}
			parts[i] = rows
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	rows := make([]map[string]interface{}, 0)
	for _, part := range parts {
		rows = append(rows, part...)
	}
	return rows, nil
}
