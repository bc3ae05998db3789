package kdp

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/koverse/kdp/api"
	"github.com/koverse/kdp/termstat"
	"github.com/pkg/errors"
)

// Ingester pulls records from a Source and writes them to a dataset in
// batches with BatchWriteV2.
type Ingester struct {
	src       Source
	conn      *Conn
	datasetID string
	jwt       string
	opts      WriteOptions
}

// NewIngester returns an Ingester which writes the records of source to
// datasetID.
func NewIngester(source Source, conn *Conn, datasetID, jwt string, opts WriteOptions) *Ingester {
	return &Ingester{
		src:       source,
		conn:      conn,
		datasetID: datasetID,
		jwt:       jwt,
		opts:      opts,
	}
}

// Run reads the Source until io.EOF, flushing every BatchSize rows and once
// more at the end. Records which aren't rows are logged and skipped. It
// returns the partitions written to.
func (n *Ingester) Run(ctx context.Context) (PartitionSet, error) {
	batchSize, err := n.opts.batchSize()
	if err != nil {
		return nil, err
	}
	partitions := make(PartitionSet)
	buf := make([]map[string]interface{}, 0, batchSize)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		parts, err := n.conn.BatchWriteV2(ctx, buf, n.datasetID, n.jwt, n.opts)
		partitions.Merge(parts)
		if err != nil {
			return err
		}
		buf = buf[:0]
		return nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return partitions, err
		}
		rec, err := n.src.Record()
		if err == io.EOF {
			break
		} else if err != nil {
			return partitions, errors.Wrap(err, "getting record")
		}
		row, err := toRow(rec)
		if err != nil {
			n.conn.log.Printf("couldn't convert record %v, err: %v", rec, err)
			n.conn.stats.Count("kdp.ingest.skipped", 1, 1)
			continue
		}
		buf = append(buf, row)
		if len(buf) >= batchSize {
			if err := flush(); err != nil {
				return partitions, errors.Wrap(err, "flushing batch")
			}
		}
	}
	if err := flush(); err != nil {
		return partitions, errors.Wrap(err, "flushing final batch")
	}
	return partitions, nil
}

func toRow(rec interface{}) (map[string]interface{}, error) {
	switch r := rec.(type) {
	case map[string]interface{}:
		return r, nil
	case api.Record:
		return Row(r), nil
	case map[string]string:
		row := make(map[string]interface{}, len(r))
		for k, v := range r {
			row[k] = v
		}
		return row, nil
	default:
		return nil, errors.Errorf("unsupported record type %T", rec)
	}
}

// Main holds the configuration shared by every command which ingests a Source
// into a dataset. Source packages embed it and set NewSource.
type Main struct {
	Preset      `flag:"!embed"`
	DatasetID   string        `help:"ID of the dataset to write to."`
	DatasetName string        `help:"Create a dataset with this name in workspace-id when dataset-id is empty."`
	BatchSize   int           `help:"Number of records per write request."`
	Compressed  bool          `help:"Gzip write request bodies."`
	Sync        bool          `help:"Wait for each batch to be stored before writing the next."`
	WriteRate   float64       `help:"Maximum write requests per second. 0 means unlimited."`
	LogPath     string        `help:"Log file to write to. Empty means stderr."`
	Verbose     bool          `help:"Enable verbose logging."`
	Progress    time.Duration `help:"Log write statistics at this interval. 0 disables them."`

	NewSource func() (Source, error) `flag:"-"`
	ConnOpts  []ConnOption           `flag:"-"`
	Stats     Statter                `flag:"-"`

	log        Logger
	closeStats func() error
}

// NewMain returns a Main with the default configuration.
func NewMain() *Main {
	return &Main{
		Preset: Preset{
			KdpURL:   api.DefaultServer,
			AuthType: AuthTypeJWT,
		},
		BatchSize: DefaultWriteBatchSize,
	}
}

// Log returns the logger set up by Run.
func (m *Main) Log() Logger { return m.log }

func (m *Main) setupLog() error {
	l, err := NewLogger(m.LogPath, m.Verbose)
	if err != nil {
		return err
	}
	m.log = l
	return nil
}

// NewLogger returns a Logger writing to the file at path, or to stderr when
// path is empty. Debugf only prints when verbose is set.
func NewLogger(path string, verbose bool) (Logger, error) {
	logOut := io.Writer(os.Stderr)
	if path != "" {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, errors.Wrap(err, "opening log file")
		}
		logOut = f
	}
	if verbose {
		return VerboseLogger{log.New(logOut, "", log.LstdFlags)}, nil
	}
	return StdLogger{log.New(logOut, "", log.LstdFlags)}, nil
}

func (m *Main) validate() error {
	if m.NewSource == nil {
		return errors.New("no source configured")
	}
	if m.DatasetID == "" && m.DatasetName == "" {
		return errors.New("one of dataset-id or dataset-name is required")
	}
	if m.DatasetID == "" && m.WorkspaceID == "" {
		return errors.New("workspace-id is required to create a dataset")
	}
	if m.BatchSize <= 0 {
		return errors.Errorf("batch-size must be positive, got %d", m.BatchSize)
	}
	return nil
}

// Connect sets up logging, connects to the Platform and resolves a token.
func (m *Main) Connect(ctx context.Context) (*Conn, string, error) {
	if err := m.setupLog(); err != nil {
		return nil, "", errors.Wrap(err, "setting up logging")
	}
	stats := m.Stats
	if stats == nil && m.Progress > 0 {
		c := termstat.NewCollector(m.log, m.Progress)
		stats, m.closeStats = c, c.Close
	} else if stats == nil {
		stats = NopStatter{}
	}
	opts := []ConnOption{OptConnLogger(m.log), OptConnStatter(stats), OptConnWriteRate(m.WriteRate)}
	conn, err := m.Preset.Conn(append(opts, m.ConnOpts...)...)
	if err != nil {
		m.stopStats()
		return nil, "", errors.Wrap(err, "connecting")
	}
	jwt, err := ResolveJWT(ctx, m.Preset, conn, m.log)
	if err != nil {
		m.stopStats()
		return nil, "", errors.Wrap(err, "resolving jwt")
	}
	return conn, jwt, nil
}

// stopStats closes the progress collector started by Connect, if any.
func (m *Main) stopStats() {
	if m.closeStats == nil {
		return
	}
	if err := m.closeStats(); err != nil {
		m.log.Printf("closing stats: %v", err)
	}
	m.closeStats = nil
}

// Run ingests the Source returned by NewSource.
func (m *Main) Run() error {
	if err := m.validate(); err != nil {
		return errors.Wrap(err, "validating configuration")
	}
	ctx := context.Background()
	conn, jwt, err := m.Connect(ctx)
	if err != nil {
		return err
	}
	defer m.stopStats()
	if m.DatasetID == "" {
		ds, err := conn.CreateDataset(ctx, m.DatasetName, m.WorkspaceID, jwt, DatasetOptions{})
		if err != nil {
			return errors.Wrap(err, "creating dataset")
		}
		m.log.Printf("created dataset %s (%s)", ds.Name, ds.ID)
		m.DatasetID = ds.ID
	}
	src, err := m.NewSource()
	if err != nil {
		return errors.Wrap(err, "getting source")
	}
	if closer, ok := src.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				m.log.Printf("closing source: %v", err)
			}
		}()
	}
	ingester := NewIngester(src, conn, m.DatasetID, jwt, WriteOptions{
		BatchSize:  m.BatchSize,
		Sync:       m.Sync,
		Compressed: m.Compressed,
	})
	partitions, err := ingester.Run(ctx)
	if err != nil {
		return errors.Wrap(err, "running ingester")
	}
	m.log.Printf("wrote to %d partitions of %s: %v", len(partitions), m.DatasetID, partitions.Slice())
	return nil
}
