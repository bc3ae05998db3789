package connector

import (
	"context"

	"github.com/koverse/kdp"
	"github.com/pkg/errors"
)

// Schema is the host's description of the rows handed to a Writer.
type Schema struct {
	Columns []Column `mapstructure:"columns" json:"columns"`
}

// Column is one column of a Schema.
type Column struct {
	Name string `mapstructure:"name" json:"name"`
	Type string `mapstructure:"type" json:"type"`
}

// Writer buffers the rows of a host and writes them to the Platform on Close.
type Writer struct {
	c      *Connector
	schema Schema
	rows   []map[string]interface{}
}

// GetWriter returns a Writer for rows laid out according to schema.
func (c *Connector) GetWriter(schema Schema) *Writer {
	c.log.Printf("writer for workspace %s, dataset %s, batch size %d", c.cfg.Preset.WorkspaceID, c.cfg.DatasetID, c.cfg.BatchSize)
	return &Writer{c: c, schema: schema}
}

// WriteRow buffers a row, naming its values after the schema's columns.
// Values beyond the last column are dropped.
func (w *Writer) WriteRow(row []interface{}) {
	obj := make(map[string]interface{}, len(w.schema.Columns))
	for i, col := range w.schema.Columns {
		if i >= len(row) {
			break
		}
		obj[col.Name] = row[i]
	}
	w.rows = append(w.rows, obj)
}

// Buffered returns the number of rows waiting to be written.
func (w *Writer) Buffered() int { return len(w.rows) }

// Close writes the buffered rows, first creating the dataset unless an
// existing one is used. It returns the partitions written to, which is nil
// when nothing was buffered.
func (w *Writer) Close(ctx context.Context) (kdp.PartitionSet, error) {
	defer w.c.log.Printf("write to kdp completed")
	if len(w.rows) == 0 {
		return nil, nil
	}
	cfg := w.c.cfg
	jwt, err := w.c.token(ctx)
	if err != nil {
		return nil, err
	}
	w.c.log.Printf("use existing dataset: %v", cfg.UseExistingDataset)
	datasetID := cfg.DatasetID
	if !cfg.UseExistingDataset {
		if cfg.DatasetName == "" {
			return nil, errors.New("dataset name is required to create a new dataset")
		}
		ds, err := w.c.conn.CreateDataset(ctx, cfg.DatasetName, cfg.Preset.WorkspaceID, jwt, kdp.DatasetOptions{})
		if err != nil {
			return nil, errors.Wrap(err, "creating dataset")
		}
		w.c.log.Printf("created dataset with name %s and id %s", ds.Name, ds.ID)
		datasetID = ds.ID
	}
	w.c.log.Printf("writing to dataset %s", datasetID)
	parts, err := w.c.conn.BatchWrite(ctx, w.rows, datasetID, jwt, kdp.WriteOptions{BatchSize: cfg.BatchSize})
	if err != nil {
		return parts, errors.Wrap(err, "writing rows")
	}
	w.c.log.Printf("export completed with partitions %v", parts.Slice())
	w.rows = nil
	return parts, nil
}
