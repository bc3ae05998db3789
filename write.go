package kdp

import (
	"bytes"
	"context"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
	"github.com/koverse/kdp/api"
	"github.com/pkg/errors"
)

// DefaultWriteBatchSize is the number of rows per write request when
// WriteOptions.BatchSize is zero.
const DefaultWriteBatchSize = 100

// PartitionSet is the set of partitions a write went to.
type PartitionSet map[string]struct{}

// Add adds partitions to the set.
func (p PartitionSet) Add(partitions ...string) {
	for _, part := range partitions {
		p[part] = struct{}{}
	}
}

// Merge adds every partition of o to p.
func (p PartitionSet) Merge(o PartitionSet) {
	for part := range o {
		p[part] = struct{}{}
	}
}

// Has reports whether part is in the set.
func (p PartitionSet) Has(part string) bool {
	_, ok := p[part]
	return ok
}

// Slice returns the partitions in sorted order.
func (p PartitionSet) Slice() []string {
	ret := make([]string, 0, len(p))
	for part := range p {
		ret = append(ret, part)
	}
	sort.Strings(ret)
	return ret
}

// WriteOptions control a batched write.
type WriteOptions struct {
	// BatchSize is the number of rows per request. Zero means
	// DefaultWriteBatchSize.
	BatchSize int

	// Sync makes the Platform finish each write before responding. Writes
	// are asynchronous by default.
	Sync bool

	// Compressed gzips the request body. Only used by BatchWriteV2.
	Compressed bool

	// SecurityLabelInfo tells the Platform how to parse security labels out
	// of the records. Only used by BatchWriteV2.
	SecurityLabelInfo *api.SecurityLabelInfoParams
}

func (o WriteOptions) batchSize() (int, error) {
	if o.BatchSize < 0 {
		return 0, errors.Errorf("batch size must be positive, got %d", o.BatchSize)
	}
	if o.BatchSize == 0 {
		return DefaultWriteBatchSize, nil
	}
	return o.BatchSize, nil
}

func (o WriteOptions) params() api.WriteParams {
	async := !o.Sync
	return api.WriteParams{IsAsync: &async}
}

// BatchWrite writes rows to a dataset with the v1 write endpoint, batchSize
// rows at a time. The last batch may be shorter. It returns the union of the
// partitions reported for each batch. The first failing batch aborts the
// write.
func (c *Conn) BatchWrite(ctx context.Context, rows []map[string]interface{}, datasetID, jwt string, opts WriteOptions) (PartitionSet, error) {
	return c.batchWrite(ctx, rows, datasetID, opts, func(batch []map[string]interface{}) (*api.WriteBatchResponse, error) {
		return c.client.PostWrite(ctx, datasetID, opts.params(), batch, api.WithBearerToken(jwt))
	})
}

// BatchWriteV2 is BatchWrite using the v2 write endpoint, which also accepts
// security label information and gzip compressed payloads.
func (c *Conn) BatchWriteV2(ctx context.Context, rows []map[string]interface{}, datasetID, jwt string, opts WriteOptions) (PartitionSet, error) {
	if sli := opts.SecurityLabelInfo; sli != nil && sli.ParserClassName == "" {
		return nil, errors.New("security label info requires a parser class name")
	}
	return c.batchWrite(ctx, rows, datasetID, opts, func(batch []map[string]interface{}) (*api.WriteBatchResponse, error) {
		req := api.BatchWriteRequest{
			Records:           batch,
			SecurityLabelInfo: opts.SecurityLabelInfo,
		}
		if !opts.Compressed {
			return c.client.PostV2Write(ctx, datasetID, opts.params(), req, api.WithBearerToken(jwt))
		}
		body, err := gzipJSON(req)
		if err != nil {
			return nil, errors.Wrap(err, "compressing batch")
		}
		c.log.Debugf("writing %d compressed bytes to %s", body.Len(), datasetID)
		return c.client.PostV2WriteWithBody(ctx, datasetID, opts.params(), "application/json", body,
			api.WithBearerToken(jwt), api.WithGzipContentEncoding())
	})
}

func (c *Conn) batchWrite(ctx context.Context, rows []map[string]interface{}, datasetID string, opts WriteOptions, write func([]map[string]interface{}) (*api.WriteBatchResponse, error)) (PartitionSet, error) {
	if datasetID == "" {
		return nil, errors.New("dataset id is required")
	}
	batchSize, err := opts.batchSize()
	if err != nil {
		return nil, err
	}
	partitions := make(PartitionSet)
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return partitions, errors.Wrap(err, "waiting for write limiter")
			}
		}
		resp, err := write(rows[i:end])
		if err != nil {
			return partitions, errors.Wrapf(err, "writing rows %d-%d to %s", i, end, datasetID)
		}
		partitions.Add(resp.Partitions...)
		c.stats.Count("kdp.write.batches", 1, 1)
		c.stats.Count("kdp.write.rows", int64(end-i), 1)
		c.log.Debugf("wrote rows %d-%d to %s, partitions: %v", i, end, datasetID, resp.Partitions)
	}
	return partitions, nil
}

func gzipJSON(v interface{}) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	zw := gzip.NewWriter(buf)
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(zw).Encode(v); err != nil {
		return nil, errors.Wrap(err, "encoding json")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "closing gzip writer")
	}
	return buf, nil
}
