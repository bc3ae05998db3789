package kdp

import (
	"context"

	"github.com/koverse/kdp/api"
	"github.com/pkg/errors"
)

// DefaultQueryLimit is the number of records a query returns when no limit is
// given.
const DefaultQueryLimit = 5

// QueryOptions page through query results.
type QueryOptions struct {
	// Limit is the maximum number of records. Zero means DefaultQueryLimit.
	Limit  int
	Offset int
}

func (o QueryOptions) request(datasetID, expression string) (api.LuceneQueryRequest, error) {
	if o.Limit < 0 || o.Offset < 0 {
		return api.LuceneQueryRequest{}, errors.Errorf("limit and offset must not be negative, got %d and %d", o.Limit, o.Offset)
	}
	limit := o.Limit
	if limit == 0 {
		limit = DefaultQueryLimit
	}
	return api.LuceneQueryRequest{
		DatasetID:  datasetID,
		Expression: expression,
		Limit:      limit,
		Offset:     o.Offset,
	}, nil
}

// PostLuceneQuery queries a dataset with a lucene expression.
func (c *Conn) PostLuceneQuery(ctx context.Context, datasetID, jwt, expression string, opts QueryOptions) (*api.RecordBatch, error) {
	req, err := opts.request(datasetID, expression)
	if err != nil {
		return nil, err
	}
	res, err := c.client.PostLuceneQuery(ctx, req, api.WithBearerToken(jwt))
	return res, errors.Wrapf(err, "querying %s", datasetID)
}

// PostDocumentLuceneQuery queries the documents of a dataset with a lucene
// expression.
func (c *Conn) PostDocumentLuceneQuery(ctx context.Context, datasetID, jwt, expression string, opts QueryOptions) (*api.QueryDocumentLuceneResponse, error) {
	req, err := opts.request(datasetID, expression)
	if err != nil {
		return nil, err
	}
	res, err := c.client.PostLuceneQueryDocument(ctx, req, api.WithBearerToken(jwt))
	return res, errors.Wrapf(err, "querying documents of %s", datasetID)
}

// PostAuditLogQuery queries an audit log dataset with a lucene expression.
func (c *Conn) PostAuditLogQuery(ctx context.Context, jwt, datasetID, expression string, opts QueryOptions) (*api.AuditLogPaginator, error) {
	req, err := opts.request(datasetID, expression)
	if err != nil {
		return nil, err
	}
	res, err := c.client.PostAuditLogQuery(ctx, req, api.WithBearerToken(jwt))
	return res, errors.Wrapf(err, "querying audit log %s", datasetID)
}
