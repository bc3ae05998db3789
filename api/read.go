package api

import (
	"context"
	"net/http"
)

// PostAuthentication exchanges credentials for a KDP access token.
func (c *Client) PostAuthentication(ctx context.Context, body AuthenticationRequest, reqEditors ...RequestEditorFn) (*AuthenticationDetails, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/authentication", nil, body)
	if err != nil {
		return nil, err
	}
	out := &AuthenticationDetails{}
	return out, c.do(ctx, req, out, reqEditors)
}

// PostReadInSequence reads up to BatchSize records following
// StartingRecordID. An empty StartingRecordID reads from the beginning.
func (c *Client) PostReadInSequence(ctx context.Context, body SequenceReadRequest, reqEditors ...RequestEditorFn) (*RecordBatch, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/readInSequence", nil, body)
	if err != nil {
		return nil, err
	}
	out := &RecordBatch{}
	return out, c.do(ctx, req, out, reqEditors)
}

// PostRead reads a batch of records between two record ids.
func (c *Client) PostRead(ctx context.Context, body ReadRangeRequest, reqEditors ...RequestEditorFn) (*RecordBatch, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/read", nil, body)
	if err != nil {
		return nil, err
	}
	out := &RecordBatch{}
	return out, c.do(ctx, req, out, reqEditors)
}

// GetSplits returns the split points of a dataset.
func (c *Client) GetSplits(ctx context.Context, datasetID string, reqEditors ...RequestEditorFn) (*SplitPoints, error) {
	id, err := pathParam("id", datasetID)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/splits/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	out := &SplitPoints{}
	return out, c.do(ctx, req, out, reqEditors)
}

// PostLuceneQuery queries a dataset with a lucene expression.
func (c *Client) PostLuceneQuery(ctx context.Context, body LuceneQueryRequest, reqEditors ...RequestEditorFn) (*RecordBatch, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/query", nil, body)
	if err != nil {
		return nil, err
	}
	out := &RecordBatch{}
	return out, c.do(ctx, req, out, reqEditors)
}

// PostLuceneQueryDocument queries document data in a dataset with a lucene
// expression.
func (c *Client) PostLuceneQueryDocument(ctx context.Context, body LuceneQueryRequest, reqEditors ...RequestEditorFn) (*QueryDocumentLuceneResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/query/document", nil, body)
	if err != nil {
		return nil, err
	}
	out := &QueryDocumentLuceneResponse{}
	return out, c.do(ctx, req, out, reqEditors)
}

// PostAuditLogQuery queries an audit log dataset with a lucene expression.
func (c *Client) PostAuditLogQuery(ctx context.Context, body LuceneQueryRequest, reqEditors ...RequestEditorFn) (*AuditLogPaginator, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/audit-log/query", nil, body)
	if err != nil {
		return nil, err
	}
	out := &AuditLogPaginator{}
	return out, c.do(ctx, req, out, reqEditors)
}
