package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// PostWrite writes records to a dataset using the v1 endpoint, which takes a
// bare array of records.
func (c *Client) PostWrite(ctx context.Context, datasetID string, params WriteParams, records []map[string]interface{}, reqEditors ...RequestEditorFn) (*WriteBatchResponse, error) {
	id, err := pathParam("id", datasetID)
	if err != nil {
		return nil, err
	}
	q, err := params.query()
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/write/"+id, q, records)
	if err != nil {
		return nil, err
	}
	out := &WriteBatchResponse{}
	return out, c.do(ctx, req, out, reqEditors)
}

// PostV2Write writes a batch of records to a dataset.
func (c *Client) PostV2Write(ctx context.Context, datasetID string, params WriteParams, body BatchWriteRequest, reqEditors ...RequestEditorFn) (*WriteBatchResponse, error) {
	buf, err := c.json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.PostV2WriteWithBody(ctx, datasetID, params, "application/json", bytes.NewReader(buf), reqEditors...)
}

// PostV2WriteWithBody writes an already encoded BatchWriteRequest. Use it with
// WithGzipContentEncoding to send a compressed payload.
func (c *Client) PostV2WriteWithBody(ctx context.Context, datasetID string, params WriteParams, contentType string, body io.Reader, reqEditors ...RequestEditorFn) (*WriteBatchResponse, error) {
	id, err := pathParam("id", datasetID)
	if err != nil {
		return nil, err
	}
	q, err := params.query()
	if err != nil {
		return nil, err
	}
	req, err := c.newRequestWithBody(ctx, http.MethodPost, "/v2/write/"+id, q, contentType, body)
	if err != nil {
		return nil, err
	}
	out := &WriteBatchResponse{}
	return out, c.do(ctx, req, out, reqEditors)
}

// PostIngest creates an ingest job and returns its id.
func (c *Client) PostIngest(ctx context.Context, params WriteParams, body IngestCreateRequest, reqEditors ...RequestEditorFn) (string, error) {
	q, err := params.query()
	if err != nil {
		return "", err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/ingest", q, body)
	if err != nil {
		return "", err
	}
	var out string
	if err := c.do(ctx, req, &out, reqEditors); err != nil {
		return "", err
	}
	return out, nil
}

// PostUploadWithBody uploads files to a dataset. body must be a multipart form
// matching contentType.
func (c *Client) PostUploadWithBody(ctx context.Context, datasetID string, contentType string, body io.Reader, reqEditors ...RequestEditorFn) ([]UploadedFile, error) {
	id, err := pathParam("id", datasetID)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequestWithBody(ctx, http.MethodPost, "/upload/"+id, nil, contentType, body)
	if err != nil {
		return nil, err
	}
	var out []UploadedFile
	if err := c.do(ctx, req, &out, reqEditors); err != nil {
		return nil, err
	}
	return out, nil
}
