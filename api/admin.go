package api

import (
	"context"
	"net/http"
	"net/url"
)

// PostDatasets creates a dataset.
func (c *Client) PostDatasets(ctx context.Context, body CreateDataset, reqEditors ...RequestEditorFn) (*Dataset, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/datasets", nil, body)
	if err != nil {
		return nil, err
	}
	out := &Dataset{}
	return out, c.do(ctx, req, out, reqEditors)
}

// GetDataset gets a dataset by id.
func (c *Client) GetDataset(ctx context.Context, datasetID string, reqEditors ...RequestEditorFn) (*Dataset, error) {
	id, err := pathParam("id", datasetID)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/datasets/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	out := &Dataset{}
	return out, c.do(ctx, req, out, reqEditors)
}

// PatchDataset updates the non-nil fields of body on a dataset.
func (c *Client) PatchDataset(ctx context.Context, datasetID string, body PatchDataset, reqEditors ...RequestEditorFn) (*Dataset, error) {
	id, err := pathParam("id", datasetID)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPatch, "/datasets/"+id, nil, body)
	if err != nil {
		return nil, err
	}
	out := &Dataset{}
	return out, c.do(ctx, req, out, reqEditors)
}

// PostClearDataset starts a job which removes all records from a dataset.
func (c *Client) PostClearDataset(ctx context.Context, datasetID string, reqEditors ...RequestEditorFn) (*Job, error) {
	id, err := pathParam("id", datasetID)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/datasets/"+id+"/clear", nil, nil)
	if err != nil {
		return nil, err
	}
	out := &Job{}
	return out, c.do(ctx, req, out, reqEditors)
}

// PostWorkspaces creates a workspace.
func (c *Client) PostWorkspaces(ctx context.Context, body CreateWorkspace, reqEditors ...RequestEditorFn) (*Workspace, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/workspaces", nil, body)
	if err != nil {
		return nil, err
	}
	out := &Workspace{}
	return out, c.do(ctx, req, out, reqEditors)
}

// GetWorkspace gets a workspace by id.
func (c *Client) GetWorkspace(ctx context.Context, workspaceID string, reqEditors ...RequestEditorFn) (*Workspace, error) {
	return c.workspace(ctx, http.MethodGet, workspaceID, reqEditors)
}

// DeleteWorkspace deletes a workspace and returns it.
func (c *Client) DeleteWorkspace(ctx context.Context, workspaceID string, reqEditors ...RequestEditorFn) (*Workspace, error) {
	return c.workspace(ctx, http.MethodDelete, workspaceID, reqEditors)
}

func (c *Client) workspace(ctx context.Context, method, workspaceID string, reqEditors []RequestEditorFn) (*Workspace, error) {
	id, err := pathParam("id", workspaceID)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, method, "/workspaces/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	out := &Workspace{}
	return out, c.do(ctx, req, out, reqEditors)
}

// GetIndexes lists the indexes of a dataset.
func (c *Client) GetIndexes(ctx context.Context, params GetIndexesParams, reqEditors ...RequestEditorFn) (*IndexPaginator, error) {
	q := url.Values{}
	if err := addQueryParam(q, "form", "datasetId", params.DatasetID); err != nil {
		return nil, err
	}
	if params.Limit > 0 {
		if err := addQueryParam(q, "form", "$limit", params.Limit); err != nil {
			return nil, err
		}
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/indexes", q, nil)
	if err != nil {
		return nil, err
	}
	out := &IndexPaginator{}
	return out, c.do(ctx, req, out, reqEditors)
}

// PatchIndexes creates and removes indexes on a dataset. It returns the id of
// the job doing the work.
func (c *Client) PatchIndexes(ctx context.Context, datasetID string, body ModifyIndexesRequest, reqEditors ...RequestEditorFn) (string, error) {
	id, err := pathParam("id", datasetID)
	if err != nil {
		return "", err
	}
	req, err := c.newRequest(ctx, http.MethodPatch, "/indexes/"+id, nil, body)
	if err != nil {
		return "", err
	}
	var out string
	if err := c.do(ctx, req, &out, reqEditors); err != nil {
		return "", err
	}
	return out, nil
}

// GetJobs lists jobs. Sort and Filter are sent as deepObject parameters.
func (c *Client) GetJobs(ctx context.Context, params GetJobsParams, reqEditors ...RequestEditorFn) (*JobPaginator, error) {
	q := url.Values{}
	if params.DatasetID != "" {
		if err := addQueryParam(q, "form", "datasetId", params.DatasetID); err != nil {
			return nil, err
		}
	}
	if params.WorkspaceID != "" {
		if err := addQueryParam(q, "form", "workspaceId", params.WorkspaceID); err != nil {
			return nil, err
		}
	}
	if err := params.ListParams.addTo(q); err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/jobs", q, nil)
	if err != nil {
		return nil, err
	}
	out := &JobPaginator{}
	return out, c.do(ctx, req, out, reqEditors)
}

// DeleteUser deletes a user and returns it.
func (c *Client) DeleteUser(ctx context.Context, userID string, reqEditors ...RequestEditorFn) (*User, error) {
	id, err := pathParam("id", userID)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodDelete, "/users/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	out := &User{}
	return out, c.do(ctx, req, out, reqEditors)
}

// GetAuditLogConfigs lists audit log configurations.
func (c *Client) GetAuditLogConfigs(ctx context.Context, params GetAuditLogConfigsParams, reqEditors ...RequestEditorFn) (*AuditLogConfigurationPaginator, error) {
	q := url.Values{}
	if params.KeepForever != nil {
		if err := addQueryParam(q, "form", "keepForever", *params.KeepForever); err != nil {
			return nil, err
		}
	}
	if params.WorkspaceID != "" {
		if err := addQueryParam(q, "form", "workspaceId", params.WorkspaceID); err != nil {
			return nil, err
		}
	}
	if err := params.ListParams.addTo(q); err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/audit-log-configs", q, nil)
	if err != nil {
		return nil, err
	}
	out := &AuditLogConfigurationPaginator{}
	return out, c.do(ctx, req, out, reqEditors)
}

// PatchAuditLogConfig updates an audit log configuration.
func (c *Client) PatchAuditLogConfig(ctx context.Context, configID string, body PatchAuditLogConfiguration, reqEditors ...RequestEditorFn) (*AuditLogConfiguration, error) {
	id, err := pathParam("id", configID)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPatch, "/audit-log-configs/"+id, nil, body)
	if err != nil {
		return nil, err
	}
	out := &AuditLogConfiguration{}
	return out, c.do(ctx, req, out, reqEditors)
}
