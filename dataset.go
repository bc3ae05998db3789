package kdp

import (
	"context"

	"github.com/koverse/kdp/api"
	"github.com/pkg/errors"
)

// DatasetOptions are the settings of a new dataset. The zero value gives a
// dataset with automatic indexes, search on any field and an empty schema.
type DatasetOptions struct {
	Description string

	// DisableAutoCreateIndexes turns off automatic index creation.
	DisableAutoCreateIndexes bool

	// DisableSearchAnyField turns off search across all fields.
	DisableSearchAnyField bool

	// Schema is the dataset schema as JSON. Empty means "{}".
	Schema string

	RecordCount int
}

// CreateDataset creates a dataset named name in workspaceID.
func (c *Conn) CreateDataset(ctx context.Context, name, workspaceID, jwt string, opts DatasetOptions) (*api.Dataset, error) {
	if name == "" {
		return nil, errors.New("dataset name is required")
	}
	schema := opts.Schema
	if schema == "" {
		schema = "{}"
	}
	ds, err := c.client.PostDatasets(ctx, api.CreateDataset{
		Name:              name,
		WorkspaceID:       workspaceID,
		Description:       opts.Description,
		AutoCreateIndexes: !opts.DisableAutoCreateIndexes,
		Schema:            schema,
		SearchAnyField:    !opts.DisableSearchAnyField,
		RecordCount:       opts.RecordCount,
	}, api.WithBearerToken(jwt))
	return ds, errors.Wrapf(err, "creating dataset %s", name)
}

// GetDataset gets a dataset by id.
func (c *Conn) GetDataset(ctx context.Context, datasetID, jwt string) (*api.Dataset, error) {
	ds, err := c.client.GetDataset(ctx, datasetID, api.WithBearerToken(jwt))
	return ds, errors.Wrapf(err, "getting dataset %s", datasetID)
}

// PatchDataset updates the non-nil fields of patch on a dataset.
func (c *Conn) PatchDataset(ctx context.Context, datasetID, jwt string, patch api.PatchDataset) (*api.Dataset, error) {
	ds, err := c.client.PatchDataset(ctx, datasetID, patch, api.WithBearerToken(jwt))
	return ds, errors.Wrapf(err, "patching dataset %s", datasetID)
}

// ClearDataset starts a job which removes every record from a dataset.
func (c *Conn) ClearDataset(ctx context.Context, datasetID, jwt string) (*api.Job, error) {
	job, err := c.client.PostClearDataset(ctx, datasetID, api.WithBearerToken(jwt))
	return job, errors.Wrapf(err, "clearing dataset %s", datasetID)
}

// GetWorkspace gets a workspace by id.
func (c *Conn) GetWorkspace(ctx context.Context, workspaceID, jwt string) (*api.Workspace, error) {
	ws, err := c.client.GetWorkspace(ctx, workspaceID, api.WithBearerToken(jwt))
	return ws, errors.Wrapf(err, "getting workspace %s", workspaceID)
}

// CreateWorkspace creates a workspace.
func (c *Conn) CreateWorkspace(ctx context.Context, name, jwt string) (*api.Workspace, error) {
	if name == "" {
		return nil, errors.New("workspace name is required")
	}
	ws, err := c.client.PostWorkspaces(ctx, api.CreateWorkspace{Name: name}, api.WithBearerToken(jwt))
	return ws, errors.Wrapf(err, "creating workspace %s", name)
}

// DeleteWorkspace deletes a workspace and returns it.
func (c *Conn) DeleteWorkspace(ctx context.Context, workspaceID, jwt string) (*api.Workspace, error) {
	ws, err := c.client.DeleteWorkspace(ctx, workspaceID, api.WithBearerToken(jwt))
	return ws, errors.Wrapf(err, "deleting workspace %s", workspaceID)
}

// DeleteUser deletes a user and returns it.
func (c *Conn) DeleteUser(ctx context.Context, userID, jwt string) (*api.User, error) {
	user, err := c.client.DeleteUser(ctx, userID, api.WithBearerToken(jwt))
	return user, errors.Wrapf(err, "deleting user %s", userID)
}
