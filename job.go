package kdp

import (
	"context"

	"github.com/koverse/kdp/api"
	"github.com/pkg/errors"
)

// JobsParams filter and page GetJobs.
type JobsParams struct {
	WorkspaceID string
	Limit       int
	Skip        int

	// Sort maps field names to 1 (ascending) or -1 (descending).
	Sort   map[string]interface{}
	Filter map[string]interface{}
}

// GetJobs lists the jobs of a dataset.
func (c *Conn) GetJobs(ctx context.Context, datasetID, jwt string, params JobsParams) (*api.JobPaginator, error) {
	jobs, err := c.client.GetJobs(ctx, api.GetJobsParams{
		DatasetID:   datasetID,
		WorkspaceID: params.WorkspaceID,
		ListParams: api.ListParams{
			Limit:  params.Limit,
			Skip:   params.Skip,
			Sort:   params.Sort,
			Filter: params.Filter,
		},
	}, api.WithBearerToken(jwt))
	return jobs, errors.Wrapf(err, "getting jobs of %s", datasetID)
}

// CreateURLIngestJob starts a job which ingests the content of urls into a
// dataset and returns the job id.
func (c *Conn) CreateURLIngestJob(ctx context.Context, workspaceID, datasetID string, urls []string, jwt string) (string, error) {
	if len(urls) == 0 {
		return "", errors.New("at least one url is required")
	}
	async := true
	jobID, err := c.client.PostIngest(ctx, api.WriteParams{IsAsync: &async}, api.IngestCreateRequest{
		WorkspaceID: workspaceID,
		DatasetID:   datasetID,
		Type:        api.IngestTypeURL,
		Config:      api.IngestConfig{URLs: urls},
	}, api.WithBearerToken(jwt))
	if err != nil {
		return "", errors.Wrapf(err, "creating ingest job for %s", datasetID)
	}
	c.log.Printf("created ingest job %s for %d urls into %s", jobID, len(urls), datasetID)
	return jobID, nil
}
