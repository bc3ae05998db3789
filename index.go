package kdp

import (
	"context"

	"github.com/koverse/kdp/api"
	"github.com/pkg/errors"
)

// DefaultIndexLimit is the number of indexes GetIndexes returns when no limit
// is given.
const DefaultIndexLimit = 10

// GetIndexes lists the indexes of a dataset. A limit of zero means
// DefaultIndexLimit.
func (c *Conn) GetIndexes(ctx context.Context, datasetID, jwt string, limit int) (*api.IndexPaginator, error) {
	if limit == 0 {
		limit = DefaultIndexLimit
	}
	idx, err := c.client.GetIndexes(ctx, api.GetIndexesParams{DatasetID: datasetID, Limit: limit}, api.WithBearerToken(jwt))
	return idx, errors.Wrapf(err, "getting indexes of %s", datasetID)
}

// ModifyIndexes creates and removes indexes on a dataset, each index given as
// its list of fields. It returns the id of the job doing the work.
func (c *Conn) ModifyIndexes(ctx context.Context, datasetID string, create, remove [][]string, autoCreateIndexes, searchAnyField bool, jwt string) (string, error) {
	jobID, err := c.client.PatchIndexes(ctx, datasetID, api.ModifyIndexesRequest{
		Create:            indexDefinitions(create),
		Remove:            indexDefinitions(remove),
		AutoCreateIndexes: autoCreateIndexes,
		SearchAnyField:    searchAnyField,
	}, api.WithBearerToken(jwt))
	if err != nil {
		return "", errors.Wrapf(err, "modifying indexes of %s", datasetID)
	}
	return jobID, nil
}

func indexDefinitions(fieldLists [][]string) []api.IndexDefinition {
	defs := make([]api.IndexDefinition, 0, len(fieldLists))
	for _, fields := range fieldLists {
		defs = append(defs, api.IndexDefinition{Fields: fields})
	}
	return defs
}
