package kdp

import (
	"context"

	"github.com/koverse/kdp/api"
	"github.com/pkg/errors"
)

// DefaultAuditLogConfigLimit is the page size of GetAuditLogConfigs when no
// limit is given.
const DefaultAuditLogConfigLimit = 10

// AuditLogConfigsParams filter and page GetAuditLogConfigs.
type AuditLogConfigsParams struct {
	KeepForever *bool
	WorkspaceID string
	Limit       int
	Skip        int
	Sort        map[string]interface{}
	Filter      map[string]interface{}
}

// GetAuditLogConfigs lists audit log configurations.
func (c *Conn) GetAuditLogConfigs(ctx context.Context, jwt string, params AuditLogConfigsParams) (*api.AuditLogConfigurationPaginator, error) {
	limit := params.Limit
	if limit == 0 {
		limit = DefaultAuditLogConfigLimit
	}
	configs, err := c.client.GetAuditLogConfigs(ctx, api.GetAuditLogConfigsParams{
		KeepForever: params.KeepForever,
		WorkspaceID: params.WorkspaceID,
		ListParams: api.ListParams{
			Limit:  limit,
			Skip:   params.Skip,
			Sort:   params.Sort,
			Filter: params.Filter,
		},
	}, api.WithBearerToken(jwt))
	return configs, errors.Wrap(err, "getting audit log configs")
}

// PatchAuditLogConfigs sets how long an audit log configuration keeps its
// entries.
func (c *Conn) PatchAuditLogConfigs(ctx context.Context, jwt, configID string, keepForever bool, ageInDays int) (*api.AuditLogConfiguration, error) {
	if !keepForever && ageInDays <= 0 {
		return nil, errors.Errorf("age in days must be positive when not keeping forever, got %d", ageInDays)
	}
	config, err := c.client.PatchAuditLogConfig(ctx, configID, api.PatchAuditLogConfiguration{
		KeepForever: keepForever,
		AgeInDays:   ageInDays,
	}, api.WithBearerToken(jwt))
	return config, errors.Wrapf(err, "patching audit log config %s", configID)
}
