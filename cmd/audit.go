package cmd

import (
	"context"
	"io"

	"github.com/koverse/kdp"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// AuditMain lists or patches audit log configurations and queries audit
// logs.
type AuditMain struct {
	Platform    `flag:"!embed"`
	ConfigID    string `help:"ID of the audit log configuration to patch."`
	KeepForever bool   `help:"Keep audit log entries forever. For list, only show configurations which do."`
	AgeInDays   int    `help:"Days to keep audit log entries when not keeping them forever."`
	DatasetID   string `help:"ID of the audit log dataset to query."`
	Expression  string `help:"Lucene query expression."`
	Limit       int    `help:"Maximum number of results."`
	Skip        int    `help:"Number of results to skip."`
}

// Run performs action, one of configs, patch or query. changed reports
// whether a flag was set explicitly.
func (m *AuditMain) Run(ctx context.Context, action string, changed func(flag string) bool) error {
	conn, jwt, err := m.connect(ctx)
	if err != nil {
		return err
	}
	var res interface{}
	switch action {
	case "configs":
		params := kdp.AuditLogConfigsParams{WorkspaceID: m.WorkspaceID, Limit: m.Limit, Skip: m.Skip}
		if changed("keep-forever") {
			params.KeepForever = &m.KeepForever
		}
		res, err = conn.GetAuditLogConfigs(ctx, jwt, params)
	case "patch":
		if m.ConfigID == "" {
			return errors.New("config-id is required")
		}
		res, err = conn.PatchAuditLogConfigs(ctx, jwt, m.ConfigID, m.KeepForever, m.AgeInDays)
	case "query":
		if m.DatasetID == "" {
			return errors.New("dataset-id is required")
		}
		res, err = conn.PostAuditLogQuery(ctx, jwt, m.DatasetID, m.Expression, kdp.QueryOptions{Limit: m.Limit, Offset: m.Skip})
	default:
		return errors.Errorf("unknown audit action '%s'", action)
	}
	if err != nil {
		return err
	}
	return m.print(res)
}

// NewAuditCommand returns a cobra command wrapping an AuditMain.
func NewAuditCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := &AuditMain{Platform: newPlatform(stdout)}
	com := newCommand("audit configs|patch|query", "manage audit log configurations and query audit logs", m, func(cmd *cobra.Command, args []string) error {
		return m.Run(context.Background(), args[0], cmd.Flags().Changed)
	})
	com.Args = cobra.ExactArgs(1)
	return com
}

func init() {
	subcommandFns["audit"] = NewAuditCommand
}
