package cmd

import (
	"context"
	"io"

	"github.com/koverse/kdp"
	"github.com/koverse/kdp/api"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// DatasetMain gets, creates, patches or clears a dataset.
type DatasetMain struct {
	Platform                 `flag:"!embed"`
	DatasetID                string `help:"ID of the dataset for get, patch and clear."`
	Name                     string `help:"Dataset name for create and patch."`
	Description              string `help:"Dataset description for create and patch."`
	Schema                   string `help:"Dataset schema as JSON for create and patch."`
	DisableAutoCreateIndexes bool   `help:"Turn off automatic index creation."`
	DisableSearchAnyField    bool   `help:"Turn off search across all fields."`
}

// Run performs action. changed reports whether a flag was set explicitly,
// which decides the fields a patch touches.
func (m *DatasetMain) Run(ctx context.Context, action string, changed func(flag string) bool) error {
	if action != "create" && m.DatasetID == "" {
		return errors.Errorf("dataset-id is required to %s a dataset", action)
	}
	conn, jwt, err := m.connect(ctx)
	if err != nil {
		return err
	}
	var res interface{}
	switch action {
	case "get":
		res, err = conn.GetDataset(ctx, m.DatasetID, jwt)
	case "create":
		res, err = conn.CreateDataset(ctx, m.Name, m.WorkspaceID, jwt, kdp.DatasetOptions{
			Description:              m.Description,
			Schema:                   m.Schema,
			DisableAutoCreateIndexes: m.DisableAutoCreateIndexes,
			DisableSearchAnyField:    m.DisableSearchAnyField,
		})
	case "patch":
		res, err = conn.PatchDataset(ctx, m.DatasetID, jwt, m.patch(changed))
	case "clear":
		res, err = conn.ClearDataset(ctx, m.DatasetID, jwt)
	default:
		return errors.Errorf("unknown dataset action '%s'", action)
	}
	if err != nil {
		return err
	}
	return m.print(res)
}

func (m *DatasetMain) patch(changed func(flag string) bool) api.PatchDataset {
	var p api.PatchDataset
	if changed("name") {
		p.Name = &m.Name
	}
	if changed("description") {
		p.Description = &m.Description
	}
	if changed("schema") {
		p.Schema = &m.Schema
	}
	if changed("disable-auto-create-indexes") {
		auto := !m.DisableAutoCreateIndexes
		p.AutoCreateIndexes = &auto
	}
	if changed("disable-search-any-field") {
		search := !m.DisableSearchAnyField
		p.SearchAnyField = &search
	}
	return p
}

// NewDatasetCommand returns a cobra command wrapping a DatasetMain.
func NewDatasetCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := &DatasetMain{Platform: newPlatform(stdout)}
	com := newCommand("dataset get|create|patch|clear", "manage a dataset", m, func(cmd *cobra.Command, args []string) error {
		return m.Run(context.Background(), args[0], cmd.Flags().Changed)
	})
	com.Args = cobra.ExactArgs(1)
	return com
}

// WorkspaceMain gets, creates or deletes a workspace.
type WorkspaceMain struct {
	Platform `flag:"!embed"`
	Name     string `help:"Name of the workspace to create."`
}

// Run performs action on the workspace named by workspace-id, or creates one
// named name.
func (m *WorkspaceMain) Run(ctx context.Context, action string) error {
	if action != "create" && m.WorkspaceID == "" {
		return errors.Errorf("workspace-id is required to %s a workspace", action)
	}
	conn, jwt, err := m.connect(ctx)
	if err != nil {
		return err
	}
	var ws *api.Workspace
	switch action {
	case "get":
		ws, err = conn.GetWorkspace(ctx, m.WorkspaceID, jwt)
	case "create":
		ws, err = conn.CreateWorkspace(ctx, m.Name, jwt)
	case "delete":
		ws, err = conn.DeleteWorkspace(ctx, m.WorkspaceID, jwt)
	default:
		return errors.Errorf("unknown workspace action '%s'", action)
	}
	if err != nil {
		return err
	}
	return m.print(ws)
}

// NewWorkspaceCommand returns a cobra command wrapping a WorkspaceMain.
func NewWorkspaceCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := &WorkspaceMain{Platform: newPlatform(stdout)}
	com := newCommand("workspace get|create|delete", "manage a workspace", m, func(cmd *cobra.Command, args []string) error {
		return m.Run(context.Background(), args[0])
	})
	com.Args = cobra.ExactArgs(1)
	return com
}

// UserMain deletes a user.
type UserMain struct {
	Platform `flag:"!embed"`
	UserID   string `help:"ID of the user to delete."`
}

// Run deletes the user.
func (m *UserMain) Run(ctx context.Context) error {
	if m.UserID == "" {
		return errors.New("user-id is required")
	}
	conn, jwt, err := m.connect(ctx)
	if err != nil {
		return err
	}
	user, err := conn.DeleteUser(ctx, m.UserID, jwt)
	if err != nil {
		return err
	}
	return m.print(user)
}

// NewDeleteUserCommand returns a cobra command wrapping a UserMain.
func NewDeleteUserCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := &UserMain{Platform: newPlatform(stdout)}
	return newCommand("delete-user", "delete a user", m, func(cmd *cobra.Command, args []string) error {
		return m.Run(context.Background())
	})
}

func init() {
	subcommandFns["dataset"] = NewDatasetCommand
	subcommandFns["workspace"] = NewWorkspaceCommand
	subcommandFns["delete-user"] = NewDeleteUserCommand
}
