package cmd

import (
	"context"
	"io"
	"strings"

	"github.com/koverse/kdp"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// IndexesMain lists or modifies the indexes of a dataset.
type IndexesMain struct {
	Platform          `flag:"!embed"`
	DatasetID         string   `help:"ID of the dataset."`
	Limit             int      `help:"Maximum number of indexes to list."`
	Create            []string `help:"Indexes to create. Join the fields of a compound index with '+'."`
	Remove            []string `help:"Indexes to remove. Join the fields of a compound index with '+'."`
	AutoCreateIndexes bool     `help:"Let the Platform create indexes as records arrive."`
	SearchAnyField    bool     `help:"Allow searching across all fields."`
}

// NewIndexesMain returns an IndexesMain with the default configuration.
func NewIndexesMain(stdout io.Writer) *IndexesMain {
	return &IndexesMain{
		Platform:          newPlatform(stdout),
		Limit:             kdp.DefaultIndexLimit,
		AutoCreateIndexes: true,
		SearchAnyField:    true,
	}
}

func fieldLists(indexes []string) [][]string {
	lists := make([][]string, 0, len(indexes))
	for _, idx := range indexes {
		if idx == "" {
			continue
		}
		lists = append(lists, strings.Split(idx, "+"))
	}
	return lists
}

// Run performs action, list or modify.
func (m *IndexesMain) Run(ctx context.Context, action string) error {
	if m.DatasetID == "" {
		return errors.New("dataset-id is required")
	}
	conn, jwt, err := m.connect(ctx)
	if err != nil {
		return err
	}
	switch action {
	case "list":
		idx, err := conn.GetIndexes(ctx, m.DatasetID, jwt, m.Limit)
		if err != nil {
			return err
		}
		return m.print(idx)
	case "modify":
		jobID, err := conn.ModifyIndexes(ctx, m.DatasetID, fieldLists(m.Create), fieldLists(m.Remove), m.AutoCreateIndexes, m.SearchAnyField, jwt)
		if err != nil {
			return err
		}
		return m.print(map[string]string{"jobId": jobID})
	default:
		return errors.Errorf("unknown indexes action '%s'", action)
	}
}

// NewIndexesCommand returns a cobra command wrapping an IndexesMain.
func NewIndexesCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := NewIndexesMain(stdout)
	com := newCommand("indexes list|modify", "list or modify the indexes of a dataset", m, func(cmd *cobra.Command, args []string) error {
		return m.Run(context.Background(), args[0])
	})
	com.Args = cobra.ExactArgs(1)
	return com
}

// JobsMain lists the jobs of a dataset or starts a URL ingest job.
type JobsMain struct {
	Platform  `flag:"!embed"`
	DatasetID string   `help:"ID of the dataset."`
	Limit     int      `help:"Maximum number of jobs to list."`
	Skip      int      `help:"Number of jobs to skip."`
	SortBy    string   `help:"Field to sort jobs by."`
	Desc      bool     `help:"Sort descending."`
	State     string   `help:"Only list jobs in this state."`
	IngestURL []string `help:"URLs for the ingest action to pull into the dataset."`
}

func (m *JobsMain) params() kdp.JobsParams {
	p := kdp.JobsParams{WorkspaceID: m.WorkspaceID, Limit: m.Limit, Skip: m.Skip}
	if m.SortBy != "" {
		dir := 1
		if m.Desc {
			dir = -1
		}
		p.Sort = map[string]interface{}{m.SortBy: dir}
	}
	if m.State != "" {
		p.Filter = map[string]interface{}{"state": m.State}
	}
	return p
}

// Run performs action, list or ingest.
func (m *JobsMain) Run(ctx context.Context, action string) error {
	if m.DatasetID == "" {
		return errors.New("dataset-id is required")
	}
	conn, jwt, err := m.connect(ctx)
	if err != nil {
		return err
	}
	switch action {
	case "list":
		jobs, err := conn.GetJobs(ctx, m.DatasetID, jwt, m.params())
		if err != nil {
			return err
		}
		return m.print(jobs)
	case "ingest":
		jobID, err := conn.CreateURLIngestJob(ctx, m.WorkspaceID, m.DatasetID, m.IngestURL, jwt)
		if err != nil {
			return err
		}
		return m.print(map[string]string{"jobId": jobID})
	default:
		return errors.Errorf("unknown jobs action '%s'", action)
	}
}

// NewJobsCommand returns a cobra command wrapping a JobsMain.
func NewJobsCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := &JobsMain{Platform: newPlatform(stdout)}
	com := newCommand("jobs list|ingest", "list the jobs of a dataset or start a URL ingest job", m, func(cmd *cobra.Command, args []string) error {
		return m.Run(context.Background(), args[0])
	})
	com.Args = cobra.ExactArgs(1)
	return com
}

func init() {
	subcommandFns["indexes"] = NewIndexesCommand
	subcommandFns["jobs"] = NewJobsCommand
}
