package cmd

import (
	"context"
	"io"

	"github.com/koverse/kdp"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// QueryMain runs a lucene query against a dataset and prints the result.
type QueryMain struct {
	Platform   `flag:"!embed"`
	DatasetID  string `help:"ID of the dataset to query."`
	Expression string `help:"Lucene query expression."`
	Limit      int    `help:"Maximum number of records to return."`
	Offset     int    `help:"Number of matching records to skip."`
	Document   bool   `help:"Query the documents of the dataset instead of its records."`
}

// NewQueryMain returns a QueryMain with the default configuration.
func NewQueryMain(stdout io.Writer) *QueryMain {
	return &QueryMain{
		Platform: newPlatform(stdout),
		Limit:    kdp.DefaultQueryLimit,
	}
}

// Run runs the query.
func (m *QueryMain) Run(ctx context.Context) error {
	if m.DatasetID == "" {
		return errors.New("dataset-id is required")
	}
	conn, jwt, err := m.connect(ctx)
	if err != nil {
		return err
	}
	opts := kdp.QueryOptions{Limit: m.Limit, Offset: m.Offset}
	if m.Document {
		res, err := conn.PostDocumentLuceneQuery(ctx, m.DatasetID, jwt, m.Expression, opts)
		if err != nil {
			return err
		}
		return m.print(res)
	}
	res, err := conn.PostLuceneQuery(ctx, m.DatasetID, jwt, m.Expression, opts)
	if err != nil {
		return err
	}
	return m.print(res)
}

// NewQueryCommand returns a cobra command wrapping a QueryMain.
func NewQueryCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := NewQueryMain(stdout)
	return newCommand("query", "query a dataset with a lucene expression", m, func(cmd *cobra.Command, args []string) error {
		return m.Run(context.Background())
	})
}

func init() {
	subcommandFns["query"] = NewQueryCommand
}
