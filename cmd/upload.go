package cmd

import (
	"context"
	"io"

	"github.com/koverse/kdp"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// UploadMain uploads a local file to a dataset.
type UploadMain struct {
	Platform  `flag:"!embed"`
	DatasetID string `help:"ID of the dataset to upload to."`
	Path      string `help:"The file to upload, or the directory holding filename."`
	Filename  string `help:"Name of the file. Required when path is a directory, defaults to the base of path otherwise."`
}

// Run uploads the file and prints what the Platform stored.
func (m *UploadMain) Run(ctx context.Context) error {
	if m.DatasetID == "" {
		return errors.New("dataset-id is required")
	}
	if m.Path == "" {
		return errors.New("path is required")
	}
	conn, jwt, err := m.connect(ctx)
	if err != nil {
		return err
	}
	files, err := conn.Upload(ctx, m.DatasetID, kdp.FileConfig{Filename: m.Filename, Path: m.Path}, jwt)
	if err != nil {
		return err
	}
	return m.print(files)
}

// NewUploadCommand returns a cobra command wrapping an UploadMain.
func NewUploadCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := &UploadMain{Platform: newPlatform(stdout)}
	return newCommand("upload", "upload a file to a dataset", m, func(cmd *cobra.Command, args []string) error {
		return m.Run(context.Background())
	})
}

func init() {
	subcommandFns["upload"] = NewUploadCommand
}
