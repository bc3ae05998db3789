package cmd

import (
	"io"

	"github.com/koverse/kdp/file"
	"github.com/spf13/cobra"
)

// FileMain is wrapped by NewFileCommand and only exported for testing purposes.
var FileMain *file.Main

// NewFileCommand returns a new cobra command wrapping FileMain.
func NewFileCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	FileMain = file.NewMain()
	return newIngestCommand("write-file", "write line separated json or csv from a file or all files in a directory to a dataset", FileMain)
}

func init() {
	subcommandFns["write-file"] = NewFileCommand
}
