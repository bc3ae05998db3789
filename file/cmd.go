package file

import (
	"github.com/koverse/kdp"
	"github.com/pkg/errors"
)

// Main contains the configuration for an ingester with a file Source.
type Main struct {
	kdp.Main  `flag:"!embed"`
	Path      string `help:"File or directory path to read from."`
	Format    string `help:"Format of the files: json or csv."`
	SubjectAt string `help:"Tells the source to add a unique 'subject' key to each record which is the filename + record number."`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	m := &Main{
		Main:   *kdp.NewMain(),
		Format: FormatJSON,
	}
	m.NewSource = func() (kdp.Source, error) {
		return NewSource(
			OptSrcPath(m.Path),
			OptSrcFormat(m.Format),
			OptSrcSubjectAt(m.SubjectAt),
		)
	}
	return m
}

// Run runs the ingester.
func (m *Main) Run() error {
	if m.Path == "" {
		return errors.New("path is required")
	}
	return errors.Wrap(m.Main.Run(), "ingesting files")
}
