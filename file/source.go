package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/koverse/kdp"
	"github.com/koverse/kdp/csv"
	"github.com/koverse/kdp/json"
	"github.com/pkg/errors"
)

// Formats understood by Source.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Source is a kdp.Source which reads json objects or CSV rows from files on
// disk.
type Source struct {
	rawSource *RawSource
	format    string
	subjectAt string

	cur kdp.NamedReadCloser
	src kdp.Source
	n   int
}

// SrcOption is a functional option for the file Source.
type SrcOption func(s *Source) error

// OptSrcSubjectAt tells the source to add a new key to each record whose value
// will be <filename>#<record number>.
func OptSrcSubjectAt(key string) SrcOption {
	return func(s *Source) error {
		s.subjectAt = key
		return nil
	}
}

// OptSrcPath sets the path name for the file or directory to use for source
// data.
func OptSrcPath(pathname string) SrcOption {
	return func(s *Source) (err error) {
		s.rawSource, err = NewRawSource(pathname)
		if err != nil {
			return errors.Wrap(err, "getting raw source")
		}
		return nil
	}
}

// OptSrcFormat sets the format of the files, FormatJSON or FormatCSV.
func OptSrcFormat(format string) SrcOption {
	return func(s *Source) error {
		switch format {
		case FormatJSON, FormatCSV:
			s.format = format
			return nil
		default:
			return errors.Errorf("unknown format %q", format)
		}
	}
}

// NewSource gets a new file source which will read records from a file or
// all files in a directory.
func NewSource(opts ...SrcOption) (*Source, error) {
	s := &Source{
		format: FormatJSON,
	}
	for _, opt := range opts {
		err := opt(s)
		if err != nil {
			return nil, err
		}
	}
	if s.rawSource == nil {
		return nil, errors.New("no path given")
	}
	return s, nil
}

// Record implements kdp.Source. Records are map[string]interface{} for json
// files and map[string]string for CSV files.
func (s *Source) Record() (interface{}, error) {
	for {
		if s.src == nil {
			reader, err := s.rawSource.NextReader()
			if err == io.EOF {
				return nil, err
			} else if err != nil {
				return nil, errors.Wrap(err, "getting next reader")
			}
			s.cur, s.n = reader, 0
			if s.format == FormatCSV {
				s.src = csv.NewSourceFromRawSource(&single{r: reader})
			} else {
				s.src = json.NewSource(reader)
			}
		}
		rec, err := s.src.Record()
		if err == io.EOF {
			s.cur.Close()
			s.cur, s.src = nil, nil
			continue
		} else if err != nil {
			return nil, errors.Wrapf(err, "reading %s", s.cur.Name())
		}
		if s.subjectAt != "" {
			subj := fmt.Sprintf("%s#%d", s.cur.Name(), s.n)
			switch r := rec.(type) {
			case map[string]interface{}:
				r[s.subjectAt] = subj
			case map[string]string:
				r[s.subjectAt] = subj
			}
		}
		s.n++
		return rec, nil
	}
}

// single is a kdp.RawSource of one reader. Closing is left to Source.
type single struct {
	r    kdp.NamedReadCloser
	done bool
}

func (s *single) NextReader() (kdp.NamedReadCloser, error) {
	if s.done {
		return nil, io.EOF
	}
	s.done = true
	return nopCloser{s.r}, nil
}

type nopCloser struct {
	kdp.NamedReadCloser
}

func (nopCloser) Close() error { return nil }

// RawSource is a kdp.RawSource over a file or the regular files of a
// directory, in lexical order. Subdirectories are skipped.
type RawSource struct {
	files   []string
	fileIdx *uint64
}

// NewRawSource returns a RawSource for pathname.
func NewRawSource(pathname string) (*RawSource, error) {
	fileIdx := uint64(0)
	s := &RawSource{
		fileIdx: &fileIdx,
	}
	info, err := os.Stat(pathname)
	if err != nil {
		return nil, errors.Wrap(err, "statting path")
	}
	if info.IsDir() {
		entries, err := os.ReadDir(pathname)
		if err != nil {
			return nil, errors.Wrap(err, "reading directory")
		}
		s.files = make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			s.files = append(s.files, filepath.Join(pathname, e.Name()))
		}
	} else {
		s.files = []string{pathname}
	}
	return s, nil
}

type metaFile struct {
	*os.File
}

func (m *metaFile) Name() string {
	return filepath.Base(m.File.Name())
}

func (m *metaFile) Meta() map[string]interface{} {
	return map[string]interface{}{"path": m.File.Name()}
}

// NextReader implements kdp.RawSource. It is safe for concurrent use.
func (s *RawSource) NextReader() (kdp.NamedReadCloser, error) {
	idx := atomic.AddUint64(s.fileIdx, 1) - 1
	if int(idx) >= len(s.files) {
		return nil, io.EOF
	}

	file, err := os.Open(s.files[idx])
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", s.files[idx])
	}

	mf := metaFile{file}
	return &mf, nil
}
