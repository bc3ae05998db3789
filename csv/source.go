package csv

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/koverse/kdp"
	"github.com/pkg/errors"
)

// Source is a kdp.Source over CSV files, each starting with a header line.
// Records are map[string]string keyed by header field. Empty values are
// left out of the record.
type Source struct {
	rs  kdp.RawSource
	log kdp.Logger

	cur    kdp.NamedReadCloser
	r      *csv.Reader
	header []string
	line   int
}

// SrcOption is a functional option for the CSV Source.
type SrcOption func(s *Source)

// OptSrcLogger sets the logger used to report data beyond the header's
// fields.
func OptSrcLogger(log kdp.Logger) SrcOption {
	return func(s *Source) {
		s.log = log
	}
}

// NewSourceFromRawSource returns a Source which reads each reader of rs in
// turn.
func NewSourceFromRawSource(rs kdp.RawSource, opts ...SrcOption) *Source {
	s := &Source{
		rs:  rs,
		log: kdp.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) nextReader() error {
	cur, err := s.rs.NextReader()
	if err != nil {
		return err
	}
	s.cur = cur
	s.r = csv.NewReader(cur)
	s.r.FieldsPerRecord = -1
	s.r.TrimLeadingSpace = true
	s.line = 1
	header, err := s.r.Read()
	if err == io.EOF {
		// empty file
		return s.closeReader()
	} else if err != nil {
		s.closeReader()
		return errors.Wrapf(err, "reading header of %s", cur.Name())
	}
	if err := validateHeader(header); err != nil {
		s.closeReader()
		return errors.Wrapf(err, "validating header of %s", cur.Name())
	}
	s.header = header
	return nil
}

func (s *Source) closeReader() error {
	err := s.cur.Close()
	s.cur, s.r, s.header = nil, nil, nil
	return errors.Wrap(err, "closing reader")
}

// Record implements kdp.Source.
func (s *Source) Record() (interface{}, error) {
	for {
		if s.r == nil {
			if err := s.nextReader(); err != nil {
				return nil, err
			}
			if s.r == nil {
				continue
			}
		}
		row, err := s.r.Read()
		if err == io.EOF {
			if err := s.closeReader(); err != nil {
				return nil, err
			}
			continue
		} else if err != nil {
			return nil, errors.Wrapf(err, "reading %s", s.cur.Name())
		}
		s.line++
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		rec, err := s.parseRecord(row)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing line %d of %s", s.line, s.cur.Name())
		}
		return rec, nil
	}
}

func validateHeader(header []string) error {
	fields := make(map[string]int)
	for i, h := range header {
		if h == "" {
			return errors.Errorf("header contains empty string at %d: %v", i, header)
		}
		if pos, exists := fields[h]; exists {
			return errors.Errorf("%s appeared at both %d and %d in header", h, pos, i)
		}
		fields[h] = i
	}
	return nil
}

func (s *Source) parseRecord(row []string) (map[string]string, error) {
	if len(s.header) > len(row) {
		return nil, errors.Errorf("header/row len mismatch: %d vs %d, %v and %v", len(s.header), len(row), s.header, row)
	} else if len(row) > len(s.header) {
		for i := len(s.header); i < len(row); i++ {
			if strings.TrimSpace(row[i]) != "" {
				s.log.Printf("data in non headered field: %v, %d", row, i)
			}
		}
	}
	ret := make(map[string]string, len(s.header))
	for i := 0; i < len(s.header); i++ {
		if row[i] == "" {
			continue
		}
		ret[s.header[i]] = row[i]
	}
	return ret, nil
}
