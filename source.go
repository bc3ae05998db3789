package kdp

import "io"

// Source is the interface for getting data one record at a time. Record
// returns io.EOF when there are no more records. Sources which feed an
// Ingester should return a map[string]interface{} per record.
type Source interface {
	Record() (interface{}, error)
}

// NamedReadCloser is an io.ReadCloser with a name (a file name or object key)
// and optional metadata about where it came from.
type NamedReadCloser interface {
	io.ReadCloser
	Name() string
	Meta() map[string]interface{}
}

// RawSource hands out readers one at a time, e.g. one per file in a
// directory. NextReader returns io.EOF when there are no more.
type RawSource interface {
	NextReader() (NamedReadCloser, error)
}

// SliceSource is a Source over an in-memory slice of rows.
type SliceSource struct {
	rows []map[string]interface{}
	i    int
}

// NewSliceSource returns a Source which yields each of rows in order.
func NewSliceSource(rows []map[string]interface{}) *SliceSource {
	return &SliceSource{rows: rows}
}

// Record implements Source.
func (s *SliceSource) Record() (interface{}, error) {
	if s.i >= len(s.rows) {
		return nil, io.EOF
	}
	s.i++
	return s.rows[s.i-1], nil
}
