package json

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/koverse/kdp"
	"github.com/koverse/kdp/test"
)

func TestSource(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		exp    []map[string]interface{}
		expErr bool
	}{
		{
			name: "numbers",
			data: `{"a": 1, "b": 2.5, "c": [3, {"d": 4}]}
{"a": "x"}`,
			exp: []map[string]interface{}{
				{"a": int64(1), "b": 2.5, "c": []interface{}{int64(3), map[string]interface{}{"d": int64(4)}}},
				{"a": "x"},
			},
		},
		{
			name: "concatenated",
			data: `{"a":1}{"a":2}`,
			exp:  []map[string]interface{}{{"a": int64(1)}, {"a": int64(2)}},
		},
		{
			name: "surrounding whitespace",
			data: "\n{\"hey\": 44}\n{\"hey\": 39}\n\n",
			exp:  []map[string]interface{}{{"hey": int64(44)}, {"hey": int64(39)}},
		},
		{
			name: "large integer",
			data: `{"id": 9007199254740993, "f": 1.5e300}`,
			exp:  []map[string]interface{}{{"id": int64(9007199254740993), "f": 1.5e300}},
		},
		{
			name:   "stray bracket",
			data:   "  }",
			expErr: true,
		},
		{
			name:   "not an object",
			data:   `[1,2]`,
			expErr: true,
		},
		{
			name:   "null",
			data:   `null`,
			expErr: true,
		},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			src := NewSource(strings.NewReader(tst.data))
			got := make([]map[string]interface{}, 0)
			for {
				rec, err := src.Record()
				if err == io.EOF {
					break
				}
				if tst.expErr {
					if err == nil {
						t.Fatalf("expected error, got %v", rec)
					}
					return
				}
				test.ErrNil(t, err, "getting record")
				got = append(got, rec.(map[string]interface{}))
			}
			if tst.expErr {
				t.Fatalf("expected error")
			}
			test.MustBe(t, tst.exp, got)
		})
	}
}

func TestSourceReaders(t *testing.T) {
	data := "\n{\"hey\": 44}\n{\"hey\": 39}\n"
	tests := []struct {
		name string
		r    io.Reader
	}{
		{name: "one byte", r: iotest.OneByteReader(strings.NewReader(data))},
		{name: "data with eof", r: iotest.DataErrReader(strings.NewReader(data))},
		{name: "half", r: iotest.HalfReader(strings.NewReader(data))},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			src := NewSource(tst.r)
			n := 0
			for {
				_, err := src.Record()
				if err == io.EOF {
					break
				}
				test.ErrNil(t, err, "getting record")
				n++
			}
			test.MustBe(t, 2, n)
		})
	}

	boom := errors.New("boom")
	src := NewSource(io.MultiReader(strings.NewReader(`{"a":1}`+"\n"), iotest.ErrReader(boom)))
	_, err := src.Record()
	test.ErrNil(t, err, "getting first record")
	if _, err := src.Record(); err != boom {
		t.Fatalf("expected read error, got %v", err)
	}
}

type namedReader struct {
	io.Reader
	name   string
	closed *int
}

func (n namedReader) Name() string                 { return n.name }
func (n namedReader) Meta() map[string]interface{} { return nil }
func (n namedReader) Close() error {
	*n.closed++
	return nil
}

type sliceRawSource struct {
	readers []kdp.NamedReadCloser
}

func (s *sliceRawSource) NextReader() (kdp.NamedReadCloser, error) {
	if len(s.readers) == 0 {
		return nil, io.EOF
	}
	r := s.readers[0]
	s.readers = s.readers[1:]
	return r, nil
}

func TestSourceFromRawSource(t *testing.T) {
	closed := 0
	rs := &sliceRawSource{readers: []kdp.NamedReadCloser{
		namedReader{Reader: strings.NewReader(`{"f":1}` + "\n" + `{"f":2}` + "\n"), name: "one", closed: &closed},
		namedReader{Reader: strings.NewReader(""), name: "empty", closed: &closed},
		namedReader{Reader: strings.NewReader(`{"f":3}`), name: "three", closed: &closed},
	}}
	src := NewSourceFromRawSource(rs)
	vals := make([]interface{}, 0)
	for {
		rec, err := src.Record()
		if err == io.EOF {
			break
		}
		test.ErrNil(t, err, "getting record")
		vals = append(vals, rec.(map[string]interface{})["f"])
	}
	test.MustBe(t, []interface{}{int64(1), int64(2), int64(3)}, vals)
	test.MustBe(t, 3, closed)

	bad := &sliceRawSource{readers: []kdp.NamedReadCloser{
		namedReader{Reader: strings.NewReader(`{"f" 1}`), name: "broken.json", closed: &closed},
	}}
	_, err := NewSourceFromRawSource(bad).Record()
	if err == nil || !strings.Contains(err.Error(), "broken.json") {
		t.Fatalf("expected error naming the file, got %v", err)
	}
}
