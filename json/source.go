package json

import (
	"io"
	"io/ioutil"

	jsoniter "github.com/json-iterator/go"
	"github.com/koverse/kdp"
	"github.com/koverse/kdp/api"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Source is a kdp.Source for reading a stream of json objects.
type Source struct {
	r   *errReader
	dec *jsoniter.Decoder
}

// NewSource gets a new json source which will decode from the given reader.
func NewSource(r io.Reader) *Source {
	er := &errReader{r: r}
	dec := json.NewDecoder(er)
	dec.UseNumber()
	return &Source{
		r:   er,
		dec: dec,
	}
}

// errReader remembers the last read error other than io.EOF.
type errReader struct {
	r   io.Reader
	err error
}

func (e *errReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && err != io.EOF {
		e.err = err
	}
	return n, err
}

// Record implements kdp.Source. It returns the next json object that can be
// decoded from the reader. It is guaranteed to return a map[string]interface{}
// if there is no error. Numbers are converted to int64 when they are
// integral and float64 otherwise.
func (s *Source) Record() (rec interface{}, err error) {
	if !s.dec.More() {
		// More skips trailing whitespace and stops at EOF, a read error
		// or a stray closing bracket.
		if s.r.err != nil {
			return nil, s.r.err
		}
		if rest, _ := ioutil.ReadAll(s.dec.Buffered()); len(rest) > 0 {
			return nil, errors.Errorf("unexpected %q", rest[0])
		}
		return nil, io.EOF
	}
	var res map[string]interface{}
	err = s.dec.Decode(&res)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("decoded null instead of an object")
	}
	api.ConvertNumbers(res)
	return res, nil
}

type rawSourceSource struct {
	rs kdp.RawSource

	cur kdp.NamedReadCloser
	s   *Source
}

// NewSourceFromRawSource returns a kdp.Source which decodes json objects
// from each reader of rs in turn.
func NewSourceFromRawSource(rs kdp.RawSource) kdp.Source {
	return &rawSourceSource{rs: rs}
}

func (r *rawSourceSource) Record() (rec interface{}, err error) {
	for {
		if r.s == nil {
			reader, err := r.rs.NextReader()
			if err == io.EOF {
				return nil, err
			} else if err != nil {
				return nil, errors.Wrap(err, "getting next reader")
			}
			r.cur = reader
			r.s = NewSource(reader)
		}
		rec, err = r.s.Record()
		if err == io.EOF {
			r.cur.Close()
			r.cur, r.s = nil, nil
			continue
		} else if err != nil {
			return nil, errors.Wrapf(err, "decoding %s", r.cur.Name())
		}
		return rec, nil
	}
}
