package csv_test

import (
	"io"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/koverse/kdp/csv"
	"github.com/koverse/kdp/file"
	"github.com/koverse/kdp/test"
)

func mustFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	test.ErrNil(t, ioutil.WriteFile(filepath.Join(dir, name), []byte(contents), 0600), "writing file")
}

func records(t *testing.T, s *csv.Source) ([]map[string]string, error) {
	t.Helper()
	recs := make([]map[string]string, 0)
	for {
		rec, err := s.Record()
		if err == io.EOF {
			return recs, nil
		} else if err != nil {
			return recs, err
		}
		recs = append(recs, rec.(map[string]string))
	}
}

func TestSource(t *testing.T) {
	d := t.TempDir()
	mustFile(t, d, "a.csv", `lah,hah,zlah
1,2,sbldak
4,,"kfue, quoted"
`)
	mustFile(t, d, "b.csv", "")
	mustFile(t, d, "c.csv", `lah,hah,zlah

11,12,hi,
9,10,by`)

	rs, err := file.NewRawSource(d)
	test.ErrNil(t, err, "getting raw source")
	recs, err := records(t, csv.NewSourceFromRawSource(rs))
	test.ErrNil(t, err, "reading records")
	test.MustBe(t, []map[string]string{
		{"lah": "1", "hah": "2", "zlah": "sbldak"},
		{"lah": "4", "zlah": "kfue, quoted"},
		{"lah": "11", "hah": "12", "zlah": "hi"},
		{"lah": "9", "hah": "10", "zlah": "by"},
	}, recs)
}

func TestSourceErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		expErr string
	}{
		{name: "duplicate header", data: "a,b,a\n1,2,3\n", expErr: "appeared at both"},
		{name: "empty header field", data: "a,,c\n1,2,3\n", expErr: "empty string"},
		{name: "short row", data: "a,b,c\n1,2\n", expErr: "line 2"},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			d := t.TempDir()
			mustFile(t, d, "data.csv", tst.data)
			rs, err := file.NewRawSource(d)
			test.ErrNil(t, err, "getting raw source")
			_, err = records(t, csv.NewSourceFromRawSource(rs))
			if err == nil || !strings.Contains(err.Error(), tst.expErr) {
				t.Fatalf("expected error containing %q, got %v", tst.expErr, err)
			}
			if !strings.Contains(err.Error(), "data.csv") {
				t.Fatalf("expected error to name the file: %v", err)
			}
		})
	}
}
