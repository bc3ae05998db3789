package s3

import (
	"io"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/koverse/kdp"
	"github.com/koverse/kdp/test"
)

// fakeS3 serves objects from memory, two per listing page.
type fakeS3 struct {
	s3iface.S3API
	objects map[string]string
}

func (f *fakeS3) ListObjectsPagesWithContext(ctx aws.Context, in *s3.ListObjectsInput, fn func(*s3.ListObjectsOutput, bool) bool, opts ...request.Option) error {
	keys := make([]string, 0)
	for k := range f.objects {
		if strings.HasPrefix(k, aws.StringValue(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for i := 0; i < len(keys); i += 2 {
		page := &s3.ListObjectsOutput{}
		for _, k := range keys[i:min(i+2, len(keys))] {
			page.Contents = append(page.Contents, &s3.Object{Key: aws.String(k), Size: aws.Int64(int64(len(f.objects[k])))})
		}
		if !fn(page, i+2 >= len(keys)) {
			break
		}
	}
	return nil
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: ioutil.NopCloser(strings.NewReader(body))}, nil
}

func TestRawSource(t *testing.T) {
	client := &fakeS3{objects: map[string]string{
		"data/a.json": `{"a": 1}`,
		"data/b.json": `{"a": 2}`,
		"data/c.json": `{"a": 3}`,
		"data/sub/":   "",
		"other.json":  `{"a": 4}`,
	}}
	rs, err := NewRawSource("bucket", OptRawPrefix("data/"), OptRawClient(client))
	test.ErrNil(t, err, "getting raw source")
	test.MustBe(t, 3, rs.Len())

	names := make([]string, 0)
	var r kdp.NamedReadCloser
	for r, err = rs.NextReader(); err == nil; r, err = rs.NextReader() {
		names = append(names, r.Name())
		test.MustBe(t, "bucket", r.Meta()["bucket"])
		r.Close()
	}
	if err != io.EOF {
		t.Fatalf("unexpected error: %v", err)
	}
	test.MustBe(t, []string{"data/a.json", "data/b.json", "data/c.json"}, names)

	if _, err := NewRawSource("", OptRawClient(client)); err == nil {
		t.Fatalf("expected error without a bucket")
	}

	rs, err = NewRawSource("bucket", OptRawClient(client))
	test.ErrNil(t, err, "getting raw source")
	delete(client.objects, "data/a.json")
	if _, err := rs.NextReader(); err == nil || !strings.Contains(err.Error(), "data/a.json") {
		t.Fatalf("expected error fetching a missing object, got %v", err)
	}
}

func TestMainIngest(t *testing.T) {
	f := test.NewFakePlatform()
	defer f.Close()
	f.AddDataset("ds1", nil)

	tests := []struct {
		name    string
		format  string
		objects map[string]string
		exp     []map[string]interface{}
		expErr  bool
	}{
		{
			name:    "json",
			format:  "json",
			objects: map[string]string{"a.json": `{"n": 1}` + "\n" + `{"n": 2}`, "b.json": `{"n": 3}`},
			exp:     []map[string]interface{}{{"n": int64(1)}, {"n": int64(2)}, {"n": int64(3)}},
		},
		{
			name:    "csv",
			format:  "csv",
			objects: map[string]string{"a.csv": "n,s\n1,x\n2,y\n"},
			exp:     []map[string]interface{}{{"n": "1", "s": "x"}, {"n": "2", "s": "y"}},
		},
		{
			name:    "unknown format",
			format:  "xml",
			objects: map[string]string{"a.xml": "<a/>"},
			expErr:  true,
		},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			m := NewMain()
			m.Bucket = "bucket"
			m.Format = tst.format
			m.KdpURL = f.URL
			m.KdpJWT = test.StaticJWT
			m.DatasetName = tst.name
			m.WorkspaceID = "ws1"
			m.LogPath = filepath.Join(t.TempDir(), "log")
			m.ConnOpts = []kdp.ConnOption{kdp.OptConnHTTPClient(f.Client())}
			m.RawOpts = []RawOption{OptRawClient(&fakeS3{objects: tst.objects})}
			err := m.Run()
			if tst.expErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			test.ErrNil(t, err, "running main")
			test.MustBe(t, tst.exp, f.Rows(m.DatasetID))
		})
	}
}
