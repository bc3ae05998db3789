package kdp_test

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/koverse/kdp"
	"github.com/koverse/kdp/api"
	"github.com/koverse/kdp/mock"
	"github.com/koverse/kdp/test"
	"github.com/pkg/errors"
)

type mixedSource struct {
	recs []interface{}
}

func (m *mixedSource) Record() (interface{}, error) {
	if len(m.recs) == 0 {
		return nil, io.EOF
	}
	rec := m.recs[0]
	m.recs = m.recs[1:]
	if err, ok := rec.(error); ok {
		return nil, err
	}
	return rec, nil
}

func TestIngester(t *testing.T) {
	f := newPlatform(t)
	f.AddDataset("ds1", nil)
	stats := &mock.RecordingStatter{}
	conn := newConn(t, f, kdp.OptConnStatter(stats))

	src := &mixedSource{recs: []interface{}{
		map[string]interface{}{"a": float64(1)},
		map[string]string{"a": "two"},
		42,
		api.Record{"id": "x", api.DataStoreKey: map[string]interface{}{"a": float64(3)}},
	}}
	parts, err := kdp.NewIngester(src, conn, "ds1", test.StaticJWT, kdp.WriteOptions{BatchSize: 2}).Run(context.Background())
	test.ErrNil(t, err, "running ingester")
	test.MustBe(t, 2, len(parts))
	test.MustBe(t, []map[string]interface{}{{"a": int64(1)}, {"a": "two"}, {"a": int64(3)}}, f.Rows("ds1"))
	test.MustBe(t, int64(1), stats.Counts["kdp.ingest.skipped"])
	test.MustBe(t, 2, len(f.Requests("/v2/write/")))
}

func TestIngesterSourceError(t *testing.T) {
	f := newPlatform(t)
	f.AddDataset("ds1", nil)
	conn := newConn(t, f)

	src := &mixedSource{recs: []interface{}{
		map[string]interface{}{"a": float64(1)},
		errors.New("broken pipe"),
	}}
	_, err := kdp.NewIngester(src, conn, "ds1", test.StaticJWT, kdp.WriteOptions{}).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "broken pipe") {
		t.Fatalf("expected source error, got %v", err)
	}
	test.MustBe(t, 0, len(f.Rows("ds1")))
}

func TestMainRun(t *testing.T) {
	f := newPlatform(t)
	f.AddDataset("ds1", nil)

	tests := []struct {
		name   string
		setup  func(m *kdp.Main)
		expErr string
		check  func(t *testing.T)
	}{
		{
			name: "existing dataset",
			setup: func(m *kdp.Main) {
				m.DatasetID = "ds1"
				m.KdpJWT = test.StaticJWT
			},
			check: func(t *testing.T) {
				test.MustBe(t, test.Rows(5), f.Rows("ds1"))
			},
		},
		{
			name: "new dataset with basic login",
			setup: func(m *kdp.Main) {
				m.DatasetName = "fresh"
				m.WorkspaceID = "ws1"
				m.AuthType = kdp.AuthTypeBasic
				m.Email, m.Password = test.Email, test.Password
				m.Compressed = true
			},
			check: func(t *testing.T) {
				for _, ds := range f.Datasets() {
					if ds.Name == "fresh" {
						test.MustBe(t, test.Rows(5), f.Rows(ds.ID))
						return
					}
				}
				t.Fatalf("dataset fresh was not created")
			},
		},
		{
			name:   "no dataset",
			setup:  func(m *kdp.Main) { m.KdpJWT = test.StaticJWT },
			expErr: "dataset-id or dataset-name",
		},
		{
			name: "no workspace",
			setup: func(m *kdp.Main) {
				m.DatasetName = "fresh"
				m.KdpJWT = test.StaticJWT
			},
			expErr: "workspace-id",
		},
		{
			name: "bad credentials",
			setup: func(m *kdp.Main) {
				m.DatasetID = "ds1"
				m.AuthType = kdp.AuthTypeBasic
				m.Email, m.Password = test.Email, "wrong"
			},
			expErr: "resolving jwt",
		},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			m := kdp.NewMain()
			m.KdpURL = f.URL
			m.BatchSize = 2
			m.LogPath = filepath.Join(t.TempDir(), "ingest.log")
			m.ConnOpts = []kdp.ConnOption{kdp.OptConnHTTPClient(f.Client())}
			m.NewSource = func() (kdp.Source, error) {
				return kdp.NewSliceSource(test.Rows(5)), nil
			}
			tst.setup(m)
			err := m.Run()
			if tst.expErr != "" {
				if err == nil || !strings.Contains(err.Error(), tst.expErr) {
					t.Fatalf("expected error containing %q, got %v", tst.expErr, err)
				}
				return
			}
			test.ErrNil(t, err, "running main")
			tst.check(t)
		})
	}
}
