package kdp_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/koverse/kdp"
	"github.com/koverse/kdp/api"
	"github.com/koverse/kdp/test"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newConn(t *testing.T, f *test.FakePlatform, opts ...kdp.ConnOption) *kdp.Conn {
	t.Helper()
	all := append([]kdp.ConnOption{kdp.OptConnHost(f.URL), kdp.OptConnHTTPClient(f.Client())}, opts...)
	conn, err := kdp.NewConn(all...)
	test.ErrNil(t, err, "getting conn")
	return conn
}

func newPlatform(t *testing.T) *test.FakePlatform {
	f := test.NewFakePlatform()
	t.Cleanup(f.Close)
	return f
}

func TestReadDataset(t *testing.T) {
	f := newPlatform(t)
	f.AddDataset("ds1", test.Rows(25))
	conn := newConn(t, f)

	tests := []struct {
		name      string
		batchSize int
		expReqs   int
		expBatch  float64
	}{
		{name: "paged", batchSize: 10, expReqs: 3, expBatch: 10},
		{name: "exact", batchSize: 25, expReqs: 1, expBatch: 25},
		{name: "default", batchSize: 0, expReqs: 1, expBatch: kdp.DefaultReadBatchSize},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			before := len(f.Requests("/readInSequence"))
			rows, err := conn.ReadDataset(context.Background(), "ds1", test.StaticJWT, kdp.ReadOptions{BatchSize: tst.batchSize})
			test.ErrNil(t, err, "reading dataset")
			test.MustBe(t, test.Rows(25), rows)
			reqs := f.Requests("/readInSequence")[before:]
			if len(reqs) != tst.expReqs {
				t.Fatalf("expected %d requests, got %d", tst.expReqs, len(reqs))
			}
			body := map[string]interface{}{}
			test.ErrNil(t, json.Unmarshal(reqs[0].Body, &body), "decoding request")
			test.MustBe(t, tst.expBatch, body["batchSize"])
			test.MustBe(t, "", body["startingRecordId"])
		})
	}
}

func TestReadDatasetAdvancesStartingRecord(t *testing.T) {
	f := newPlatform(t)
	f.AddDataset("ds1", test.Rows(5))
	conn := newConn(t, f)

	_, err := conn.ReadDataset(context.Background(), "ds1", test.StaticJWT, kdp.ReadOptions{BatchSize: 2})
	test.ErrNil(t, err, "reading dataset")
	reqs := f.Requests("/readInSequence")
	starts := make([]interface{}, 0)
	for _, r := range reqs {
		body := map[string]interface{}{}
		test.ErrNil(t, json.Unmarshal(r.Body, &body), "decoding request")
		starts = append(starts, body["startingRecordId"])
	}
	test.MustBe(t, []interface{}{"", "0000000002", "0000000004"}, starts)
}

func TestReadDatasetStartingRecordID(t *testing.T) {
	f := newPlatform(t)
	f.AddDataset("ds1", test.Rows(5))
	conn := newConn(t, f)

	rows, err := conn.ReadDataset(context.Background(), "ds1", test.StaticJWT, kdp.ReadOptions{StartingRecordID: "0000000003"})
	test.ErrNil(t, err, "reading dataset")
	test.MustBe(t, test.Rows(5)[3:], rows)
}

func TestReadDatasetLargeIntegers(t *testing.T) {
	f := newPlatform(t)
	f.AddDataset("ds1", nil)
	conn := newConn(t, f)
	ctx := context.Background()

	rows := []map[string]interface{}{{"id": int64(9007199254740993), "ratio": 0.5}}
	_, err := conn.BatchWriteV2(ctx, rows, "ds1", test.StaticJWT, kdp.WriteOptions{})
	test.ErrNil(t, err, "writing")
	got, err := conn.ReadDataset(ctx, "ds1", test.StaticJWT, kdp.ReadOptions{})
	test.ErrNil(t, err, "reading dataset")
	test.MustBe(t, rows, got)

	out, err := json.Marshal(got[0])
	test.ErrNil(t, err, "encoding row")
	test.MustBe(t, `{"id":9007199254740993,"ratio":0.5}`, string(out))
}

func TestReadDatasetNoProgress(t *testing.T) {
	tests := []struct {
		name string
		last string
	}{
		{name: "empty last record", last: ""},
		{name: "same last record", last: "0000000002"},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				if calls > 3 {
					t.Errorf("read kept going after %d requests", calls)
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				batch := api.RecordBatch{More: true, LastRecordID: tst.last}
				if calls == 1 {
					batch.Records = []api.Record{{"id": "0000000002", api.DataStoreKey: map[string]interface{}{"n": 1}}}
					batch.LastRecordID = "0000000002"
				}
				_ = json.NewEncoder(w).Encode(batch)
			}))
			defer srv.Close()
			conn, err := kdp.NewConn(kdp.OptConnHost(srv.URL), kdp.OptConnHTTPClient(srv.Client()))
			test.ErrNil(t, err, "getting conn")

			_, err = conn.ReadDataset(context.Background(), "ds1", test.StaticJWT, kdp.ReadOptions{})
			if err == nil || !strings.Contains(err.Error(), "no progress") {
				t.Fatalf("expected no progress error, got %v", err)
			}
			test.MustBe(t, 2, calls)
		})
	}
}

func TestReadDatasetErrors(t *testing.T) {
	f := newPlatform(t)
	f.AddDataset("ds1", test.Rows(5))
	conn := newConn(t, f)

	_, err := conn.ReadDataset(context.Background(), "nope", test.StaticJWT, kdp.ReadOptions{})
	if !api.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = conn.ReadDataset(context.Background(), "ds1", "bad-token", kdp.ReadOptions{})
	if api.StatusCode(err) != 401 {
		t.Fatalf("expected 401, got %v", err)
	}
	_, err = conn.ReadDataset(context.Background(), "ds1", test.StaticJWT, kdp.ReadOptions{BatchSize: -1})
	if err == nil {
		t.Fatalf("expected error for negative batch size")
	}
	_, err = conn.ReadDataset(context.Background(), "", test.StaticJWT, kdp.ReadOptions{})
	if err == nil {
		t.Fatalf("expected error for empty dataset id")
	}
}

func TestRow(t *testing.T) {
	tests := []struct {
		name string
		rec  api.Record
		exp  map[string]interface{}
	}{
		{
			name: "data store",
			rec:  api.Record{"id": "1", api.DataStoreKey: map[string]interface{}{"a": "b"}},
			exp:  map[string]interface{}{"a": "b"},
		},
		{
			name: "bare",
			rec:  api.Record{"a": "b"},
			exp:  map[string]interface{}{"a": "b"},
		},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			test.MustBe(t, tst.exp, kdp.Row(tst.rec))
		})
	}
}

func drain(t *testing.T, src kdp.Source, n int) []map[string]interface{} {
	t.Helper()
	rows := make([]map[string]interface{}, 0)
	for i := 0; n < 0 || i < n; i++ {
		rec, err := src.Record()
		if err == io.EOF {
			break
		}
		test.ErrNil(t, err, "getting record")
		rows = append(rows, rec.(map[string]interface{}))
	}
	return rows
}

func TestReadSourceResumesFromCheckpoint(t *testing.T) {
	f := newPlatform(t)
	f.AddDataset("ds1", test.Rows(25))
	conn := newConn(t, f)
	cp := kdp.NewMapCheckpointer()
	ctx := context.Background()

	src, err := conn.NewReadSource(ctx, "ds1", test.StaticJWT, kdp.ReadOptions{BatchSize: 10}, cp)
	test.ErrNil(t, err, "getting read source")
	// the 11th row fetches the second page, which saves the end of the first
	first := drain(t, src, 11)
	test.MustBe(t, test.Rows(25)[:11], first)
	saved, err := cp.Checkpoint("ds1")
	test.ErrNil(t, err, "getting checkpoint")
	test.MustBe(t, "0000000010", saved)

	src, err = conn.NewReadSource(ctx, "ds1", test.StaticJWT, kdp.ReadOptions{BatchSize: 10}, cp)
	test.ErrNil(t, err, "getting second read source")
	rest := drain(t, src, -1)
	test.MustBe(t, test.Rows(25)[10:], rest)
	saved, err = cp.Checkpoint("ds1")
	test.ErrNil(t, err, "getting final checkpoint")
	test.MustBe(t, "0000000025", saved)
}

type failingCheckpointer struct {
	kdp.MapCheckpointer
}

func (failingCheckpointer) SetCheckpoint(datasetID, recordID string) error {
	return errors.New("disk full")
}

func TestReadSourceCheckpointError(t *testing.T) {
	f := newPlatform(t)
	f.AddDataset("ds1", test.Rows(4))
	conn := newConn(t, f)
	cp := &failingCheckpointer{}

	src, err := conn.NewReadSource(context.Background(), "ds1", test.StaticJWT, kdp.ReadOptions{BatchSize: 2, StartingRecordID: "0"}, cp)
	test.ErrNil(t, err, "getting read source")
	drain(t, src, 2)
	if _, err := src.Record(); err == nil {
		t.Fatalf("expected checkpoint error")
	}
}

func TestReadDatasetParallel(t *testing.T) {
	f := newPlatform(t)
	f.AddDataset("ds1", test.Rows(30))
	f.SetSplits("ds1", []string{"0000000010", "0000000020"})
	conn := newConn(t, f)

	for _, concurrency := range []int{0, 1, 2} {
		rows, err := conn.ReadDatasetParallel(context.Background(), "ds1", test.StaticJWT, 4, concurrency)
		test.ErrNil(t, err, "reading in parallel")
		test.MustBe(t, test.Rows(30), rows)
	}
	splits, err := conn.GetSplits(context.Background(), "ds1", test.StaticJWT)
	test.ErrNil(t, err, "getting splits")
	test.MustBe(t, []string{"0000000010", "0000000020"}, splits)
}

func TestReadBatch(t *testing.T) {
	f := newPlatform(t)
	f.AddDataset("ds1", test.Rows(30))
	conn := newConn(t, f)

	batch, err := conn.ReadBatch(context.Background(), "ds1", "0000000005", "0000000020", true, 0, test.StaticJWT)
	test.ErrNil(t, err, "reading batch")
	if len(batch.Records) != kdp.DefaultRangeBatchSize || !batch.More {
		t.Fatalf("unexpected batch: %d records, more %v", len(batch.Records), batch.More)
	}
	test.MustBe(t, "0000000006", batch.Records[0]["id"])
	test.MustBe(t, "0000000015", batch.LastRecordID)
}
