package boltdb_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/koverse/kdp"
	"github.com/koverse/kdp/boltdb"
	"github.com/koverse/kdp/test"
)

var _ kdp.Checkpointer = &boltdb.Checkpointer{}

func TestCheckpointer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	cp, err := boltdb.NewCheckpointer(path)
	test.ErrNil(t, err, "opening checkpointer")

	id, err := cp.Checkpoint("ds1")
	test.ErrNil(t, err, "getting empty checkpoint")
	test.MustBe(t, "", id)

	test.ErrNil(t, cp.SetCheckpoint("ds1", "0000000010"), "setting checkpoint")
	test.ErrNil(t, cp.SetCheckpoint("ds1", "0000000020"), "overwriting checkpoint")
	test.ErrNil(t, cp.SetCheckpoint("ds2", "0000000005"), "setting second checkpoint")
	if err := cp.SetCheckpoint("", "1"); err == nil {
		t.Fatalf("expected error for empty dataset id")
	}
	test.ErrNil(t, cp.Close(), "closing")

	cp, err = boltdb.NewCheckpointer(path)
	test.ErrNil(t, err, "reopening checkpointer")
	defer cp.Close()
	id, err = cp.Checkpoint("ds1")
	test.ErrNil(t, err, "getting checkpoint")
	test.MustBe(t, "0000000020", id)
	all, err := cp.Checkpoints()
	test.ErrNil(t, err, "listing checkpoints")
	test.MustBe(t, map[string]string{"ds1": "0000000020", "ds2": "0000000005"}, all)
}

func TestCheckpointerReadSource(t *testing.T) {
	f := test.NewFakePlatform()
	defer f.Close()
	f.AddDataset("ds1", test.Rows(6))
	conn, err := kdp.NewConn(kdp.OptConnHost(f.URL), kdp.OptConnHTTPClient(f.Client()))
	test.ErrNil(t, err, "getting conn")

	path := filepath.Join(t.TempDir(), "checkpoints.db")
	cp, err := boltdb.NewCheckpointer(path)
	test.ErrNil(t, err, "opening checkpointer")
	defer cp.Close()

	src, err := conn.NewReadSource(context.Background(), "ds1", test.StaticJWT, kdp.ReadOptions{BatchSize: 4}, cp)
	test.ErrNil(t, err, "getting read source")
	n := 0
	for {
		if _, err := src.Record(); err != nil {
			break
		}
		n++
	}
	test.MustBe(t, 6, n)
	id, err := cp.Checkpoint("ds1")
	test.ErrNil(t, err, "getting checkpoint")
	test.MustBe(t, "0000000006", id)
}
