package kdp_test

import (
	"io"
	"testing"

	"github.com/koverse/kdp"
	"github.com/koverse/kdp/test"
)

func TestSliceSource(t *testing.T) {
	source := kdp.NewSliceSource(test.Rows(2))

	for i := 0; i < 2; i++ {
		rec, err := source.Record()
		test.ErrNil(t, err, "getting record")
		test.MustBe(t, int64(i), rec.(map[string]interface{})["n"])
	}
	for i := 0; i < 2; i++ {
		if _, err := source.Record(); err != io.EOF {
			t.Fatalf("expected EOF, got %v", err)
		}
	}

	if _, err := kdp.NewSliceSource(nil).Record(); err != io.EOF {
		t.Fatalf("expected EOF from empty source, got %v", err)
	}
}
