package connector

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/koverse/kdp"
	"github.com/koverse/kdp/test"
)

func newConnector(t *testing.T, f *test.FakePlatform, settings map[string]interface{}) *Connector {
	t.Helper()
	c, err := NewFromSettings(settings, OptConnOptions(kdp.OptConnHTTPClient(f.Client())))
	test.ErrNil(t, err, "getting connector")
	return c
}

func basicPreset(f *test.FakePlatform) map[string]interface{} {
	return map[string]interface{}{
		"kdp_url":      f.URL,
		"auth_type":    kdp.AuthTypeBasic,
		"email":        test.Email,
		"password":     test.Password,
		"workspace_id": "ws1",
	}
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(map[string]interface{}{
		"dataset_id":           "ds1",
		"batch_size":           "25",
		"use_existing_dataset": "true",
		"api_configuration_preset": map[string]interface{}{
			"kdp_url":       "https://kdp.example.com",
			"auth_type":     "jwt",
			"kdp_jwt":       "abc",
			"keycloak_host": "kc.example.com",
		},
	})
	test.ErrNil(t, err, "decoding")
	test.MustBe(t, "ds1", cfg.DatasetID)
	test.MustBe(t, 25, cfg.BatchSize)
	test.MustBe(t, true, cfg.UseExistingDataset)
	test.MustBe(t, "abc", cfg.Preset.KdpJWT)
	test.MustBe(t, "kc.example.com", cfg.Preset.KeycloakHost)

	if _, err := DecodeConfig(map[string]interface{}{"batch_size": "lots"}); err == nil {
		t.Fatalf("expected error decoding bad batch size")
	}
}

func TestNewRequiresPreset(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]interface{}
	}{
		{name: "missing", settings: map[string]interface{}{"dataset_id": "ds1"}},
		{name: "empty", settings: map[string]interface{}{"api_configuration_preset": map[string]interface{}{}}},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			_, err := NewFromSettings(tst.settings)
			if err == nil || !strings.Contains(err.Error(), "preset") {
				t.Fatalf("expected preset error, got %v", err)
			}
		})
	}
}

func TestGenerateRows(t *testing.T) {
	f := test.NewFakePlatform()
	defer f.Close()
	f.AddDataset("ds1", test.Rows(7))

	tests := []struct {
		name     string
		settings map[string]interface{}
		limit    int
		expRows  int
		expErr   bool
	}{
		{name: "all", settings: map[string]interface{}{"dataset_id": "ds1", "use_existing_dataset": true, "batch_size": 3}, limit: -1, expRows: 7},
		{name: "limited", settings: map[string]interface{}{"dataset_id": "ds1", "use_existing_dataset": true, "batch_size": 3}, limit: 4, expRows: 4},
		{name: "new dataset", settings: map[string]interface{}{"dataset_id": "ds1", "use_existing_dataset": false}, expErr: true},
		{name: "no dataset id", settings: map[string]interface{}{"use_existing_dataset": true}, expErr: true},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			tst.settings["api_configuration_preset"] = basicPreset(f)
			c := newConnector(t, f, tst.settings)
			if c.GetReadSchema() != nil {
				t.Fatalf("expected no read schema")
			}
			it, err := c.GenerateRows(context.Background(), tst.limit)
			if tst.expErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			test.ErrNil(t, err, "generating rows")
			rows := make([]map[string]interface{}, 0)
			for {
				row, err := it.Next()
				if err == io.EOF {
					break
				}
				test.ErrNil(t, err, "getting row")
				rows = append(rows, row)
			}
			test.MustBe(t, test.Rows(7)[:tst.expRows], rows)
		})
	}
}

func TestWriter(t *testing.T) {
	schema := Schema{Columns: []Column{{Name: "n"}, {Name: "name"}}}

	tests := []struct {
		name     string
		settings map[string]interface{}
		rows     [][]interface{}
		expErr   bool
		expParts int
	}{
		{
			name:     "existing dataset",
			settings: map[string]interface{}{"dataset_id": "ds1", "use_existing_dataset": true, "batch_size": 2},
			rows:     [][]interface{}{{int64(0), "row"}, {int64(1), "row"}, {int64(2), "row", "extra"}},
			expParts: 2,
		},
		{
			name:     "new dataset",
			settings: map[string]interface{}{"dataset_name": "fresh", "batch_size": 10},
			rows:     [][]interface{}{{int64(0), "row"}, {int64(1), "row"}, {int64(2), "row"}},
			expParts: 1,
		},
		{
			name:     "new dataset without name",
			settings: map[string]interface{}{"batch_size": 10},
			rows:     [][]interface{}{{int64(0), "row"}},
			expErr:   true,
		},
		{
			name:     "nothing buffered",
			settings: map[string]interface{}{"dataset_id": "ds1", "use_existing_dataset": true},
		},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			f := test.NewFakePlatform()
			defer f.Close()
			f.AddDataset("ds1", nil)
			tst.settings["api_configuration_preset"] = basicPreset(f)
			c := newConnector(t, f, tst.settings)

			w := c.GetWriter(schema)
			for _, row := range tst.rows {
				w.WriteRow(row)
			}
			test.MustBe(t, len(tst.rows), w.Buffered())
			parts, err := w.Close(context.Background())
			if tst.expErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			test.ErrNil(t, err, "closing writer")
			test.MustBe(t, tst.expParts, len(parts))
			if len(tst.rows) == 0 {
				test.MustBe(t, 0, len(f.Requests("/authentication")))
				return
			}
			id := "ds1"
			if name, ok := tst.settings["dataset_name"]; ok {
				for _, ds := range f.Datasets() {
					if ds.Name == name {
						id = ds.ID
					}
				}
			}
			test.MustBe(t, test.Rows(3), f.Rows(id))
		})
	}
}

func TestTokenCache(t *testing.T) {
	f := test.NewFakePlatform()
	defer f.Close()
	c := newConnector(t, f, map[string]interface{}{"api_configuration_preset": basicPreset(f)})
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := c.token(ctx)
	test.ErrNil(t, err, "getting token")
	second, err := c.token(ctx)
	test.ErrNil(t, err, "getting cached token")
	test.MustBe(t, first, second)
	test.MustBe(t, 1, len(f.Requests("/authentication")))

	// inside the last minute of the token's life a new one is fetched
	now = now.Add(f.TokenTTL - 30*time.Second)
	third, err := c.token(ctx)
	test.ErrNil(t, err, "refreshing token")
	if third == first {
		t.Fatalf("expected a new token")
	}
	test.MustBe(t, 2, len(f.Requests("/authentication")))
}

func TestTokenCacheStaticJWT(t *testing.T) {
	f := test.NewFakePlatform()
	defer f.Close()
	c := newConnector(t, f, map[string]interface{}{
		"api_configuration_preset": map[string]interface{}{"kdp_url": f.URL, "kdp_jwt": test.StaticJWT},
	})
	c.now = func() time.Time { return time.Now().Add(1000 * time.Hour) }
	tok, err := c.token(context.Background())
	test.ErrNil(t, err, "getting token")
	test.MustBe(t, test.StaticJWT, tok)
	tok, err = c.token(context.Background())
	test.ErrNil(t, err, "getting token again")
	test.MustBe(t, test.StaticJWT, tok)
}
