package api_test

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koverse/kdp/api"
	"github.com/pkg/errors"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...api.ClientOption) *api.Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := api.NewClient(srv.URL, opts...)
	if err != nil {
		t.Fatalf("getting client: %v", err)
	}
	return c
}

func TestBearerTokenAndRequestID(t *testing.T) {
	var gotAuth, gotReqID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-Id")
		w.Write([]byte(`{"id":"ws1","name":"one"}`))
	})
	ws, err := c.GetWorkspace(context.Background(), "ws1", api.WithBearerToken("tok"))
	if err != nil {
		t.Fatalf("getting workspace: %v", err)
	}
	if ws.Name != "one" {
		t.Fatalf("unexpected workspace: %#v", ws)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("unexpected authorization header: %q", gotAuth)
	}
	if gotReqID == "" {
		t.Fatalf("missing request id")
	}
}

func TestEmptyTokenLeavesRequestUnauthenticated(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"accessToken":"abc"}`))
	})
	details, err := c.PostAuthentication(context.Background(), api.AuthenticationRequest{Strategy: api.StrategyLocal}, api.WithBearerToken(""))
	if err != nil {
		t.Fatalf("authenticating: %v", err)
	}
	if details.AccessToken != "abc" {
		t.Fatalf("unexpected token: %s", details.AccessToken)
	}
	if gotAuth != "" {
		t.Fatalf("expected no authorization header, got %q", gotAuth)
	}
}

func TestErrorDecoding(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expMsg   string
		notFound bool
	}{
		{
			name:     "feathers error",
			status:   404,
			body:     `{"name":"NotFound","message":"No record found for id 'x'","code":404,"className":"not-found"}`,
			expMsg:   "No record found for id 'x'",
			notFound: true,
		},
		{
			name:   "plain text",
			status: 502,
			body:   "bad gateway",
			expMsg: "bad gateway",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.status)
				w.Write([]byte(test.body))
			})
			_, err := c.GetDataset(context.Background(), "x")
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), test.expMsg) {
				t.Fatalf("unexpected error message: %v", err)
			}
			if api.StatusCode(errors.Wrap(err, "wrapped")) != test.status {
				t.Fatalf("unexpected status code: %d", api.StatusCode(err))
			}
			if api.IsNotFound(err) != test.notFound {
				t.Fatalf("IsNotFound mismatch for %v", err)
			}
		})
	}
}

func TestListQueryParams(t *testing.T) {
	var got map[string][]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte(`{"total":0,"limit":3,"skip":2,"data":[]}`))
	})
	_, err := c.GetJobs(context.Background(), api.GetJobsParams{
		DatasetID:   "ds1",
		WorkspaceID: "ws1",
		ListParams: api.ListParams{
			Limit: 3,
			Skip:  2,
			Sort:  map[string]interface{}{"createdAt": -1},
		},
	})
	if err != nil {
		t.Fatalf("getting jobs: %v", err)
	}
	exp := map[string]string{
		"datasetId":        "ds1",
		"workspaceId":      "ws1",
		"$limit":           "3",
		"$skip":            "2",
		"$sort[createdAt]": "-1",
	}
	for k, v := range exp {
		if len(got[k]) != 1 || got[k][0] != v {
			t.Fatalf("query param %s: exp %s, got %v (all: %v)", k, v, got[k], got)
		}
	}
}

func TestWriteIsAsyncAndGzipHeader(t *testing.T) {
	var gotQuery, gotEncoding, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotPath = r.URL.Path
		gotEncoding = r.Header.Get("Content-Encoding")
		ioutil.ReadAll(r.Body)
		w.Write([]byte(`{"partitions":["p1"]}`))
	})
	async := false
	resp, err := c.PostV2WriteWithBody(context.Background(), "ds/1", api.WriteParams{IsAsync: &async}, "application/json", strings.NewReader("x"), api.WithGzipContentEncoding())
	if err != nil {
		t.Fatalf("writing: %v", err)
	}
	if len(resp.Partitions) != 1 || resp.Partitions[0] != "p1" {
		t.Fatalf("unexpected partitions: %v", resp.Partitions)
	}
	if gotQuery != "isAsync=false" {
		t.Fatalf("unexpected query: %s", gotQuery)
	}
	if gotEncoding != "gzip" {
		t.Fatalf("unexpected content encoding: %s", gotEncoding)
	}
	if gotPath != "/v2/write/ds/1" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
}

func TestDisallowUnknownFields(t *testing.T) {
	h := func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"ws1","name":"one","color":"blue"}`))
	}
	lax := newTestClient(t, h)
	if _, err := lax.GetWorkspace(context.Background(), "ws1"); err != nil {
		t.Fatalf("unknown keys should be discarded by default: %v", err)
	}
	strict := newTestClient(t, h, api.WithDisallowUnknownFields())
	if _, err := strict.GetWorkspace(context.Background(), "ws1"); err == nil {
		t.Fatalf("expected error decoding unknown key")
	}
}
