package test

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
	"github.com/koverse/kdp/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Credentials accepted by a FakePlatform.
const (
	Email        = "user@example.com"
	Password     = "secret"
	StaticJWT    = "static-test-jwt"
	KeycloakUser = "kc-user"
	KeycloakPass = "kc-pass"
)

// Request is a request received by a FakePlatform.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// FakePlatform is an in-memory KDP API served over TLS, with a Keycloak token
// endpoint for the "test" realm. It keeps records, datasets and workspaces in
// maps and issues signed tokens which expire after TokenTTL.
type FakePlatform struct {
	*httptest.Server

	// Partitions is the number of distinct partitions writes are spread
	// across.
	Partitions int
	TokenTTL   time.Duration

	mu         sync.Mutex
	requests   []Request
	tokens     map[string]bool
	datasets   map[string]*api.Dataset
	records    map[string][]api.Record
	splits     map[string][]string
	workspaces map[string]*api.Workspace
	users      map[string]*api.User
	indexes    map[string][]api.Index
	jobs       []api.Job
	uploads    map[string]map[string][]byte
	auditCfgs  map[string]*api.AuditLogConfiguration
	failWrites int
	nextID     int
	writes     int
}

// NewFakePlatform starts a FakePlatform. Close it when done.
func NewFakePlatform() *FakePlatform {
	f := &FakePlatform{
		Partitions: 3,
		TokenTTL:   time.Hour,
		tokens:     map[string]bool{StaticJWT: true},
		datasets:   make(map[string]*api.Dataset),
		records:    make(map[string][]api.Record),
		splits:     make(map[string][]string),
		workspaces: make(map[string]*api.Workspace),
		users:      map[string]*api.User{"u1": {ID: "u1", Email: Email}},
		indexes:    make(map[string][]api.Index),
		uploads:    make(map[string]map[string][]byte),
		auditCfgs: map[string]*api.AuditLogConfiguration{
			"alc1": {ID: "alc1", WorkspaceID: "ws1", AgeInDays: 30},
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /authentication", f.authenticate)
	mux.HandleFunc("POST /realms/test/protocol/openid-connect/token", f.keycloakToken)
	mux.HandleFunc("POST /readInSequence", f.auth(f.readInSequence))
	mux.HandleFunc("POST /read", f.auth(f.readRange))
	mux.HandleFunc("GET /splits/{id}", f.auth(f.getSplits))
	mux.HandleFunc("POST /write/{id}", f.auth(f.write(false)))
	mux.HandleFunc("POST /v2/write/{id}", f.auth(f.write(true)))
	mux.HandleFunc("POST /ingest", f.auth(f.ingest))
	mux.HandleFunc("POST /query", f.auth(f.query))
	mux.HandleFunc("POST /query/document", f.auth(f.queryDocument))
	mux.HandleFunc("POST /datasets", f.auth(f.createDataset))
	mux.HandleFunc("GET /datasets/{id}", f.auth(f.getDataset))
	mux.HandleFunc("PATCH /datasets/{id}", f.auth(f.patchDataset))
	mux.HandleFunc("POST /datasets/{id}/clear", f.auth(f.clearDataset))
	mux.HandleFunc("POST /workspaces", f.auth(f.createWorkspace))
	mux.HandleFunc("GET /workspaces/{id}", f.auth(f.getWorkspace))
	mux.HandleFunc("DELETE /workspaces/{id}", f.auth(f.deleteWorkspace))
	mux.HandleFunc("GET /indexes", f.auth(f.getIndexes))
	mux.HandleFunc("PATCH /indexes/{id}", f.auth(f.patchIndexes))
	mux.HandleFunc("GET /jobs", f.auth(f.getJobs))
	mux.HandleFunc("POST /upload/{id}", f.auth(f.upload))
	mux.HandleFunc("DELETE /users/{id}", f.auth(f.deleteUser))
	mux.HandleFunc("GET /audit-log-configs", f.auth(f.getAuditLogConfigs))
	mux.HandleFunc("PATCH /audit-log-configs/{id}", f.auth(f.patchAuditLogConfig))
	mux.HandleFunc("POST /audit-log/query", f.auth(f.queryAuditLog))
	f.Server = httptest.NewTLSServer(f.record(mux))
	return f
}

// AddDataset adds a dataset holding rows, each wrapped as a stored record.
func (f *FakePlatform) AddDataset(id string, rows []map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.datasets[id] = &api.Dataset{ID: id, Name: id, WorkspaceID: "ws1"}
	f.appendRows(id, rows)
}

// SetSplits sets the split points returned for a dataset.
func (f *FakePlatform) SetSplits(datasetID string, splits []string) {
	f.mu.Lock()
	f.splits[datasetID] = splits
	f.mu.Unlock()
}

// FailWrites makes the next n writes fail with a 500.
func (f *FakePlatform) FailWrites(n int) {
	f.mu.Lock()
	f.failWrites = n
	f.mu.Unlock()
}

// Rows returns the rows stored in a dataset.
func (f *FakePlatform) Rows(datasetID string) []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ret := make([]map[string]interface{}, 0, len(f.records[datasetID]))
	for _, rec := range f.records[datasetID] {
		ret = append(ret, rec[api.DataStoreKey].(map[string]interface{}))
	}
	return ret
}

// Datasets returns the datasets, keyed by id.
func (f *FakePlatform) Datasets() map[string]api.Dataset {
	f.mu.Lock()
	defer f.mu.Unlock()
	ret := make(map[string]api.Dataset, len(f.datasets))
	for id, ds := range f.datasets {
		ret[id] = *ds
	}
	return ret
}

// Uploads returns the content of the files uploaded to a dataset.
func (f *FakePlatform) Uploads(datasetID string) map[string][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads[datasetID]
}

// Requests returns the requests received so far whose path starts with
// prefix.
func (f *FakePlatform) Requests(prefix string) []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	ret := make([]Request, 0)
	for _, r := range f.requests {
		if strings.HasPrefix(r.Path, prefix) {
			ret = append(ret, r)
		}
	}
	return ret
}

// IssueToken returns a valid token for email.
func (f *FakePlatform) IssueToken(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issueToken(email)
}

func (f *FakePlatform) issueToken(sub string) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(f.TokenTTL).Unix(),
		"iat": time.Now().Unix(),
		"jti": strconv.Itoa(len(f.tokens)),
	})
	signed, err := tok.SignedString([]byte("fake-platform"))
	if err != nil {
		panic(err)
	}
	f.tokens[signed] = true
	return signed
}

func (f *FakePlatform) appendRows(datasetID string, rows []map[string]interface{}) {
	for _, row := range rows {
		f.nextID++
		f.records[datasetID] = append(f.records[datasetID], api.Record{
			"id":             fmt.Sprintf("%010d", f.nextID),
			api.DataStoreKey: row,
		})
	}
}

func (f *FakePlatform) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)
		r.Body.Close()
		f.mu.Lock()
		f.requests = append(f.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		f.mu.Unlock()
		r.Body = ioutil.NopCloser(strings.NewReader(string(body)))
		next.ServeHTTP(w, r)
	})
}

func (f *FakePlatform) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		ok := f.tokens[tok]
		f.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "NotAuthenticated", "invalid token")
			return
		}
		next(w, r)
	}
}

func writeError(w http.ResponseWriter, code int, name, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	className := strings.ToLower(name)
	if name == "NotFound" {
		className = "not-found"
	}
	_ = json.NewEncoder(w).Encode(api.APIError{Name: name, Message: msg, Code: code, ClassName: className})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	var rdr io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
			return false
		}
		defer zr.Close()
		rdr = zr
	}
	if err := json.NewDecoder(rdr).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return false
	}
	return true
}

func (f *FakePlatform) authenticate(w http.ResponseWriter, r *http.Request) {
	req := api.AuthenticationRequest{}
	if !decode(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var sub string
	switch req.Strategy {
	case api.StrategyLocal:
		if req.Email != Email || req.Password != Password {
			writeError(w, http.StatusUnauthorized, "NotAuthenticated", "Invalid login")
			return
		}
		sub = req.Email
	case api.StrategyProxy:
		if !f.tokens[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")] {
			writeError(w, http.StatusUnauthorized, "NotAuthenticated", "invalid token")
			return
		}
		sub = req.FirstName
	case api.StrategyKeycloak:
		if req.AccessToken != "kc-"+KeycloakUser {
			writeError(w, http.StatusUnauthorized, "NotAuthenticated", "invalid keycloak token")
			return
		}
		sub = KeycloakUser
	default:
		writeError(w, http.StatusBadRequest, "BadRequest", "unknown strategy "+req.Strategy)
		return
	}
	writeJSON(w, http.StatusCreated, api.AuthenticationDetails{
		AccessToken:    f.issueToken(sub),
		Authentication: map[string]interface{}{"strategy": req.Strategy},
		User:           &api.User{ID: "u1", Email: sub, WorkspaceID: req.WorkspaceID},
	})
}

func (f *FakePlatform) keycloakToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("grant_type") != "client_credentials" || r.PostForm.Get("username") != KeycloakUser || r.PostForm.Get("password") != KeycloakPass {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": "kc-" + KeycloakUser,
		"token_type":   "Bearer",
		"expires_in":   300,
	})
}

// after returns the records of a dataset after start, or from start on when
// inclusive.
func (f *FakePlatform) after(datasetID, start string, inclusive bool) []api.Record {
	recs := f.records[datasetID]
	i := sort.Search(len(recs), func(i int) bool {
		id := recs[i]["id"].(string)
		if inclusive {
			return id >= start
		}
		return id > start
	})
	return recs[i:]
}

func page(recs []api.Record, batchSize int) api.RecordBatch {
	if batchSize <= 0 || batchSize > len(recs) {
		batchSize = len(recs)
	}
	batch := api.RecordBatch{
		Records: recs[:batchSize],
		More:    batchSize < len(recs),
	}
	if batchSize > 0 {
		batch.LastRecordID = recs[batchSize-1]["id"].(string)
	}
	return batch
}

func (f *FakePlatform) readInSequence(w http.ResponseWriter, r *http.Request) {
	req := api.SequenceReadRequest{}
	if !decode(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.datasets[req.DatasetID]; !ok {
		writeError(w, http.StatusNotFound, "NotFound", "No record found for id '"+req.DatasetID+"'")
		return
	}
	writeJSON(w, http.StatusOK, page(f.after(req.DatasetID, req.StartingRecordID, false), req.BatchSize))
}

func (f *FakePlatform) readRange(w http.ResponseWriter, r *http.Request) {
	req := api.ReadRangeRequest{}
	if !decode(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	recs := f.after(req.DatasetID, req.StartingRecordID, !req.ExcludeStartingRecordID)
	if req.EndingRecordID != "" {
		end := sort.Search(len(recs), func(i int) bool { return recs[i]["id"].(string) > req.EndingRecordID })
		recs = recs[:end]
	}
	writeJSON(w, http.StatusOK, page(recs, req.BatchSize))
}

func (f *FakePlatform) getSplits(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, api.SplitPoints{Splits: f.splits[r.PathValue("id")]})
}

func (f *FakePlatform) write(v2 bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var recs []api.Record
		if v2 {
			req := struct {
				Records []api.Record `json:"records"`
			}{}
			if !decode(w, r, &req) {
				return
			}
			recs = req.Records
		} else if !decode(w, r, &recs) {
			return
		}
		rows := make([]map[string]interface{}, len(recs))
		for i, rec := range recs {
			rows[i] = rec
		}
		id := r.PathValue("id")
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failWrites > 0 {
			f.failWrites--
			writeError(w, http.StatusInternalServerError, "GeneralError", "write failed")
			return
		}
		if _, ok := f.datasets[id]; !ok {
			writeError(w, http.StatusNotFound, "NotFound", "No record found for id '"+id+"'")
			return
		}
		f.appendRows(id, rows)
		f.writes++
		writeJSON(w, http.StatusOK, api.WriteBatchResponse{
			Partitions: []string{fmt.Sprintf("%s-p%d", id, f.writes%f.Partitions)},
		})
	}
}

func (f *FakePlatform) ingest(w http.ResponseWriter, r *http.Request) {
	req := api.IngestCreateRequest{}
	if !decode(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	job := api.Job{
		ID:          fmt.Sprintf("job-%d", len(f.jobs)+1),
		Type:        "ingest",
		State:       "pending",
		DatasetID:   req.DatasetID,
		WorkspaceID: req.WorkspaceID,
		Config:      map[string]interface{}{"urls": req.Config.URLs},
	}
	f.jobs = append(f.jobs, job)
	writeJSON(w, http.StatusCreated, job.ID)
}

// match supports "*" and "field:value" expressions.
func match(rec api.Record, expression string) bool {
	if expression == "*" || expression == "*:*" {
		return true
	}
	parts := strings.SplitN(expression, ":", 2)
	if len(parts) != 2 {
		return false
	}
	ds, _ := rec[api.DataStoreKey].(map[string]interface{})
	return fmt.Sprint(ds[parts[0]]) == parts[1]
}

func (f *FakePlatform) search(req api.LuceneQueryRequest) (matched []api.Record, total int) {
	all := make([]api.Record, 0)
	for _, rec := range f.records[req.DatasetID] {
		if match(rec, req.Expression) {
			all = append(all, rec)
		}
	}
	start := req.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + req.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all)
}

func (f *FakePlatform) query(w http.ResponseWriter, r *http.Request) {
	req := api.LuceneQueryRequest{}
	if !decode(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	recs, total := f.search(req)
	writeJSON(w, http.StatusOK, api.RecordBatch{Records: recs, More: req.Offset+len(recs) < total})
}

func (f *FakePlatform) queryDocument(w http.ResponseWriter, r *http.Request) {
	req := api.LuceneQueryRequest{}
	if !decode(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	recs, total := f.search(req)
	writeJSON(w, http.StatusOK, api.QueryDocumentLuceneResponse{Total: total, Limit: req.Limit, Offset: req.Offset, Records: recs})
}

func (f *FakePlatform) createDataset(w http.ResponseWriter, r *http.Request) {
	req := api.CreateDataset{}
	if !decode(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("ds-%d", len(f.datasets)+1)
	ds := &api.Dataset{
		ID:                id,
		Name:              req.Name,
		WorkspaceID:       req.WorkspaceID,
		Description:       req.Description,
		AutoCreateIndexes: req.AutoCreateIndexes,
		Schema:            req.Schema,
		SearchAnyField:    req.SearchAnyField,
		RecordCount:       req.RecordCount,
	}
	f.datasets[id] = ds
	writeJSON(w, http.StatusCreated, ds)
}

func (f *FakePlatform) dataset(w http.ResponseWriter, r *http.Request) (*api.Dataset, bool) {
	ds, ok := f.datasets[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "No record found for id '"+r.PathValue("id")+"'")
	}
	return ds, ok
}

func (f *FakePlatform) getDataset(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ds, ok := f.dataset(w, r); ok {
		writeJSON(w, http.StatusOK, ds)
	}
}

func (f *FakePlatform) patchDataset(w http.ResponseWriter, r *http.Request) {
	req := api.PatchDataset{}
	if !decode(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ds, ok := f.dataset(w, r)
	if !ok {
		return
	}
	if req.Name != nil {
		ds.Name = *req.Name
	}
	if req.Description != nil {
		ds.Description = *req.Description
	}
	if req.AutoCreateIndexes != nil {
		ds.AutoCreateIndexes = *req.AutoCreateIndexes
	}
	if req.Schema != nil {
		ds.Schema = *req.Schema
	}
	if req.SearchAnyField != nil {
		ds.SearchAnyField = *req.SearchAnyField
	}
	writeJSON(w, http.StatusOK, ds)
}

func (f *FakePlatform) clearDataset(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ds, ok := f.dataset(w, r)
	if !ok {
		return
	}
	delete(f.records, ds.ID)
	job := api.Job{ID: fmt.Sprintf("job-%d", len(f.jobs)+1), Type: "clear", State: "complete", DatasetID: ds.ID, WorkspaceID: ds.WorkspaceID}
	f.jobs = append(f.jobs, job)
	writeJSON(w, http.StatusOK, job)
}

func (f *FakePlatform) createWorkspace(w http.ResponseWriter, r *http.Request) {
	req := api.CreateWorkspace{}
	if !decode(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ws := &api.Workspace{ID: strings.ToLower(req.Name), Name: req.Name}
	f.workspaces[ws.ID] = ws
	writeJSON(w, http.StatusCreated, ws)
}

func (f *FakePlatform) getWorkspace(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ws, ok := f.workspaces[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "No record found for id '"+r.PathValue("id")+"'")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (f *FakePlatform) deleteWorkspace(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ws, ok := f.workspaces[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "No record found for id '"+r.PathValue("id")+"'")
		return
	}
	delete(f.workspaces, ws.ID)
	writeJSON(w, http.StatusOK, ws)
}

func (f *FakePlatform) getIndexes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("$limit"))
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.indexes[q.Get("datasetId")]
	if limit > 0 && limit < len(idx) {
		idx = idx[:limit]
	}
	writeJSON(w, http.StatusOK, api.IndexPaginator{Total: len(f.indexes[q.Get("datasetId")]), Limit: limit, Data: idx})
}

func (f *FakePlatform) patchIndexes(w http.ResponseWriter, r *http.Request) {
	req := api.ModifyIndexesRequest{}
	if !decode(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := make([]api.Index, 0)
	for _, idx := range f.indexes[id] {
		removed := false
		for _, rm := range req.Remove {
			if strings.Join(rm.Fields, ",") == strings.Join(idx.Fields, ",") {
				removed = true
			}
		}
		if !removed {
			kept = append(kept, idx)
		}
	}
	for _, c := range req.Create {
		kept = append(kept, api.Index{ID: fmt.Sprintf("idx-%s", strings.Join(c.Fields, "-")), DatasetID: id, Fields: c.Fields})
	}
	f.indexes[id] = kept
	job := api.Job{ID: fmt.Sprintf("job-%d", len(f.jobs)+1), Type: "index", State: "pending", DatasetID: id}
	f.jobs = append(f.jobs, job)
	writeJSON(w, http.StatusOK, job.ID)
}

func (f *FakePlatform) getJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f.mu.Lock()
	defer f.mu.Unlock()
	jobs := make([]api.Job, 0)
	for _, j := range f.jobs {
		if ds := q.Get("datasetId"); ds != "" && j.DatasetID != ds {
			continue
		}
		if ws := q.Get("workspaceId"); ws != "" && j.WorkspaceID != ws {
			continue
		}
		jobs = append(jobs, j)
	}
	if q.Get("$sort[id]") == "-1" {
		sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID > jobs[j].ID })
	}
	total := len(jobs)
	skip, _ := strconv.Atoi(q.Get("$skip"))
	if skip > len(jobs) {
		skip = len(jobs)
	}
	jobs = jobs[skip:]
	limit, _ := strconv.Atoi(q.Get("$limit"))
	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	writeJSON(w, http.StatusOK, api.JobPaginator{Total: total, Limit: limit, Skip: skip, Data: jobs})
}

func (f *FakePlatform) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	id := r.PathValue("id")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploads[id] == nil {
		f.uploads[id] = make(map[string][]byte)
	}
	files := make([]api.UploadedFile, 0)
	for _, hdrs := range r.MultipartForm.File {
		for _, hdr := range hdrs {
			fl, err := hdr.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
				return
			}
			content, _ := ioutil.ReadAll(fl)
			fl.Close()
			f.uploads[id][hdr.Filename] = content
			files = append(files, api.UploadedFile{ID: "file-" + hdr.Filename, Filename: hdr.Filename, DatasetID: id, Size: int64(len(content))})
		}
	}
	writeJSON(w, http.StatusCreated, files)
}

func (f *FakePlatform) deleteUser(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "No record found for id '"+r.PathValue("id")+"'")
		return
	}
	delete(f.users, u.ID)
	writeJSON(w, http.StatusOK, u)
}

func (f *FakePlatform) getAuditLogConfigs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f.mu.Lock()
	defer f.mu.Unlock()
	cfgs := make([]api.AuditLogConfiguration, 0)
	for _, c := range f.auditCfgs {
		if kf := q.Get("keepForever"); kf != "" && strconv.FormatBool(c.KeepForever) != kf {
			continue
		}
		if ws := q.Get("workspaceId"); ws != "" && c.WorkspaceID != ws {
			continue
		}
		cfgs = append(cfgs, *c)
	}
	sort.Slice(cfgs, func(i, j int) bool { return cfgs[i].ID < cfgs[j].ID })
	limit, _ := strconv.Atoi(q.Get("$limit"))
	writeJSON(w, http.StatusOK, api.AuditLogConfigurationPaginator{Total: len(cfgs), Limit: limit, Data: cfgs})
}

func (f *FakePlatform) patchAuditLogConfig(w http.ResponseWriter, r *http.Request) {
	req := api.PatchAuditLogConfiguration{}
	if !decode(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.auditCfgs[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "No record found for id '"+r.PathValue("id")+"'")
		return
	}
	c.KeepForever = req.KeepForever
	c.AgeInDays = req.AgeInDays
	writeJSON(w, http.StatusOK, c)
}

func (f *FakePlatform) queryAuditLog(w http.ResponseWriter, r *http.Request) {
	req := api.LuceneQueryRequest{}
	if !decode(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	recs, total := f.search(req)
	logs := make([]api.AuditLog, 0, len(recs))
	for _, rec := range recs {
		ds, _ := rec[api.DataStoreKey].(map[string]interface{})
		action, _ := ds["action"].(string)
		logs = append(logs, api.AuditLog{ID: rec["id"].(string), Action: action, Entity: ds})
	}
	writeJSON(w, http.StatusOK, api.AuditLogPaginator{Total: total, Limit: req.Limit, Skip: req.Offset, Data: logs})
}
