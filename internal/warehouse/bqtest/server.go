// Package bqtest serves the subset of the BigQuery v2 REST API used by gbqetl
// so clients can be tested against httptest.
package bqtest

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	bqv2 "google.golang.org/api/bigquery/v2"
)

// Project is the only project the server knows
const Project = "test-project"

// Server is an in-memory BigQuery. Every load job completes immediately with
// three output rows and every query returns the current query result.
type Server struct {
	mu       sync.Mutex
	datasets map[string]map[string]json.RawMessage // dataset -> table -> table resource
	uploads  map[string][]byte                     // job ID -> uploaded bytes
	jobs     map[string]json.RawMessage
	queries  []string
	result   QueryResult
}

// QueryResult is what the server answers to any query
type QueryResult struct {
	Schema *bqv2.TableSchema
	Rows   []*bqv2.TableRow
}

// TweetsResult is the default query result: three rows of id, author and likes
func TweetsResult() QueryResult {
	return QueryResult{
		Schema: &bqv2.TableSchema{Fields: []*bqv2.TableFieldSchema{
			{Name: "id", Type: "INTEGER", Mode: "REQUIRED"},
			{Name: "author", Type: "STRING", Mode: "NULLABLE"},
			{Name: "likes", Type: "INTEGER", Mode: "NULLABLE"},
		}},
		Rows: []*bqv2.TableRow{
			Row("1", "alice", "10"),
			Row("2", "bob", nil),
			Row("3", "carol", "7"),
		},
	}
}

// Row builds a result row from wire values
func Row(values ...interface{}) *bqv2.TableRow {
	row := &bqv2.TableRow{F: make([]*bqv2.TableCell, len(values))}
	for i, v := range values {
		row.F[i] = &bqv2.TableCell{V: v}
	}
	return row
}

// New returns an empty Server
func New() *Server {
	return &Server{
		datasets: make(map[string]map[string]json.RawMessage),
		uploads:  make(map[string][]byte),
		jobs:     make(map[string]json.RawMessage),
		result:   TweetsResult(),
	}
}

// SetQueryResult replaces the result returned for subsequent queries
func (f *Server) SetQueryResult(result QueryResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result = result
}

// Queries returns the SQL of every query received so far
func (f *Server) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, code int, reason, message string) {
	writeJSON(w, code, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
			"errors": []map[string]string{
				{"reason": reason, "message": message},
			},
		},
	})
}

func (f *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := "/projects/" + Project + "/"
	i := strings.Index(r.URL.Path, prefix)
	if i < 0 {
		writeAPIError(w, http.StatusNotFound, "notFound", "unknown path "+r.URL.Path)
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path[i+len(prefix):], "/"), "/")

	switch {
	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "datasets":
		f.listDatasets(w)
	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "datasets":
		f.insertDataset(w, r)
	case r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "tables":
		f.listTables(w, parts[1])
	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "tables":
		f.insertTable(w, r, parts[1])
	case r.Method == http.MethodGet && len(parts) == 4 && parts[2] == "tables":
		f.getTable(w, parts[1], parts[3])
	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "jobs":
		f.insertJob(w, r)
	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "jobs":
		f.getJob(w, parts[1])
	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "queries":
		f.runQuery(w, r)
	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "queries":
		f.getQueryResults(w, parts[1])
	default:
		writeAPIError(w, http.StatusNotFound, "notFound", fmt.Sprintf("unhandled %s %s", r.Method, r.URL.Path))
	}
}

func (f *Server) listDatasets(w http.ResponseWriter) {
	var items []map[string]interface{}
	for name := range f.datasets {
		items = append(items, map[string]interface{}{
			"datasetReference": map[string]string{"projectId": Project, "datasetId": name},
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"kind": "bigquery#datasetList", "datasets": items})
}

func (f *Server) insertDataset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DatasetReference struct {
			DatasetID string `json:"datasetId"`
		} `json:"datasetReference"`
		Location string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	name := body.DatasetReference.DatasetID
	if _, exists := f.datasets[name]; exists {
		writeAPIError(w, http.StatusConflict, "duplicate", "Already Exists: Dataset "+Project+":"+name)
		return
	}
	f.datasets[name] = make(map[string]json.RawMessage)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasetReference": map[string]string{"projectId": Project, "datasetId": name},
		"location":         body.Location,
	})
}

func (f *Server) listTables(w http.ResponseWriter, dataset string) {
	tables, ok := f.datasets[dataset]
	if !ok {
		writeAPIError(w, http.StatusNotFound, "notFound", "Not found: Dataset "+dataset)
		return
	}
	var items []map[string]interface{}
	for name := range tables {
		items = append(items, map[string]interface{}{
			"tableReference": map[string]string{"projectId": Project, "datasetId": dataset, "tableId": name},
			"type":           "TABLE",
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"kind": "bigquery#tableList", "tables": items, "totalItems": len(items)})
}

func (f *Server) insertTable(w http.ResponseWriter, r *http.Request, dataset string) {
	tables, ok := f.datasets[dataset]
	if !ok {
		writeAPIError(w, http.StatusNotFound, "notFound", "Not found: Dataset "+dataset)
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	var body struct {
		TableReference struct {
			TableID string `json:"tableId"`
		} `json:"tableReference"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	name := body.TableReference.TableID
	if _, exists := tables[name]; exists {
		writeAPIError(w, http.StatusConflict, "duplicate", "Already Exists: Table "+dataset+"."+name)
		return
	}
	tables[name] = raw
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

func (f *Server) getTable(w http.ResponseWriter, dataset, table string) {
	raw, ok := f.datasets[dataset][table]
	if !ok {
		writeAPIError(w, http.StatusNotFound, "notFound", "Not found: Table "+dataset+"."+table)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

func (f *Server) insertJob(w http.ResponseWriter, r *http.Request) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid", "missing content type")
		return
	}
	if mediaType == "application/json" {
		f.insertQueryJob(w, r)
		return
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		writeAPIError(w, http.StatusBadRequest, "invalid", "expected multipart upload")
		return
	}

	mr := multipart.NewReader(r.Body, params["boundary"])
	metaPart, err := mr.NextPart()
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	var job map[string]interface{}
	if err := json.NewDecoder(metaPart).Decode(&job); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	dataPart, err := mr.NextPart()
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	data, err := io.ReadAll(dataPart)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}

	jobID, ok := completeJob(job)
	if !ok {
		writeAPIError(w, http.StatusBadRequest, "invalid", "job has no jobReference.jobId")
		return
	}
	job["statistics"] = map[string]interface{}{
		"load": map[string]interface{}{"outputRows": "3"},
	}

	encoded, _ := json.Marshal(job)
	f.jobs[jobID] = encoded
	f.uploads[jobID] = data

	w.Header().Set("Content-Type", "application/json")
	w.Write(encoded)
}

// completeJob fills in the server side of the job reference and marks the
// job done. It reports false when the job carries no usable reference.
func completeJob(job map[string]interface{}) (string, bool) {
	ref, _ := job["jobReference"].(map[string]interface{})
	jobID, _ := ref["jobId"].(string)
	if jobID == "" {
		return "", false
	}
	ref["projectId"] = Project
	if ref["location"] == nil {
		ref["location"] = "EU"
	}
	job["status"] = map[string]interface{}{"state": "DONE"}
	return jobID, true
}

func (f *Server) insertQueryJob(w http.ResponseWriter, r *http.Request) {
	var job map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	config, _ := job["configuration"].(map[string]interface{})
	query, _ := config["query"].(map[string]interface{})
	sql, _ := query["query"].(string)
	if sql == "" {
		writeAPIError(w, http.StatusBadRequest, "invalid", "only query jobs may be inserted without an upload")
		return
	}
	jobID, ok := completeJob(job)
	if !ok {
		writeAPIError(w, http.StatusBadRequest, "invalid", "job has no jobReference.jobId")
		return
	}
	f.queries = append(f.queries, sql)

	encoded, _ := json.Marshal(job)
	f.jobs[jobID] = encoded
	w.Header().Set("Content-Type", "application/json")
	w.Write(encoded)
}

// runQuery serves jobs.query, answering synchronously with the whole result
func (f *Server) runQuery(w http.ResponseWriter, r *http.Request) {
	var req bqv2.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	if req.Query == "" {
		writeAPIError(w, http.StatusBadRequest, "invalid", "query is required")
		return
	}
	f.queries = append(f.queries, req.Query)

	jobID := fmt.Sprintf("query-%d", len(f.queries))
	ref := &bqv2.JobReference{ProjectId: Project, JobId: jobID, Location: "EU"}
	encoded, _ := json.Marshal(map[string]interface{}{
		"jobReference":  ref,
		"configuration": map[string]interface{}{"query": map[string]interface{}{"query": req.Query}},
		"status":        map[string]interface{}{"state": "DONE"},
	})
	f.jobs[jobID] = encoded

	writeJSON(w, http.StatusOK, &bqv2.QueryResponse{
		JobReference: ref,
		JobComplete:  true,
		Schema:       f.result.Schema,
		Rows:         f.result.Rows,
		TotalRows:    uint64(len(f.result.Rows)),
	})
}

func (f *Server) getQueryResults(w http.ResponseWriter, jobID string) {
	if _, ok := f.jobs[jobID]; !ok {
		writeAPIError(w, http.StatusNotFound, "notFound", "Not found: Job "+jobID)
		return
	}
	writeJSON(w, http.StatusOK, &bqv2.GetQueryResultsResponse{
		JobReference: &bqv2.JobReference{ProjectId: Project, JobId: jobID, Location: "EU"},
		JobComplete:  true,
		Schema:       f.result.Schema,
		Rows:         f.result.Rows,
		TotalRows:    uint64(len(f.result.Rows)),
	})
}

func (f *Server) getJob(w http.ResponseWriter, jobID string) {
	raw, ok := f.jobs[jobID]
	if !ok {
		writeAPIError(w, http.StatusNotFound, "notFound", "Not found: Job "+jobID)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

// Upload returns the bytes uploaded with jobID
func (f *Server) Upload(jobID string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads[jobID]
}

// JobConfig returns the load configuration submitted for jobID
func (f *Server) JobConfig(jobID string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, ok := f.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("unknown job %s", jobID)
	}
	var job struct {
		Configuration struct {
			Load map[string]interface{} `json:"load"`
		} `json:"configuration"`
	}
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", jobID, err)
	}
	return job.Configuration.Load, nil
}
