package bqtest

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
)

func postJob(t *testing.T, srv *httptest.Server, meta string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	metaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json"}})
	if err != nil {
		t.Fatalf("Failed to create metadata part: %v", err)
	}
	metaPart.Write([]byte(meta))
	dataPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/csv"}})
	if err != nil {
		t.Fatalf("Failed to create data part: %v", err)
	}
	dataPart.Write([]byte("id\n1\n"))
	mw.Close()

	url := srv.URL + "/bigquery/v2/projects/" + Project + "/jobs?uploadType=multipart"
	resp, err := http.Post(url, "multipart/related; boundary="+mw.Boundary(), &body)
	if err != nil {
		t.Fatalf("POST jobs failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestInsertJobReference(t *testing.T) {
	tests := []struct {
		name string
		meta string
		want int
	}{
		{
			name: "with reference",
			meta: `{"jobReference":{"jobId":"load-1"},"configuration":{"load":{}}}`,
			want: http.StatusOK,
		},
		{
			name: "missing reference",
			meta: `{"configuration":{"load":{}}}`,
			want: http.StatusBadRequest,
		},
		{
			name: "reference without job id",
			meta: `{"jobReference":{"location":"EU"},"configuration":{"load":{}}}`,
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(New())
			defer srv.Close()

			resp := postJob(t, srv, tt.meta)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestRunQuery(t *testing.T) {
	fake := New()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	url := srv.URL + "/bigquery/v2/projects/" + Project + "/queries"
	resp, err := http.Post(url, "application/json", strings.NewReader(`{"query":"SELECT 1"}`))
	if err != nil {
		t.Fatalf("POST queries failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got struct {
		JobComplete  bool `json:"jobComplete"`
		TotalRows    string
		JobReference struct {
			JobID string `json:"jobId"`
		} `json:"jobReference"`
		Rows []json.RawMessage `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !got.JobComplete || got.TotalRows != "3" || len(got.Rows) != 3 {
		t.Errorf("unexpected response %+v", got)
	}

	results, err := http.Get(url + "/" + got.JobReference.JobID)
	if err != nil {
		t.Fatalf("GET queries failed: %v", err)
	}
	results.Body.Close()
	if results.StatusCode != http.StatusOK {
		t.Errorf("getQueryResults status = %d", results.StatusCode)
	}

	if q := fake.Queries(); len(q) != 1 || q[0] != "SELECT 1" {
		t.Errorf("Queries() = %v", q)
	}
}
