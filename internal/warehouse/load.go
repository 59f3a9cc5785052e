package warehouse

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
)

// SourceFormat is the format of a file loaded into BigQuery
type SourceFormat string

const (
	FormatParquet SourceFormat = "PARQUET"
	FormatCSV     SourceFormat = "CSV"
	FormatJSON    SourceFormat = "NEWLINE_DELIMITED_JSON"
	FormatAvro    SourceFormat = "AVRO"
	FormatORC     SourceFormat = "ORC"
)

var dataFormats = map[SourceFormat]bigquery.DataFormat{
	FormatParquet: bigquery.Parquet,
	FormatCSV:     bigquery.CSV,
	FormatJSON:    bigquery.JSON,
	FormatAvro:    bigquery.Avro,
	FormatORC:     bigquery.ORC,
}

// ParseSourceFormat validates a format name. "json" and "ndjson" are
// accepted for newline delimited JSON.
func ParseSourceFormat(name string) (SourceFormat, error) {
	f := SourceFormat(strings.ToUpper(strings.TrimSpace(name)))
	switch f {
	case "JSON", "NDJSON", "JSONL":
		f = FormatJSON
	case "":
		f = FormatParquet
	}
	if _, ok := dataFormats[f]; !ok {
		return "", fmt.Errorf("unsupported source format: %s", name)
	}
	return f, nil
}

// LoadJobConfig configures a load job
type LoadJobConfig struct {
	SourceFormat    SourceFormat
	AutoDetect      bool
	SkipLeadingRows int64
	// Schema is optional; BigQuery uses the destination table schema or autodetect when empty
	Schema bigquery.Schema
}

// BuildLoadJobConfig returns a load job configuration. skipRows only applies
// to CSV sources and is ignored for every other format.
func BuildLoadJobConfig(format SourceFormat, autodetect bool, skipRows int64) LoadJobConfig {
	cfg := LoadJobConfig{
		SourceFormat: format,
		AutoDetect:   autodetect,
	}
	if format == FormatCSV {
		cfg.SkipLeadingRows = skipRows
	}
	return cfg
}

// DefaultLoadJobConfig loads Parquet files with schema autodetection
func DefaultLoadJobConfig() LoadJobConfig {
	return BuildLoadJobConfig(FormatParquet, true, 1)
}

// JobHandle identifies a submitted BigQuery job
type JobHandle struct {
	ID        string
	ProjectID string
	Location  string
}

// AppendFile submits a job appending the local file at filePath to
// destinationTable (dataset.table or project.dataset.table). It returns as
// soon as the job is accepted; use JobStatus or WaitJob to follow it.
func (c *Client) AppendFile(ctx context.Context, filePath, destinationTable string, cfg LoadJobConfig) (*JobHandle, error) {
	project, dataset, table, err := c.ParseTableID(destinationTable)
	if err != nil {
		return nil, err
	}

	format, ok := dataFormats[cfg.SourceFormat]
	if !ok {
		return nil, fmt.Errorf("unsupported source format: %s", cfg.SourceFormat)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	source := bigquery.NewReaderSource(f)
	source.SourceFormat = format
	source.AutoDetect = cfg.AutoDetect
	source.Schema = cfg.Schema
	if cfg.SourceFormat == FormatCSV {
		source.SkipLeadingRows = cfg.SkipLeadingRows
	}

	loader := c.bq.DatasetInProject(project, dataset).Table(table).LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.JobID = NewLoadJobID()

	job, err := loader.Run(ctx)
	if err != nil {
		return nil, remoteError("load", err)
	}

	handle := &JobHandle{ID: job.ID(), ProjectID: job.ProjectID(), Location: job.Location()}
	if c.echo {
		log.Printf("Submitted load job %s for %s into %s.%s.%s", handle.ID, filePath, project, dataset, table)
	}
	return handle, nil
}

// NewLoadJobID returns a unique job ID for a load job
func NewLoadJobID() string {
	return "gbqetl-load-" + uuid.NewString()
}

// ParseTableID splits dataset.table, project.dataset.table or
// project:dataset.table. The client project fills in a missing project.
func (c *Client) ParseTableID(id string) (project, dataset, table string, err error) {
	id = strings.Replace(id, ":", ".", 1)
	parts := strings.Split(id, ".")
	for _, p := range parts {
		if p == "" {
			return "", "", "", fmt.Errorf("invalid table name format, expected 'dataset.table', got %s", id)
		}
	}

	switch len(parts) {
	case 2:
		return c.project, parts[0], parts[1], nil
	case 3:
		return parts[0], parts[1], parts[2], nil
	default:
		return "", "", "", fmt.Errorf("invalid table name format, expected 'dataset.table', got %s", id)
	}
}

// JobStatus is a snapshot of a job's progress
type JobStatus struct {
	ID         string
	State      string
	Err        error
	OutputRows int64
}

// Done reports whether the job has finished, successfully or not
func (s JobStatus) Done() bool {
	return s.State == "DONE"
}

// JobStatus fetches the current status of a job
func (c *Client) JobStatus(ctx context.Context, jobID, location string) (JobStatus, error) {
	job, err := c.bq.JobFromIDLocation(ctx, jobID, location)
	if err != nil {
		return JobStatus{}, remoteError("get job", err)
	}
	status, err := job.Status(ctx)
	if err != nil {
		return JobStatus{}, remoteError("get job status", err)
	}
	return newJobStatus(jobID, status), nil
}

// WaitJob blocks until the job is done or ctx is canceled
func (c *Client) WaitJob(ctx context.Context, jobID, location string) (JobStatus, error) {
	job, err := c.bq.JobFromIDLocation(ctx, jobID, location)
	if err != nil {
		return JobStatus{}, remoteError("get job", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return JobStatus{}, remoteError("wait for job", err)
	}
	return newJobStatus(jobID, status), nil
}

func newJobStatus(jobID string, status *bigquery.JobStatus) JobStatus {
	s := JobStatus{ID: jobID, State: stateName(status.State), Err: status.Err()}
	if status.Statistics != nil {
		if load, ok := status.Statistics.Details.(*bigquery.LoadStatistics); ok {
			s.OutputRows = load.OutputRows
		}
	}
	return s
}

func stateName(state bigquery.State) string {
	switch state {
	case bigquery.Pending:
		return "PENDING"
	case bigquery.Running:
		return "RUNNING"
	case bigquery.Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}
