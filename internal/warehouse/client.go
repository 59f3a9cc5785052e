// Package warehouse wraps the BigQuery client: dataset and table
// management, load jobs from local files and queries into memory.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/gerhard-ee/gbqetl/internal/schema"
)

// DefaultLocation is used when a dataset is created without a location
const DefaultLocation = "europe-west1"

const (
	createDatasetTimeout = 30 * time.Second
	listConcurrency      = 4
)

// ClientConfig holds everything needed to build a BigQuery client. Credentials
// are passed explicitly; the process environment is never modified.
type ClientConfig struct {
	ProjectID       string
	CredentialsFile string
	Location        string
	// Endpoint overrides the BigQuery REST endpoint (emulators, tests)
	Endpoint              string
	WithoutAuthentication bool
	Echo                  bool
}

// Client is a BigQuery client bound to one project
type Client struct {
	bq      *bigquery.Client
	project string
	echo    bool
}

// NewClient creates a BigQuery client from cfg
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	if cfg.WithoutAuthentication {
		opts = append(opts, option.WithoutAuthentication())
	}

	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = bigquery.DetectProjectID
	}

	bq, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	if cfg.Location != "" {
		bq.Location = cfg.Location
	}

	return &Client{
		bq:      bq,
		project: bq.Project(),
		echo:    cfg.Echo,
	}, nil
}

// Project returns the project the client is bound to
func (c *Client) Project() string {
	return c.project
}

// BigQuery returns the underlying BigQuery client
func (c *Client) BigQuery() *bigquery.Client {
	return c.bq
}

// Close closes the BigQuery client
func (c *Client) Close() error {
	return c.bq.Close()
}

// ListDatasets returns the IDs of all datasets in the project
func (c *Client) ListDatasets(ctx context.Context) ([]string, error) {
	var names []string
	it := c.bq.Datasets(ctx)
	for {
		ds, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, remoteError("list datasets", err)
		}
		names = append(names, ds.DatasetID)
	}

	if c.echo {
		if len(names) == 0 {
			log.Printf("%s project does not contain any datasets", c.project)
		}
		for _, name := range names {
			log.Printf("dataset %s.%s", c.project, name)
		}
	}
	return names, nil
}

// ListTables returns the IDs of all tables in dataset
func (c *Client) ListTables(ctx context.Context, dataset string) ([]string, error) {
	var names []string
	it := c.bq.Dataset(dataset).Tables(ctx)
	for {
		t, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, remoteError("list tables", err)
		}
		names = append(names, t.TableID)
		if c.echo {
			log.Printf("table %s.%s.%s", t.ProjectID, t.DatasetID, t.TableID)
		}
	}
	return names, nil
}

// ListAllTables lists the tables of every dataset in the project, keyed by dataset
func (c *Client) ListAllTables(ctx context.Context) (map[string][]string, error) {
	datasets, err := c.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	result := make(map[string][]string, len(datasets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for _, dataset := range datasets {
		dataset := dataset
		g.Go(func() error {
			tables, err := c.ListTables(gctx, dataset)
			if err != nil {
				return err
			}
			sort.Strings(tables)

			mu.Lock()
			result[dataset] = tables
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateDataset creates a dataset. It fails with a conflicting RemoteAPIError
// if the dataset already exists.
func (c *Client) CreateDataset(ctx context.Context, name, location string) error {
	if location == "" {
		location = DefaultLocation
	}

	ctx, cancel := context.WithTimeout(ctx, createDatasetTimeout)
	defer cancel()

	if err := c.bq.Dataset(name).Create(ctx, &bigquery.DatasetMetadata{Location: location}); err != nil {
		return remoteError("create dataset", err)
	}
	if c.echo {
		log.Printf("Created dataset %s.%s", c.project, name)
	}
	return nil
}

// TableHandle identifies a table in BigQuery
type TableHandle struct {
	ProjectID string
	DatasetID string
	TableID   string
}

// FullyQualifiedName returns project.dataset.table
func (t *TableHandle) FullyQualifiedName() string {
	return fmt.Sprintf("%s.%s.%s", t.ProjectID, t.DatasetID, t.TableID)
}

// CreateTable creates dataset.table with the given schema
func (c *Client) CreateTable(ctx context.Context, sch schema.Schema, dataset, table string) (*TableHandle, error) {
	fields, err := sch.BigQuery()
	if err != nil {
		return nil, err
	}

	ref := c.bq.Dataset(dataset).Table(table)
	if err := ref.Create(ctx, &bigquery.TableMetadata{Schema: fields}); err != nil {
		return nil, remoteError("create table", err)
	}

	handle := &TableHandle{ProjectID: ref.ProjectID, DatasetID: ref.DatasetID, TableID: ref.TableID}
	if c.echo {
		log.Printf("Created table %s", handle.FullyQualifiedName())
	}
	return handle, nil
}

// DescribeTable returns the top-level schema of an existing table
func (c *Client) DescribeTable(ctx context.Context, dataset, table string) (schema.Schema, error) {
	md, err := c.bq.Dataset(dataset).Table(table).Metadata(ctx)
	if err != nil {
		return nil, remoteError("get table metadata", err)
	}
	return schema.FromBigQuery(md.Schema), nil
}
