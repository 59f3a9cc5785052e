package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gerhard-ee/gbqetl/internal/columnar"
	"github.com/gerhard-ee/gbqetl/internal/config"
	"github.com/gerhard-ee/gbqetl/internal/database"
	"github.com/gerhard-ee/gbqetl/internal/schema"
	"github.com/gerhard-ee/gbqetl/internal/state"
	"github.com/gerhard-ee/gbqetl/internal/warehouse"
)

// bindFlags registers every flag against the fields of cfg
func bindFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.Command, "command", cfg.Command, "Command to run ("+strings.Join(config.Commands(), ", ")+")")

	// BigQuery flags
	fs.StringVar(&cfg.ProjectID, "project", cfg.ProjectID, "Google Cloud project ID (detected from credentials when empty)")
	fs.StringVar(&cfg.CredentialsFile, "credentials", cfg.CredentialsFile, "Path to a service account JSON key (application default credentials when empty)")
	fs.StringVar(&cfg.Location, "location", cfg.Location, "BigQuery location for new datasets and jobs (datasets default to "+warehouse.DefaultLocation+")")
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "BigQuery API endpoint override")

	// Source database flags
	fs.StringVar(&cfg.DSN, "dsn", cfg.DSN, "Source connection string ("+strings.Join(database.Drivers(), ", ")+", or "+config.WarehouseDSN+")")
	fs.StringVar(&cfg.Query, "query", cfg.Query, "SQL query to export")
	fs.BoolVar(&cfg.Echo, "echo", cfg.Echo, "Log every statement and remote call")

	// Export flags
	fs.StringVar(&cfg.Output, "output", cfg.Output, "Output file path")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "File format (parquet or csv for export; parquet, csv, json, avro or orc for load)")
	fs.StringVar(&cfg.Compression, "compression", cfg.Compression, "Parquet compression (GZIP, SNAPPY, ZSTD, NONE)")

	// Dataset and table flags
	fs.StringVar(&cfg.Dataset, "dataset", cfg.Dataset, "Dataset name")
	fs.StringVar(&cfg.Table, "table", cfg.Table, "Table name")
	fs.StringVar(&cfg.SchemaFile, "schema-file", cfg.SchemaFile, "YAML column specification for create-table")

	// Load flags
	fs.StringVar(&cfg.Input, "input", cfg.Input, "Local file to load")
	fs.StringVar(&cfg.Destination, "destination", cfg.Destination, "Destination table (dataset.table or project.dataset.table)")
	fs.BoolVar(&cfg.AutoDetect, "autodetect", cfg.AutoDetect, "Let BigQuery detect the schema")
	fs.Int64Var(&cfg.SkipRows, "skip-rows", cfg.SkipRows, "Leading CSV rows to skip")

	// Job tracking flags
	fs.StringVar(&cfg.JobID, "job-id", cfg.JobID, "Load job ID for job-status")
	fs.BoolVar(&cfg.Wait, "wait", cfg.Wait, "Block until the job is done")
	fs.StringVar(&cfg.StateType, "state-type", cfg.StateType, "Job ledger type (memory, file or kubernetes)")
	fs.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "Directory for the file job ledger")
	fs.StringVar(&cfg.Namespace, "namespace", cfg.Namespace, "Kubernetes namespace for the job ledger")
}

// parseFlags builds the run configuration. Values from -config are read
// first and any flag given on the command line overrides them.
func parseFlags(args []string, stderr io.Writer) (config.Config, error) {
	cfg := config.Default()
	fs := flag.NewFlagSet("gbqetl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "YAML file with flag values")
	bindFlags(fs, &cfg)

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if *configFile == "" {
		return cfg, nil
	}

	fileCfg, err := config.LoadFile(*configFile)
	if err != nil {
		return cfg, err
	}
	overrides := flag.NewFlagSet("overrides", flag.ContinueOnError)
	bindFlags(overrides, &fileCfg)

	var setErr error
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" || setErr != nil {
			return
		}
		setErr = overrides.Set(f.Name, f.Value.String())
	})
	return fileCfg, setErr
}

// app carries the clients shared by the commands of one run
type app struct {
	cfg    config.Config
	out    io.Writer
	bq     *warehouse.Client
	states state.Manager
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a := &app{cfg: cfg, out: stdout}
	if cfg.NeedsWarehouse() {
		a.bq, err = warehouse.NewClient(ctx, warehouse.ClientConfig{
			ProjectID:             cfg.ProjectID,
			CredentialsFile:       cfg.CredentialsFile,
			Location:              cfg.Location,
			Endpoint:              cfg.Endpoint,
			WithoutAuthentication: cfg.Endpoint != "" && cfg.CredentialsFile == "",
			Echo:                  cfg.Echo,
		})
		if err != nil {
			return err
		}
		defer a.bq.Close()
	}
	if cfg.Command == config.CommandLoad || cfg.Command == config.CommandJobStatus {
		a.states, err = state.NewManager(cfg.StateType, cfg.StateDir, cfg.Namespace)
		if err != nil {
			return fmt.Errorf("failed to create job ledger: %w", err)
		}
	}

	switch cfg.Command {
	case config.CommandListDatasets:
		return a.listDatasets(ctx)
	case config.CommandListTables:
		return a.listTables(ctx)
	case config.CommandCreateDataset:
		return a.createDataset(ctx)
	case config.CommandCreateTable:
		return a.createTable(ctx)
	case config.CommandDescribeTable:
		return a.describeTable(ctx)
	case config.CommandExport:
		return a.export(ctx)
	case config.CommandLoad:
		return a.load(ctx)
	case config.CommandJobStatus:
		return a.jobStatus(ctx)
	}
	return fmt.Errorf("unsupported command: %s", cfg.Command)
}

func (a *app) listDatasets(ctx context.Context) error {
	datasets, err := a.bq.ListDatasets(ctx)
	if err != nil {
		return err
	}
	for _, name := range datasets {
		fmt.Fprintln(a.out, name)
	}
	return nil
}

func (a *app) listTables(ctx context.Context) error {
	if a.cfg.Dataset != "" {
		tables, err := a.bq.ListTables(ctx, a.cfg.Dataset)
		if err != nil {
			return err
		}
		for _, name := range tables {
			fmt.Fprintf(a.out, "%s.%s\n", a.cfg.Dataset, name)
		}
		return nil
	}

	all, err := a.bq.ListAllTables(ctx)
	if err != nil {
		return err
	}
	datasets := make([]string, 0, len(all))
	for dataset := range all {
		datasets = append(datasets, dataset)
	}
	sort.Strings(datasets)
	for _, dataset := range datasets {
		for _, name := range all[dataset] {
			fmt.Fprintf(a.out, "%s.%s\n", dataset, name)
		}
	}
	return nil
}

func (a *app) createDataset(ctx context.Context) error {
	if err := a.bq.CreateDataset(ctx, a.cfg.Dataset, a.cfg.Location); err != nil {
		return err
	}
	log.Printf("Created dataset %s", a.cfg.Dataset)
	return nil
}

func (a *app) createTable(ctx context.Context) error {
	spec, err := schema.LoadSpecFile(a.cfg.SchemaFile)
	if err != nil {
		return err
	}
	sch, err := schema.Normalize(spec)
	if err != nil {
		return err
	}

	handle, err := a.bq.CreateTable(ctx, sch, a.cfg.Dataset, a.cfg.Table)
	if err != nil {
		return err
	}
	log.Printf("Created table %s with %d columns", handle.FullyQualifiedName(), len(sch))
	return nil
}

func (a *app) describeTable(ctx context.Context) error {
	sch, err := a.bq.DescribeTable(ctx, a.cfg.Dataset, a.cfg.Table)
	if err != nil {
		return err
	}
	for _, col := range sch {
		fmt.Fprintf(a.out, "%s\t%s\t%s\n", col.Name, col.Type, col.Mode)
	}
	return nil
}

func (a *app) export(ctx context.Context) error {
	var table *database.Table
	if a.cfg.DSN == config.WarehouseDSN {
		var err error
		table, err = a.bq.QueryToTable(ctx, a.cfg.Query)
		if err != nil {
			return err
		}
	} else {
		engine, err := database.NewEngine(ctx, a.cfg.DSN, database.Options{Echo: a.cfg.Echo})
		if err != nil {
			return err
		}
		defer engine.Close()

		table, err = engine.QueryToTable(ctx, a.cfg.Query)
		if err != nil {
			return err
		}
	}

	format := exportFormat(a.cfg.Format, a.cfg.Output)
	switch format {
	case "csv":
		if err := columnar.WriteCSV(table, a.cfg.Output); err != nil {
			return err
		}
	default:
		compression, err := columnar.ParseCompression(a.cfg.Compression)
		if err != nil {
			return err
		}
		if err := columnar.WriteParquet(table, a.cfg.Output, compression); err != nil {
			return err
		}
	}

	log.Printf("Exported %d rows to %s (%s)", table.NumRows(), a.cfg.Output, format)
	return nil
}

// exportFormat falls back to the output file extension when no format is given
func exportFormat(format, output string) string {
	if format != "" {
		return format
	}
	if strings.EqualFold(filepath.Ext(output), ".csv") {
		return "csv"
	}
	return "parquet"
}

// loadFormat falls back to the input file extension when no format is given
func loadFormat(format, input string) (warehouse.SourceFormat, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(input)), ".")
	}
	return warehouse.ParseSourceFormat(format)
}

func (a *app) load(ctx context.Context) error {
	format, err := loadFormat(a.cfg.Format, a.cfg.Input)
	if err != nil {
		return err
	}
	loadCfg := warehouse.BuildLoadJobConfig(format, a.cfg.AutoDetect, a.cfg.SkipRows)

	handle, err := a.bq.AppendFile(ctx, a.cfg.Input, a.cfg.Destination, loadCfg)
	if err != nil {
		return err
	}

	st := &state.State{
		JobID:       handle.ID,
		Location:    handle.Location,
		Table:       a.cfg.Destination,
		SourceFile:  a.cfg.Input,
		Status:      state.StatusPending,
		LastUpdated: time.Now(),
	}
	if err := a.states.CreateState(ctx, st); err != nil {
		return fmt.Errorf("failed to record job %s: %w", handle.ID, err)
	}

	fmt.Fprintln(a.out, handle.ID)
	log.Printf("Submitted load job %s for %s into %s", handle.ID, a.cfg.Input, a.cfg.Destination)

	if a.cfg.Wait {
		return a.followJob(ctx, st)
	}
	return nil
}

func (a *app) jobStatus(ctx context.Context) error {
	st, err := a.states.GetState(ctx, a.cfg.JobID)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			return err
		}
		// jobs submitted outside this ledger are tracked from now on
		st = &state.State{JobID: a.cfg.JobID, Location: a.cfg.Location, Status: state.StatusPending, LastUpdated: time.Now()}
		if err := a.states.CreateState(ctx, st); err != nil {
			return fmt.Errorf("failed to record job %s: %w", a.cfg.JobID, err)
		}
	}
	return a.followJob(ctx, st)
}

// followJob fetches (or waits for) the job behind st and records the outcome
func (a *app) followJob(ctx context.Context, st *state.State) error {
	var status warehouse.JobStatus
	var err error
	if a.cfg.Wait {
		status, err = a.bq.WaitJob(ctx, st.JobID, st.Location)
	} else {
		status, err = a.bq.JobStatus(ctx, st.JobID, st.Location)
	}
	if err != nil {
		return err
	}

	st.Status = ledgerStatus(status)
	st.ProcessedRows = status.OutputRows
	st.Error = ""
	if status.Err != nil {
		st.Error = status.Err.Error()
	}
	st.LastUpdated = time.Now()
	if err := a.states.UpdateState(ctx, st); err != nil {
		return fmt.Errorf("failed to update job %s: %w", st.JobID, err)
	}

	fmt.Fprintf(a.out, "%s\t%s\t%d\n", st.JobID, st.Status, st.ProcessedRows)
	if status.Err != nil {
		return fmt.Errorf("job %s failed: %w", st.JobID, status.Err)
	}
	return nil
}

func ledgerStatus(status warehouse.JobStatus) string {
	switch {
	case status.Done() && status.Err != nil:
		return state.StatusFailed
	case status.Done():
		return state.StatusCompleted
	case status.State == "RUNNING":
		return state.StatusRunning
	default:
		return state.StatusPending
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("gbqetl: %v", err)
	}
}
