package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/multierr"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/retailhive/retailhive-backend/pkg/config"
	"github.com/retailhive/retailhive-backend/pkg/logger"
)

const verifyTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// probe fetches metadata for the dataset (table == "") or one of its tables.
type probe func(ctx context.Context, table string) error

// Client streams rows into the tables of a single dataset.
type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	tables  []string
	probe   probe
}

// NewClient connects to BigQuery and fails fast when the dataset or any
// configured table is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	tables := configuredTables(cfg)
	if len(tables) == 0 {
		return nil, errTableNameRequired
	}

	bq, err := bigquery.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	dataset := bq.Dataset(datasetID)
	c := &Client{
		bq:      bq,
		dataset: dataset,
		tables:  tables,
		probe: func(ctx context.Context, table string) error {
			if table == "" {
				_, err := dataset.Metadata(ctx)
				return err
			}
			_, err := dataset.Table(table).Metadata(ctx)
			return err
		},
	}
	if err := c.verify(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset": datasetID,
			"tables":  tables,
		}), "bigquery client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func configuredTables(cfg config.BigQueryConfig) []string {
	tables := make([]string, 0, 1)
	for _, name := range []string{cfg.OrderEventsTable} {
		if name = strings.TrimSpace(name); name != "" {
			tables = append(tables, name)
		}
	}
	return tables
}

// verify checks the dataset, then every table, and reports all missing
// tables together.
func (c *Client) verify(ctx context.Context) error {
	if c == nil || c.probe == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	if err := c.probe(ctx, ""); err != nil {
		return describe("dataset", c.datasetID(), err)
	}
	var errs error
	for _, table := range c.tables {
		if err := c.probe(ctx, table); err != nil {
			errs = multierr.Append(errs, describe("table", table, err))
		}
	}
	return errs
}

func (c *Client) datasetID() string {
	if c.dataset == nil {
		return ""
	}
	return c.dataset.DatasetID
}

func describe(kind, name string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("bigquery %s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking bigquery %s %q: %w", kind, name, err)
}

// Ping re-runs the metadata checks used at startup.
func (c *Client) Ping(ctx context.Context) error {
	return c.verify(ctx)
}

// InsertRows streams rows into table. Each row is a ValueSaver or a struct
// with bigquery tags.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	if table = strings.TrimSpace(table); table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
