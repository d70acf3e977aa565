package datastore

import (
	"fmt"
	"net/url"
	"path"

	"github.com/go-resty/resty/v2"
)

// DatasetteClient publishes history rows through the datasette-insert API.
type DatasetteClient struct {
	baseURL string
	client  *resty.Client
}

// NewDatasetteClient creates a new DatasetteClient instance
func NewDatasetteClient(baseURL, apiToken string) *DatasetteClient {
	client := resty.New().SetHeader("Content-Type", "application/json")
	if apiToken != "" {
		client.SetAuthToken(apiToken)
	}
	return &DatasetteClient{baseURL: baseURL, client: client}
}

// Connect validates the base URL
func (c *DatasetteClient) Connect() error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base URL %q", c.baseURL)
	}
	return nil
}

// CreateTable is a no-op: the insert plugin creates tables on first insert
func (c *DatasetteClient) CreateTable(string) error {
	return nil
}

// BatchInsert sends records to the Datasette insert API
func (c *DatasetteClient) BatchInsert(database string, table string, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = path.Join(u.Path, "-/insert", database, table)

	var apiErr map[string]any
	resp, err := c.client.R().
		SetBody(map[string]any{"rows": records}).
		SetError(&apiErr).
		Post(u.String())
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	if resp.IsError() {
		if len(apiErr) > 0 {
			return fmt.Errorf("API error (status %d): %v", resp.StatusCode(), apiErr)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode())
	}
	return nil
}

// Close is a no-op for the HTTP client
func (c *DatasetteClient) Close() error {
	return nil
}
