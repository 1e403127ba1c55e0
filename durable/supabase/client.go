// Package supabase stores record payloads in a Supabase (PostgREST) table.
//
// Expected schema:
//
//	create table records (
//	  namespace  text not null,
//	  key        text not null,
//	  value      text not null,
//	  updated_at timestamptz not null default now(),
//	  primary key (namespace, key)
//	);
package supabase

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"

	"github.com/creastat/records/durable"
)

const defaultTable = "records"

// Config holds Supabase connection configuration
type Config struct {
	URL       string
	APIKey    string
	Table     string // Default: records
	Namespace string // Separates stores sharing one table
}

// Client implements durable.Store using Supabase
type Client struct {
	client    *supabase.Client
	table     string
	namespace string
}

// row is one persisted payload. Values are base64 so arbitrary bytes survive
// the text column.
type row struct {
	Namespace string    `json:"namespace"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a new Supabase client
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	if cfg.Table == "" {
		cfg.Table = defaultTable
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{
		client:    client,
		table:     cfg.Table,
		namespace: cfg.Namespace,
	}, nil
}

// Read implements durable.Store.
func (c *Client) Read(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var rows []row
	_, err := c.client.From(c.table).
		Select("value", "", false).
		Eq("namespace", c.namespace).
		Eq("key", key).
		ExecuteTo(&rows)

	if err != nil {
		return nil, false, fmt.Errorf("failed to read record: %w", err)
	}

	if len(rows) == 0 {
		return nil, false, nil
	}

	value, err := base64.StdEncoding.DecodeString(rows[0].Value)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode record value: %w", err)
	}
	return value, true, nil
}

// Write implements durable.Store.
func (c *Client) Write(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r := row{
		Namespace: c.namespace,
		Key:       key,
		Value:     base64.StdEncoding.EncodeToString(value),
		UpdatedAt: time.Now().UTC(),
	}
	_, _, err := c.client.From(c.table).
		Upsert(r, "namespace,key", "minimal", "").
		Execute()

	if err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Close closes the Supabase client
func (c *Client) Close() error {
	// Supabase client doesn't require explicit close
	return nil
}

// Compile-time check that Client implements durable.Store
var _ durable.Store = (*Client)(nil)
