// Package qdrant stores record payloads as Qdrant point payloads.
//
// Each record becomes one point whose id is a UUIDv5 derived from the
// namespace and key. The collection carries a single placeholder dimension,
// since only the payload is used.
package qdrant

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/creastat/records/durable"
)

const (
	payloadNamespace = "namespace"
	payloadKey       = "key"
	payloadValue     = "value"
)

// pointSpace seeds the UUIDv5 point ids.
var pointSpace = uuid.MustParse("6f1c7a0e-8c53-4d0b-9a3e-2f6d1b7c4e90")

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant server address (e.g., "https://example.qdrant.io:6334").
	URL string

	// CollectionName is the collection holding record points.
	CollectionName string

	// Namespace separates stores sharing one collection.
	Namespace string

	// APIKey is optional API key for authentication.
	APIKey string
}

// Client implements durable.Store for Qdrant.
type Client struct {
	client         *qdrant.Client
	collectionName string
	namespace      string
}

// New creates a new Qdrant client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if cfg.CollectionName == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}

	host, port, useTLS, err := parseEndpoint(cfg.URL)
	if err != nil {
		return nil, err
	}

	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Client{
		client:         qdrantClient,
		collectionName: cfg.CollectionName,
		namespace:      cfg.Namespace,
	}, nil
}

// EnsureCollection creates the collection when it does not exist yet.
func (c *Client) EnsureCollection(ctx context.Context) error {
	exists, err := c.client.CollectionExists(ctx, c.collectionName)
	if err != nil {
		return fmt.Errorf("qdrant collection lookup failed: %w", err)
	}
	if exists {
		return nil
	}
	err = c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     1,
			Distance: qdrant.Distance_Dot,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection failed: %w", err)
	}
	return nil
}

// Read implements durable.Store.
func (c *Client) Read(ctx context.Context, key string) ([]byte, bool, error) {
	points, err := c.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: c.collectionName,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(pointID(c.namespace, key))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("qdrant get failed: %w", err)
	}
	if len(points) == 0 {
		return nil, false, nil
	}

	encoded, ok := payloadString(points[0].GetPayload(), payloadValue)
	if !ok {
		return nil, false, fmt.Errorf("qdrant point for %q has no value payload", key)
	}
	value, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false, fmt.Errorf("qdrant value decode failed: %w", err)
	}
	return value, true, nil
}

// Write implements durable.Store.
func (c *Client) Write(ctx context.Context, key string, value []byte) error {
	wait := true
	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collectionName,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(pointID(c.namespace, key)),
				Vectors: qdrant.NewVectors(0),
				Payload: buildPayload(c.namespace, key, value),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

// Close implements durable.Store.
func (c *Client) Close() error {
	return c.client.Close()
}

// parseEndpoint splits a Qdrant URL into host, gRPC port and TLS flag.
func parseEndpoint(raw string) (string, int, bool, error) {
	parsedURL := raw
	if !strings.HasPrefix(parsedURL, "http://") && !strings.HasPrefix(parsedURL, "https://") {
		parsedURL = "https://" + parsedURL
	}

	u, err := url.Parse(parsedURL)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	port := 6334 // default gRPC port
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port: %w", err)
		}
		port = p
	}

	return u.Hostname(), port, u.Scheme == "https", nil
}

// pointID derives a stable point id for a namespaced key.
func pointID(namespace, key string) string {
	return uuid.NewSHA1(pointSpace, []byte(namespace+"/"+key)).String()
}

func buildPayload(namespace, key string, value []byte) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		payloadNamespace: qdrant.NewValueString(namespace),
		payloadKey:       qdrant.NewValueString(key),
		payloadValue:     qdrant.NewValueString(base64.StdEncoding.EncodeToString(value)),
	}
}

// payloadString extracts a string field from a point payload.
func payloadString(payload map[string]*qdrant.Value, field string) (string, bool) {
	v, ok := payload[field]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.Kind.(*qdrant.Value_StringValue)
	if !ok {
		return "", false
	}
	return s.StringValue, true
}

// Compile-time check that Client implements durable.Store.
var _ durable.Store = (*Client)(nil)
