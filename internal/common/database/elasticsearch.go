// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"homescout-workers/internal/common/config"
	"homescout-workers/internal/common/errors"

	"github.com/elastic/go-elasticsearch/v8"
)

// listingIndexMapping matches the documents save-listing writes and the
// fields the search query builders filter on.
const listingIndexMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "keyword"},
      "sourceUrl":   {"type": "keyword"},
      "title":       {"type": "text"},
      "location":    {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "price":       {"type": "double"},
      "rooms":       {"type": "text"},
      "rooms_count": {"type": "double"},
      "size":        {"type": "text"},
      "size_sqm":    {"type": "double"},
      "features":    {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "extractedBy": {"type": "keyword"},
      "createdAt":   {"type": "date"}
    }
  }
}`

type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
	}

	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &ElasticsearchClient{Client: es}, nil
}

func (c *ElasticsearchClient) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.Client.Ping(
		c.Client.Ping.WithContext(ctx),
	)
	if err != nil {
		return errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewElasticsearchConnectionFailedError(fmt.Errorf("ping status %s", res.Status()))
	}

	return nil
}

// EnsureListingIndex creates the listings index with its explicit mapping
// unless it already exists. Dynamic mapping would type rooms_count off the
// first document, so the index is created up front.
func (c *ElasticsearchClient) EnsureListingIndex(ctx context.Context, index string) error {
	exists, err := c.Client.Indices.Exists(
		[]string{index},
		c.Client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index existence check failed: %w", err)
	}
	defer exists.Body.Close()

	if exists.StatusCode == http.StatusOK {
		return nil
	}

	res, err := c.Client.Indices.Create(
		index,
		c.Client.Indices.Create.WithBody(strings.NewReader(listingIndexMapping)),
		c.Client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index create failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index create error: %s", res.Status())
	}

	return nil
}
