// Package search provides free-text address search on Meilisearch.
package search

import (
	"fmt"
	"time"

	ms "github.com/meilisearch/meilisearch-go"
)

// ClientWrapper wraps the Meilisearch client with the calls we need.
type ClientWrapper struct {
	cli ms.ServiceManager
}

// NewClientWrapper creates new Meilisearch client wrapper
func NewClientWrapper(url, key string) *ClientWrapper {
	return &ClientWrapper{cli: ms.New(url, ms.WithAPIKey(key))}
}

// Healthy reports whether the server answers its health endpoint.
func (c *ClientWrapper) Healthy() error {
	health, err := c.cli.Health()
	if err != nil {
		return fmt.Errorf("meilisearch health: %w", err)
	}
	if health.Status != "available" {
		return fmt.Errorf("meilisearch health: status %q", health.Status)
	}
	return nil
}

// SearchIndex runs q against index with an optional filter.
func (c *ClientWrapper) SearchIndex(index, q, filter string, limit int64) (*ms.SearchResponse, error) {
	req := &ms.SearchRequest{Limit: limit}
	if filter != "" {
		req.Filter = filter
	}
	return c.cli.Index(index).Search(q, req)
}

// WaitForTask polls task until it finishes or timeout passes.
func (c *ClientWrapper) WaitForTask(taskUID int64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		task, err := c.cli.GetTask(taskUID)
		if err != nil {
			return fmt.Errorf("get task %d: %w", taskUID, err)
		}
		switch task.Status {
		case "succeeded":
			return nil
		case "failed", "canceled":
			return fmt.Errorf("task %d %s: %v", taskUID, task.Status, task.Error)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("task %d still %s after %s", taskUID, task.Status, timeout)
		}
		time.Sleep(250 * time.Millisecond)
	}
}

// FilterPostcode restricts a search to one postcode.
func FilterPostcode(postcode string) string {
	if postcode == "" {
		return ""
	}
	return fmt.Sprintf("postcode = %q", postcode)
}

// FilterCity restricts a search to one city.
func FilterCity(city string) string {
	if city == "" {
		return ""
	}
	return fmt.Sprintf("city = %q", city)
}
