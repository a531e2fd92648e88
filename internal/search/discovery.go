// discovery.go implements the Searcher against the Discovery Engine search
// API. One data store indexes the whole shared bucket; tenant scoping happens
// in the Builder, not here.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	discoveryengine "google.golang.org/api/discoveryengine/v1"
	"google.golang.org/api/option"

	"github.com/maritime-ai/maritime-ai-backend/internal/config"
)

// DiscoveryClient queries a Discovery Engine serving config.
type DiscoveryClient struct {
	svc           *discoveryengine.Service
	servingConfig string
}

// NewDiscoveryClient builds the search collaborator from configuration.
// Callers are expected to have checked cfg.Enabled already.
func NewDiscoveryClient(ctx context.Context, cfg *config.SearchConfig) (*DiscoveryClient, error) {
	if cfg.ProjectID == "" || cfg.DataStoreID == "" {
		return nil, fmt.Errorf("search project_id and data_store_id are required")
	}

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	svc, err := discoveryengine.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}

	return &DiscoveryClient{
		svc:           svc,
		servingConfig: cfg.ServingConfigPath(),
	}, nil
}

// derivedData is the subset of the index's derived struct data we read.
// extractive_answers carry better passages than snippets when present.
type derivedData struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippets []struct {
		Snippet string `json:"snippet"`
	} `json:"snippets"`
	ExtractiveAnswers []struct {
		Content string `json:"content"`
	} `json:"extractive_answers"`
}

// Search runs one query against the serving config and maps the results to
// excerpts. Ranking scores are dropped here and never reach callers.
func (c *DiscoveryClient) Search(ctx context.Context, query string, maxResults int) ([]Excerpt, error) {
	req := &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequest{
		Query:    query,
		PageSize: int64(maxResults),
		ContentSearchSpec: &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestContentSearchSpec{
			SnippetSpec: &discoveryengine.GoogleCloudDiscoveryengineV1SearchRequestContentSearchSpecSnippetSpec{
				ReturnSnippet: true,
			},
		},
	}

	resp, err := c.svc.Projects.Locations.Collections.DataStores.ServingConfigs.
		Search(c.servingConfig, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	if resp == nil || len(resp.Results) == 0 {
		return nil, nil
	}

	excerpts := make([]Excerpt, 0, len(resp.Results))
	for _, result := range resp.Results {
		doc := result.Document
		if doc == nil {
			continue
		}

		var derived derivedData
		if len(doc.DerivedStructData) > 0 {
			if err := json.Unmarshal(doc.DerivedStructData, &derived); err != nil {
				return nil, fmt.Errorf("failed to decode search result: %w", err)
			}
		}

		content := "No relevant snippet found."
		if len(derived.ExtractiveAnswers) > 0 && derived.ExtractiveAnswers[0].Content != "" {
			content = derived.ExtractiveAnswers[0].Content
		} else if len(derived.Snippets) > 0 && derived.Snippets[0].Snippet != "" {
			content = derived.Snippets[0].Snippet
		}

		title := derived.Title
		if title == "" {
			title = doc.Name[strings.LastIndex(doc.Name, "/")+1:]
		}

		excerpts = append(excerpts, Excerpt{
			DocID:   doc.Id,
			Title:   title,
			Content: content,
			URI:     derived.Link,
		})
	}

	return excerpts, nil
}
