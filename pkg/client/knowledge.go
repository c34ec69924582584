package phytodex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// IngestDocument chunks, embeds and stores a document in the knowledge
// base. Re-ingesting the same source replaces its previous passages.
func (c *Client) IngestDocument(ctx context.Context, doc Document) (IngestResult, error) {
	var out IngestResult
	header, err := c.postJSON(ctx, "/api/v1/knowledge/documents", doc, &out)
	if err != nil {
		return IngestResult{}, err
	}
	out.TokensUsed = tokensUsed(header)
	return out, nil
}

// KnowledgeStats returns the passage count and index configuration.
func (c *Client) KnowledgeStats(ctx context.Context) (KnowledgeStats, error) {
	var out KnowledgeStats
	if err := c.getJSON(ctx, "/api/v1/knowledge/stats", &out); err != nil {
		return KnowledgeStats{}, err
	}
	return out, nil
}

// DeleteDocument removes every passage ingested from the given source.
// It returns an *APIError with CodeDocumentNotFound when the source has
// no passages.
func (c *Client) DeleteDocument(ctx context.Context, source string) (DeleteResult, error) {
	path := "/api/v1/knowledge/documents/" + url.PathEscape(source)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("phytodex: build request: %w", err)
	}

	var out DeleteResult
	if _, err := c.send(req, &out); err != nil {
		return DeleteResult{}, err
	}
	return out, nil
}
