// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/contentrelease/internal/model"
)

const maxRenderResponseBytes = 32 << 20

// HTTPRenderer delegates rendering to a render service. The job is POSTed
// as JSON; the service answers with a renderResponse.
type HTTPRenderer struct {
	Endpoint string
	Client   *http.Client
}

type renderResponse struct {
	URL              string `json:"url"`
	Content          string `json:"content"`
	Complete         bool   `json:"complete"`
	IncompleteReason string `json:"incompleteReason,omitempty"`
}

// NewHTTPRenderer returns a renderer with a traced client bounded by timeout.
func NewHTTPRenderer(endpoint string, timeout time.Duration) *HTTPRenderer {
	return &HTTPRenderer{
		Endpoint: endpoint,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (r *HTTPRenderer) Render(ctx context.Context, job model.RenderingJob) (model.RenderedDocument, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return model.RenderedDocument{}, fmt.Errorf("encode job: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(body))
	if err != nil {
		return model.RenderedDocument{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return model.RenderedDocument{}, fmt.Errorf("render %s: %w", job.Node.NodeID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.RenderedDocument{}, fmt.Errorf("render %s: status %d: %s",
			job.Node.NodeID, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out renderResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRenderResponseBytes)).Decode(&out); err != nil {
		return model.RenderedDocument{}, fmt.Errorf("decode render response: %w", err)
	}
	if out.URL == "" {
		return model.RenderedDocument{}, fmt.Errorf("render %s: response has no url", job.Node.NodeID)
	}

	doc := model.RenderedDocument{
		URL:      out.URL,
		Content:  []byte(out.Content),
		Complete: out.Complete,
	}
	if !doc.Complete {
		doc.IncompleteReason = model.ReasonPartial
		if out.IncompleteReason != "" {
			doc.IncompleteReason = model.IncompleteReason(out.IncompleteReason)
		}
	}
	return doc, nil
}
