// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/contentrelease/internal/model"
)

func TestHTTPRenderer_PostsJob(t *testing.T) {
	var got model.RenderingJob
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"url":"/en/home","content":"<html>home</html>","complete":true}`))
	}))
	defer srv.Close()

	job := model.RenderingJob{ReleaseID: rid, Node: node("home")}
	doc, err := NewHTTPRenderer(srv.URL, time.Second).Render(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, job, got)
	assert.Equal(t, model.RenderedDocument{URL: "/en/home", Content: []byte("<html>home</html>"), Complete: true}, doc)
}

func TestHTTPRenderer_Incomplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"url":"/a","content":"<html>","complete":false}`))
	}))
	defer srv.Close()

	doc, err := NewHTTPRenderer(srv.URL, time.Second).Render(context.Background(), model.RenderingJob{ReleaseID: rid, Node: node("a")})
	require.NoError(t, err)
	assert.False(t, doc.Complete)
	assert.Equal(t, model.ReasonPartial, doc.IncompleteReason)
}

func TestHTTPRenderer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "template missing", http.StatusBadGateway)
			},
			want: "status 502: template missing",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"url":`))
			},
			want: "decode render response",
		},
		{
			name: "missing url",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"content":"x","complete":true}`))
			},
			want: "response has no url",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			_, err := NewHTTPRenderer(srv.URL, time.Second).Render(context.Background(), model.RenderingJob{ReleaseID: rid, Node: node("a")})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
