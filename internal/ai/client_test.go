package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"
)

func TestGemini_Generate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody struct {
		Contents []struct {
			Role  string `json:"role"`
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					Data     []byte `json:"data"`
					MimeType string `json:"mimeType"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"contents"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"amount\":"},{"text":"12.50}"}]}}]}`))
	}))
	defer srv.Close()

	g, err := newGemini(context.Background(), "test-key", "models/gemini-test", genai.HTTPOptions{BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("newGemini() error = %v", err)
	}

	image := Blob{MimeType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
	got, err := g.Generate(context.Background(), "read this receipt", image)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != `{"amount":12.50}` {
		t.Errorf("Generate() = %q, want joined text parts", got)
	}

	if !strings.HasSuffix(gotPath, "models/gemini-test:generateContent") {
		t.Errorf("path = %q, want generateContent on gemini-test", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q, want test-key", gotKey)
	}
	if len(gotBody.Contents) != 1 || len(gotBody.Contents[0].Parts) != 2 {
		t.Fatalf("request contents = %+v, want one content with two parts", gotBody.Contents)
	}
	c := gotBody.Contents[0]
	if c.Role != "user" {
		t.Errorf("role = %q, want user", c.Role)
	}
	if c.Parts[0].InlineData == nil || c.Parts[0].InlineData.MimeType != "image/png" ||
		!bytes.Equal(c.Parts[0].InlineData.Data, image.Data) {
		t.Errorf("first part = %+v, want inline image", c.Parts[0])
	}
	if c.Parts[1].Text != "read this receipt" {
		t.Errorf("second part text = %q, want prompt", c.Parts[1].Text)
	}
}

func TestGemini_GenerateNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	g, err := newGemini(context.Background(), "test-key", "gemini-test", genai.HTTPOptions{BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("newGemini() error = %v", err)
	}
	if _, err := g.Generate(context.Background(), "hello"); err == nil {
		t.Error("Generate() error = nil, want error for empty candidates")
	}
}

func TestNewGemini_RequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), "  ", "gemini-test"); err == nil {
		t.Error("NewGemini() error = nil, want missing key error")
	}
}
