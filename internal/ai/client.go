// Package ai talks to the generative model used for receipt scanning, import
// column inference and report insights. Model output is treated as
// untrusted text.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"finledger/internal/log"
)

// Blob is inline binary input such as a receipt photo.
type Blob struct {
	MimeType string
	Data     []byte
}

// Generator produces text for a prompt and optional inline data.
type Generator interface {
	Generate(ctx context.Context, prompt string, blobs ...Blob) (string, error)
}

// Gemini is a Generator backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	logger *log.Logger
}

var _ Generator = (*Gemini)(nil)

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	return newGemini(ctx, apiKey, model, genai.HTTPOptions{})
}

func newGemini(ctx context.Context, apiKey, model string, httpOptions genai.HTTPOptions) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing Gemini API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{
		client: client,
		model:  strings.TrimPrefix(model, "models/"),
		logger: log.ForComponent(log.ComponentAI),
	}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string, blobs ...Blob) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(requestParts(prompt, blobs), genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("model returned no candidates")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	g.logger.DebugContext(ctx, "Model response received",
		"model", g.model,
		"chars", b.Len())
	return b.String(), nil
}

// requestParts puts inline data before the instruction text.
func requestParts(prompt string, blobs []Blob) []*genai.Part {
	parts := make([]*genai.Part, 0, len(blobs)+1)
	for _, b := range blobs {
		parts = append(parts, genai.NewPartFromBytes(b.Data, b.MimeType))
	}
	return append(parts, genai.NewPartFromText(prompt))
}
