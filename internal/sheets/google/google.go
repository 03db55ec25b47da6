// Package google reads transaction tables from Google Sheets shared with the
// service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finledger/internal/log"
)

// DefaultRange is read when the caller names no range: the first sheet,
// columns A to Z.
const DefaultRange = "A:Z"

type Client struct {
	svc    *gsheet.Service
	logger *log.Logger
}

// LoadCredentials returns the service account key, inline JSON first, then
// the file, then GOOGLE_APPLICATION_CREDENTIALS.
func LoadCredentials(inlineJSON, file string) ([]byte, error) {
	inlineJSON = strings.TrimSpace(inlineJSON)
	file = strings.TrimSpace(file)
	if inlineJSON == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inlineJSON != "":
		return []byte(inlineJSON), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// NewClient creates a read-only Sheets client from a service account key.
func NewClient(ctx context.Context, credentialsJSON []byte) (*Client, error) {
	logger := log.ForComponent(log.ComponentSheets)
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets client ready", "scope", gsheet.SpreadsheetsReadonlyScope)
	return &Client{svc: svc, logger: logger}, nil
}

// ReadRange returns the cells of rng as trimmed strings, one slice per row.
// spreadsheetID may also be a full spreadsheet URL.
func (c *Client) ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	id := ParseSpreadsheetID(spreadsheetID)
	if id == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	if strings.TrimSpace(rng) == "" {
		rng = DefaultRange
	}

	resp, err := c.svc.Spreadsheets.Values.Get(id, rng).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	rows := normalize(resp.Values)
	c.logger.InfoContext(ctx, "Spreadsheet range read",
		"range", rng,
		log.FieldCount, len(rows))
	return rows, nil
}

var spreadsheetURL = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// ParseSpreadsheetID accepts a bare id or a docs.google.com URL.
func ParseSpreadsheetID(s string) string {
	s = strings.TrimSpace(s)
	if m := spreadsheetURL.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// normalize converts API values to strings and drops trailing empty rows.
// The API already omits trailing empty cells within a row.
func normalize(values [][]interface{}) [][]string {
	out := make([][]string, 0, len(values))
	for _, row := range values {
		out = append(out, toStrings(row))
	}
	for len(out) > 0 && isBlank(out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
