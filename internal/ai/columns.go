package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"finledger/internal/core"
	"finledger/internal/importer"
)

const columnsPrompt = `Analyze this spreadsheet data where first row is headers and identify the columns for:
- Transaction date
- Amount
- Type (income/expense)
- Description
- Category

Data sample:
%s
%s

Return JSON with column indices (1-based):
{
  "dateIndex": number,
  "amountIndex": number,
  "typeIndex": number,
  "descriptionIndex": number,
  "categoryIndex": number
}`

type columnGuess struct {
	DateIndex        int `json:"dateIndex"`
	AmountIndex      int `json:"amountIndex"`
	TypeIndex        int `json:"typeIndex"`
	DescriptionIndex int `json:"descriptionIndex"`
	CategoryIndex    int `json:"categoryIndex"`
}

// InferColumns asks gen to locate the import columns from the headers and a
// few sample rows. Indices outside the header row are dropped.
func InferColumns(ctx context.Context, gen Generator, headers []string, sample [][]string) (importer.Columns, error) {
	h, _ := json.Marshal(headers)
	s, _ := json.Marshal(sample)
	text, err := gen.Generate(ctx, fmt.Sprintf(columnsPrompt, h, s))
	if err != nil {
		return importer.NoColumns, fmt.Errorf("infer columns: %w", err)
	}

	var g columnGuess
	if err := json.Unmarshal([]byte(extractObject(text)), &g); err != nil {
		return importer.NoColumns, fmt.Errorf("%w: column inference returned %q", core.ErrCouldNotExtract, text)
	}
	toIndex := func(oneBased int) int {
		if oneBased < 1 || oneBased > len(headers) {
			return -1
		}
		return oneBased - 1
	}
	return importer.Columns{
		Date:        toIndex(g.DateIndex),
		Amount:      toIndex(g.AmountIndex),
		Type:        toIndex(g.TypeIndex),
		Description: toIndex(g.DescriptionIndex),
		Category:    toIndex(g.CategoryIndex),
	}, nil
}
