package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/core"
)

// ExpenseCategories are the category ids a receipt may be filed under.
var ExpenseCategories = []string{
	"housing", "transportation", "groceries", "utilities", "entertainment",
	"food", "shopping", "healthcare", "education", "personal", "travel",
	"insurance", "gifts", "bills", "other-expense",
}

var receiptPrompt = `Analyze this receipt image and extract the following information in JSON format:
- Total amount (just the number)
- Date (in ISO format)
- Description or items purchased (brief summary)
- Merchant/store name
- Suggested category (one of: ` + strings.Join(ExpenseCategories, ",") + `)

Only respond with valid JSON in this exact format:
{
  "amount": number,
  "date": "ISO date string",
  "description": "string",
  "merchantName": "string",
  "category": "string"
}

If it's not a receipt, return an empty object: {}`

// Receipt is the data read off a receipt, with fallbacks applied.
type Receipt struct {
	Amount       decimal.Decimal `json:"amount"`
	Date         time.Time       `json:"date"`
	Description  string          `json:"description"`
	MerchantName string          `json:"merchantName"`
	Category     string          `json:"category"`
}

type rawReceipt struct {
	Amount       json.RawMessage `json:"amount"`
	Date         string          `json:"date"`
	Description  string          `json:"description"`
	MerchantName string          `json:"merchantName"`
	Category     string          `json:"category"`
}

// ScanReceipt asks gen to read the receipt image. An empty or malformed answer
// is reported as core.ErrCouldNotExtract.
func ScanReceipt(ctx context.Context, gen Generator, image Blob, today time.Time) (Receipt, error) {
	text, err := gen.Generate(ctx, receiptPrompt, image)
	if err != nil {
		return Receipt{}, fmt.Errorf("scan receipt: %w", err)
	}
	return parseReceipt(text, today)
}

func parseReceipt(text string, today time.Time) (Receipt, error) {
	cleaned := extractObject(text)
	if cleaned == "{}" || cleaned == "" {
		return Receipt{}, fmt.Errorf("%w: no receipt detected in the image", core.ErrCouldNotExtract)
	}
	var raw rawReceipt
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return Receipt{}, fmt.Errorf("%w: could not read receipt data clearly", core.ErrCouldNotExtract)
	}

	r := Receipt{
		Amount:       parseLooseAmount(raw.Amount),
		Date:         core.DateOnly(today),
		Description:  firstNonEmpty(raw.Description, raw.MerchantName, "Receipt scan"),
		MerchantName: firstNonEmpty(raw.MerchantName, "Unknown merchant"),
		Category:     firstNonEmpty(strings.ToLower(raw.Category), "other-expense"),
	}
	if d, ok := parseLooseDate(raw.Date); ok {
		r.Date = d
	}
	return r, nil
}

// parseLooseAmount accepts a JSON number or a numeric string; anything else is 0.
func parseLooseAmount(raw json.RawMessage) decimal.Decimal {
	s := strings.TrimSpace(string(raw))
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d.Abs()
}

func parseLooseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04:05.000Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOnly(t), true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
