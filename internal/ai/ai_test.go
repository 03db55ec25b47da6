package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/core"
	"finledger/internal/importer"
)

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
	blobs   int
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, blobs ...Blob) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.blobs += len(blobs)
	return f.reply, f.err
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		in   string
		fn   func(string) string
		want string
	}{
		{"plain object", `{"a":1}`, extractObject, `{"a":1}`},
		{"fenced object", "```json\n{\"a\":1}\n```", extractObject, `{"a":1}`},
		{"prefixed object", "Sure! Here it is: {\"a\":1}", extractObject, `{"a":1}`},
		{"fenced array", "```\n[\"x\"]\n```", extractArray, `["x"]`},
		{"prefixed array", "Insights: [\"x\"]", extractArray, `["x"]`},
		{"empty object", "```json\n{}\n```", extractObject, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScanReceipt(t *testing.T) {
	today := time.Date(2024, 6, 10, 15, 4, 5, 0, time.UTC)
	image := Blob{MimeType: "image/jpeg", Data: []byte{0xff, 0xd8}}

	tests := []struct {
		name    string
		reply   string
		want    Receipt
		wantErr error
	}{
		{
			name:  "complete receipt",
			reply: "```json\n{\"amount\": 245.5, \"date\": \"2024-06-08\", \"description\": \"Weekly groceries\", \"merchantName\": \"FreshMart\", \"category\": \"groceries\"}\n```",
			want: Receipt{
				Amount:       decimal.RequireFromString("245.5"),
				Date:         time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC),
				Description:  "Weekly groceries",
				MerchantName: "FreshMart",
				Category:     "groceries",
			},
		},
		{
			name:  "fallbacks applied",
			reply: `{"amount": "12.00", "merchantName": "Cafe Blue"}`,
			want: Receipt{
				Amount:       decimal.RequireFromString("12"),
				Date:         time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
				Description:  "Cafe Blue",
				MerchantName: "Cafe Blue",
				Category:     "other-expense",
			},
		},
		{
			name:  "nothing usable but json",
			reply: `{"amount": "n/a", "date": "last tuesday"}`,
			want: Receipt{
				Amount:       decimal.Zero,
				Date:         time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
				Description:  "Receipt scan",
				MerchantName: "Unknown merchant",
				Category:     "other-expense",
			},
		},
		{name: "not a receipt", reply: "```json\n{}\n```", wantErr: core.ErrCouldNotExtract},
		{name: "garbage", reply: "I cannot read this image.", wantErr: core.ErrCouldNotExtract},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{reply: tt.reply}
			got, err := ScanReceipt(context.Background(), gen, image, today)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ScanReceipt() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ScanReceipt() error = %v", err)
			}
			if !got.Amount.Equal(tt.want.Amount) {
				t.Errorf("Amount = %s, want %s", got.Amount, tt.want.Amount)
			}
			if !got.Date.Equal(tt.want.Date) {
				t.Errorf("Date = %v, want %v", got.Date, tt.want.Date)
			}
			if got.Description != tt.want.Description || got.MerchantName != tt.want.MerchantName || got.Category != tt.want.Category {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if gen.blobs != 1 {
				t.Errorf("image parts sent = %d, want 1", gen.blobs)
			}
		})
	}
}

func TestScanReceipt_GeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	_, err := ScanReceipt(context.Background(), gen, Blob{}, time.Now())
	if err == nil || errors.Is(err, core.ErrCouldNotExtract) {
		t.Errorf("ScanReceipt() error = %v, want transport error", err)
	}
}

func TestInferColumns(t *testing.T) {
	headers := []string{"When", "How much", "What"}
	sample := [][]string{{"2024-01-05", "-45", "Coffee"}}

	t.Run("one-based indices converted", func(t *testing.T) {
		gen := &fakeGenerator{reply: "```json\n{\"dateIndex\": 1, \"amountIndex\": 2, \"typeIndex\": 0, \"descriptionIndex\": 3, \"categoryIndex\": 9}\n```"}
		got, err := InferColumns(context.Background(), gen, headers, sample)
		if err != nil {
			t.Fatalf("InferColumns() error = %v", err)
		}
		want := importer.Columns{Date: 0, Amount: 1, Type: -1, Description: 2, Category: -1}
		if got != want {
			t.Errorf("InferColumns() = %+v, want %+v", got, want)
		}
		if !strings.Contains(gen.prompts[0], `"How much"`) {
			t.Error("prompt should include the headers")
		}
	})

	t.Run("malformed response", func(t *testing.T) {
		gen := &fakeGenerator{reply: "no idea"}
		got, err := InferColumns(context.Background(), gen, headers, sample)
		if !errors.Is(err, core.ErrCouldNotExtract) {
			t.Fatalf("InferColumns() error = %v, want ErrCouldNotExtract", err)
		}
		if got != importer.NoColumns {
			t.Errorf("InferColumns() = %+v, want NoColumns", got)
		}
	})
}

func TestMonthlyInsights(t *testing.T) {
	stats := core.MonthlyStats{
		Year:          2024,
		Month:         5,
		TotalIncome:   decimal.NewFromInt(50000),
		TotalExpenses: decimal.NewFromInt(32000),
		ByCategory:    []core.CategoryAmount{{Name: "food", Amount: decimal.NewFromInt(12000)}},
	}

	t.Run("parses array", func(t *testing.T) {
		gen := &fakeGenerator{reply: "Here you go:\n```json\n[\"Eat out less\", \" \", \"Save more\"]\n```"}
		got, err := MonthlyInsights(context.Background(), gen, stats, "INR")
		if err != nil {
			t.Fatalf("MonthlyInsights() error = %v", err)
		}
		if len(got) != 2 || got[0] != "Eat out less" {
			t.Errorf("MonthlyInsights() = %v", got)
		}
		if !strings.Contains(gen.prompts[0], "May 2024") || !strings.Contains(gen.prompts[0], "food: ₹12,000.00") {
			t.Errorf("prompt missing month or categories: %s", gen.prompts[0])
		}
	})

	t.Run("empty array is an error", func(t *testing.T) {
		gen := &fakeGenerator{reply: "[]"}
		if _, err := MonthlyInsights(context.Background(), gen, stats, "INR"); !errors.Is(err, core.ErrCouldNotExtract) {
			t.Errorf("error = %v, want ErrCouldNotExtract", err)
		}
	})

	t.Run("generator failure", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("timeout")}
		if _, err := MonthlyInsights(context.Background(), gen, stats, "INR"); err == nil {
			t.Error("expected error")
		}
	})
}
