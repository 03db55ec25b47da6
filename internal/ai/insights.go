package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"finledger/internal/core"
)

// FallbackInsights are sent when the model cannot produce any.
var FallbackInsights = []string{
	"Your highest expense category this month might need attention.",
	"Consider setting up a budget for better financial management.",
	"Track your recurring expenses to identify potential savings.",
}

const insightsPrompt = `Analyze this financial data and provide 3 concise, actionable insights.
Focus on spending patterns and practical advice.
Keep it friendly and conversational.

Financial Data for %s:
- Total Income: %s
- Total Expenses: %s
- Net Income: %s
- Expense Categories: %s

Format the response as a JSON array of strings, like this:
["insight 1", "insight 2", "insight 3"]`

// MonthlyInsights asks gen for three tips about stats. Callers fall back to
// FallbackInsights on error.
func MonthlyInsights(ctx context.Context, gen Generator, stats core.MonthlyStats, currency string) ([]string, error) {
	cats := make([]string, 0, len(stats.ByCategory))
	for _, c := range stats.ByCategory {
		cats = append(cats, c.Name+": "+core.FormatAmount(c.Amount, currency))
	}
	month := time.Date(stats.Year, time.Month(stats.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
	prompt := fmt.Sprintf(insightsPrompt, month,
		core.FormatAmount(stats.TotalIncome, currency),
		core.FormatAmount(stats.TotalExpenses, currency),
		core.FormatAmount(stats.Net(), currency),
		strings.Join(cats, ", "))

	text, err := gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}
	var out []string
	if err := json.Unmarshal([]byte(extractArray(text)), &out); err != nil {
		return nil, fmt.Errorf("%w: insights response: %v", core.ErrCouldNotExtract, err)
	}
	insights := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			insights = append(insights, s)
		}
	}
	if len(insights) == 0 {
		return nil, fmt.Errorf("%w: empty insights", core.ErrCouldNotExtract)
	}
	return insights, nil
}
