package log

import "github.com/shopspring/decimal"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldUserID        = "user_id"
	FieldAccountID     = "account_id"
	FieldTransactionID = "transaction_id"
	FieldBudgetID      = "budget_id"
	FieldKind          = "kind"
	FieldAmount        = "amount"
	FieldDelta         = "delta"
	FieldCount         = "count"
	FieldPeriod        = "period"
	FieldPercentUsed   = "percent_used"
	FieldJobID         = "job_id"
	FieldJobType       = "job_type"
	FieldAttempt       = "attempt"
	FieldBackend       = "backend"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentLedger     = "ledger"
	ComponentAccounts   = "accounts"
	ComponentBudgets    = "budgets"
	ComponentDashboard  = "dashboard"
	ComponentImport     = "import"
	ComponentReceipts   = "receipts"
	ComponentAlerts     = "alerts"
	ComponentReports    = "reports"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentMailWorker = "mail_worker"
	ComponentMailer     = "mailer"
	ComponentAI         = "ai"
	ComponentSheets     = "sheets"
	ComponentCache      = "cache"
	ComponentAuth       = "auth"
	ComponentSecurity   = "security"
	ComponentRateLimit  = "rate_limit"
	ComponentTrace      = "trace"
	ComponentBackend    = "backend"
)


// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error message when err is non-nil.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithTransaction adds the fields that identify one balance movement.
func (f LogFields) WithTransaction(id, accountID, kind string, amount, delta decimal.Decimal) LogFields {
	f[FieldTransactionID] = id
	f[FieldAccountID] = accountID
	f[FieldKind] = kind
	f[FieldAmount] = amount.StringFixed(2)
	f[FieldDelta] = delta.StringFixed(2)
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
