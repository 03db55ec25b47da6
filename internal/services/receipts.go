package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finledger/internal/ai"
	"finledger/internal/core"
	"finledger/internal/log"
)

// MaxReceiptBytes bounds an uploaded receipt image.
const MaxReceiptBytes = 5 << 20

type ReceiptService struct {
	gen    ai.Generator
	logger *log.Logger
	now    func() time.Time
}

func NewReceiptService(gen ai.Generator) *ReceiptService {
	return &ReceiptService{
		gen:    gen,
		logger: log.ForComponent(log.ComponentReceipts),
		now:    utcNow,
	}
}

// Scan reads a receipt image. It never records anything; the caller reviews
// the result and creates the transaction.
func (s *ReceiptService) Scan(ctx context.Context, userID string, image []byte, mimeType string) (ai.Receipt, error) {
	if err := requireUser(userID); err != nil {
		return ai.Receipt{}, err
	}
	if s.gen == nil {
		return ai.Receipt{}, fmt.Errorf("%w: receipt scanning is not configured", core.ErrCouldNotExtract)
	}
	if len(image) == 0 {
		return ai.Receipt{}, fmt.Errorf("%w: empty image", core.ErrInvalidInput)
	}
	if len(image) > MaxReceiptBytes {
		return ai.Receipt{}, fmt.Errorf("%w: image larger than 5MB", core.ErrInvalidInput)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return ai.Receipt{}, fmt.Errorf("%w: unsupported file type %q", core.ErrInvalidInput, mimeType)
	}

	r, err := ai.ScanReceipt(ctx, s.gen, ai.Blob{MimeType: mimeType, Data: image}, s.now())
	if err != nil {
		s.logger.WarnContext(ctx, "Receipt scan failed", log.FieldUserID, userID, log.FieldError, err)
		return ai.Receipt{}, err
	}
	s.logger.InfoContext(ctx, "Receipt scanned",
		log.FieldUserID, userID,
		log.FieldAmount, r.Amount.StringFixed(2),
		"category", r.Category)
	return r, nil
}
