package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"finledger/internal/middleware/auth"
	"finledger/internal/services"
)

// handleImportCSV takes a multipart upload in field "file". Without
// account_id the rows are only previewed.
func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	if s.svc.Imports == nil {
		ErrorResponse(http.StatusServiceUnavailable, "import is not configured").Write(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		BadRequestError(uploadError(err)).Write(w)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		ValidationError([]FieldError{{Field: "file", Message: "This field is required", Type: "required"}}).Write(w)
		return
	}
	defer file.Close()
	if name := strings.ToLower(header.Filename); name != "" && !strings.HasSuffix(name, ".csv") && !strings.HasSuffix(name, ".txt") {
		BadRequestError("only .csv files can be imported").Write(w)
		return
	}

	res, err := s.svc.Imports.ImportCSV(r.Context(), auth.UserID(r.Context()), file, strings.TrimSpace(r.FormValue("account_id")))
	if err != nil {
		s.fail(w, r, "import csv", err)
		return
	}
	writeImportResult(w, res)
}

func (s *Server) handleImportSheet(w http.ResponseWriter, r *http.Request) {
	if s.svc.Imports == nil {
		ErrorResponse(http.StatusServiceUnavailable, "import is not configured").Write(w)
		return
	}
	var req sheetImportRequest
	if err := DecodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	res, err := s.svc.Imports.ImportSheet(r.Context(), auth.UserID(r.Context()), req.SpreadsheetID, req.Range, strings.TrimSpace(req.AccountID))
	if err != nil {
		s.fail(w, r, "import sheet", err)
		return
	}
	writeImportResult(w, res)
}

func writeImportResult(w http.ResponseWriter, res services.ImportResult) {
	if len(res.Created) > 0 {
		Created(newImportResultView(res)).Write(w)
		return
	}
	OK(newImportResultView(res)).Write(w)
}

// handleScanReceipt takes an image in multipart field "receipt" and returns
// the extracted fields for review.
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	if s.svc.Receipts == nil {
		ErrorResponse(http.StatusServiceUnavailable, "receipt scanning is not configured").Write(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxReceiptBytes+(1<<20))
	if err := r.ParseMultipartForm(services.MaxReceiptBytes); err != nil {
		BadRequestError(uploadError(err)).Write(w)
		return
	}
	file, _, err := r.FormFile("receipt")
	if err != nil {
		ValidationError([]FieldError{{Field: "receipt", Message: "This field is required", Type: "required"}}).Write(w)
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(file, services.MaxReceiptBytes+1)); err != nil {
		s.fail(w, r, "scan receipt", fmt.Errorf("read upload: %w", err))
		return
	}
	data := buf.Bytes()
	mimeType := http.DetectContentType(data)

	receipt, err := s.svc.Receipts.Scan(r.Context(), auth.UserID(r.Context()), data, mimeType)
	if err != nil {
		s.fail(w, r, "scan receipt", err)
		return
	}
	OK(newReceiptView(receipt)).Write(w)
}

func uploadError(err error) string {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Sprintf("upload larger than %d bytes", tooLarge.Limit)
	}
	return fmt.Sprintf("invalid upload: %v", err)
}
