package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/SergioIriarte666/gruas-sgg-manager/internal/fileparse"
	"github.com/SergioIriarte666/gruas-sgg-manager/internal/logging"
	"github.com/SergioIriarte666/gruas-sgg-manager/internal/migration"
	"github.com/SergioIriarte666/gruas-sgg-manager/internal/storage"
)

// readUploadedFile extracts the multipart "file" field, enforcing the
// configured size limit. Returns the file name and its full contents.
func (s *Server) readUploadedFile(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid form")
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return "", nil, false
	}
	return header.Filename, data, true
}

// handleAnalyze runs the validation phase over an uploaded file and
// returns the full report: column mapping, missing columns and every
// field-level finding. Nothing is written.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	fileName, data, ok := s.readUploadedFile(w, r)
	if !ok {
		return
	}

	headers, rows, err := fileparse.Parse(fileName, data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.service.AnalyzeImport(r.Context(), headers, rows)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logging.FromContext(r.Context()).Info("file analyzed",
		"file", fileName,
		"rows", report.TotalRows,
		"errors", report.ErrorCount,
		"warnings", report.WarningCount,
	)
	writeJSON(w, report)
}

// handleStartImport begins processing an uploaded file and returns the
// batch ID immediately. Files whose validation phase reports blocking
// errors are refused with 422.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	fileName, data, ok := s.readUploadedFile(w, r)
	if !ok {
		return
	}

	headers, rows, err := fileparse.Parse(fileName, data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	batchID, err := s.service.StartImport(r.Context(), fileName, headers, rows)
	if err != nil {
		status := http.StatusBadRequest
		var ve *migration.ValidationError
		if errors.As(err, &ve) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}

	logging.FromContext(r.Context()).Info("import accepted", "batchId", batchID, "file", fileName)
	writeJSON(w, map[string]string{"batchId": batchID})
}

// handleImportProgress streams batch progress via Server-Sent Events.
// Supports resumption via the lastEventId query parameter: the event ID
// is the progress percentage, so reconnecting clients skip snapshots
// they already saw.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	if batchID == "" {
		writeError(w, http.StatusBadRequest, "missing batch ID")
		return
	}

	lastEventIDStr := r.URL.Query().Get("lastEventId")
	var lastEventID int
	if lastEventIDStr != "" {
		lastEventID, _ = strconv.Atoi(lastEventIDStr)
	}

	progressCh, err := s.service.SubscribeProgress(batchID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// channel closed, batch is done
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			if lastEventIDStr != "" && progress.Percent <= lastEventID {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.Percent, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleImportResult returns the final result of a batch, blocking until
// processing completes.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	if batchID == "" {
		writeError(w, http.StatusBadRequest, "missing batch ID")
		return
	}

	result, err := s.service.GetResult(r.Context(), batchID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, result)
}

// handleCustomerLookup finds a customer by RUT for the duplicate
// pre-check in the manual-entry flow.
func (s *Server) handleCustomerLookup(w http.ResponseWriter, r *http.Request) {
	taxID := r.URL.Query().Get("tax_id")
	if taxID == "" {
		writeError(w, http.StatusBadRequest, "missing tax_id parameter")
		return
	}

	customer, err := s.repo.FindCustomerByTaxID(r.Context(), taxID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "customer not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, customer)
}

// handleCraneLookup finds a crane by plate for the duplicate pre-check.
func (s *Server) handleCraneLookup(w http.ResponseWriter, r *http.Request) {
	plate := r.URL.Query().Get("plate")
	if plate == "" {
		writeError(w, http.StatusBadRequest, "missing plate parameter")
		return
	}

	crane, err := s.repo.FindCraneByPlate(r.Context(), plate)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "crane not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, crane)
}
