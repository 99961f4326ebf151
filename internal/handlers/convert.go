// convert.go handles CAJ -> PDF conversion endpoints.
//
// POST /api/v1/convert         — Upload a .caj file, receive the PDF
// GET  /api/v1/conversions     — List recent conversions
// GET  /api/v1/conversions/:id — Get one conversion record
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/bridge"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/middleware"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/models"
	pdfservice "github.com/Shimizu-Technology/caj2pdf-api/internal/services/pdf"
	"github.com/Shimizu-Technology/caj2pdf-api/internal/services/worker"
)

// multipartOverhead is the slack allowed on top of the file itself for
// multipart boundaries and headers.
const multipartOverhead = 64 << 10

// recordTimeout bounds the metadata write after a conversion.
const recordTimeout = 5 * time.Second

// allowedExtensions are the upload types the conversion module understands.
var allowedExtensions = map[string]bool{".caj": true}

// errInvalidOutput marks a conversion whose final bytes are not a PDF.
var errInvalidOutput = errors.New("conversion produced an invalid PDF")

// Convert handles a CAJ upload and returns the converted PDF.
// POST /api/v1/convert
//
// Accepts multipart file upload with field name "file". Processing is
// synchronous: the response body is the PDF, sent as an attachment.
func (h *Handler) Convert(c *gin.Context) {
	// Limit request body size
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+multipartOverhead)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.uploadTooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "No CAJ file provided. Upload a file with the field name 'file'.",
			Code:    http.StatusBadRequest,
		})
		return
	}
	defer file.Close()

	if header.Size > h.MaxUploadBytes {
		h.uploadTooLarge(c)
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_file_type",
			Message: fmt.Sprintf("Unsupported file format '%s'. Only .caj files are accepted.", ext),
			Code:    http.StatusBadRequest,
		})
		return
	}

	// Go Pattern: io.ReadAll reads the entire reader into a byte slice.
	// The modules take the whole document at once, so there is nothing to stream.
	data, err := io.ReadAll(io.LimitReader(file, h.MaxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "read_error",
			Message: "Failed to read uploaded file",
			Code:    http.StatusBadRequest,
		})
		return
	}
	if int64(len(data)) > h.MaxUploadBytes {
		h.uploadTooLarge(c)
		return
	}

	conv := &models.Conversion{
		ID:           uuid.New().String(),
		OriginalName: header.Filename,
		InputSize:    int64(len(data)),
	}
	apiKeyID := h.setOwner(c, conv)
	c.Header("X-Conversion-ID", conv.ID)

	start := time.Now()
	result, info, err := h.convert(c.Request.Context(), conv.ID, data)
	conv.DurationMS = time.Since(start).Milliseconds()

	if result != nil {
		conv.IntermediateSize = int64(result.IntermediateSize)
		conv.OutputSize = int64(len(result.PDF))
		conv.OutlineEntries = len(result.Outline)
	}
	if info != nil {
		conv.PageCount = info.PageCount
	}

	if err != nil {
		status, code := conversionFailure(err)
		conv.Status = models.StatusFailed
		conv.ErrorKind = code
		conv.ErrorMessage = err.Error()
		log.Printf("❌ Conversion %s (%s) failed: %v", conv.ID, header.Filename, err)

		h.finishConversion(c, conv, apiKeyID)

		if status == http.StatusServiceUnavailable {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		}
		c.JSON(status, models.ErrorResponse{
			Error:   code,
			Message: failureMessage(code, err),
			Code:    status,
		})
		return
	}

	conv.Status = models.StatusCompleted
	h.finishConversion(c, conv, apiKeyID)

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": h.OutputFilename}))
	c.Header("X-Page-Count", strconv.Itoa(conv.PageCount))
	c.Header("X-Outline-Entries", strconv.Itoa(conv.OutlineEntries))
	c.Data(http.StatusOK, "application/pdf", result.PDF)
}

// convert waits (briefly) for the modules, runs the conversion and checks the
// result. The PDF is returned even when only the page count is unreadable.
func (h *Handler) convert(ctx context.Context, id string, data []byte) (*bridge.Result, *pdfservice.Info, error) {
	ctx, cancel := context.WithTimeout(ctx, h.ConvertTimeout)
	defer cancel()

	// Input that arrives while the modules are still loading is held back,
	// never run early; after ModuleWaitTimeout it is rejected instead.
	if !h.Pool.Ready() {
		waitCtx, cancelWait := context.WithTimeout(ctx, h.ModuleWaitTimeout)
		err := h.Pool.AwaitReady(waitCtx)
		cancelWait()
		if err != nil {
			return nil, nil, err
		}
	}

	result, err := h.Pool.Convert(ctx, id, data)
	if err != nil {
		return nil, nil, err
	}

	info, err := pdfservice.Inspect(result.PDF)
	if errors.Is(err, pdfservice.ErrNotPDF) {
		return result, nil, fmt.Errorf("%w: %w", errInvalidOutput, err)
	}
	if err != nil {
		log.Printf("⚠️  Conversion %s: could not count pages: %v", id, err)
	}
	return result, info, nil
}

// setOwner fills in who the conversion belongs to and returns the API key ID
// used for webhook delivery ("" for JWT users).
func (h *Handler) setOwner(c *gin.Context, conv *models.Conversion) string {
	if apiKey := middleware.GetAPIKey(c); apiKey != nil {
		conv.APIKeyID = &apiKey.ID
		conv.UserID = apiKey.UserID
		return apiKey.ID
	}
	if user := middleware.GetUser(c); user != nil {
		conv.UserID = &user.ID
	}
	return ""
}

// finishConversion persists the record and fires the matching webhook event.
// Neither may fail the response: the document is already in hand.
func (h *Handler) finishConversion(c *gin.Context, conv *models.Conversion, apiKeyID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), recordTimeout)
	defer cancel()

	if err := h.Store.CreateConversion(ctx, conv); err != nil {
		log.Printf("⚠️  Failed to save conversion record %s: %v", conv.ID, err)
	}

	if h.Webhooks == nil {
		return
	}
	event := models.EventConversionCompleted
	if conv.Status == models.StatusFailed {
		event = models.EventConversionFailed
	}
	h.Webhooks.NotifyEvent(ctx, apiKeyID, event, models.ConversionEvent{Conversion: *conv})
}

func (h *Handler) uploadTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
		Error:   "file_too_large",
		Message: fmt.Sprintf("File exceeds the %d MB upload limit", h.MaxUploadBytes>>20),
		Code:    http.StatusRequestEntityTooLarge,
	})
}

// conversionFailure maps a conversion error to an HTTP status and API error code.
func conversionFailure(err error) (int, string) {
	switch {
	case errors.Is(err, worker.ErrQueueFull):
		return http.StatusServiceUnavailable, "queue_full"
	case errors.Is(err, worker.ErrStopped):
		return http.StatusServiceUnavailable, "shutting_down"
	case errors.Is(err, bridge.ErrModuleNotReady):
		return http.StatusServiceUnavailable, "module_not_ready"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "conversion_timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "conversion_cancelled"
	case errors.Is(err, errInvalidOutput):
		return http.StatusUnprocessableEntity, "invalid_output"
	}

	if kind := bridge.KindOf(err); kind != "internal_error" {
		return http.StatusUnprocessableEntity, kind
	}
	return http.StatusInternalServerError, "internal_error"
}

// failureMessage is the client-facing text for an error code.
func failureMessage(code string, err error) string {
	switch code {
	case "queue_full":
		return "All conversion workers are busy. Try again shortly."
	case "shutting_down":
		return "The server is shutting down. Try again shortly."
	case "module_not_ready":
		return "Conversion modules are still loading. Try again shortly."
	case "conversion_timeout":
		return "The conversion took too long and was abandoned."
	case "conversion_cancelled":
		return "The conversion was cancelled."
	case "internal_error":
		return "An unexpected error occurred during conversion."
	}
	return "Conversion failed: " + err.Error()
}

// ListConversions returns recent conversions of the caller.
// GET /api/v1/conversions?status=failed&limit=20
//
// The owner key sees every conversion.
func (h *Handler) ListConversions(c *gin.Context) {
	filter := models.ConversionFilter{
		Status: models.ConversionStatus(c.Query("status")),
	}
	if filter.Status != "" && filter.Status != models.StatusCompleted && filter.Status != models.StatusFailed {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "status must be 'completed' or 'failed'",
			Code:    http.StatusBadRequest,
		})
		return
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_request",
				Message: "limit must be a positive integer",
				Code:    http.StatusBadRequest,
			})
			return
		}
		filter.Limit = n
	}

	if !middleware.IsOwnerRequest(c, h.Owner) {
		if apiKey := middleware.GetAPIKey(c); apiKey != nil {
			filter.APIKeyID = &apiKey.ID
		} else if user := middleware.GetUser(c); user != nil {
			filter.UserID = &user.ID
		}
	}

	conversions, err := h.Store.ListConversions(c.Request.Context(), filter)
	if err != nil {
		log.Printf("Failed to list conversions: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to list conversions",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	if conversions == nil {
		conversions = []models.Conversion{}
	}

	c.JSON(http.StatusOK, conversions)
}

// GetConversion retrieves a single conversion record by ID.
// GET /api/v1/conversions/:id
func (h *Handler) GetConversion(c *gin.Context) {
	conv, err := h.Store.GetConversion(c.Request.Context(), c.Param("id"))
	if err != nil || !h.canSee(c, conv) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "Conversion not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, conv)
}

// canSee reports whether the caller owns the conversion.
func (h *Handler) canSee(c *gin.Context, conv *models.Conversion) bool {
	if middleware.IsOwnerRequest(c, h.Owner) {
		return true
	}
	if apiKey := middleware.GetAPIKey(c); apiKey != nil {
		return conv.APIKeyID != nil && *conv.APIKeyID == apiKey.ID
	}
	if user := middleware.GetUser(c); user != nil {
		return conv.UserID != nil && *conv.UserID == user.ID
	}
	return false
}
