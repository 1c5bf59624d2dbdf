package document

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"resumepersona/backend/handlers/response"
	"resumepersona/backend/services/extractor"
)

// DefaultMaxFileSize is used when the configured limit is not positive.
const DefaultMaxFileSize = 10 << 20 // 10 MB

// ExtractHandler reads a résumé from the multipart "file" field and returns
// the extractor result. The extension comes from the optional "extension"
// field, else from the file name.
// Used by: POST /api/documents/extract
func ExtractHandler(maxFileSize int64, logger *zap.Logger) http.HandlerFunc {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	tooLargeMsg := fmt.Sprintf("File too large. Maximum size is %dMB", max(maxFileSize>>20, 1))
	return func(w http.ResponseWriter, r *http.Request) {
		// multipart overhead on top of the file itself
		r.Body = http.MaxBytesReader(w, r.Body, maxFileSize+1<<20)
		if err := r.ParseMultipartForm(maxFileSize); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, tooLargeMsg)
				return
			}
			response.Error(w, http.StatusBadRequest, "Invalid upload")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "No file uploaded")
			return
		}
		defer file.Close()

		if header.Size > maxFileSize {
			response.Error(w, http.StatusRequestEntityTooLarge, tooLargeMsg)
			return
		}

		ext := strings.TrimSpace(r.FormValue("extension"))
		if ext == "" {
			ext = extractor.ExtensionOf(header.Filename)
		}

		data, err := io.ReadAll(io.LimitReader(file, maxFileSize+1))
		if err != nil {
			logger.Error("read upload failed", zap.Error(err))
			response.Error(w, http.StatusBadRequest, "Failed to read file")
			return
		}
		if int64(len(data)) > maxFileSize {
			response.Error(w, http.StatusRequestEntityTooLarge, tooLargeMsg)
			return
		}

		result := extractor.Extract(ext, data)
		if !result.Success {
			logger.Info("text extraction failed",
				zap.String("extension", ext),
				zap.Int("bytes", len(data)),
				zap.String("reason", result.Error))
			response.JSON(w, http.StatusUnprocessableEntity, result)
			return
		}
		response.JSON(w, http.StatusOK, result)
	}
}
