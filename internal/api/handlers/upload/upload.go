package upload

import (
	"encoding/json"
	"net/http"
	"time"

	"menu-recommender/internal/infrastructure/storage"
	"menu-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

// Response 上傳結果
type Response struct {
	Success  bool   `json:"success"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// HandleUpload 接收 multipart 欄位 file 並寫入存放
func HandleUpload(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := w.Header().Get("X-Request-ID")
		if requestID == "" {
			requestID = common.GenerateUUID()
			w.Header().Set("X-Request-ID", requestID)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			common.LogWarn("No file provided",
				zap.Error(err),
				zap.String("request_id", requestID))
			common.WriteErrorResponse(w, http.StatusBadRequest, "No file provided")
			return
		}
		defer file.Close()

		filename, err := storage.UploadName(header.Filename, time.Now())
		if err != nil {
			common.WriteErrorResponse(w, http.StatusBadRequest, "Invalid file name")
			return
		}

		url, err := store.Save(r.Context(), filename, file, header.Size, header.Header.Get("Content-Type"))
		if err != nil {
			common.LogError("Upload failed",
				zap.Error(err),
				zap.String("driver", store.Driver()),
				zap.String("request_id", requestID))
			common.WriteErrorResponse(w, http.StatusInternalServerError, "Upload failed")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(Response{Success: true, URL: url, Filename: filename}); err != nil {
			common.LogError("Failed to encode response",
				zap.Error(err),
				zap.String("request_id", requestID))
			return
		}

		common.LogInfo("檔案上傳完成",
			zap.String("request_id", requestID),
			zap.String("filename", filename),
			zap.Int64("size", header.Size),
			zap.String("driver", store.Driver()))
	}
}
