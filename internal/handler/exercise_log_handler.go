package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/valuetrainer/internal/metrics"
	"github.com/hitoshi/valuetrainer/internal/model"
)

// maxExerciseLogBytes は練習ログのリクエストボディの上限（1 MiB）。
const maxExerciseLogBytes = 1 << 20

// ExerciseLogHandler は練習結果のサマリーを受け取ってログに記録するHTTPハンドラー。
// ペイロードの形式は問わず、保存もしない。
type ExerciseLogHandler struct {
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewExerciseLogHandler はExerciseLogHandlerを生成する。
func NewExerciseLogHandler(collector metrics.MetricsCollector, logger *slog.Logger) *ExerciseLogHandler {
	return &ExerciseLogHandler{
		metrics: collector,
		logger:  logger,
	}
}

// Receive は練習ログを受け取り、構造化ログに出力して固定の応答を返す。
// POST /exercise_log
func (h *ExerciseLogHandler) Receive(w http.ResponseWriter, r *http.Request, account *model.Account) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxExerciseLogBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		slog.Warn("failed to read exercise log", slog.String("error", err.Error()))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	attrs := []any{slog.Int("size_bytes", len(body))}
	if account != nil {
		attrs = append(attrs, slog.String("account_id", account.ID))
	}
	if json.Valid(body) {
		attrs = append(attrs, slog.Any("payload", json.RawMessage(body)))
	} else {
		attrs = append(attrs, slog.String("payload_raw", string(body)))
	}
	h.logger.Info("exercise log received", attrs...)
	h.metrics.RecordExerciseLog(len(body))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
