package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/donetracker/internal/logger"
	"github.com/hitoshi/donetracker/internal/middleware"
	"github.com/hitoshi/donetracker/internal/model"
)

// maxRequestBodyBytes はリクエストボディの上限サイズ。
const maxRequestBodyBytes = 1 << 20

// dateLayout は暦日を表すクエリ・パスパラメータの書式。
const dateLayout = "2006-01-02"

// messageResponse は本文を持たない操作の成功レスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// APIError以外はデータベース障害を含む内部エラーとして扱い、詳細はログのみに記録する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	logger.FromContext(r.Context()).Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidRequest,
		model.ErrCodeDuplicateUsername, model.ErrCodeInvalidReference, model.ErrCodeProjectHasTodos:
		return http.StatusBadRequest
	case model.ErrCodeUserNotFound, model.ErrCodeProjectNotFound, model.ErrCodeTodoNotFound, model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSONBody はリクエストボディをdstに読み込む。
// 解析できない場合はINVALID_REQUESTを書き込んでfalseを返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}

// pathID はURLパラメータを正の整数のIDとして解析する。
func pathID(r *http.Request, key string) (int64, *model.APIError) {
	raw := chi.URLParam(r, key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError(fmt.Sprintf("%s must be a positive integer", key))
	}
	return id, nil
}

// pathUser はURLパラメータ {user} を返す。
func pathUser(r *http.Request) (string, *model.APIError) {
	username := chi.URLParam(r, "user")
	if username == "" {
		return "", model.NewValidationError("user is required")
	}
	return username, nil
}

// queryUser はクエリパラメータ user を返す。
func queryUser(r *http.Request) (string, *model.APIError) {
	username := r.URL.Query().Get("user")
	if username == "" {
		return "", model.NewValidationError("user query parameter is required")
	}
	return username, nil
}

// queryBool はクエリパラメータを真偽値として解析する。未指定の場合はdefaultValを返す。
func queryBool(r *http.Request, key string, defaultVal bool) (bool, *model.APIError) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, model.NewValidationError(fmt.Sprintf("%s must be true or false", key))
	}
	return v, nil
}

// queryInt はクエリパラメータを整数として解析する。未指定の場合はnilを返す。
func queryInt(r *http.Request, key string) (*int64, *model.APIError) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, model.NewValidationError(fmt.Sprintf("%s must be an integer", key))
	}
	return &v, nil
}

// queryTime はクエリパラメータを日時として解析する。未指定の場合はnilを返す。
func queryTime(r *http.Request, key string) (*time.Time, *model.APIError) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := parseTime(raw)
	if err != nil {
		return nil, model.NewValidationError(fmt.Sprintf("%s must be an RFC 3339 timestamp or a YYYY-MM-DD date", key))
	}
	return &t, nil
}

// parseTime はRFC 3339の日時またはYYYY-MM-DDの暦日（UTCの0時）を解析する。
func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// flexTime はJSONボディ中の日時。RFC 3339とYYYY-MM-DDの両方を受け付ける。
type flexTime struct {
	time.Time
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (t *flexTime) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := parseTime(raw)
	if err != nil {
		return fmt.Errorf("invalid time %q: %w", raw, err)
	}
	t.Time = parsed
	return nil
}

// ptr はnilでない場合に日時のポインタを返す。
func (t *flexTime) ptr() *time.Time {
	if t == nil {
		return nil
	}
	v := t.Time
	return &v
}
