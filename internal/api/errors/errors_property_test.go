package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var genErrorCode = gen.OneConstOf(
	CodeValidationError,
	CodeNotFound,
	CodeUnauthorized,
	CodeInternalError,
	CodeConflict,
	CodeUnavailable,
)

// **Property: Structured Error Response Format**
// *For any* API error response, the body SHALL contain the code, message and
// request_id that were set, with a status derived from the code.
func TestPropertyStructuredErrorResponseFormat(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genMessage := gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 })
	genRequestID := gen.RegexMatch("[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}")

	properties.Property("error response contains required fields", prop.ForAll(
		func(code, message, requestID string) bool {
			rr := httptest.NewRecorder()
			WriteErrorWithRequestID(rr, New(code, message), requestID)

			var response map[string]any
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				return false
			}
			return response["code"] == code &&
				response["message"] == message &&
				response["request_id"] == requestID &&
				rr.Code == New(code, message).HTTPStatusCode() &&
				rr.Header().Get("Content-Type") == "application/json"
		},
		genErrorCode,
		genMessage,
		genRequestID,
	))

	properties.Property("copies do not alias the original", prop.ForAll(
		func(code, requestID string) bool {
			orig := New(code, "msg")
			tagged := orig.WithRequestID(requestID).WithDetails(map[string]any{"field": "url"})
			return orig.RequestID == "" && orig.Details == nil &&
				tagged.RequestID == requestID && tagged.Details["field"] == "url"
		},
		genErrorCode,
		genRequestID,
	))

	properties.TestingRun(t)
}

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, NewValidationError("x").HTTPStatusCode())
	assert.Equal(t, http.StatusNotFound, NewNotFoundError("x").HTTPStatusCode())
	assert.Equal(t, http.StatusUnauthorized, NewUnauthorizedError("x").HTTPStatusCode())
	assert.Equal(t, http.StatusConflict, NewConflictError("x").HTTPStatusCode())
	assert.Equal(t, http.StatusServiceUnavailable, NewUnavailableError("x").HTTPStatusCode())
	assert.Equal(t, http.StatusInternalServerError, NewInternalError("x").HTTPStatusCode())
	assert.Equal(t, http.StatusInternalServerError, New("SOMETHING_ELSE", "x").HTTPStatusCode())
}

func TestWriteUsesChiRequestID(t *testing.T) {
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Write(w, r, NewConflictError("URL already exists"))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/urls", nil))

	var body APIError
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "URL already exists", body.Message)
	assert.NotEmpty(t, body.RequestID)
}

func TestErrorLogEntryCompleteness(t *testing.T) {
	entry := NewErrorLogEntry("req-1", CodeInternalError, "boom")
	assert.Contains(t, entry.StackTrace, "goroutine")

	attrs := entry.ToSlogAttrs()
	require.Len(t, attrs, 8)
	assert.Equal(t, "correlation_id", attrs[0])
	assert.Equal(t, "req-1", attrs[1])
}
