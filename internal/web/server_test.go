package web

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheethealth/internal/config"
	"github.com/JonMunkholm/sheethealth/internal/core"
	"github.com/JonMunkholm/sheethealth/internal/handler"
)

var testHeaders = []any{"Funder Hierarchy", "Responsible Unit Name", "Project Definition", "PD Description"}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Upload: config.UploadConfig{MaxFileSize: 1 << 20, MaxConcurrent: 2, MaxWaitTime: 50 * time.Millisecond},
		Validation: config.ValidationConfig{
			RequiredHeaders: []string{"Funder Hierarchy", "Responsible Unit Name", "Project Definition", "PD Description"},
			UniqueColumn:    "Project Definition",
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *core.Limiter) {
	t.Helper()
	h := handler.New(handler.Config{
		Rules: core.Rules{
			RequiredHeaders: cfg.Validation.RequiredHeaders,
			UniqueColumn:    cfg.Validation.UniqueColumn,
		},
		MaxBytes: cfg.Upload.MaxFileSize,
	})
	limiter := core.NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	s := NewServer(cfg, h, limiter)
	t.Cleanup(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
	})
	return s, limiter
}

func workbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func eventBody(t *testing.T, data []byte) *bytes.Reader {
	t.Helper()
	raw, err := json.Marshal(handler.Request{FileBase64: base64.StdEncoding.EncodeToString(data)})
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 2, body.Validations.MaxConcurrent)
	assert.Equal(t, "Project Definition", body.UniqueColumn)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestValidate_Healthy(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	data := workbook(t, testHeaders, []any{"F1", "Unit A", "P-001", "First"})

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/validate", eventBody(t, data)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(handler.HeaderValidationID))
	assert.JSONEq(t, `{"status":"success","kind":"ok","message":"The health of excel file is OK."}`, rec.Body.String())
}

func TestValidate_RuleViolations(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	data := workbook(t,
		testHeaders,
		[]any{"F1", "Unit A", "P-001", "First"},
		[]any{"F1", "", "P-001", "Second"},
	)

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/validate", eventBody(t, data)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var result core.ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, []string{
		"The column 'Project Definition' has duplicated values.",
		"Found empty cells.",
	}, result.Errors)
}

func TestInvoke_ReturnsEnvelope(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/invoke", eventBody(t, []byte("garbage"))))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp handler.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var result core.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &result))
	assert.Equal(t, core.StatusError, result.Status)
	assert.Equal(t, core.KindParse, result.Kind)
	assert.NotEmpty(t, result.Message)
}

func TestValidate_MalformedJSON(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/validate", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "REQ003", body.Code)
}

func TestValidate_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 16
	s, _ := newTestServer(t, cfg)

	big := strings.Repeat("A", bodyOverhead+1024)
	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/validate",
		strings.NewReader(`{"file_base64":"`+big+`"}`)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "FILE001", body.Code)
}

func TestValidate_Busy(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxConcurrent = 1
	s, limiter := newTestServer(t, cfg)

	require.True(t, limiter.TryAcquire())
	defer limiter.Release()

	data := workbook(t, testHeaders)
	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/validate", eventBody(t, data)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "BUSY001", body.Code)
	assert.Equal(t, "System is busy validating other files (Code: BUSY001). Please wait a moment and try again", body.Error)
	assert.Equal(t, "System is busy validating other files", body.Message)
}

func TestWriteError_LogLevel(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
		code  string
	}{
		{"catalogued", core.ErrTooManyValidations, "WARN", "BUSY001"},
		{"unknown", errors.New("disk on fire"), "ERROR", "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			prev := slog.Default()
			slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
			defer slog.SetDefault(prev)

			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodPost, "/api/validate", nil), tt.err, http.StatusBadRequest)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, tt.code, entry["code"])
			assert.Equal(t, "/api/validate", entry["path"])

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, core.FormatUserError(tt.err), body.Error)
		})
	}
}

func TestUpload(t *testing.T) {
	s, limiter := newTestServer(t, testConfig())

	tests := []struct {
		name     string
		filename string
		content  []byte
		fields   map[string]string
		want     int
	}{
		{
			name:     "xlsx by extension",
			filename: "projects.xlsx",
			content:  workbook(t, testHeaders, []any{"F1", "Unit A", "P-001", "First"}),
			want:     http.StatusOK,
		},
		{
			name:     "csv by extension",
			filename: "projects.CSV",
			content:  []byte("Funder Hierarchy,Responsible Unit Name,Project Definition,PD Description\nF1,Unit A,P-001,First\n"),
			want:     http.StatusOK,
		},
		{
			name:     "format field overrides extension",
			filename: "projects.txt",
			content:  []byte("Funder Hierarchy,Responsible Unit Name,Project Definition,PD Description\nF1,,P-001,First\n"),
			fields:   map[string]string{"format": "csv"},
			want:     http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			part, err := mw.CreateFormFile("file", tt.filename)
			require.NoError(t, err)
			_, err = part.Write(tt.content)
			require.NoError(t, err)
			for k, v := range tt.fields {
				require.NoError(t, mw.WriteField(k, v))
			}
			require.NoError(t, mw.Close())

			req := httptest.NewRequest(http.MethodPost, "/api/validate/upload", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())

			rec := serve(s, req)

			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get(handler.HeaderValidationID))
		})
	}

	assert.Equal(t, 0, limiter.ActiveCount())
}

func TestUpload_NoFile(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("format", "xlsx"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/validate/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := serve(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "FILE007", body.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s, _ := newTestServer(t, cfg)
	data := workbook(t, testHeaders, []any{"F1", "Unit A", "P-001", "First"})

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/validate", eventBody(t, data)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/validate", eventBody(t, data))
	req.Header.Set("X-API-Key", "secret")
	rec = serve(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health is not behind auth")
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	s, _ := newTestServer(t, cfg)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/validate", strings.NewReader("{}"))
		req.RemoteAddr = "198.51.100.7:1234"
		return serve(s, req)
	}

	assert.Equal(t, http.StatusBadRequest, send().Code)
	assert.Equal(t, http.StatusBadRequest, send().Code)

	rec := send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE001", body.Code)
}

func TestNotFound(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "REQ404")
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	defer rl.stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	ok, _ := rl.allow("a")
	assert.True(t, ok)

	ok, wait := rl.allow("a")
	assert.False(t, ok)
	assert.InDelta(t, float64(time.Minute), float64(wait), float64(time.Millisecond))

	ok, _ = rl.allow("b")
	assert.True(t, ok, "limits are per client")

	now = now.Add(time.Minute + time.Second)
	ok, _ = rl.allow("a")
	assert.True(t, ok)
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := newRateLimiter(4, time.Minute)
	defer rl.stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		ok, _ := rl.allow("a")
		require.True(t, ok, "request %d", i+1)
	}

	ok, wait := rl.allow("a")
	assert.False(t, ok)
	assert.InDelta(t, float64(15*time.Second), float64(wait), float64(time.Millisecond))

	ok, wait = rl.allow("a")
	assert.False(t, ok, "a rejected request does not consume a token")
	assert.InDelta(t, float64(15*time.Second), float64(wait), float64(time.Millisecond))

	now = now.Add(16 * time.Second)
	ok, _ = rl.allow("a")
	assert.True(t, ok, "one token refills every window/rate")
	ok, _ = rl.allow("a")
	assert.False(t, ok)
}

func TestFormatFromName(t *testing.T) {
	assert.Equal(t, "csv", formatFromName("a.csv"))
	assert.Equal(t, "csv", formatFromName("A.CSV"))
	assert.Equal(t, "xlsx", formatFromName("a.xlsx"))
	assert.Equal(t, "xlsx", formatFromName("noext"))
}
