package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/braincheck/internal/preprocess"
	"github.com/example/braincheck/internal/screening"
)

type stubScreener struct {
	outcome *screening.Outcome
	err     error
	calls   int
}

func (s *stubScreener) Screen(ctx context.Context, imageBytes []byte) (*screening.Outcome, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.outcome, nil
}

func newRouter(svc Screener) *gin.Engine {
	return newRouterWithLimit(svc, DefaultMaxUploadSize)
}

func newRouterWithLimit(svc Screener, maxUpload int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.MaxMultipartMemory = maxUpload
	RegisterRoutes(router, svc, zap.NewNop(), maxUpload)
	return router
}

func buildMultipartBody(t *testing.T, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="scan.png"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

func postImage(t *testing.T, router *gin.Engine, contentType string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()

	body, formContentType := buildMultipartBody(t, contentType, payload)
	req := httptest.NewRequest(http.MethodPost, "/predict", body)
	req.Header.Set("Content-Type", formContentType)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealth(t *testing.T) {
	router := newRouter(&stubScreener{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
}

func TestIndexServesUploadPage(t *testing.T) {
	router := newRouter(&stubScreener{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte(`type="file"`)) {
		t.Fatal("expected the page to contain a file upload control")
	}
}

func TestPredictReturnsClassification(t *testing.T) {
	svc := &stubScreener{outcome: &screening.Outcome{
		RequestID:  "req-1",
		Label:      "NonDemented",
		Confidence: 0.93,
		Scores:     map[string]float32{"NonDemented": 0.93},
	}}
	router := newRouter(svc)

	resp := postImage(t, router, "image/png", []byte("fake png bytes"))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.Code, resp.Body.String())
	}

	var payload struct {
		RequestID  string  `json:"request_id"`
		Label      string  `json:"label"`
		Confidence float32 `json:"confidence"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Label != "NonDemented" {
		t.Fatalf("expected NonDemented, got %s", payload.Label)
	}
	if payload.RequestID != "req-1" {
		t.Fatalf("unexpected request id: %s", payload.RequestID)
	}
}

func TestPredictRejectsMissingFile(t *testing.T) {
	router := newRouter(&stubScreener{})

	req := httptest.NewRequest(http.MethodPost, "/predict", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
}

func TestPredictRejectsLargeUpload(t *testing.T) {
	svc := &stubScreener{}
	router := newRouter(svc)

	resp := postImage(t, router, "image/png", bytes.Repeat([]byte("a"), DefaultMaxUploadSize+1))

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("expected screener to be skipped, got %d calls", svc.calls)
	}
}

func TestPredictEnforcesConfiguredUploadLimit(t *testing.T) {
	svc := &stubScreener{outcome: &screening.Outcome{Label: "NonDemented", Confidence: 0.9}}
	router := newRouterWithLimit(svc, 1024)

	resp := postImage(t, router, "image/png", bytes.Repeat([]byte("a"), 1025))
	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d under a 1KB limit, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("expected screener to be skipped, got %d calls", svc.calls)
	}

	if resp := postImage(t, router, "image/png", bytes.Repeat([]byte("a"), 512)); resp.Code != http.StatusOK {
		t.Fatalf("expected upload within the limit to succeed, got %d", resp.Code)
	}
}

func TestRegisterRoutesDefaultsNonPositiveLimit(t *testing.T) {
	svc := &stubScreener{outcome: &screening.Outcome{Label: "NonDemented", Confidence: 0.9}}
	router := newRouterWithLimit(svc, 0)

	if resp := postImage(t, router, "image/png", []byte("scan")); resp.Code != http.StatusOK {
		t.Fatalf("expected default limit to accept a small upload, got %d", resp.Code)
	}
}

func TestPredictRejectsUnsupportedContentType(t *testing.T) {
	router := newRouter(&stubScreener{})

	resp := postImage(t, router, "text/plain", []byte("hello"))

	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status %d, got %d", http.StatusUnsupportedMediaType, resp.Code)
	}
}

func TestPredictConvertsInvalidImageToRejection(t *testing.T) {
	svc := &stubScreener{err: fmt.Errorf("screening.prepare: %w", preprocess.ErrInvalidImage)}
	router := newRouter(svc)

	resp := postImage(t, router, "image/png", []byte("garbage"))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("could not process image")) {
		t.Fatalf("expected rejection message, got %s", resp.Body.String())
	}
}

func TestPredictHidesInternalErrors(t *testing.T) {
	svc := &stubScreener{err: errors.New("onnx runtime exploded")}
	router := newRouter(svc)

	resp := postImage(t, router, "image/png", []byte("scan"))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, resp.Code)
	}
	if bytes.Contains(resp.Body.Bytes(), []byte("onnx")) {
		t.Fatalf("internal error leaked to client: %s", resp.Body.String())
	}
}

func TestProcessStaysResponsiveAfterRejection(t *testing.T) {
	svc := &stubScreener{outcome: &screening.Outcome{Label: "NonDemented", Confidence: 0.9}}
	router := newRouter(svc)

	if resp := postImage(t, router, "text/plain", []byte("junk")); resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected rejection, got %d", resp.Code)
	}
	if resp := postImage(t, router, "image/png", []byte("scan")); resp.Code != http.StatusOK {
		t.Fatalf("expected follow-up request to succeed, got %d", resp.Code)
	}
}
