package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"lecturemate/llm"
	"lecturemate/llm/providers"
	"lecturemate/llm/retry"
	"lecturemate/service"
	"lecturemate/store"
)

type stubGen struct{ reply string }

func (g stubGen) Generate(context.Context, string) (string, error) { return g.reply, nil }

func setupTestServer(t *testing.T, provider llm.Provider) (*gin.Engine, *service.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.New(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	svc := service.New(service.Deps{
		Store:    st,
		Provider: providers.Config{Provider: provider, APIKey: "test-key"},
		Policy:   retry.Policy{MaxAttempts: 1, Sleep: func(context.Context, time.Duration) error { return nil }},
		NewGenerator: func(context.Context, providers.Config) (providers.Generator, error) {
			return stubGen{reply: "model reply"}, nil
		},
	})
	t.Cleanup(func() { svc.Close(context.Background()) })

	return newEngine(svc, Options{MaxUploadBytes: 1 << 20}), svc
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for name, content := range files {
		fw, err := w.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write([]byte(content))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func do(engine *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func jsonRequest(method, path string, payload any) *http.Request {
	data, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthHandler(t *testing.T) {
	engine, _ := setupTestServer(t, llm.ProviderExtractOnly)

	rec, body := do(engine, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ok, exists := body["ok"].(bool); !exists || !ok {
		t.Fatalf("expected ok=true, body=%v", body)
	}
}

func TestUploadAndCategoryLifecycle(t *testing.T) {
	engine, _ := setupTestServer(t, llm.ProviderExtractOnly)

	buf, ct := multipartBody(t, nil, map[string]string{"第1回.txt": "intro", "notes.exe": "bad"})
	req := httptest.NewRequest(http.MethodPost, "/api/categories/physics/files", buf)
	req.Header.Set("Content-Type", ct)
	rec, body := do(engine, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	if body["succeeded"].(float64) != 1 || len(body["problems"].([]any)) != 1 {
		t.Fatalf("upload body = %v", body)
	}

	_, body = do(engine, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	if cats := body["categories"].([]any); len(cats) != 1 || cats[0] != "physics" {
		t.Fatalf("categories = %v", body)
	}

	_, body = do(engine, httptest.NewRequest(http.MethodGet, "/api/categories/physics/text", nil))
	if !strings.Contains(body["text"].(string), "intro") {
		t.Fatalf("text = %v", body)
	}

	rec, _ = do(engine, httptest.NewRequest(http.MethodDelete, "/api/categories/physics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	rec, _ = do(engine, httptest.NewRequest(http.MethodGet, "/api/categories/physics/files", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("files after delete: expected 404, got %d", rec.Code)
	}
	rec, _ = do(engine, httptest.NewRequest(http.MethodPost, "/api/categories/physics/restore", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("restore: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	rec, _ = do(engine, httptest.NewRequest(http.MethodPost, "/api/categories/physics/restore", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second restore: expected 404, got %d", rec.Code)
	}
}

func TestUploadMissingFile(t *testing.T) {
	engine, _ := setupTestServer(t, llm.ProviderExtractOnly)

	rec, body := do(engine, httptest.NewRequest(http.MethodPost, "/api/categories/physics/files", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body["error"] == nil {
		t.Fatalf("expected error message in response")
	}
}

func TestSummaryJobAndExport(t *testing.T) {
	engine, svc := setupTestServer(t, llm.ProviderGemini)

	buf, ct := multipartBody(t, map[string]string{"category": "physics"}, map[string]string{"lecture1.txt": "mechanics"})
	req := httptest.NewRequest(http.MethodPost, "/api/summaries", buf)
	req.Header.Set("Content-Type", ct)
	rec, body := do(engine, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}
	id := body["job"].(map[string]any)["id"].(string)

	task, ok := svc.Jobs().Get(id)
	if !ok {
		t.Fatalf("job %s not registered", id)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := task.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	_, body = do(engine, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil))
	if body["status"] != "finished" || body["result"].(map[string]any)["summary"] != "model reply" {
		t.Fatalf("job = %v", body)
	}

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/export?category=physics&format=md", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "physics_summary_") {
		t.Fatalf("disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if !strings.Contains(rec.Body.String(), "model reply") {
		t.Fatalf("export body = %s", rec.Body)
	}

	_, body = do(engine, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if entries := body["entries"].([]any); len(entries) != 1 {
		t.Fatalf("history = %v", body)
	}
}

func TestSummaryWithoutMaterial(t *testing.T) {
	engine, _ := setupTestServer(t, llm.ProviderExtractOnly)

	rec, _ := do(engine, jsonRequest(http.MethodPost, "/api/summaries", map[string]string{"category": "empty"}))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body)
	}
}

func TestAsk(t *testing.T) {
	engine, _ := setupTestServer(t, llm.ProviderOpenAI)

	rec, body := do(engine, jsonRequest(http.MethodPost, "/api/ask", map[string]string{"category": "math", "question": "what?"}))
	if rec.Code != http.StatusOK || body["answer"] != "資料が読み込まれていません。" {
		t.Fatalf("ask = %d %v", rec.Code, body)
	}

	rec, _ = do(engine, jsonRequest(http.MethodPost, "/api/ask", map[string]string{"category": "math", "question": "  "}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank question: expected 400, got %d", rec.Code)
	}

	rec, _ = do(engine, jsonRequest(http.MethodPost, "/api/ask", map[string]string{"category": "math", "question": "q", "provider": "extract_only"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("extract_only: expected 400, got %d", rec.Code)
	}
}

func TestWebDisabled(t *testing.T) {
	engine, _ := setupTestServer(t, llm.ProviderGemini)

	rec, _ := do(engine, jsonRequest(http.MethodPost, "/api/sources/fetch", map[string]string{"url": "https://example.com"}))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestExportErrors(t *testing.T) {
	engine, _ := setupTestServer(t, llm.ProviderGemini)

	rec, _ := do(engine, httptest.NewRequest(http.MethodGet, "/api/export?category=physics&format=docx", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad format: expected 400, got %d", rec.Code)
	}
	rec, _ = do(engine, httptest.NewRequest(http.MethodGet, "/api/export?category=physics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("no summary: expected 404, got %d", rec.Code)
	}
}
