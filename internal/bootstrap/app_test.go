package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"contract-analyzer/internal/analyses"
	"contract-analyzer/internal/llm"
	"contract-analyzer/internal/shared/auth"
	"contract-analyzer/internal/shared/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:               "dev",
		LocalStoreDir:     t.TempDir(),
		LLMProvider:       config.ProviderPlaceholder,
		LLMModel:          "gpt-3.5-turbo",
		DispatchMode:      config.DispatchInline,
		WorkerConcurrency: 2,
		JWTSecret:         "bootstrap-secret",
	}
}

func TestBuildInMemoryAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(context.Background(), testConfig(t), RoleAPI)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close(context.Background())

	if app.DB != nil || app.Router == nil || app.Service == nil || app.Dispatcher == nil {
		t.Fatalf("unexpected app %+v", app)
	}
	if _, ok := app.AnalysesRepo.(*analyses.MemoryRepo); !ok {
		t.Fatalf("expected memory repo, got %T", app.AnalysesRepo)
	}
	if _, ok := app.Analyzer.Completer.(llm.PlaceholderClient); !ok {
		t.Fatalf("expected placeholder completer, got %T", app.Analyzer.Completer)
	}
}

func TestBuildWorkerRequiresDatabase(t *testing.T) {
	if _, err := Build(context.Background(), testConfig(t), RoleWorker); err == nil {
		t.Fatal("expected worker without DATABASE_URL to fail")
	}
}

func TestBuildProductionRequiresSecrets(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = "production"
	if _, err := Build(context.Background(), cfg, RoleAPI); err == nil {
		t.Fatal("expected production without DATABASE_URL to fail")
	}
}

func TestUploadUnsupportedFileEndsFailed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(context.Background(), testConfig(t), RoleAPI)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	signer, _ := auth.NewHS256("bootstrap-secret", false)
	tok, _ := signer.Sign(auth.Claims{Sub: "user-1", Email: "pat@contracts.test"})

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, _ := w.CreateFormFile("files", "notes.txt")
	_, _ = part.Write([]byte("just some notes"))
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created []analyses.Analysis
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	job, err := app.AnalysesRepo.GetByID(context.Background(), created[0].ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != analyses.StatusFailed || job.Result != nil {
		t.Fatalf("expected FAILED without result, got %+v", job)
	}
}
