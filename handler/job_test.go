package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Yair4430/CertiGranja-2.0/model"
	"github.com/Yair4430/CertiGranja-2.0/service"
	"github.com/Yair4430/CertiGranja-2.0/sheet"
)

// fakeBatches records calls and returns canned errors.
type fakeBatches struct {
	store     *service.JobStore
	createErr error
	startErr  error
	deleteErr error
	folderErr error
	started   []string
	uploaded  []byte
}

func (f *fakeBatches) CreateFolder(name string) (string, error) {
	if f.folderErr != nil {
		return "", f.folderErr
	}
	return "/downloads/" + name, nil
}

func (f *fakeBatches) CreateJob(_ context.Context, owner, filename string, r io.Reader, folder string) (*model.Job, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.uploaded, _ = io.ReadAll(r)
	job := &model.Job{ID: "new-job", Owner: owner, Filename: filename, Destination: "/downloads/" + folder, Status: model.JobPending, CreatedAt: time.Now()}
	f.store.Save(job)
	return f.store.Get(job.ID), nil
}

func (f *fakeBatches) Start(_ context.Context, id string) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, id)
	return nil
}

func (f *fakeBatches) Delete(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.store.Delete(id)
	return nil
}

func setupJobRouter(batches *fakeBatches, username string) *gin.Engine {
	h := NewJobHandler(batches, batches.store)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("username", username)
		c.Next()
	})
	router.POST("/folders", h.CreateFolder)
	router.POST("/jobs", h.Upload)
	router.GET("/jobs", h.List)
	router.GET("/jobs/:id", h.Get)
	router.POST("/jobs/:id/start", h.Start)
	router.DELETE("/jobs/:id", h.Delete)
	router.GET("/jobs/:id/results", h.Results)
	router.GET("/jobs/:id/merged", h.Merged)
	return router
}

func newFakeBatches() *fakeBatches {
	return &fakeBatches{store: service.NewJobStore(100)}
}

func multipartUpload(t *testing.T, filename string, content []byte, folder string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	w.WriteField("folder", folder)
	w.Close()

	req := httptest.NewRequest("POST", "/jobs", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestJobHandlerUpload(t *testing.T) {
	batches := newFakeBatches()
	router := setupJobRouter(batches, "operador")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartUpload(t, "lote.xlsx", []byte("xlsx-bytes"), "marzo"))

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var job model.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if job.Owner != "operador" || job.Destination != "/downloads/marzo" {
		t.Errorf("Unexpected job: %+v", job)
	}
	if string(batches.uploaded) != "xlsx-bytes" {
		t.Errorf("Expected upload to reach the service, got %q", batches.uploaded)
	}
}

func TestJobHandlerUploadErrors(t *testing.T) {
	validation := &sheet.ValidationError{Violations: []sheet.Violation{
		{Row: 2, Column: sheet.ColDay, Message: "día fuera de rango"},
	}}

	tests := []struct {
		name           string
		filename       string
		createErr      error
		expectedStatus int
	}{
		{"wrong extension", "lote.csv", nil, http.StatusBadRequest},
		{"validation", "lote.xlsx", validation, http.StatusBadRequest},
		{"bad header", "lote.xlsx", sheet.ErrHeader, http.StatusBadRequest},
		{"empty", "lote.xlsx", sheet.ErrEmpty, http.StatusBadRequest},
		{"bad folder", "lote.xlsx", service.ErrInvalidFolder, http.StatusBadRequest},
		{"internal", "lote.xlsx", os.ErrPermission, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := newFakeBatches()
			batches.createErr = tt.createErr
			router := setupJobRouter(batches, "operador")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, multipartUpload(t, tt.filename, []byte("x"), "f"))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestJobHandlerUploadValidationBody(t *testing.T) {
	batches := newFakeBatches()
	batches.createErr = &sheet.ValidationError{Violations: make([]sheet.Violation, 7)}
	router := setupJobRouter(batches, "operador")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartUpload(t, "lote.xlsx", []byte("x"), "f"))

	var body struct {
		Errores []sheet.Violation `json:"errores"`
		Total   int               `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(body.Errores) != sheet.MaxReported || body.Total != 7 {
		t.Errorf("Expected %d reported of 7, got %d of %d", sheet.MaxReported, len(body.Errores), body.Total)
	}
}

func TestJobHandlerUploadNoFile(t *testing.T) {
	router := setupJobRouter(newFakeBatches(), "operador")

	req := httptest.NewRequest("POST", "/jobs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestJobHandlerListAndGet(t *testing.T) {
	batches := newFakeBatches()
	batches.store.Save(&model.Job{ID: "mine", Owner: "operador", CreatedAt: time.Now()})
	batches.store.Save(&model.Job{ID: "theirs", Owner: "otro", CreatedAt: time.Now()})
	router := setupJobRouter(batches, "operador")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/jobs", nil))

	var list map[string][]map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(list["jobs"]) != 1 {
		t.Errorf("Expected 1 job for operador, got %d", len(list["jobs"]))
	}

	tests := []struct {
		id             string
		expectedStatus int
	}{
		{"mine", http.StatusOK},
		{"theirs", http.StatusNotFound},
		{"missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/jobs/"+tt.id, nil))
		if w.Code != tt.expectedStatus {
			t.Errorf("GET /jobs/%s: expected %d, got %d", tt.id, tt.expectedStatus, w.Code)
		}
	}
}

func TestJobHandlerListEmpty(t *testing.T) {
	router := setupJobRouter(newFakeBatches(), "operador")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/jobs", nil))

	if w.Body.String() != `{"jobs":[]}` {
		t.Errorf("Expected empty list, got %s", w.Body.String())
	}
}

func TestJobHandlerStart(t *testing.T) {
	tests := []struct {
		name           string
		startErr       error
		expectedStatus int
	}{
		{"accepted", nil, http.StatusAccepted},
		{"busy", service.ErrBusy, http.StatusConflict},
		{"vanished", service.ErrJobNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := newFakeBatches()
			batches.startErr = tt.startErr
			batches.store.Save(&model.Job{ID: "j1", Owner: "operador", CreatedAt: time.Now()})
			router := setupJobRouter(batches, "operador")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("POST", "/jobs/j1/start", nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestJobHandlerStartOtherOwner(t *testing.T) {
	batches := newFakeBatches()
	batches.store.Save(&model.Job{ID: "j1", Owner: "otro", CreatedAt: time.Now()})
	router := setupJobRouter(batches, "operador")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/jobs/j1/start", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	if len(batches.started) != 0 {
		t.Error("Expected no batch to start for another owner's job")
	}
}

func TestJobHandlerDelete(t *testing.T) {
	batches := newFakeBatches()
	batches.store.Save(&model.Job{ID: "j1", Owner: "operador", CreatedAt: time.Now()})
	router := setupJobRouter(batches, "operador")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/jobs/j1", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if batches.store.Get("j1") != nil {
		t.Error("Expected job to be deleted")
	}

	batches.store.Save(&model.Job{ID: "j2", Owner: "operador", CreatedAt: time.Now()})
	batches.deleteErr = service.ErrBusy
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/jobs/j2", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for running job, got %d", w.Code)
	}
}

func TestJobHandlerArtifacts(t *testing.T) {
	dir := t.TempDir()
	results := filepath.Join(dir, "resultados_certificados.xlsx")
	if err := os.WriteFile(results, []byte("xlsx"), 0o644); err != nil {
		t.Fatal(err)
	}

	batches := newFakeBatches()
	batches.store.Save(&model.Job{
		ID:          "j1",
		Owner:       "operador",
		ResultsPath: results,
		MergedPath:  filepath.Join(dir, "gone.pdf"),
		CreatedAt:   time.Now(),
	})
	router := setupJobRouter(batches, "operador")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/jobs/j1/results", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "xlsx" {
		t.Errorf("Unexpected body %q", w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); cd == "" {
		t.Error("Expected attachment disposition")
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/jobs/j1/merged", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing merged file, got %d", w.Code)
	}
}

func TestJobHandlerCreateFolder(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		folderErr      error
		expectedStatus int
	}{
		{"created", `{"nombre":"marzo"}`, nil, http.StatusOK},
		{"missing name", `{}`, nil, http.StatusBadRequest},
		{"invalid name", `{"nombre":".."}`, service.ErrInvalidFolder, http.StatusBadRequest},
		{"filesystem error", `{"nombre":"x"}`, os.ErrPermission, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := newFakeBatches()
			batches.folderErr = tt.folderErr
			router := setupJobRouter(batches, "operador")

			req := httptest.NewRequest("POST", "/folders", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}
