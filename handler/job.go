package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Yair4430/CertiGranja-2.0/middleware"
	"github.com/Yair4430/CertiGranja-2.0/model"
	"github.com/Yair4430/CertiGranja-2.0/pkg/logger"
	"github.com/Yair4430/CertiGranja-2.0/service"
	"github.com/Yair4430/CertiGranja-2.0/sheet"
)

// Batches is the part of the batch service the HTTP layer drives.
type Batches interface {
	CreateFolder(name string) (string, error)
	CreateJob(ctx context.Context, owner, filename string, r io.Reader, folder string) (*model.Job, error)
	Start(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type JobHandler struct {
	batches Batches
	store   *service.JobStore
}

func NewJobHandler(batches Batches, store *service.JobStore) *JobHandler {
	return &JobHandler{batches: batches, store: store}
}

type FolderRequest struct {
	Name string `json:"nombre" binding:"required"`
}

// CreateFolder creates a destination folder under the downloads root.
func (h *JobHandler) CreateFolder(c *gin.Context) {
	var req FolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No se proporcionó un nombre de carpeta"})
		return
	}

	path, err := h.batches.CreateFolder(req.Name)
	if err != nil {
		if errors.Is(err, service.ErrInvalidFolder) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Nombre de carpeta inválido"})
			return
		}
		logger.Error(c.Request.Context(), "failed to create folder", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo crear la carpeta"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"mensaje": "Carpeta creada en: " + path,
		"ruta":    path,
	})
}

// Upload validates a batch sheet and registers it as a pending job.
func (h *JobHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No se envió ningún archivo"})
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Solo se permiten archivos .xlsx"})
		return
	}

	folder := c.PostForm("folder")
	job, err := h.batches.CreateJob(c.Request.Context(), middleware.GetUsername(c), header.Filename, file, folder)
	if err != nil {
		var verr *sheet.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   verr.Error(),
				"errores": verr.Reported(),
				"total":   len(verr.Violations),
			})
		case errors.Is(err, sheet.ErrHeader), errors.Is(err, sheet.ErrEmpty):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidFolder):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Nombre de carpeta inválido"})
		default:
			logger.Error(c.Request.Context(), "failed to create job", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo procesar el archivo"})
		}
		return
	}

	c.JSON(http.StatusCreated, job)
}

// Start launches the automation for a job.
func (h *JobHandler) Start(c *gin.Context) {
	job := h.owned(c)
	if job == nil {
		return
	}

	err := h.batches.Start(c.Request.Context(), job.ID)
	switch {
	case errors.Is(err, service.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "Ya hay una automatización en curso"})
		return
	case errors.Is(err, service.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Lote no encontrado"})
		return
	case err != nil:
		logger.Error(c.Request.Context(), "failed to start job", "job_id", job.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo iniciar la automatización"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":     job.ID,
		"status": model.JobRunning,
	})
}

// List returns the operator's jobs, newest first.
func (h *JobHandler) List(c *gin.Context) {
	jobs := h.store.GetByOwner(middleware.GetUsername(c))
	if jobs == nil {
		jobs = []*model.Job{}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// Get returns a single job with its progress.
func (h *JobHandler) Get(c *gin.Context) {
	if job := h.owned(c); job != nil {
		c.JSON(http.StatusOK, job)
	}
}

// Delete removes a job that is not running.
func (h *JobHandler) Delete(c *gin.Context) {
	job := h.owned(c)
	if job == nil {
		return
	}

	if err := h.batches.Delete(c.Request.Context(), job.ID); err != nil {
		if errors.Is(err, service.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": "El lote está en ejecución"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Lote no encontrado"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"mensaje": "Lote eliminado"})
}

// Results sends the reconciled spreadsheet.
func (h *JobHandler) Results(c *gin.Context) {
	if job := h.owned(c); job != nil {
		sendArtifact(c, job.ResultsPath)
	}
}

// Merged sends the merged certificate document.
func (h *JobHandler) Merged(c *gin.Context) {
	if job := h.owned(c); job != nil {
		sendArtifact(c, job.MergedPath)
	}
}

func sendArtifact(c *gin.Context, path string) {
	if path == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "El archivo no está disponible."})
		return
	}
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "El archivo no está disponible."})
		return
	}
	c.Header("Content-Type", service.ContentType(path))
	c.FileAttachment(path, filepath.Base(path))
}

// owned loads the job named in the path and checks it belongs to the caller.
// It writes the 404 itself and returns nil when it does not.
func (h *JobHandler) owned(c *gin.Context) *model.Job {
	job := h.store.Get(c.Param("id"))
	if job == nil || job.Owner != middleware.GetUsername(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Lote no encontrado"})
		return nil
	}
	return job
}
