package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Yair4430/CertiGranja-2.0/automation"
	"github.com/Yair4430/CertiGranja-2.0/config"
	"github.com/Yair4430/CertiGranja-2.0/merge"
	"github.com/Yair4430/CertiGranja-2.0/model"
	"github.com/Yair4430/CertiGranja-2.0/pkg/logger"
	"github.com/Yair4430/CertiGranja-2.0/portal"
	"github.com/Yair4430/CertiGranja-2.0/reconcile"
	"github.com/Yair4430/CertiGranja-2.0/sheet"
)

var (
	// ErrBusy is returned while another batch holds the browser session.
	ErrBusy        = errors.New("a batch is already running")
	ErrJobNotFound = errors.New("job not found")
)

// Result is everything a finished batch produced.
type Result struct {
	Outcomes    []model.Outcome
	Summary     map[model.Status]int
	ResultsPath string
	MergedPath  string
	Merge       *merge.Report
}

// BatchService runs batches one at a time: the portal pass, then the
// spreadsheet and merged document built side by side.
type BatchService struct {
	cfg        *config.Config
	opener     portal.Opener
	store      *JobStore
	archive    Archiver
	reconciler *reconcile.Reconciler
	merger     *merge.Merger

	running sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	log *slog.Logger
}

// NewBatchService wires the pipeline. archive may be nil.
func NewBatchService(cfg *config.Config, opener portal.Opener, store *JobStore, archive Archiver) (*BatchService, error) {
	rules, err := merge.RulesFromConfig(cfg.Merge)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchService{
		cfg:        cfg,
		opener:     opener,
		store:      store,
		archive:    archive,
		reconciler: reconcile.New(cfg.Storage.WorkDir, cfg.Output.ResultsFile),
		merger:     merge.New(merge.PlainText{}, merge.PDFCPU{}, rules, cfg.Output.MergedFile),
		baseCtx:    ctx,
		cancel:     cancel,
		log:        logger.New("batch"),
	}, nil
}

// Close cancels running batches and waits for them to wind down.
func (s *BatchService) Close() {
	s.cancel()
	s.wg.Wait()
}

// CreateJob stores an uploaded sheet, validates it and registers a pending
// job writing into folder. Validation errors are returned as is.
func (s *BatchService) CreateJob(ctx context.Context, owner, filename string, r io.Reader, folder string) (*model.Job, error) {
	destination, err := s.CreateFolder(folder)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.cfg.Storage.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	id := uuid.New().String()
	inputPath := filepath.Join(s.cfg.Storage.UploadDir, id+strings.ToLower(filepath.Ext(filename)))
	if err := saveUpload(inputPath, r); err != nil {
		return nil, err
	}

	records, err := sheet.ReadFile(inputPath, time.Now())
	if err != nil {
		os.Remove(inputPath)
		return nil, err
	}

	now := time.Now()
	job := &model.Job{
		ID:          id,
		Owner:       owner,
		Filename:    filename,
		InputPath:   inputPath,
		Destination: destination,
		Status:      model.JobPending,
		Total:       len(records),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.store.Save(job)

	logger.Info(ctx, "job created", "job_id", id, "records", len(records), "destination", destination)
	return s.store.Get(id), nil
}

func saveUpload(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to save upload: %w", err)
	}
	return f.Close()
}

// Start runs a pending job in the background. It returns ErrBusy at once if
// another batch is running.
func (s *BatchService) Start(ctx context.Context, id string) error {
	job := s.store.Get(id)
	if job == nil {
		return ErrJobNotFound
	}
	if !s.running.TryLock() {
		return ErrBusy
	}

	s.store.Update(id, func(j *model.Job) {
		j.Status = model.JobRunning
		j.ErrorMsg = ""
		j.Processed = 0
	})

	runCtx := logger.WithJob(s.baseCtx, id)
	if rid, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		runCtx = context.WithValue(runCtx, logger.RequestIDKey, rid)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Unlock()
		s.runJob(runCtx, job)
	}()
	return nil
}

func (s *BatchService) runJob(ctx context.Context, job *model.Job) {
	log := logger.WithContext(ctx)

	records, err := sheet.ReadFile(job.InputPath, time.Now())
	if err != nil {
		log.Error("failed to read batch", "error", err)
		s.store.UpdateStatus(job.ID, model.JobFailed, err.Error())
		return
	}

	res, runErr := s.process(ctx, records, job.Destination, func(done, total int) {
		s.store.UpdateProgress(job.ID, done, total)
	})

	var resultsURL, mergedURL string
	if res != nil && s.archive != nil {
		resultsURL = s.archiveFile(ctx, job.ID, res.ResultsPath)
		mergedURL = s.archiveFile(ctx, job.ID, res.MergedPath)
	}

	s.store.Update(job.ID, func(j *model.Job) {
		if res != nil {
			j.Summary = res.Summary
			j.Processed = len(res.Outcomes)
			j.ResultsPath = res.ResultsPath
			j.MergedPath = res.MergedPath
			j.ResultsURL = resultsURL
			j.MergedURL = mergedURL
		}
		if runErr != nil {
			j.Status = model.JobFailed
			j.ErrorMsg = runErr.Error()
			return
		}
		j.Status = model.JobCompleted
	})

	if runErr != nil {
		log.Error("batch failed", "error", runErr)
		return
	}
	log.Info("batch completed", "records", len(records))
}

func (s *BatchService) archiveFile(ctx context.Context, jobID, path string) string {
	if path == "" {
		return ""
	}
	url, err := s.archive.Archive(context.WithoutCancel(ctx), jobID, path)
	if err != nil {
		logger.Warn(ctx, "failed to archive artifact", "file", filepath.Base(path), "error", err)
		return ""
	}
	return url
}

// Process runs a batch synchronously. It is the entry point for callers that
// do not track jobs.
func (s *BatchService) Process(ctx context.Context, records []model.Record, destination string, onProgress func(done, total int)) (*Result, error) {
	if !s.running.TryLock() {
		return nil, ErrBusy
	}
	defer s.running.Unlock()
	return s.process(ctx, records, destination, onProgress)
}

func (s *BatchService) process(ctx context.Context, records []model.Record, destination string, onProgress func(done, total int)) (*Result, error) {
	log := logger.WithContext(ctx)
	downloadDir := s.cfg.Storage.DownloadDir
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to prepare download dir: %w", err)
	}

	driver, err := s.opener.Open(ctx, downloadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open portal session: %w", err)
	}
	var closeOnce sync.Once
	closeDriver := func() {
		closeOnce.Do(func() {
			if err := driver.Close(); err != nil {
				log.Warn("failed to close portal session", "error", err)
			}
		})
	}
	defer closeDriver()

	opts := automation.OptionsFromConfig(s.cfg.Automation)
	opts.OnProgress = onProgress
	collector := automation.NewCollector(downloadDir, s.cfg.Automation.PollInterval(), s.cfg.Automation.MaxPolls)

	outcomes, runErr := automation.NewController(driver, collector, opts).Run(ctx, records, destination)
	closeDriver()

	res := &Result{Outcomes: outcomes, Summary: model.Tally(outcomes)}
	// Partial outcomes are still written out, even after cancellation.
	finishErr := s.finish(context.WithoutCancel(ctx), records, res, destination)
	return res, errors.Join(runErr, finishErr)
}

func (s *BatchService) finish(ctx context.Context, records []model.Record, res *Result, destination string) error {
	var g errgroup.Group

	g.Go(func() error {
		path, err := s.reconciler.Reconcile(records, res.Outcomes, destination)
		if err != nil {
			return err
		}
		res.ResultsPath = path
		return nil
	})

	if destination != "" {
		g.Go(func() error {
			report, err := s.merger.Merge(ctx, destination)
			res.Merge = report
			if errors.Is(err, merge.ErrNoPages) {
				logger.Warn(ctx, "no certificates to merge", "destination", destination)
				return nil
			}
			if err != nil {
				return fmt.Errorf("merge: %w", err)
			}
			res.MergedPath = report.Output
			return nil
		})
	}

	return g.Wait()
}

// Delete removes a finished job, its upload and any archived artifacts.
func (s *BatchService) Delete(ctx context.Context, id string) error {
	job := s.store.Get(id)
	if job == nil {
		return ErrJobNotFound
	}
	if job.Status == model.JobRunning {
		return ErrBusy
	}

	if job.InputPath != "" {
		if err := os.Remove(job.InputPath); err != nil && !os.IsNotExist(err) {
			logger.Warn(ctx, "failed to remove upload", "job_id", id, "error", err)
		}
	}
	if d, ok := s.archive.(interface {
		DeleteJob(ctx context.Context, jobID string) error
	}); ok {
		if err := d.DeleteJob(ctx, id); err != nil {
			logger.Warn(ctx, "failed to delete archived files", "job_id", id, "error", err)
		}
	}

	s.store.Delete(id)
	return nil
}

// Store exposes the job store backing the service.
func (s *BatchService) Store() *JobStore {
	return s.store
}
