package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/cache"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/logging"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/metrics"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/tracing"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/workspace"
	"github.com/therealutkarshpriyadarshi/jifmaker/pkg/models"
)

var (
	// ErrQueueDisabled is returned by Submit when no queue is configured
	ErrQueueDisabled = errors.New("job queue is not configured")
	// ErrJobsDisabled is returned by job lookups when no job store is configured
	ErrJobsDisabled = errors.New("job store is not configured")
	// ErrJobNotFound is returned for unknown or expired job IDs
	ErrJobNotFound = errors.New("job not found")
)

// Prober reads source media properties
type Prober interface {
	ProbeSource(ctx context.Context, path string) (models.SourceMediaInfo, error)
}

// FrameExtractor renders a single still from a source
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, inputPath, outputPath string) error
}

// ProbeCache stores probe results keyed by cache.ProbeKey
type ProbeCache interface {
	GetProbe(ctx context.Context, key string) (models.SourceMediaInfo, bool, error)
	SetProbe(ctx context.Context, key string, info models.SourceMediaInfo, ttl time.Duration) error
}

// JobStore keeps job status between the API and the worker
type JobStore interface {
	SetJob(ctx context.Context, job *models.ConversionJob, ttl time.Duration) error
	GetJob(ctx context.Context, jobID string) (*models.ConversionJob, error)
}

// JobPublisher hands jobs to the worker
type JobPublisher interface {
	PublishJob(ctx context.Context, job *models.ConversionJob) error
}

// Publisher uploads finished outputs
type Publisher interface {
	Publish(ctx context.Context, filePath string) (key string, url string, err error)
}

// Options holds the optional collaborators of a Service. Nil fields disable
// the matching feature.
type Options struct {
	Cache     ProbeCache
	Jobs      JobStore
	Queue     JobPublisher
	Publisher Publisher
	ProbeTTL  time.Duration
	JobTTL    time.Duration
}

// Service orchestrates probing, previewing and converting
type Service struct {
	prober    Prober
	frames    FrameExtractor
	builder   *Builder
	runner    *Runner
	workspace *workspace.Workspace
	logger    *logging.Logger
	opts      Options
}

// NewService creates a new conversion service
func NewService(ffmpeg *FFmpeg, ws *workspace.Workspace, logger *logging.Logger, opts Options) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		prober:    ffmpeg,
		frames:    ffmpeg,
		builder:   NewBuilder(ffmpeg.Tools()),
		runner:    NewRunner(logger),
		workspace: ws,
		logger:    logger,
		opts:      opts,
	}
}

// Preview is the dry-run view of a conversion
type Preview struct {
	Command         string                 `json:"command"`
	Invocations     []models.Invocation    `json:"invocations"`
	OutputPath      string                 `json:"output_path"`
	Source          models.SourceMediaInfo `json:"source"`
	Estimate        SizeEstimate           `json:"estimate"`
	EstimatedSize   string                 `json:"estimated_size"`
	EffectiveWidth  int                    `json:"effective_width"`
	EffectiveHeight int                    `json:"effective_height"`
	CropWidth       int                    `json:"crop_width"`
	CropHeight      int                    `json:"crop_height"`
	Duration        float64                `json:"duration_seconds"`
}

// Probe returns the source properties of path, consulting the probe cache
// when one is configured
func (s *Service) Probe(ctx context.Context, path string) (models.SourceMediaInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		metrics.RecordProbe("failed")
		return models.SourceMediaInfo{}, &ProbeError{Path: path, Reason: "cannot stat input", Err: err}
	}

	key := cache.ProbeKey(path, stat.Size(), stat.ModTime())
	if s.opts.Cache != nil {
		info, ok, err := s.opts.Cache.GetProbe(ctx, key)
		switch {
		case err != nil:
			s.logger.WithError(err).Warn("probe cache lookup failed")
		case ok:
			metrics.RecordCacheHit("probe")
			s.logger.LogProbe(path, info.Width, info.Height, info.DurationSeconds, info.FrameRate, true, nil)
			return info, nil
		default:
			metrics.RecordCacheMiss("probe")
		}
	}

	info, err := s.prober.ProbeSource(ctx, path)
	s.logger.LogProbe(path, info.Width, info.Height, info.DurationSeconds, info.FrameRate, false, err)
	if err != nil {
		metrics.RecordProbe("failed")
		return models.SourceMediaInfo{}, err
	}
	metrics.RecordProbe("success")

	if s.opts.Cache != nil {
		if err := s.opts.Cache.SetProbe(ctx, key, info, s.opts.ProbeTTL); err != nil {
			s.logger.WithError(err).Warn("failed to cache probe")
		}
	}

	return info, nil
}

// Preview builds the command and size estimate without running anything.
// A source that cannot be probed yields an unknown estimate. Transient files
// are shown under the workspace's run directory placeholder, since Convert
// creates a fresh run directory each time.
func (s *Service) Preview(ctx context.Context, req models.ConversionRequest) (*Preview, error) {
	outputPath := resolveOutputPath(req)

	var source models.SourceMediaInfo
	if strings.TrimSpace(req.InputPath) != "" {
		info, err := s.Probe(ctx, req.InputPath)
		if err != nil {
			s.logger.WithError(err).Debug("previewing without source properties")
		} else {
			source = info
		}
	}

	if err := Validate(req.Params, source); err != nil {
		return nil, err
	}

	pipeline := s.builder.Build(req.Params, source, req.InputPath, outputPath, s.workspace.RunDirPlaceholder())
	estimate := EstimateOutputSize(req.Params, source)
	width, height := EffectiveDimensions(req.Params, source)

	preview := &Preview{
		Command:         pipeline.String(),
		Invocations:     pipeline.Invocations,
		OutputPath:      outputPath,
		Source:          source,
		Estimate:        estimate,
		EstimatedSize:   estimate.String(),
		EffectiveWidth:  width,
		EffectiveHeight: height,
		Duration:        EffectiveDuration(req.Params, source),
	}
	if source.Probed() {
		preview.CropWidth, preview.CropHeight = req.Params.CropSize(source)
	}

	return preview, nil
}

// Resize applies a width or height edit to params. With the aspect ratio
// maintained and a probed source the other dimension follows.
func (s *Service) Resize(ctx context.Context, inputPath string, params models.EncodeParameters, width int, height models.Height) (models.EncodeParameters, error) {
	var source models.SourceMediaInfo
	if strings.TrimSpace(inputPath) != "" {
		info, err := s.Probe(ctx, inputPath)
		if err != nil {
			return params, err
		}
		source = info
	}

	switch {
	case width > 0:
		params = params.WithWidth(width, source)
	case height != 0:
		params = params.WithHeight(height, source)
	}

	return params, nil
}

// Frame extracts the first frame of inputPath into the workspace and returns
// its path
func (s *Service) Frame(ctx context.Context, inputPath string) (string, error) {
	if info, err := os.Stat(inputPath); err != nil || info.IsDir() {
		return "", &ValidationError{Problems: []string{fmt.Sprintf("input file %s does not exist", inputPath)}}
	}

	framePath := s.workspace.Path(uuid.New().String() + ".jpg")
	if err := s.frames.ExtractFrame(ctx, inputPath, framePath); err != nil {
		metrics.RecordError("transcoder", errorType(err))
		return "", err
	}
	return framePath, nil
}

// Convert validates, builds and runs a conversion, then publishes the output
// when requested
func (s *Service) Convert(ctx context.Context, req models.ConversionRequest) (*models.ConversionResult, error) {
	span, ctx := tracing.StartSpan(ctx, "conversion")
	defer tracing.FinishSpan(span)

	started := time.Now()
	outputPath := resolveOutputPath(req)
	format := string(models.OutputFormatFor(outputPath))
	tracing.SetTag(span, "output.format", format)

	fail := func(err error) (*models.ConversionResult, error) {
		tracing.LogError(span, err)
		metrics.RecordConversion(format, "failed", 0, 0)
		metrics.RecordError("transcoder", errorType(err))
		return nil, err
	}

	if err := ValidateRequest(req.Params, models.SourceMediaInfo{}, req.InputPath, outputPath); err != nil {
		return fail(err)
	}

	source, err := s.Probe(ctx, req.InputPath)
	if err != nil {
		return fail(err)
	}

	// Crop bounds need the probed dimensions
	if err := Validate(req.Params, source); err != nil {
		return fail(err)
	}

	runDir, err := s.workspace.RunDir()
	if err != nil {
		return fail(err)
	}
	defer os.RemoveAll(runDir)

	pipeline := s.builder.Build(req.Params, source, req.InputPath, outputPath, runDir)
	estimate := EstimateOutputSize(req.Params, source)

	run, err := s.runner.Run(ctx, pipeline, outputPath)
	if err != nil {
		return fail(err)
	}

	stat, err := os.Stat(outputPath)
	if err != nil {
		return fail(fmt.Errorf("failed to stat output file: %w", err))
	}

	result := &models.ConversionResult{
		OutputPath:    outputPath,
		OutputBytes:   stat.Size(),
		EstimatedSize: estimate.String(),
		Stages:        run.Stages,
	}

	if req.Publish && s.opts.Publisher != nil {
		key, url, err := s.opts.Publisher.Publish(ctx, outputPath)
		if err != nil {
			return fail(fmt.Errorf("failed to publish output: %w", err))
		}
		result.ObjectKey = key
		result.ObjectURL = url
	}

	result.Duration = time.Since(started)
	metrics.RecordConversion(format, models.JobStatusCompleted, result.OutputBytes, estimate.Bytes)

	return result, nil
}

// Submit queues a conversion for the worker and returns the queued job
func (s *Service) Submit(ctx context.Context, req models.ConversionRequest) (*models.ConversionJob, error) {
	if s.opts.Queue == nil {
		return nil, ErrQueueDisabled
	}

	req.OutputPath = resolveOutputPath(req)
	if err := Validate(req.Params, models.SourceMediaInfo{}); err != nil {
		return nil, err
	}

	job := &models.ConversionJob{
		ID:        uuid.New().String(),
		Request:   req,
		Status:    models.JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.saveJob(ctx, job); err != nil {
		return nil, err
	}

	if err := s.opts.Queue.PublishJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to queue job: %w", err)
	}

	metrics.JobsSubmittedTotal.Inc()
	s.logger.LogJobEvent(job.ID, "submitted", job.Status, map[string]interface{}{
		"input":  req.InputPath,
		"output": req.OutputPath,
	})

	return job, nil
}

// GetJob returns the stored status of a job
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.ConversionJob, error) {
	if s.opts.Jobs == nil {
		return nil, ErrJobsDisabled
	}
	job, err := s.opts.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// ProcessJob runs a queued job and records its outcome. A failed or cancelled
// conversion marks the job failed and is not an error; only losing the job
// status is.
func (s *Service) ProcessJob(ctx context.Context, job *models.ConversionJob) error {
	metrics.JobsInProgress.Inc()
	defer metrics.JobsInProgress.Dec()

	started := time.Now().UTC()
	job.Status = models.JobStatusProcessing
	job.StartedAt = &started
	if err := s.saveJob(ctx, job); err != nil {
		return err
	}
	s.logger.LogJobEvent(job.ID, "started", job.Status, nil)

	result, err := s.Convert(ctx, job.Request)

	completed := time.Now().UTC()
	job.CompletedAt = &completed
	if err != nil {
		job.Status = models.JobStatusFailed
		job.ErrorMsg = err.Error()
		s.logger.LogJobEvent(job.ID, "failed", job.Status, map[string]interface{}{"error": err.Error()})
	} else {
		job.Status = models.JobStatusCompleted
		job.Result = result
		s.logger.LogJobEvent(job.ID, "completed", job.Status, map[string]interface{}{
			"output_bytes": result.OutputBytes,
		})
	}

	// A cancelled run still records its outcome
	return s.saveJob(context.WithoutCancel(ctx), job)
}

func (s *Service) saveJob(ctx context.Context, job *models.ConversionJob) error {
	if s.opts.Jobs == nil {
		return nil
	}
	if err := s.opts.Jobs.SetJob(ctx, job, s.opts.JobTTL); err != nil {
		return fmt.Errorf("failed to store job status: %w", err)
	}
	return nil
}

func resolveOutputPath(req models.ConversionRequest) string {
	if strings.TrimSpace(req.OutputPath) != "" {
		return req.OutputPath
	}
	if strings.TrimSpace(req.InputPath) == "" {
		return ""
	}
	return models.DefaultOutputPath(req.InputPath)
}

// errorType labels an error for the errors_total metric
func errorType(err error) string {
	var (
		verr *ValidationError
		perr *ProbeError
		eerr *ExecutionError
		terr *ToolMissingError
	)
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.As(err, &perr):
		return "probe"
	case errors.As(err, &terr):
		return "tool_missing"
	case errors.As(err, &eerr):
		return "execution"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}
