package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/logging"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/middleware"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/transcoder"
	"github.com/therealutkarshpriyadarshi/jifmaker/pkg/models"
)

// conversionService is the part of transcoder.Service the API exposes
type conversionService interface {
	Probe(ctx context.Context, path string) (models.SourceMediaInfo, error)
	Preview(ctx context.Context, req models.ConversionRequest) (*transcoder.Preview, error)
	Convert(ctx context.Context, req models.ConversionRequest) (*models.ConversionResult, error)
	Submit(ctx context.Context, req models.ConversionRequest) (*models.ConversionJob, error)
	GetJob(ctx context.Context, jobID string) (*models.ConversionJob, error)
	Resize(ctx context.Context, inputPath string, params models.EncodeParameters, width int, height models.Height) (models.EncodeParameters, error)
	Frame(ctx context.Context, inputPath string) (string, error)
}

// settingsStore persists the last-used encode parameters
type settingsStore interface {
	Load() (models.EncodeParameters, error)
	Save(params models.EncodeParameters) error
}

type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

// API holds the handler dependencies
type API struct {
	service  conversionService
	settings settingsStore
	checks   []healthCheck
	logger   *logging.Logger
}

type routerOptions struct {
	jwtSecret string
	limiter   *middleware.RateLimiter
}

func setupRouter(api *API, logger *logging.Logger, opts routerOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(logger))

	// Health check
	router.GET("/health", api.healthCheck)

	// API routes
	v1 := router.Group("/api/v1")
	if opts.jwtSecret != "" {
		v1.Use(middleware.JWTAuth(opts.jwtSecret))
	}
	{
		v1.POST("/probe", api.probe)
		v1.POST("/preview", api.preview)
		v1.POST("/resize", api.resize)
		v1.POST("/frame", api.frame)

		// Conversions spawn external processes
		heavy := v1.Group("")
		if opts.limiter != nil {
			heavy.Use(middleware.RateLimit(opts.limiter))
		}
		heavy.POST("/convert", api.convert)
		heavy.POST("/jobs", api.submitJob)

		v1.GET("/jobs/:id", api.getJob)

		v1.GET("/settings", api.getSettings)
		v1.PUT("/settings", api.putSettings)
	}

	return router
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	for _, hc := range api.checks {
		if err := hc.check(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"check":  hc.name,
				"error":  err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// Probe endpoint
func (api *API) probe(c *gin.Context) {
	var req struct {
		InputPath string `json:"input_path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := api.service.Probe(c.Request.Context(), req.InputPath)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// Preview endpoint: command and size estimate without running anything
func (api *API) preview(c *gin.Context) {
	req, ok := api.bindRequest(c)
	if !ok {
		return
	}

	preview, err := api.service.Preview(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, preview)
}

// Resize endpoint: applies a width or height edit, keeping the aspect ratio
// when asked to
func (api *API) resize(c *gin.Context) {
	params, err := api.settings.Load()
	if err != nil {
		params = models.DefaultEncodeParameters()
	}

	req := struct {
		InputPath string                  `json:"input_path"`
		Params    models.EncodeParameters `json:"params"`
		Width     int                     `json:"width"`
		Height    models.Height           `json:"height"`
	}{Params: params}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resized, err := api.service.Resize(c.Request.Context(), req.InputPath, req.Params, req.Width, req.Height)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resized)
}

// Frame endpoint: returns the first frame of the input as a JPEG
func (api *API) frame(c *gin.Context) {
	var req struct {
		InputPath string `json:"input_path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	path, err := api.service.Frame(c.Request.Context(), req.InputPath)
	if err != nil {
		writeError(c, err)
		return
	}
	defer os.Remove(path)

	c.File(path)
}

// Convert endpoint: runs the pipeline synchronously
func (api *API) convert(c *gin.Context) {
	req, ok := api.bindRequest(c)
	if !ok {
		return
	}

	result, err := api.service.Convert(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Submit a conversion to the worker queue
func (api *API) submitJob(c *gin.Context) {
	req, ok := api.bindRequest(c)
	if !ok {
		return
	}

	job, err := api.service.Submit(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.ID,
		"status": job.Status,
	})
}

// Get job status
func (api *API) getJob(c *gin.Context) {
	job, err := api.service.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (api *API) getSettings(c *gin.Context) {
	params, err := api.settings.Load()
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, params)
}

func (api *API) putSettings(c *gin.Context) {
	params, err := api.settings.Load()
	if err != nil {
		writeError(c, err)
		return
	}

	// Fields missing from the body keep their stored values
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := transcoder.Validate(params, models.SourceMediaInfo{}); err != nil {
		writeError(c, err)
		return
	}

	if err := api.settings.Save(params); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, params)
}

// bindRequest decodes a conversion request over the saved settings so
// omitted parameters take their stored values
func (api *API) bindRequest(c *gin.Context) (models.ConversionRequest, bool) {
	params, err := api.settings.Load()
	if err != nil {
		api.logger.WithError(err).Warn("using built-in defaults, settings unreadable")
		params = models.DefaultEncodeParameters()
	}

	req := models.ConversionRequest{Params: params}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	return req, true
}

// writeError maps service errors onto HTTP statuses
func writeError(c *gin.Context, err error) {
	var (
		verr *transcoder.ValidationError
		perr *transcoder.ProbeError
		eerr *transcoder.ExecutionError
		terr *transcoder.ToolMissingError
	)

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "problems": verr.Problems})
	case errors.As(err, &terr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "tool": terr.Tool})
	case errors.As(err, &eerr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     err.Error(),
			"stage":     eerr.Stage,
			"command":   eerr.Command,
			"exit_code": eerr.ExitCode,
			"output":    eerr.Output,
		})
	case errors.As(err, &perr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "path": perr.Path})
	case errors.Is(err, transcoder.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, transcoder.ErrQueueDisabled), errors.Is(err, transcoder.ErrJobsDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
