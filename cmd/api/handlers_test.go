package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/logging"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/middleware"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/settings"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/transcoder"
	"github.com/therealutkarshpriyadarshi/jifmaker/pkg/models"
)

type fakeService struct {
	err      error
	lastReq  models.ConversionRequest
	jobs     map[string]*models.ConversionJob
	probed   []string
	previews int
	frameDir string
}

func (f *fakeService) Probe(ctx context.Context, path string) (models.SourceMediaInfo, error) {
	f.probed = append(f.probed, path)
	if f.err != nil {
		return models.SourceMediaInfo{}, f.err
	}
	return models.SourceMediaInfo{Width: 1920, Height: 1080, DurationSeconds: 10, FrameRate: 30}, nil
}

func (f *fakeService) Preview(ctx context.Context, req models.ConversionRequest) (*transcoder.Preview, error) {
	f.lastReq = req
	f.previews++
	if f.err != nil {
		return nil, f.err
	}
	p := transcoder.BuildPipeline(req.Params, models.SourceMediaInfo{}, req.InputPath, req.OutputPath, "/tmp/w")
	return &transcoder.Preview{Command: p.String(), Invocations: p.Invocations, OutputPath: req.OutputPath, EstimatedSize: "Unknown"}, nil
}

func (f *fakeService) Convert(ctx context.Context, req models.ConversionRequest) (*models.ConversionResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.ConversionResult{OutputPath: req.OutputPath, OutputBytes: 2048, EstimatedSize: "1.9 KB"}, nil
}

func (f *fakeService) Submit(ctx context.Context, req models.ConversionRequest) (*models.ConversionJob, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	job := &models.ConversionJob{ID: "job-1", Request: req, Status: models.JobStatusQueued}
	if f.jobs == nil {
		f.jobs = map[string]*models.ConversionJob{}
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeService) GetJob(ctx context.Context, jobID string) (*models.ConversionJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, transcoder.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeService) Resize(ctx context.Context, inputPath string, params models.EncodeParameters, width int, height models.Height) (models.EncodeParameters, error) {
	if f.err != nil {
		return params, f.err
	}
	src := models.SourceMediaInfo{Width: 1920, Height: 1080}
	if width > 0 {
		return params.WithWidth(width, src), nil
	}
	return params.WithHeight(height, src), nil
}

func (f *fakeService) Frame(ctx context.Context, inputPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(f.frameDir, "frame.jpg")
	return path, os.WriteFile(path, []byte("\xff\xd8jpeg"), 0o644)
}

func newTestAPI(t *testing.T, svc *fakeService, opts routerOptions) (*gin.Engine, *settings.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := settings.Open(filepath.Join(t.TempDir(), "settings.yaml"), models.DefaultEncodeParameters())
	api := &API{service: svc, settings: store, logger: logging.Nop()}
	return setupRouter(api, logging.Nop(), opts), store
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestAPI(t, &fakeService{}, routerOptions{})

	w := doJSON(t, router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestHealthCheckUnhealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	api := &API{
		service: &fakeService{},
		logger:  logging.Nop(),
		checks: []healthCheck{{name: "tools", check: func(ctx context.Context) error {
			return &transcoder.ToolMissingError{Tool: "ffmpeg"}
		}}},
	}
	router := setupRouter(api, logging.Nop(), routerOptions{})

	w := doJSON(t, router, "GET", "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "tools", decode(t, w)["check"])
}

func TestProbe(t *testing.T) {
	svc := &fakeService{}
	router, _ := newTestAPI(t, svc, routerOptions{})

	w := doJSON(t, router, "POST", "/api/v1/probe", map[string]string{"input_path": "/videos/in.mp4"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1920), decode(t, w)["width"])
	assert.Equal(t, []string{"/videos/in.mp4"}, svc.probed)

	w = doJSON(t, router, "POST", "/api/v1/probe", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreviewMergesSavedSettings(t *testing.T) {
	svc := &fakeService{}
	router, store := newTestAPI(t, svc, routerOptions{})

	saved := models.DefaultEncodeParameters()
	saved.FrameRate = 24
	saved.DitherMode = models.DitherNone
	require.NoError(t, store.Save(saved))

	w := doJSON(t, router, "POST", "/api/v1/preview", map[string]interface{}{
		"input_path":  "/videos/in.mp4",
		"output_path": "/videos/out.gif",
		"params":      map[string]interface{}{"max_colors": 64, "output_height": "auto"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 64, svc.lastReq.Params.MaxColors)
	assert.Equal(t, 24, svc.lastReq.Params.FrameRate)
	assert.Equal(t, models.DitherNone, svc.lastReq.Params.DitherMode)
	assert.True(t, svc.lastReq.Params.OutputHeight.IsAuto())
	assert.Contains(t, decode(t, w)["command"], "palettegen=max_colors=64")
}

func TestConvert(t *testing.T) {
	svc := &fakeService{}
	router, _ := newTestAPI(t, svc, routerOptions{})

	w := doJSON(t, router, "POST", "/api/v1/convert", map[string]interface{}{
		"input_path":  "/videos/in.mp4",
		"output_path": "/videos/out.gif",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2048), decode(t, w)["output_bytes"])
	assert.Equal(t, models.DefaultEncodeParameters(), svc.lastReq.Params)
}

func TestConvertErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		field  string
	}{
		{"validation", &transcoder.ValidationError{Problems: []string{"frame rate 0 outside 1-60"}}, http.StatusBadRequest, "problems"},
		{"tool missing", &transcoder.ToolMissingError{Tool: "ffmpeg"}, http.StatusServiceUnavailable, "tool"},
		{"execution", &transcoder.ExecutionError{Stage: "encode", ExitCode: 1, Output: "Invalid data"}, http.StatusUnprocessableEntity, "output"},
		{"probe", &transcoder.ProbeError{Path: "/videos/in.mp4", Reason: "no video stream"}, http.StatusUnprocessableEntity, "path"},
		{"wrapped execution", fmt.Errorf("job: %w", &transcoder.ExecutionError{Stage: "palette"}), http.StatusUnprocessableEntity, "stage"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "error"},
		{"internal", errors.New("disk full"), http.StatusInternalServerError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestAPI(t, &fakeService{err: tt.err}, routerOptions{})

			w := doJSON(t, router, "POST", "/api/v1/convert", map[string]interface{}{"input_path": "/videos/in.mp4"})
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, decode(t, w), tt.field)
		})
	}
}

func TestConvertMalformedBody(t *testing.T) {
	router, _ := newTestAPI(t, &fakeService{}, routerOptions{})

	req := httptest.NewRequest("POST", "/api/v1/convert", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobs(t *testing.T) {
	svc := &fakeService{}
	router, _ := newTestAPI(t, svc, routerOptions{})

	w := doJSON(t, router, "POST", "/api/v1/jobs", map[string]interface{}{"input_path": "/videos/in.mp4"})
	require.Equal(t, http.StatusAccepted, w.Code)
	body := decode(t, w)
	assert.Equal(t, "job-1", body["job_id"])
	assert.Equal(t, models.JobStatusQueued, body["status"])

	w = doJSON(t, router, "GET", "/api/v1/jobs/job-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "job-1", decode(t, w)["id"])

	w = doJSON(t, router, "GET", "/api/v1/jobs/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobsWithoutQueue(t *testing.T) {
	router, _ := newTestAPI(t, &fakeService{err: transcoder.ErrQueueDisabled}, routerOptions{})

	w := doJSON(t, router, "POST", "/api/v1/jobs", map[string]interface{}{"input_path": "/videos/in.mp4"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSettings(t *testing.T) {
	router, store := newTestAPI(t, &fakeService{}, routerOptions{})

	w := doJSON(t, router, "GET", "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "auto", decode(t, w)["output_height"])

	w = doJSON(t, router, "PUT", "/api/v1/settings", map[string]interface{}{"frame_rate": 30, "compression_tier": "High"})
	require.Equal(t, http.StatusOK, w.Code)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 30, saved.FrameRate)
	assert.Equal(t, models.CompressionHigh, saved.CompressionTier)
	assert.Equal(t, 800, saved.OutputWidth)

	w = doJSON(t, router, "PUT", "/api/v1/settings", map[string]interface{}{"frame_rate": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	saved, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, 30, saved.FrameRate)
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	router, _ := newTestAPI(t, &fakeService{}, routerOptions{jwtSecret: "s3cret"})

	w := doJSON(t, router, "GET", "/api/v1/settings", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := middleware.GenerateToken("s3cret", "cli", time.Hour)
	require.NoError(t, err)

	w = doJSON(t, router, "GET", "/api/v1/settings", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)

	// Health stays open for probes
	w = doJSON(t, router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConvertRateLimited(t *testing.T) {
	router, _ := newTestAPI(t, &fakeService{}, routerOptions{limiter: middleware.NewRateLimiter(0.001, 1)})

	body := map[string]interface{}{"input_path": "/videos/in.mp4"}
	assert.Equal(t, http.StatusOK, doJSON(t, router, "POST", "/api/v1/convert", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, doJSON(t, router, "POST", "/api/v1/convert", body).Code)

	// Previews are not limited
	assert.Equal(t, http.StatusOK, doJSON(t, router, "POST", "/api/v1/preview", body).Code)
}

func TestResize(t *testing.T) {
	router, _ := newTestAPI(t, &fakeService{}, routerOptions{})

	w := doJSON(t, router, "POST", "/api/v1/resize", map[string]interface{}{"input_path": "/videos/in.mp4", "width": 640})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(640), body["output_width"])
	assert.Equal(t, float64(360), body["output_height"])

	w = doJSON(t, router, "POST", "/api/v1/resize", map[string]interface{}{"height": 270})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(480), decode(t, w)["output_width"])
}

func TestFrame(t *testing.T) {
	svc := &fakeService{frameDir: t.TempDir()}
	router, _ := newTestAPI(t, svc, routerOptions{})

	w := doJSON(t, router, "POST", "/api/v1/frame", map[string]string{"input_path": "/videos/in.mp4"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "\xff\xd8jpeg", w.Body.String())

	// The extracted frame is removed once served
	_, err := os.Stat(filepath.Join(svc.frameDir, "frame.jpg"))
	assert.True(t, os.IsNotExist(err))

	w = doJSON(t, router, "POST", "/api/v1/frame", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
