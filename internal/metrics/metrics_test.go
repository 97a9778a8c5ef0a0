package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("POST", "/api/v1/preview", "200", 0.012)

	counter := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/preview", "200"))
	if counter != 1.0 {
		t.Errorf("Expected counter to be 1.0, got %f", counter)
	}
}

func TestRecordPipelineStage(t *testing.T) {
	PipelineStagesTotal.Reset()
	PipelineStageDuration.Reset()

	RecordPipelineStage("palette", "success", 0.8)
	RecordPipelineStage("encode", "success", 3.2)
	RecordPipelineStage("encode", "failed", 0.1)

	palette := testutil.ToFloat64(PipelineStagesTotal.WithLabelValues("palette", "success"))
	if palette != 1.0 {
		t.Errorf("Expected palette success counter to be 1.0, got %f", palette)
	}

	failed := testutil.ToFloat64(PipelineStagesTotal.WithLabelValues("encode", "failed"))
	if failed != 1.0 {
		t.Errorf("Expected encode failed counter to be 1.0, got %f", failed)
	}

	if n := testutil.CollectAndCount(PipelineStageDuration); n != 2 {
		t.Errorf("Expected 2 stage duration series, got %d", n)
	}
}

func TestRecordConversion(t *testing.T) {
	ConversionsTotal.Reset()
	OutputSizeBytes.Reset()

	RecordConversion("gif", "completed", 2*1024*1024, 4*1024*1024)
	RecordConversion("gif", "failed", 0, 4*1024*1024)

	completed := testutil.ToFloat64(ConversionsTotal.WithLabelValues("gif", "completed"))
	if completed != 1.0 {
		t.Errorf("Expected completed counter to be 1.0, got %f", completed)
	}

	failed := testutil.ToFloat64(ConversionsTotal.WithLabelValues("gif", "failed"))
	if failed != 1.0 {
		t.Errorf("Expected failed counter to be 1.0, got %f", failed)
	}

	if n := testutil.CollectAndCount(OutputSizeBytes); n != 1 {
		t.Errorf("Expected output size only for completed runs, got %d series", n)
	}
}

func TestRecordProbe(t *testing.T) {
	ProbesTotal.Reset()

	RecordProbe("success")
	RecordProbe("success")
	RecordProbe("no_video")

	if v := testutil.ToFloat64(ProbesTotal.WithLabelValues("success")); v != 2.0 {
		t.Errorf("Expected 2 successful probes, got %f", v)
	}
}

func TestRecordCacheAccess(t *testing.T) {
	CacheHitsTotal.Reset()
	CacheMissesTotal.Reset()

	RecordCacheHit("probe")
	RecordCacheHit("probe")
	RecordCacheMiss("probe")

	hits := testutil.ToFloat64(CacheHitsTotal.WithLabelValues("probe"))
	if hits != 2.0 {
		t.Errorf("Expected cache hits to be 2.0, got %f", hits)
	}

	misses := testutil.ToFloat64(CacheMissesTotal.WithLabelValues("probe"))
	if misses != 1.0 {
		t.Errorf("Expected cache misses to be 1.0, got %f", misses)
	}
}

func TestRecordStorageOperation(t *testing.T) {
	StorageOperationsTotal.Reset()

	RecordStorageOperation("upload", "success")

	counter := testutil.ToFloat64(StorageOperationsTotal.WithLabelValues("upload", "success"))
	if counter != 1.0 {
		t.Errorf("Expected storage operation counter to be 1.0, got %f", counter)
	}
}

func TestRecordError(t *testing.T) {
	ErrorsTotal.Reset()

	RecordError("api", "validation")
	RecordError("worker", "execution")
	RecordError("api", "validation")

	apiErrors := testutil.ToFloat64(ErrorsTotal.WithLabelValues("api", "validation"))
	if apiErrors != 2.0 {
		t.Errorf("Expected API validation errors to be 2.0, got %f", apiErrors)
	}

	workerErrors := testutil.ToFloat64(ErrorsTotal.WithLabelValues("worker", "execution"))
	if workerErrors != 1.0 {
		t.Errorf("Expected worker execution errors to be 1.0, got %f", workerErrors)
	}
}

func BenchmarkRecordPipelineStage(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordPipelineStage("encode", "success", 1.5)
	}
}

func TestSetQueueDepth(t *testing.T) {
	QueueDepth.Reset()

	SetQueueDepth("conversion_jobs", 3)
	SetQueueDepth("conversion_jobs", 5)

	if depth := testutil.ToFloat64(QueueDepth.WithLabelValues("conversion_jobs")); depth != 5 {
		t.Errorf("Expected queue depth 5, got %f", depth)
	}
}
