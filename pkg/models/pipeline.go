package models

import (
	"strings"
	"time"
)

// Invocation is a single external process run
type Invocation struct {
	Executable string   `json:"executable"`
	Args       []string `json:"args"`
}

// String renders the invocation as a space-joined command line for display
func (i Invocation) String() string {
	return strings.Join(append([]string{i.Executable}, i.Args...), " ")
}

// Pipeline is an ordered list of invocations plus transient files the
// caller must remove once the pipeline finishes, whatever the outcome
type Pipeline struct {
	Invocations []Invocation `json:"invocations"`
	TempFiles   []string     `json:"temp_files,omitempty"`
}

// String renders the pipeline the way a shell would chain it
func (p Pipeline) String() string {
	parts := make([]string, len(p.Invocations))
	for i, inv := range p.Invocations {
		parts[i] = inv.String()
	}
	return strings.Join(parts, " && ")
}

// ConversionRequest is what a client asks to convert
type ConversionRequest struct {
	InputPath  string           `json:"input_path"`
	OutputPath string           `json:"output_path"`
	Params     EncodeParameters `json:"params"`
	// Publish uploads the finished file to object storage when configured
	Publish bool `json:"publish,omitempty"`
}

// ConversionResult describes a finished conversion
type ConversionResult struct {
	OutputPath    string        `json:"output_path"`
	OutputBytes   int64         `json:"output_bytes"`
	EstimatedSize string        `json:"estimated_size"`
	Stages        []StageResult `json:"stages"`
	ObjectKey     string        `json:"object_key,omitempty"`
	ObjectURL     string        `json:"object_url,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// StageResult captures one finished invocation
type StageResult struct {
	Name     string        `json:"name"`
	Command  string        `json:"command"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ConversionJob is a queued conversion
type ConversionJob struct {
	ID          string            `json:"id"`
	Request     ConversionRequest `json:"request"`
	Status      string            `json:"status"`
	ErrorMsg    string            `json:"error_msg,omitempty"`
	Result      *ConversionResult `json:"result,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// JobStatus constants
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)
