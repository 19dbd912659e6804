package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"manimate/internal/batch"
	"manimate/internal/discovery"
	"manimate/internal/logging"
	"manimate/internal/logs"
	"manimate/internal/script"
)

// SaveScriptInput is the input schema for save_script.
type SaveScriptInput struct {
	Script    map[string]any `json:"script" jsonschema:"tutorial document with intro, sections and outro"`
	Name      string         `json:"name,omitempty" jsonschema:"optional filename; a timestamped name is generated when empty"`
	Overwrite bool           `json:"overwrite,omitempty" jsonschema:"replace an existing script with the same name"`
}

// SaveScriptOutput is the output schema for save_script.
type SaveScriptOutput struct {
	Path     string   `json:"path"`
	Name     string   `json:"name"`
	Problems []string `json:"problems,omitempty"`
}

// ListScriptsInput is the input schema for list_scripts.
type ListScriptsInput struct {
	PendingOnly bool `json:"pending_only,omitempty" jsonschema:"only list scripts that have not been rendered"`
}

// ScriptEntry is one script in the work directory.
type ScriptEntry struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// ListScriptsOutput is the output schema for list_scripts.
type ListScriptsOutput struct {
	Scripts []ScriptEntry `json:"scripts"`
	Pending int           `json:"pending"`
	Done    int           `json:"done"`
}

// RunBatchInput is the input schema for run_batch.
type RunBatchInput struct{}

// JobOutput describes one processed job.
type JobOutput struct {
	Name     string `json:"name"`
	Outcome  string `json:"outcome"`
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output,omitempty"`
	LogPath  string `json:"log_path,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RunBatchOutput is the output schema for run_batch and render_script.
type RunBatchOutput struct {
	RunID     string      `json:"run_id,omitempty"`
	Pending   int         `json:"pending"`
	Jobs      []JobOutput `json:"jobs"`
	Halted    bool        `json:"halted"`
	Cancelled bool        `json:"cancelled"`
	Error     string      `json:"error,omitempty"`
}

// RenderScriptInput is the input schema for render_script.
type RenderScriptInput struct {
	Name   string `json:"name" jsonschema:"script filename in the work directory"`
	Commit bool   `json:"commit,omitempty" jsonschema:"record a successful render in the completion ledger"`
}

// ConsolidateLogsInput is the input schema for consolidate_logs.
type ConsolidateLogsInput struct {
	Pattern string `json:"pattern,omitempty" jsonschema:"glob of per-job logs to merge (default *.txt)"`
}

// ConsolidateLogsOutput is the output schema for consolidate_logs.
type ConsolidateLogsOutput struct {
	CombinedPath string   `json:"combined_path"`
	Consolidated []string `json:"consolidated"`
	Active       []string `json:"active,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "save_script",
		Description: "Save a tutorial script into the work directory so the next batch renders it",
	}, s.handleSaveScript)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_scripts",
		Description: "List scripts in the work directory with their rendered state",
	}, s.handleListScripts)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "run_batch",
		Description: "Render every pending script and report per-job outcomes",
	}, s.handleRunBatch)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "render_script",
		Description: "Render one script regardless of whether it was rendered before",
	}, s.handleRenderScript)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "consolidate_logs",
		Description: "Append finished per-job render logs to the combined log and delete them",
	}, s.handleConsolidateLogs)
}

func (s *Server) handleSaveScript(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SaveScriptInput,
) (*mcp.CallToolResult, SaveScriptOutput, error) {
	if len(input.Script) == 0 {
		return nil, SaveScriptOutput{}, errors.New("script is required")
	}
	raw, err := json.Marshal(input.Script)
	if err != nil {
		return nil, SaveScriptOutput{}, fmt.Errorf("encode script: %w", err)
	}
	doc, err := script.Parse(raw)
	if err != nil {
		return nil, SaveScriptOutput{}, err
	}

	var path string
	if name := strings.TrimSpace(input.Name); name != "" {
		if filepath.Ext(name) == "" {
			name += s.ports.Extension
		}
		path, err = script.SaveAs(s.ports.WorkDir, name, doc, input.Overwrite)
	} else {
		path, err = script.Save(s.ports.WorkDir, s.ports.Extension, doc, s.ports.Now())
	}
	if err != nil {
		return nil, SaveScriptOutput{}, err
	}
	s.logger.Info("script saved",
		logging.String(logging.FieldEventType, "script_saved"),
		logging.String(logging.FieldJobID, filepath.Base(path)),
	)
	return nil, SaveScriptOutput{Path: path, Name: filepath.Base(path), Problems: doc.Problems()}, nil
}

func (s *Server) handleListScripts(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ListScriptsInput,
) (*mcp.CallToolResult, ListScriptsOutput, error) {
	jobs, err := discovery.Scan(s.ports.WorkDir, s.ports.Extension, s.ports.Ledger)
	if err != nil {
		return nil, ListScriptsOutput{}, err
	}
	out := ListScriptsOutput{Scripts: make([]ScriptEntry, 0, len(jobs))}
	for _, job := range jobs {
		if job.Done {
			out.Done++
		} else {
			out.Pending++
		}
		if input.PendingOnly && job.Done {
			continue
		}
		out.Scripts = append(out.Scripts, ScriptEntry{Name: job.ID, Title: script.Title(job.ID), Done: job.Done})
	}
	return nil, out, nil
}

func (s *Server) handleRunBatch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ RunBatchInput,
) (*mcp.CallToolResult, RunBatchOutput, error) {
	summary, err := s.ports.Batch.Run(ctx)
	if errors.Is(err, batch.ErrAlreadyRunning) {
		return nil, RunBatchOutput{}, err
	}
	out := summaryOutput(summary)
	if err != nil {
		out.Error = err.Error()
	}
	return nil, out, nil
}

func (s *Server) handleRenderScript(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RenderScriptInput,
) (*mcp.CallToolResult, RunBatchOutput, error) {
	name, err := script.CleanName(input.Name)
	if err != nil {
		return nil, RunBatchOutput{}, err
	}
	result, err := s.ports.Batch.RenderOne(ctx, filepath.Join(s.ports.WorkDir, name), input.Commit)
	if errors.Is(err, batch.ErrAlreadyRunning) {
		return nil, RunBatchOutput{}, err
	}
	out := RunBatchOutput{Pending: 1, Jobs: []JobOutput{jobOutput(result)}}
	if err != nil {
		out.Error = err.Error()
	}
	return nil, out, nil
}

func (s *Server) handleConsolidateLogs(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ConsolidateLogsInput,
) (*mcp.CallToolResult, ConsolidateLogsOutput, error) {
	pattern := strings.TrimSpace(input.Pattern)
	if pattern == "" {
		pattern = logs.DefaultPattern
	}
	res, err := logs.Consolidate(ctx, s.ports.LogDir, s.ports.CombinedLog, pattern, logs.WithLogger(s.logger))
	if err != nil {
		return nil, ConsolidateLogsOutput{}, err
	}
	out := ConsolidateLogsOutput{
		CombinedPath: res.CombinedPath,
		Consolidated: nonNil(res.Appended),
		Active:       res.Active,
	}
	for _, fe := range res.Errors {
		out.Errors = append(out.Errors, fe.Error())
	}
	return nil, out, nil
}

func summaryOutput(summary batch.Summary) RunBatchOutput {
	out := RunBatchOutput{
		RunID:     summary.RunID,
		Pending:   summary.Pending,
		Jobs:      make([]JobOutput, 0, len(summary.Jobs)),
		Halted:    summary.Halted,
		Cancelled: summary.Cancelled,
	}
	for _, job := range summary.Jobs {
		out.Jobs = append(out.Jobs, jobOutput(job))
	}
	return out
}

func jobOutput(job batch.JobResult) JobOutput {
	out := JobOutput{
		Name:     job.JobID,
		Outcome:  string(job.Outcome),
		ExitCode: job.ExitCode,
		Output:   job.OutputPath,
		LogPath:  job.LogPath,
	}
	if job.Err != nil {
		out.Error = job.Err.Error()
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
