package collab

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-playground/validator/v10"

	"github.com/codeboarding/increco/internal/analysismodel"
	"github.com/codeboarding/increco/internal/cluster"
	"github.com/codeboarding/increco/internal/llm"
	"github.com/codeboarding/increco/internal/utils"
)

var validate = validator.New()

// maxRetries and retryDelay mirror internal/planner.Generator's
// retry-with-validation-feedback loop.
const (
	maxRetries = 3
	retryDelay = 500 * time.Millisecond
)

// EinoCollaborator implements DetailsAgent, Classifier, and
// ReferenceResolverLLM on top of a single eino chat model, reusing
// internal/llm's multi-provider model selection. A malformed or
// unparseable response after all retries is treated as non-fatal: drop the
// result and proceed without it — every method returns (nil, nil) or
// equivalent rather than a fatal error in that case.
type EinoCollaborator struct {
	cfg       llm.Config
	chatModel *llm.CloseableChatModel
}

// NewEinoCollaborator constructs a collaborator; the underlying chat model
// is created lazily on first use.
func NewEinoCollaborator(cfg llm.Config) *EinoCollaborator {
	return &EinoCollaborator{cfg: cfg}
}

// Close releases the underlying chat model, if one was created.
func (e *EinoCollaborator) Close() error {
	if e.chatModel != nil {
		return e.chatModel.Close()
	}
	return nil
}

func (e *EinoCollaborator) ensureModel(ctx context.Context) error {
	if e.chatModel != nil {
		return nil
	}
	m, err := llm.NewCloseableChatModel(ctx, e.cfg)
	if err != nil {
		return fmt.Errorf("collab: create chat model: %w", err)
	}
	e.chatModel = m
	return nil
}

// generateValidated runs the prompt template with input, parses the
// response as T, validates it, and retries with error feedback appended to
// the prompt on failure — the same shape as
// internal/planner.generateWithRetry, specialized to collaborator use.
func generateValidated[T any](ctx context.Context, e *EinoCollaborator, promptTemplate string, input map[string]any, validateFn func(*T) error) (*T, error) {
	if err := e.ensureModel(ctx); err != nil {
		return nil, err
	}

	tmpl, err := template.New("prompt").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("collab: parse prompt template: %w", err)
	}

	var lastErr error
	var feedback string
	for attempt := 1; attempt <= maxRetries; attempt++ {
		promptInput := make(map[string]any, len(input)+1)
		for k, v := range input {
			promptInput[k] = v
		}
		if feedback != "" {
			promptInput["ValidationErrors"] = feedback
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, promptInput); err != nil {
			return nil, fmt.Errorf("collab: execute prompt template: %w", err)
		}

		resp, err := e.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(buf.String())})
		if err != nil {
			lastErr = fmt.Errorf("collab: LLM generate: %w", err)
			if attempt < maxRetries {
				time.Sleep(retryDelay * time.Duration(attempt))
				continue
			}
			return nil, lastErr
		}

		result, err := utils.ExtractAndParseJSON[T](resp.Content)
		if err != nil {
			lastErr = fmt.Errorf("collab: parse JSON (attempt %d): %w", attempt, err)
			feedback = fmt.Sprintf("Your previous response could not be parsed as JSON: %v. Raw response: %s", err, truncate(resp.Content, 500))
			if attempt < maxRetries {
				continue
			}
			return nil, lastErr
		}

		if err := validateFn(&result); err != nil {
			lastErr = fmt.Errorf("collab: validation failed (attempt %d): %w", attempt, err)
			feedback = fmt.Sprintf("Your previous response failed validation: %v", err)
			if attempt < maxRetries {
				continue
			}
			return nil, lastErr
		}

		return &result, nil
	}
	return nil, lastErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... [truncated]"
}

// detailsAgentResponse is the LLM's required JSON shape for Run.
type detailsAgentResponse struct {
	SubAnalysis analysismodel.AnalysisInsights `json:"sub_analysis" validate:"required"`
}

func (r *detailsAgentResponse) validateResponse() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if len(r.SubAnalysis.Components) == 0 {
		return fmt.Errorf("sub_analysis must contain at least one component")
	}
	return nil
}

const detailsAgentPromptTemplate = `You are expanding a software architecture component into its constituent sub-components.

Component: {{.ComponentName}}
Description: {{.ComponentDescription}}
Assigned files:
{{range .AssignedFiles}}- {{.}}
{{end}}
{{if .ValidationErrors}}
Your previous response was rejected: {{.ValidationErrors}}
{{end}}
Respond with JSON matching exactly:
{"sub_analysis": {"description": "...", "components": [{"component_id": "", "name": "...", "description": "...", "assigned_files": ["..."], "key_entities": [{"qualified_name": "..."}]}], "components_relations": [{"src_name": "...", "dst_name": "...", "relation": "..."}]}}
`

// Run implements DetailsAgent.
func (e *EinoCollaborator) Run(ctx context.Context, component analysismodel.Component, assignedFiles []string) (*analysismodel.AnalysisInsights, map[string]*cluster.Result, error) {
	resp, err := generateValidated[detailsAgentResponse](ctx, e, detailsAgentPromptTemplate, map[string]any{
		"ComponentName":        component.Name,
		"ComponentDescription": component.Description,
		"AssignedFiles":        assignedFiles,
	}, (*detailsAgentResponse).validateResponse)
	if err != nil {
		// Malformed collaborator output is dropped, not fatal.
		return nil, nil, nil
	}

	analysismodel.AssignComponentIDs(component.ComponentID, resp.SubAnalysis.Components)
	if err := resp.SubAnalysis.Validate(); err != nil {
		return nil, nil, nil
	}
	return &resp.SubAnalysis, nil, nil
}

// classifierResponse is the LLM's required JSON shape for ClassifyFiles:
// a map from target component name/ID to the files it should own.
type classifierResponse struct {
	Assignments map[string][]string `json:"assignments" validate:"required,min=1"`
}

func (r *classifierResponse) validateResponse() error {
	return validate.Struct(r)
}

const classifierPromptTemplate = `You are assigning newly discovered source files to existing sub-components.

Sub-components:
{{range .Components}}- {{.Name}} ({{.ComponentID}}): {{.Description}}
{{end}}
Files to classify:
{{range .ScopeFiles}}- {{.}}
{{end}}
{{if .ValidationErrors}}
Your previous response was rejected: {{.ValidationErrors}}
{{end}}
Respond with JSON matching exactly:
{"assignments": {"<component_id_or_name>": ["file1", "file2"]}}
`

// ClassifyFiles implements Classifier: in-place assignment of scopeFiles to
// sub's components.
func (e *EinoCollaborator) ClassifyFiles(ctx context.Context, sub *analysismodel.AnalysisInsights, scopeFiles []string) error {
	resp, err := generateValidated[classifierResponse](ctx, e, classifierPromptTemplate, map[string]any{
		"Components": sub.Components,
		"ScopeFiles": scopeFiles,
	}, (*classifierResponse).validateResponse)
	if err != nil {
		// Malformed collaborator output: drop, proceed without it.
		return nil
	}
	applyClassifierAssignments(sub, resp.Assignments)
	return nil
}

// applyClassifierAssignments writes a classifier response's per-component
// file assignments into sub, matching each key against ComponentID first
// and falling back to Name (DESIGN.md Open Question #2). Unmatched keys
// are silently skipped rather than treated as fatal, consistent with
// dropping malformed collaborator output.
func applyClassifierAssignments(sub *analysismodel.AnalysisInsights, assignments map[string][]string) {
	for key, files := range assignments {
		target := sub.ComponentByID(key)
		if target == nil {
			target = sub.ComponentByName(key)
		}
		if target == nil {
			continue
		}
		for _, f := range files {
			target.AddFile(f)
		}
	}
}

// referenceResolverResponse is the LLM's required JSON shape for
// ResolveReference.
type referenceResolverResponse struct {
	Path      string `json:"path" validate:"required"`
	StartLine *int   `json:"start_line,omitempty"`
	EndLine   *int   `json:"end_line,omitempty"`
}

func (r *referenceResolverResponse) validateResponse() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if (r.StartLine == nil) != (r.EndLine == nil) {
		return fmt.Errorf("start_line and end_line must both be present or both be absent")
	}
	return nil
}

const referenceResolverPromptTemplate = `You are resolving a source-code symbol's qualified name to a file path.

Qualified name: {{.QualifiedName}}
Repo directory: {{.RepoDir}}
Candidate files:
{{range .FileCandidates}}- {{.}}
{{end}}
{{if .ValidationErrors}}
Your previous response was rejected: {{.ValidationErrors}}
{{end}}
Respond with JSON matching exactly:
{"path": "relative/or/absolute/path.py", "start_line": 1, "end_line": 10}
If you cannot determine a start/end line, omit both fields.
`

// ResolveReference implements ReferenceResolverLLM.
func (e *EinoCollaborator) ResolveReference(ctx context.Context, qualifiedName string, fileCandidates []string, repoDir string) (string, *int, *int, error) {
	resp, err := generateValidated[referenceResolverResponse](ctx, e, referenceResolverPromptTemplate, map[string]any{
		"QualifiedName":  qualifiedName,
		"FileCandidates": fileCandidates,
		"RepoDir":        repoDir,
	}, (*referenceResolverResponse).validateResponse)
	if err != nil {
		return "", nil, nil, nil
	}
	return resp.Path, resp.StartLine, resp.EndLine, nil
}
