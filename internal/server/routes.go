// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danielgtaylor/huma/v2"

	"github.com/genos-dev/genos/internal/events"
	"github.com/genos-dev/genos/internal/guardrail"
	"github.com/genos-dev/genos/internal/orchestrator"
	"github.com/genos-dev/genos/internal/schedule"
	"github.com/genos-dev/genos/internal/store"
	"github.com/genos-dev/genos/internal/tenant"
	"github.com/genos-dev/genos/pkg/health"
	"github.com/genos-dev/genos/pkg/types"
)

const brandsTable = "brands"

// History paging.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

const dateLayout = "2006-01-02"

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "generate-content",
		Method:      http.MethodPost,
		Path:        "/api/v1/ai/generate",
		Summary:     "Generate brand content",
		Description: "Routes the prompt through the provider fallback chain and verifies the output.",
		Tags:        []string{"ai"},
	}, s.handleGenerate)

	huma.Register(s.api, huma.Operation{
		OperationID: "index-brand",
		Method:      http.MethodPost,
		Path:        "/api/v1/ai/index",
		Summary:     "Index a brand for retrieval",
		Description: "Embeds the brand identity so later generations can retrieve it.",
		Tags:        []string{"ai"},
	}, s.handleIndex)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-generations",
		Method:      http.MethodGet,
		Path:        "/api/v1/ai/history",
		Summary:     "List past generations of the caller",
		Tags:        []string{"ai"},
	}, s.handleHistory)

	huma.Register(s.api, huma.Operation{
		OperationID: "optimize-schedule",
		Method:      http.MethodPost,
		Path:        "/api/v1/quantum/optimize",
		Summary:     "Recommend posting slots for a brand",
		Tags:        []string{"schedule"},
	}, s.handleOptimize)

	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Service health and circuit states",
		Tags:        []string{"system"},
	}, s.handleHealth)
}

// --- Request/Response types for huma ---

type generateInput struct {
	Body struct {
		Prompt            string `json:"prompt" minLength:"1" maxLength:"5000" doc:"What to write"`
		ContentType       string `json:"content_type" enum:"post,caption,blog,email,hashtags,title,story,reel" doc:"Kind of content"`
		Platform          string `json:"platform,omitempty" doc:"Target platform"`
		Tone              string `json:"tone,omitempty"`
		Language          string `json:"language,omitempty" doc:"Response language, e.g. pt-BR"`
		BrandID           string `json:"brand_id" format:"uuid" doc:"Brand whose identity shapes the output"`
		PreferredProvider string `json:"preferred_provider,omitempty" doc:"Provider to try first"`
		UseRAG            *bool  `json:"use_rag,omitempty" doc:"Set false to skip retrieval of related brand content"`
	}
}

func (in *generateInput) request() orchestrator.Request {
	b := in.Body
	return orchestrator.Request{
		Prompt:            b.Prompt,
		ContentType:       types.ContentType(b.ContentType),
		Platform:          types.Platform(b.Platform),
		Tone:              b.Tone,
		Language:          b.Language,
		BrandID:           b.BrandID,
		PreferredProvider: b.PreferredProvider,
		UseRAG:            b.UseRAG,
	}
}

// Generation is the client view of one orchestrated generation.
type Generation struct {
	ThreadID           string           `json:"threadId"`
	Content            string           `json:"content"`
	Provider           string           `json:"provider"`
	Model              string           `json:"model"`
	InputTokens        int              `json:"inputTokens"`
	OutputTokens       int              `json:"outputTokens"`
	TokensUsed         int              `json:"tokensUsed"`
	LatencyMs          int64            `json:"latencyMs"`
	Guardrail          guardrail.Result `json:"guardrail"`
	GuardrailViolation bool             `json:"guardrailViolation"`
}

type generateOutput struct {
	Body struct {
		Data Generation `json:"data"`
	}
}

type indexInput struct {
	Body struct {
		BrandID string `json:"brand_id" format:"uuid" doc:"Brand to index"`
	}
}

type indexOutput struct {
	Body struct {
		Indexed int    `json:"indexed"`
		Type    string `json:"type"`
	}
}

type historyInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"100" default:"20"`
	Offset int `query:"offset" minimum:"0" default:"0"`
}

// HistoryItem is one past generation read back from the audit log.
type HistoryItem struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"threadId,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	Platform    string    `json:"platform,omitempty"`
	BrandID     string    `json:"brandId,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	TokensUsed  int       `json:"tokensUsed"`
	CreatedAt   time.Time `json:"createdAt"`
}

type historyOutput struct {
	Body struct {
		Data    []HistoryItem `json:"data"`
		Limit   int           `json:"limit"`
		Offset  int           `json:"offset"`
		HasMore bool          `json:"hasMore"`
	}
}

type optimizeInput struct {
	Body struct {
		BrandID  string `json:"brand_id,omitempty" doc:"Brand to schedule"`
		DateFrom string `json:"date_from,omitempty" doc:"First history day (YYYY-MM-DD)"`
		DateTo   string `json:"date_to,omitempty" doc:"Last history day (YYYY-MM-DD)"`
	}
}

type optimizeOutput struct {
	Body struct {
		Data *schedule.Result `json:"data"`
	}
}

type healthOutput struct {
	Body health.Report
}

// --- Handlers ---

func (s *Server) handleGenerate(ctx context.Context, input *generateInput) (*generateOutput, error) {
	caller, err := tenant.ContextResolver{}.ResolveOrg(ctx)
	if err != nil {
		return nil, apiError(err)
	}

	req := input.request()
	if err := req.Validate(); err != nil {
		return nil, apiError(err)
	}

	outcome, err := s.services.Tenants.Validate(ctx, req.BrandID, brandsTable)
	if err != nil {
		return nil, apiError(err)
	}

	res, err := s.services.Generator.Generate(ctx, req, outcome.OrgID, caller.UserID)
	if err != nil {
		return nil, apiError(err)
	}

	s.appendAudit(ctx, &store.AuditEntry{
		OrganizationID: outcome.OrgID,
		Actor:          caller.UserID,
		Action:         store.AuditActionAIGenerate,
		EntityTable:    brandsTable,
		EntityID:       req.BrandID,
		Details: map[string]any{
			"content_type":       string(req.ContentType),
			"platform":           string(req.Platform),
			"brand_id":           req.BrandID,
			"prompt_length":      utf8.RuneCountInString(req.Prompt),
			"provider":           res.Provider,
			"guardrail_score":    res.Guardrail.Score,
			"guardrail_passed":   res.Guardrail.Passed,
			"rag_enabled":        res.RAGEnabled,
			"rag_context_length": res.RAGContextLength,
		},
		AIModel:    res.Model,
		TokensUsed: res.TokensUsed(),
		ThreadID:   res.ThreadID,
	})

	s.services.Events.Emit(ctx, events.Event{
		Type:           events.TypeAIGenerated,
		OrganizationID: outcome.OrgID,
		UserID:         caller.UserID,
		Data: map[string]any{
			"thread_id":    res.ThreadID,
			"provider":     res.Provider,
			"model":        res.Model,
			"content_type": string(req.ContentType),
			"tokens_used":  res.TokensUsed(),
			"guardrail":    res.Guardrail.Passed,
		},
	})

	out := &generateOutput{}
	out.Body.Data = Generation{
		ThreadID:           res.ThreadID,
		Content:            res.Text,
		Provider:           res.Provider,
		Model:              res.Model,
		InputTokens:        res.InputTokens,
		OutputTokens:       res.OutputTokens,
		TokensUsed:         res.TokensUsed(),
		LatencyMs:          res.Latency.Milliseconds(),
		Guardrail:          res.Guardrail,
		GuardrailViolation: res.GuardrailViolation,
	}
	return out, nil
}

func (s *Server) handleIndex(ctx context.Context, input *indexInput) (*indexOutput, error) {
	caller, err := tenant.ContextResolver{}.ResolveOrg(ctx)
	if err != nil {
		return nil, apiError(err)
	}
	if s.services.Indexer == nil {
		return nil, huma.Error503ServiceUnavailable("retrieval is not configured")
	}

	outcome, err := s.services.Tenants.Validate(ctx, input.Body.BrandID, brandsTable)
	if err != nil {
		return nil, apiError(err)
	}

	if err := s.services.Indexer.IndexBrand(ctx, outcome.OrgID, input.Body.BrandID); err != nil {
		return nil, apiError(err)
	}

	s.appendAudit(ctx, &store.AuditEntry{
		OrganizationID: outcome.OrgID,
		Actor:          caller.UserID,
		Action:         store.AuditActionRAGIndex,
		EntityTable:    brandsTable,
		EntityID:       input.Body.BrandID,
		Details:        map[string]any{"type": store.SourceTypeBrand, "indexed": 1},
	})

	out := &indexOutput{}
	out.Body.Indexed = 1
	out.Body.Type = store.SourceTypeBrand
	return out, nil
}

func (s *Server) handleHistory(ctx context.Context, input *historyInput) (*historyOutput, error) {
	caller, err := tenant.ContextResolver{}.ResolveOrg(ctx)
	if err != nil {
		return nil, apiError(err)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)
	offset := max(input.Offset, 0)

	// One extra row tells whether another page exists.
	entries, err := s.services.Audit.Query(ctx, store.AuditFilter{
		OrganizationID: caller.OrgID,
		Actor:          caller.UserID,
		Action:         store.AuditActionAIGenerate,
		Limit:          limit + 1,
		Offset:         offset,
		NewestFirst:    true,
	})
	if err != nil {
		return nil, apiError(err)
	}

	out := &historyOutput{}
	out.Body.Limit = limit
	out.Body.Offset = offset
	if len(entries) > limit {
		out.Body.HasMore = true
		entries = entries[:limit]
	}
	out.Body.Data = make([]HistoryItem, 0, len(entries))
	for _, e := range entries {
		out.Body.Data = append(out.Body.Data, historyItem(e))
	}
	return out, nil
}

func historyItem(e *store.AuditEntry) HistoryItem {
	detail := func(key string) string {
		v, _ := e.Details[key].(string)
		return v
	}
	return HistoryItem{
		ID:          e.ID,
		ThreadID:    e.ThreadID,
		ContentType: detail("content_type"),
		Platform:    detail("platform"),
		BrandID:     detail("brand_id"),
		Provider:    detail("provider"),
		Model:       e.AIModel,
		TokensUsed:  e.TokensUsed,
		CreatedAt:   e.CreatedAt,
	}
}

func (s *Server) handleOptimize(ctx context.Context, input *optimizeInput) (*optimizeOutput, error) {
	caller, err := tenant.ContextResolver{}.ResolveOrg(ctx)
	if err != nil {
		return nil, apiError(err)
	}

	brandID := strings.TrimSpace(input.Body.BrandID)
	if brandID == "" {
		return nil, huma.Error400BadRequest("brand_id is required")
	}
	dr, err := parseDateRange(input.Body.DateFrom, input.Body.DateTo)
	if err != nil {
		return nil, err
	}

	outcome, err := s.services.Tenants.Validate(ctx, brandID, brandsTable)
	if err != nil {
		return nil, apiError(err)
	}

	res, err := s.services.Scheduler.Optimize(ctx, brandID, outcome.OrgID, dr)
	if err != nil {
		return nil, apiError(err)
	}

	s.appendAudit(ctx, &store.AuditEntry{
		OrganizationID: outcome.OrgID,
		Actor:          caller.UserID,
		Action:         store.AuditActionScheduleOptimize,
		EntityTable:    brandsTable,
		EntityID:       brandID,
		Details: map[string]any{
			"method": res.Method,
			"slots":  len(res.OptimizedSlots),
		},
	})
	s.services.Events.Emit(ctx, events.Event{
		Type:           events.TypeScheduleOptimized,
		OrganizationID: outcome.OrgID,
		UserID:         caller.UserID,
		Data: map[string]any{
			"brand_id": brandID,
			"method":   res.Method,
			"slots":    len(res.OptimizedSlots),
		},
	})

	out := &optimizeOutput{}
	out.Body.Data = res
	return out, nil
}

// parseDateRange returns nil unless both ends are given.
func parseDateRange(from, to string) (*schedule.DateRange, error) {
	if from == "" || to == "" {
		return nil, nil
	}
	f, err := time.Parse(dateLayout, from)
	if err != nil {
		return nil, huma.Error400BadRequest("date_from must be YYYY-MM-DD")
	}
	t, err := time.Parse(dateLayout, to)
	if err != nil {
		return nil, huma.Error400BadRequest("date_to must be YYYY-MM-DD")
	}
	if t.Before(f) {
		return nil, huma.Error400BadRequest("date_to must not be before date_from")
	}
	return &schedule.DateRange{From: f, To: t}, nil
}

func (s *Server) handleHealth(_ context.Context, _ *struct{}) (*healthOutput, error) {
	return &healthOutput{Body: health.Report{
		Snapshot:  s.services.Health.HealthSnapshot(),
		Circuits:  s.services.Circuits.Snapshot(),
		Timestamp: time.Now().UTC(),
		Version:   s.cfg.Version,
	}}, nil
}

// appendAudit records a billable action. The response has already been
// produced, so a failed write is logged rather than returned.
func (s *Server) appendAudit(ctx context.Context, entry *store.AuditEntry) {
	if err := s.services.Audit.Append(ctx, entry); err != nil {
		slog.Error("writing audit entry",
			"action", entry.Action, "organization_id", entry.OrganizationID, "error", err)
	}
}
