// Package engine wires extraction, planning, compilation, validation and
// execution into one request/response cycle per utterance.
package engine

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kyleking/sqlassist/internal/catalog"
	"github.com/kyleking/sqlassist/internal/errors"
	"github.com/kyleking/sqlassist/internal/gateway"
	"github.com/kyleking/sqlassist/internal/logging"
	"github.com/kyleking/sqlassist/internal/policy"
	"github.com/kyleking/sqlassist/internal/query"
	"github.com/kyleking/sqlassist/internal/session"
)

const (
	rejectedMessage = "I can't run that query."
	internalMessage = "An internal processing error occurred."
)

// Executor runs approved statements
type Executor interface {
	Execute(ctx context.Context, approved policy.Approved) (*gateway.Result, error)
}

// Engine is stateless apart from its collaborators and safe for concurrent
// use. Requests for different conversations never wait on each other.
type Engine struct {
	catalog   *catalog.Catalog
	extractor *query.Extractor
	planner   *query.Planner
	compiler  *query.Compiler
	validator *policy.Validator
	executor  Executor
	store     session.Store
	logger    *logging.Logger

	now   func() time.Time
	newID func() string
	cache query.SQLCache
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock replaces time.Now for resolving relative dates
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator replaces the conversation id allocator
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

// WithSQLCache reuses compiled SQL text for plans of the same shape
func WithSQLCache(cache query.SQLCache) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}

// New builds an engine over a fixed catalog. The table and limits cannot
// change for the life of the engine.
func New(cat *catalog.Catalog, limits query.Limits, executor Executor, store session.Store, opts ...Option) *Engine {
	e := &Engine{
		catalog:  cat,
		executor: executor,
		store:    store,
		logger:   logging.NewNop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	var compilerOpts []query.CompilerOption
	if e.cache != nil {
		compilerOpts = append(compilerOpts, query.WithSQLCache(e.cache))
	}

	e.extractor = query.NewExtractor(cat)
	e.planner = query.NewPlanner(cat, limits)
	e.compiler = query.NewCompiler(cat, compilerOpts...)
	e.validator = policy.NewValidator(cat.TableName(), e.planner.Limits().MaxRows)
	e.logger = e.logger.WithField("component", "engine")

	return e
}

// Catalog returns the catalog the engine answers questions about
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Ask answers one utterance. Every outcome, including failures, is reported
// in the response; the engine never retries.
func (e *Engine) Ask(ctx context.Context, req Request) Response {
	start := time.Now()

	resp := Response{ConversationID: req.ConversationID}
	if resp.ConversationID == "" {
		resp.ConversationID = e.newID()
	}

	logger := e.logger.WithField("conversation_id", resp.ConversationID)
	prompt := strings.TrimSpace(req.Prompt)

	// the prompt itself is never logged
	logger.WithField("prompt_length", utf8.RuneCountInString(prompt)).Info("incoming request")

	if prompt == "" || strings.EqualFold(prompt, "help") {
		resp.Message = e.helpMessage()
		return resp
	}

	prior := e.priorIntent(ctx, logger, resp.ConversationID)

	intent, err := e.extractor.Extract(prompt, prior, e.now())
	if err != nil {
		return e.extractionFailure(logger, resp, err)
	}

	if intent.UnresolvedReference != "" {
		logger.WithField("phrase", intent.UnresolvedReference).Info("follow-up cue without a prior turn")
	}

	stmt, err := e.compiler.Compile(e.planner.Plan(intent))
	if err != nil {
		logger.WithError(err).Error("failed to compile intent")
		resp.Error = internalMessage

		return resp
	}

	approved, err := e.validator.Validate(stmt)
	if err != nil {
		var v *policy.Violation
		if errors.As(err, &v) {
			logger.WithField("reason", v.Reason).Error("policy violation")
		} else {
			logger.WithError(err).Error("policy violation")
		}

		resp.Error = rejectedMessage

		return resp
	}

	resp.SQL = approved.SQL()

	result, err := e.executor.Execute(ctx, approved)
	if err != nil {
		return e.executionFailure(logger, resp, err)
	}

	resp.Columns = result.Columns
	resp.Rows = result.Rows
	resp.Truncated = result.Truncated
	resp.ExecutionTimeMs = milliseconds(time.Since(start))

	turn := session.Turn{Intent: intent, Timestamp: e.now()}
	if err := e.store.AppendTurn(ctx, resp.ConversationID, turn); err != nil {
		logger.WithError(err).Warn("failed to record turn")
	}

	logger.Infof("query successful: %d rows in %.2fms", len(resp.Rows), resp.ExecutionTimeMs)

	return resp
}

// priorIntent loads the previous turn. A store failure degrades to a
// standalone question.
func (e *Engine) priorIntent(ctx context.Context, logger *logging.Logger, conversationID string) *query.Intent {
	last, err := e.store.LastTurn(ctx, conversationID)
	if err != nil {
		logger.WithError(err).Warn("failed to load conversation, continuing without context")
		return nil
	}

	if last == nil {
		return nil
	}

	return &last.Intent
}

func (e *Engine) extractionFailure(logger *logging.Logger, resp Response, err error) Response {
	var xe *query.ExtractionError
	if errors.As(err, &xe) {
		logger.WithFields(map[string]any{
			"reason":     string(xe.Reason),
			"candidates": len(xe.Candidates),
		}).Info("asking for clarification")

		resp.Message = xe.Clarification()

		return resp
	}

	logger.WithError(err).Error("extraction failed")
	resp.Error = internalMessage

	return resp
}

func (e *Engine) executionFailure(logger *logging.Logger, resp Response, err error) Response {
	var ee *gateway.ExecutionError
	if errors.As(err, &ee) {
		resp.Error = "Database retrieval error: " + ee.Message
		resp.Retryable = ee.Retryable()

		return resp
	}

	// Only an unapproved statement reaches here, which Ask never produces.
	logger.WithError(err).Error("execution refused")
	resp.SQL = ""
	resp.Error = rejectedMessage

	return resp
}

func (e *Engine) helpMessage() string {
	var b strings.Builder

	b.WriteString("Ask a question about the data, for example \"show the top 5 by ")
	b.WriteString(e.exampleColumn())
	b.WriteString("\" or \"how many rows are there\". Follow-up questions refine the previous answer.\n\n")
	b.WriteString(e.catalog.Describe())

	return b.String()
}

func (e *Engine) exampleColumn() string {
	if m := e.catalog.MeasureColumn(); m != "" {
		return strings.ReplaceAll(m, "_", " ")
	}

	return strings.ReplaceAll(e.catalog.Columns()[0].Name, "_", " ")
}

func milliseconds(d time.Duration) float64 {
	ms := float64(d.Microseconds()) / 1000
	return float64(int64(ms*100+0.5)) / 100
}
