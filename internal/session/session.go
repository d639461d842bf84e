// Package session owns one database connection and one conversation.
//
// A Session is created by Start with explicit configuration; nothing is
// shared between sessions. Questions are answered one at a time: a second
// Ask while the first is still running fails with ErrKindBusy.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koustreak/askdb/internal/agent"
	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/database/dialects"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/koustreak/askdb/internal/llm"
	"github.com/koustreak/askdb/internal/logger"
	"github.com/koustreak/askdb/internal/metrics"
	"github.com/koustreak/askdb/internal/schema"
)

// Greeting seeds every fresh transcript.
const Greeting = "How can I help you?"

// SchemaErrorAnswer is recorded when the schema could not be read for a
// reason other than a lost connection.
const SchemaErrorAnswer = "The database schema could not be read, so this question was not answered."

// Config is the per-session configuration.
type Config struct {
	Database   *database.Config
	Limits     schema.Limits
	MaxSteps   int
	RowLimit   int
	SampleRows int
}

// Deps are the collaborators a session is built from.
type Deps struct {
	LLM    llm.Client
	Logger *logger.Logger

	// Archive receives the transcript on Reset and Close. Optional.
	Archive Archiver

	// Hooks observe every step and statement. Optional.
	Hooks agent.Hooks

	// Connect opens the database. Defaults to dialects.Connect.
	Connect func(ctx context.Context, cfg *database.Config) (database.DB, error)

	// Now defaults to time.Now.
	Now func() time.Time
}

// Answer is the outcome of one Ask.
type Answer = agent.Result

// Session is one user's connection and conversation.
type Session struct {
	id    string
	cfg   Config
	deps  Deps
	agent agent.Config
	db    database.DB
	log   *logger.Logger

	// askMu is held for the whole of one Ask.
	askMu sync.Mutex

	mu     sync.Mutex
	turns  []agent.Turn
	cancel context.CancelFunc
	// interrupts counts interrupt calls so an Ask that has not yet
	// published cancel can tell it was overtaken.
	interrupts uint64

	closeOnce sync.Once
	closeErr  error
}

// Start validates cfg, connects and returns a session whose transcript
// holds only the greeting. Invalid configuration fails with
// ErrKindInvalidInput before any I/O.
func Start(ctx context.Context, cfg Config, deps Deps) (*Session, error) {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Connect == nil {
		deps.Connect = dialects.Connect
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	dialect := "unknown"
	if cfg.Database != nil {
		dialect = cfg.Database.Dialect.String()
	}

	agentCfg := agent.Config{
		LLM:        deps.LLM,
		MaxSteps:   cfg.MaxSteps,
		RowLimit:   cfg.RowLimit,
		SampleRows: cfg.SampleRows,
	}
	if err := agentCfg.Validate(); err != nil {
		metrics.SessionStartsTotal.WithLabelValues(dialect, "invalid").Inc()
		return nil, err
	}
	if err := dialects.Validate(cfg.Database); err != nil {
		metrics.SessionStartsTotal.WithLabelValues(dialect, "invalid").Inc()
		return nil, err
	}

	id := uuid.NewString()
	log := deps.Logger.With().Str("session", id).Str("dialect", dialect).Logger()

	db, err := deps.Connect(ctx, cfg.Database)
	if err != nil {
		metrics.SessionStartsTotal.WithLabelValues(dialect, errs.KindOf(err).String()).Inc()
		log.WarnWith("session: connect failed", err, map[string]interface{}{
			"dsn": logger.MaskDSN(cfg.Database.DSN),
		})
		return nil, err
	}
	metrics.SessionStartsTotal.WithLabelValues(dialect, "ok").Inc()
	metrics.SessionsActive.Inc()

	s := &Session{
		id:    id,
		cfg:   cfg,
		deps:  deps,
		agent: agentCfg,
		db:    db,
		log:   log,
	}
	s.turns = s.seed()
	log.InfoWith("session started", map[string]interface{}{"dsn": logger.MaskDSN(cfg.Database.DSN)})
	return s, nil
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// Dialect reports the connected engine.
func (s *Session) Dialect() database.Dialect { return s.db.Dialect() }

// Ask answers one question. Model failures and budget exhaustion are
// reported through the Answer, not the error. A lost database connection
// returns both the degraded Answer and the error. When ctx is cancelled
// the transcript keeps only the user turn.
func (s *Session) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "question must not be empty")
	}
	s.mu.Lock()
	gen := s.interrupts
	s.mu.Unlock()

	if !s.askMu.TryLock() {
		return nil, errs.New(errs.ErrKindBusy, "a question is already being answered in this session")
	}
	defer s.askMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	history, err := s.enter(question, cancel, gen)
	if err != nil {
		return nil, err
	}
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	start := time.Now()
	res, err := s.answer(ctx, question, history)
	if err != nil {
		s.log.DebugWith("session: ask cancelled", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	metrics.QuestionsTotal.WithLabelValues(string(res.Status), res.Reason).Inc()
	metrics.QuestionDuration.Observe(time.Since(start).Seconds())
	metrics.AgentSteps.Observe(float64(len(res.Steps)))

	s.mu.Lock()
	if s.turns != nil {
		s.turns = append(s.turns, agent.Turn{Role: agent.RoleAssistant, Content: res.Answer, At: s.deps.Now()})
	}
	s.mu.Unlock()

	if res.Reason == agent.ReasonConnectionFailed {
		return res, res.Err
	}
	return res, nil
}

func (s *Session) answer(ctx context.Context, question string, history []agent.Turn) (*Answer, error) {
	desc, err := schema.Describe(ctx, s.db, s.cfg.Limits)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.ErrorWith("session: schema introspection failed", err, nil)
		res := &Answer{Status: agent.StatusFailed, Answer: SchemaErrorAnswer, Reason: "schema_error", Err: err}
		if errs.IsConnectionFailed(err) {
			res.Answer = agent.ConnectionFailedAnswer
			res.Reason = agent.ReasonConnectionFailed
		}
		return res, nil
	}

	cfg := s.agent
	cfg.Logger = s.log
	cfg.Hooks = s.hooks()
	a, err := agent.New(cfg)
	if err != nil {
		return nil, err
	}

	res, err := a.Run(ctx, agent.Input{Question: question, Schema: desc, History: history}, s.db)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// hooks wraps the caller's hooks with metrics.
func (s *Session) hooks() agent.Hooks {
	user := s.deps.Hooks
	dialect := s.db.Dialect().String()
	return agent.Hooks{
		OnStep: user.OnStep,
		OnQuery: func(sql string, took time.Duration, err error) {
			outcome := "ok"
			if err != nil {
				outcome = errs.KindOf(err).String()
			}
			metrics.ObserveQuery(dialect, outcome, took)
			if user.OnQuery != nil {
				user.OnQuery(sql, took, err)
			}
		},
	}
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []agent.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]agent.Turn(nil), s.turns...)
}

// Schema describes the connected database with the session's limits.
func (s *Session) Schema(ctx context.Context) (*schema.Descriptor, error) {
	return schema.Describe(ctx, s.db, s.cfg.Limits)
}

// Reset cancels any in-flight Ask, waits for it, archives the transcript
// and starts a fresh conversation on the same connection.
func (s *Session) Reset(ctx context.Context) error {
	s.interrupt()
	s.askMu.Lock()
	defer s.askMu.Unlock()

	s.mu.Lock()
	if s.turns == nil {
		s.mu.Unlock()
		return errs.New(errs.ErrKindInvalidInput, "session is closed")
	}
	old := s.turns
	s.turns = s.seed()
	s.mu.Unlock()

	s.log.Info("session reset")
	return s.archive(ctx, old)
}

// Close cancels any in-flight Ask, archives the transcript and closes the
// database. Calling Close again returns the first result.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.interrupt()
		s.askMu.Lock()
		defer s.askMu.Unlock()

		s.mu.Lock()
		old := s.turns
		s.turns = nil
		s.mu.Unlock()

		s.closeErr = s.archive(ctx, old)
		s.db.Close()
		metrics.SessionsActive.Dec()
		s.log.Info("session closed")
	})
	return s.closeErr
}

// enter records the user turn and publishes cancel. It refuses when the
// session closed, or was interrupted after gen was read.
func (s *Session) enter(question string, cancel context.CancelFunc, gen uint64) ([]agent.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.turns == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "session is closed")
	}
	if s.interrupts != gen {
		return nil, context.Canceled
	}
	history := append([]agent.Turn(nil), s.turns...)
	s.turns = append(s.turns, agent.Turn{Role: agent.RoleUser, Content: question, At: s.deps.Now()})
	s.cancel = cancel
	return history, nil
}

func (s *Session) interrupt() {
	s.mu.Lock()
	s.interrupts++
	if s.cancel != nil {
		s.log.Debug("session: interrupting in-flight question")
		s.cancel()
	}
	s.mu.Unlock()
}

func (s *Session) seed() []agent.Turn {
	return []agent.Turn{{Role: agent.RoleAssistant, Content: Greeting, At: s.deps.Now()}}
}

// archive stores turns unless they hold nothing beyond the greeting.
func (s *Session) archive(ctx context.Context, turns []agent.Turn) error {
	if s.deps.Archive == nil || len(turns) <= 1 {
		return nil
	}
	if err := s.deps.Archive.Archive(ctx, s.id, turns); err != nil {
		s.log.ErrorWith("session: archive failed", err, map[string]interface{}{"turns": len(turns)})
		return err
	}
	return nil
}
