// Package agent implements the think/act/observe loop that turns a
// natural-language question into SQL, runs it and answers from the rows.
//
// Each round the model replies with one JSON action. Database and parse
// errors are fed back as observations so the model can correct itself;
// only the step budget, a model outage, a lost connection or cancellation
// end the loop early.
package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/koustreak/askdb/internal/errs"
	"github.com/koustreak/askdb/internal/llm"
	"github.com/koustreak/askdb/internal/logger"
	"github.com/koustreak/askdb/internal/schema"
)

const (
	DefaultMaxSteps = 12
	DefaultRowLimit = 50
)

// Config is the configuration for the Agent.
type Config struct {
	LLM        llm.Client
	MaxSteps   int
	RowLimit   int
	SampleRows int
	Logger     *logger.Logger
	Hooks      Hooks
}

// Validate fills defaults and rejects unusable values.
func (cfg *Config) Validate() error {
	if cfg.LLM == nil {
		return errs.New(errs.ErrKindInvalidInput, "agent: LLM client is required")
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.MaxSteps < 0 {
		return errs.New(errs.ErrKindInvalidInput, "agent: max steps must be greater than 0")
	}
	if cfg.RowLimit == 0 {
		cfg.RowLimit = DefaultRowLimit
	}
	if cfg.RowLimit < 0 {
		return errs.New(errs.ErrKindInvalidInput, "agent: row limit must be greater than 0")
	}
	if cfg.SampleRows == 0 {
		cfg.SampleRows = schema.DefaultSampleRows
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return nil
}

// Agent runs questions against one database. It holds no per-question
// state and may be shared.
type Agent struct {
	cfg Config
	log *logger.Logger
}

// New creates an agent from cfg.
func New(cfg Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Agent{cfg: cfg, log: cfg.Logger}, nil
}

// MaxSteps reports the step budget.
func (a *Agent) MaxSteps() int { return a.cfg.MaxSteps }

// Run answers in.Question using db. The returned error is non-nil only
// when ctx is cancelled; every other outcome, including failure, is
// described by the Result.
func (a *Agent) Run(ctx context.Context, in Input, db schema.Source) (*Result, error) {
	if strings.TrimSpace(in.Question) == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "question must not be empty")
	}

	req := llm.Request{
		System:   systemPrompt(db.Dialect(), in.Schema, a.cfg.RowLimit, a.cfg.SampleRows),
		Messages: append(historyMessages(in.History), llm.Message{Role: llm.RoleUser, Content: questionPrompt(in.Question)}),
	}

	res := &Result{}
	for n := 1; n <= a.cfg.MaxSteps; n++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if n == a.cfg.MaxSteps {
			a.log.DebugWith("agent: injecting finalization prompt", map[string]interface{}{"step": n})
			last := &req.Messages[len(req.Messages)-1]
			last.Content += "\n\n" + finalizationPrompt
		}

		text, err := a.cfg.LLM.Complete(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			a.log.ErrorWith("agent: model call failed", err, map[string]interface{}{"step": n})
			res.Status = StatusFailed
			res.Reason = ReasonModelError
			res.Answer = ModelErrorAnswer
			res.Err = err
			return res, nil
		}

		step, done, err := a.act(ctx, n, text, db)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			// Only a lost connection gets here; query errors are observations.
			res.Steps = append(res.Steps, step)
			a.notify(step)
			res.Status = StatusFailed
			res.Reason = ReasonConnectionFailed
			res.Answer = ConnectionFailedAnswer
			res.Err = err
			return res, nil
		}

		res.Steps = append(res.Steps, step)
		a.notify(step)

		if done {
			res.Status = StatusDone
			res.Answer = step.ActionInput
			return res, nil
		}

		req.Messages = append(req.Messages,
			llm.Message{Role: llm.RoleAssistant, Content: text},
			llm.Message{Role: llm.RoleUser, Content: observationPrompt(step.Observation)},
		)
	}

	a.log.WarnWith("agent: step budget exhausted", nil, map[string]interface{}{"max_steps": a.cfg.MaxSteps})
	res.Status = StatusFailed
	res.Reason = ReasonBudgetExceeded
	res.Answer = BudgetExceededAnswer
	res.Err = errs.Newf(errs.ErrKindBudgetExceeded, "no final answer after %d steps", a.cfg.MaxSteps)
	return res, nil
}

// act parses one model reply and performs the requested action. It
// returns done for a final answer and a non-nil error only for failures
// that must end the loop.
func (a *Agent) act(ctx context.Context, n int, text string, db schema.Source) (Step, bool, error) {
	step, err := parseReply(text)
	step.Number = n
	if err != nil {
		a.log.DebugWith("agent: unparseable reply", map[string]interface{}{"step": n, "error": err.Error()})
		step.IsError = true
		step.Observation = "Error: could not parse your reply: " + err.Error() + ". " + parseErrorHint
		return step, false, nil
	}

	switch step.Action {
	case ActionFinalAnswer:
		if step.ActionInput == "" {
			step.IsError = true
			step.Observation = "Error: final_answer needs the answer text in action_input."
			return step, false, nil
		}
		return step, true, nil

	case ActionQueryDB:
		start := time.Now()
		rs, err := db.Execute(ctx, step.ActionInput, a.cfg.RowLimit)
		if a.cfg.Hooks.OnQuery != nil {
			a.cfg.Hooks.OnQuery(step.ActionInput, time.Since(start), err)
		}
		if err != nil {
			return a.observeError(step, err)
		}
		step.Observation = rs.Table()

	case ActionListTables:
		tables, err := db.ListTables(ctx)
		if err != nil {
			return a.observeError(step, err)
		}
		if len(tables) == 0 {
			step.Observation = "The database has no tables."
		} else {
			step.Observation = strings.Join(tables, ", ")
		}

	case ActionDescribeTables:
		out, err := schema.DescribeTables(ctx, db, strings.Split(step.ActionInput, ","), a.cfg.SampleRows)
		if err != nil {
			return a.observeError(step, err)
		}
		step.Observation = out
	}

	return step, false, nil
}

// observeError turns a recoverable error into an observation and passes
// anything else up.
func (a *Agent) observeError(step Step, err error) (Step, bool, error) {
	step.IsError = true
	step.Observation = "Error: " + errorText(err)

	if errs.IsConnectionFailed(err) {
		return step, false, err
	}
	a.log.DebugWith("agent: action failed", map[string]interface{}{
		"step":   step.Number,
		"action": string(step.Action),
		"kind":   errs.KindOf(err).String(),
	})
	return step, false, nil
}

func (a *Agent) notify(step Step) {
	if a.cfg.Hooks.OnStep != nil {
		a.cfg.Hooks.OnStep(step)
	}
}

// errorText is the message shown to the model, without the kind tag.
// Drivers that already folded the server's text into Message ("query
// failed: syntax error ...") do not get the cause repeated.
func errorText(err error) string {
	var e *errs.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	if e.Cause != nil && !strings.Contains(e.Message, ": ") {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}
