package agent

import (
	"time"

	"github.com/koustreak/askdb/internal/schema"
)

// Action is what the model asks the agent to do next.
type Action string

const (
	ActionQueryDB        Action = "query_db"
	ActionListTables     Action = "list_tables"
	ActionDescribeTables Action = "describe_tables"
	ActionFinalAnswer    Action = "final_answer"
)

var knownActions = []Action{ActionQueryDB, ActionListTables, ActionDescribeTables, ActionFinalAnswer}

func (a Action) valid() bool {
	for _, k := range knownActions {
		if a == k {
			return true
		}
	}
	return false
}

// Role is the author of a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a session transcript.
type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Step is one think/act/observe round. Steps live only for one Run.
type Step struct {
	Number      int    `json:"number"`
	Thought     string `json:"thought,omitempty"`
	Action      Action `json:"action,omitempty"`
	ActionInput string `json:"action_input,omitempty"`
	Observation string `json:"observation,omitempty"`
	IsError     bool   `json:"is_error,omitempty"`
}

// Status is the terminal state of a Run.
type Status string

const (
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// Reasons attached to a failed Result.
const (
	ReasonBudgetExceeded   = "budget_exceeded"
	ReasonModelError       = "model_error"
	ReasonConnectionFailed = "connection_failed"
)

// Answers used when the loop cannot produce one from the model.
const (
	BudgetExceededAnswer   = "Unable to determine an answer within the step budget."
	ModelErrorAnswer       = "The language model could not be reached, so this question was not answered. Please try again."
	ConnectionFailedAnswer = "The database connection was lost while answering. Please reconnect and try again."
)

// Input is everything one Run needs besides the database.
type Input struct {
	Question string
	Schema   *schema.Descriptor
	History  []Turn
}

// Result is the outcome of a Run. Failed results still carry a
// user-presentable Answer.
type Result struct {
	Status Status `json:"status"`
	Answer string `json:"answer"`
	Steps  []Step `json:"steps"`
	Reason string `json:"reason,omitempty"`

	// Err is the underlying failure for model and connection errors.
	Err error `json:"-"`
}

// Hooks observe a Run without influencing it.
type Hooks struct {
	// OnStep is called after each step's observation is known.
	OnStep func(Step)
	// OnQuery is called after every query_db execution.
	OnQuery func(sql string, took time.Duration, err error)
}
