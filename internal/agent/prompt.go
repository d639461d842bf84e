package agent

import (
	"fmt"
	"strings"

	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/llm"
	"github.com/koustreak/askdb/internal/schema"
)

const systemPromptTemplate = `You are an agent designed to interact with a %[1]s database.
Given an input question, create a syntactically correct %[1]s query to run, look at the results of the query and return the answer.
Unless the user specifies a specific number of examples they wish to obtain, always limit your query to at most %[2]d results.
You can order the results by a relevant column to return the most interesting examples in the database.
Never query for all the columns from a specific table, only ask for the relevant columns given the question.
Only use the information returned by the actions below to construct your final answer.
If you get an error while executing a query, rewrite the query and try again.
DO NOT make any DML statements (INSERT, UPDATE, DELETE, DROP etc.) to the database.
If the question does not seem related to the database, just return "I don't know" as the answer.

Actions:
- list_tables: action_input is ignored. Returns the names of all tables.
- describe_tables: action_input is a comma-separated list of table names. Returns their columns and %[3]d sample rows.
- query_db: action_input is one SQL statement. Returns the result rows or an error.
- final_answer: action_input is your answer to the user.

Reply with exactly one JSON object and nothing else:
{"thought": "what you are thinking", "action": "one of the actions above", "action_input": "the input for the action"}

Database schema:
%[4]s`

const finalizationPrompt = `This is your last step. Do not call any more database actions. ` +
	`Reply with the final_answer action using what you have already observed; ` +
	`if you cannot answer, say so plainly.`

const parseErrorHint = `Reply with a single JSON object of the form {"thought": "...", "action": "...", "action_input": "..."}.`

// maxHistoryTurns bounds how much of the transcript is replayed.
const maxHistoryTurns = 10

func systemPrompt(d database.Dialect, desc *schema.Descriptor, rowLimit, sampleRows int) string {
	return fmt.Sprintf(systemPromptTemplate, d.DisplayName(), rowLimit, sampleRows, desc.Render())
}

func questionPrompt(q string) string {
	return "Question: " + strings.TrimSpace(q)
}

func observationPrompt(obs string) string {
	return "Observation: " + obs
}

// historyMessages converts the tail of a transcript into model messages.
// The model APIs want a conversation that starts with the user and
// alternates, so leading assistant turns are dropped and runs of the same
// role are merged.
func historyMessages(turns []Turn) []llm.Message {
	if len(turns) > maxHistoryTurns {
		turns = turns[len(turns)-maxHistoryTurns:]
	}

	var out []llm.Message
	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		if len(out) == 0 && role == llm.RoleAssistant {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + t.Content
			continue
		}
		out = append(out, llm.Message{Role: role, Content: t.Content})
	}

	// The question that follows is a user message.
	if n := len(out); n > 0 && out[n-1].Role == llm.RoleUser {
		out = out[:n-1]
	}
	return out
}
