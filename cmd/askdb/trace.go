package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/koustreak/askdb/internal/agent"
	"github.com/pterm/pterm"
)

const maxTraceLines = 12

// traceHooks render the agent's thinking as it happens.
func traceHooks(w io.Writer) agent.Hooks {
	thought := pterm.NewStyle(pterm.FgGray, pterm.Italic)
	action := pterm.NewStyle(pterm.FgCyan)
	failed := pterm.NewStyle(pterm.FgRed)

	return agent.Hooks{
		OnStep: func(s agent.Step) {
			if s.Thought != "" {
				fmt.Fprintln(w, thought.Sprintf("  %d. %s", s.Number, s.Thought))
			}
			if s.Action == "" || s.Action == agent.ActionFinalAnswer {
				if s.IsError {
					fmt.Fprintln(w, failed.Sprint(indent(clip(s.Observation))))
				}
				return
			}
			fmt.Fprintln(w, action.Sprintf("     %s: %s", s.Action, oneLine(s.ActionInput)))
			style := thought
			if s.IsError {
				style = failed
			}
			fmt.Fprintln(w, style.Sprint(indent(clip(s.Observation))))
		},
	}
}

// renderAnswer prints the final answer, flagging degraded ones.
func renderAnswer(w io.Writer, ans *agent.Result) {
	if ans.Status == agent.StatusFailed {
		fmt.Fprintln(w, pterm.Warning.Sprint(ans.Answer))
		return
	}
	fmt.Fprintln(w, pterm.NewStyle(pterm.FgGreen, pterm.Bold).Sprint("askdb> ")+ans.Answer)
}

func clip(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > maxTraceLines {
		lines = append(lines[:maxTraceLines], fmt.Sprintf("... %d more lines", len(lines)-maxTraceLines))
	}
	return strings.Join(lines, "\n")
}

func indent(s string) string {
	return "     " + strings.ReplaceAll(s, "\n", "\n     ")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
