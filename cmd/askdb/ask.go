package main

import (
	"context"
	"os"
	"strings"

	"github.com/koustreak/askdb/internal/agent"
	"github.com/koustreak/askdb/internal/errs"
	"github.com/koustreak/askdb/internal/session"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newAskCmd(g *globalFlags) *cobra.Command {
	var db dbFlags
	var trace bool
	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Answer a single question and exit",
		Example: `  askdb ask --dsn ./shop.db "How many orders were placed last week?"
  ASKDB_DSN=postgres://app@localhost/app askdb ask --trace "Who are the top 5 customers?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(true)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			deps := session.Deps{}
			if trace {
				deps.Hooks = traceHooks(os.Stderr)
			}
			sess, err := startSession(ctx, cfg, log, db, deps)
			if err != nil {
				return err
			}
			defer sess.Close(context.Background())

			ans, err := sess.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if ans.Status == agent.StatusFailed {
				pterm.Warning.WithWriter(os.Stderr).Println(ans.Answer)
				return errs.Newf(errs.KindOf(ans.Err), "no answer: %s", ans.Reason)
			}
			pterm.Println(ans.Answer)
			return nil
		},
	}
	db.register(cmd)
	cmd.Flags().BoolVarP(&trace, "trace", "t", false, "print the agent's steps to stderr")
	return cmd
}
