package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/koustreak/askdb/internal/errs"
	"github.com/koustreak/askdb/internal/logger"
	"github.com/koustreak/askdb/internal/session"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newChatCmd(g *globalFlags) *cobra.Command {
	var db dbFlags
	var quiet bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a database interactively",
		Long: `Start an interactive conversation with a database.

Type a question and press enter. Commands:
  /reset   start a new conversation on the same connection
  /schema  show the tables the model sees
  /quit    leave`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(true)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			deps := session.Deps{}
			if !quiet {
				deps.Hooks = traceHooks(os.Stdout)
			}
			sess, err := startSession(ctx, cfg, log, db, deps)
			if err != nil {
				return err
			}
			defer sess.Close(context.Background())

			pterm.DefaultBox.
				WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("askdb")).
				WithPadding(1).
				Println(fmt.Sprintf("Connected to %s: %s", sess.Dialect().DisplayName(), logger.MaskDSN(db.resolve())))
			pterm.Println(sess.Transcript()[0].Content)

			return repl(ctx, sess)
		},
	}
	db.register(cmd)
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the agent's intermediate steps")
	return cmd
}

func repl(ctx context.Context, sess *session.Session) error {
	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		pterm.Print(pterm.NewStyle(pterm.FgLightBlue, pterm.Bold).Sprint("you> "))
		if !in.Scan() {
			pterm.Println()
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := sess.Reset(ctx); err != nil {
				pterm.Warning.Println("conversation cleared, but archiving failed:", err)
			}
			pterm.Info.Println("Started a new conversation.")
			continue
		case "/schema":
			desc, err := sess.Schema(ctx)
			if err != nil {
				pterm.Error.Println(err)
				continue
			}
			pterm.Println(desc.Render())
			continue
		}

		ans, err := sess.Ask(ctx, line)
		if ans != nil {
			renderAnswer(os.Stdout, ans)
		}
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			return nil
		case errs.IsConnectionFailed(err):
			return err
		default:
			pterm.Error.Println(err)
		}
	}
}
