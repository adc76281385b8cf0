package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/api"
	"github.com/typenhq/typen/internal/auth"
	"github.com/typenhq/typen/internal/client"
	"github.com/typenhq/typen/internal/editor"
	"github.com/typenhq/typen/internal/layout"
	"github.com/typenhq/typen/internal/richtext"
	"github.com/typenhq/typen/internal/server/endpoints"
)

const editHelp = `Lines are typed into the book at the caret. Commands start with ':'
  :enter          start a new paragraph
  :back [n]       delete n graphemes before the caret (default 1)
  :pick <n>       insert suggestion n (1-8)
  :style <name>   toggle bold, italic, underline or strike
  :block <kind>   set the paragraph kind: p, h1, h2, h3, quote
  :regen          fetch fresh suggestions now
  :show           print the pages and suggestions
  :save           save now
  :quit           save and exit`

var editCmd = &cobra.Command{
	Use:   "edit <book-id>",
	Short: "Edit a book from the terminal",
	Long: `Open a book on the running server and edit it line by line.

The editor paginates as you type, asks the server for next-word
suggestions and autosaves after a short pause. The bearer token is
read from TYPEN_TOKEN.

` + editHelp,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		_, cm, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cm.Get()
		logger := cfg.Log.NewLogger(cmd.ErrOrStderr())

		session, err := auth.NewSession(os.Getenv(endpoints.TokenEnv))
		if err != nil {
			return fmt.Errorf("sign in first (set %s): %w", endpoints.TokenEnv, err)
		}
		c := client.New(api.NewClient(getServerURL(), api.WithToken(session.Token)))
		out := cmd.OutOrStdout()

		ed, err := editor.Open(ctx, editor.Config{
			BookID:        args[0],
			Books:         c,
			Predictor:     c,
			Identity:      session,
			Measurer:      layout.NewTextMeasurer(cfg.Editor.Metrics()),
			PageSize:      cfg.Editor.PageSize(),
			Logger:        logger,
			Debounce:      cfg.Editor.Debounce(),
			AutosaveDelay: cfg.Editor.AutosaveDelay(),
			LeaveTimeout:  cfg.Editor.LeaveTimeout(),
			OnSignedOut: func() {
				fmt.Fprintln(out, "session expired; sign in again to keep saving")
			},
		})
		if err != nil {
			return err
		}

		st := ed.State()
		fmt.Fprintf(out, "Editing %q (%d pages, %d words). Type :help for commands.\n",
			st.Title, len(st.Pages), st.Counts.Words)

		runErr := runEditor(ctx, ed, cmd.InOrStdin(), out)

		leaveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Editor.LeaveTimeout())
		defer cancel()
		if err := ed.Leave(leaveCtx); err != nil {
			return errors.Join(runErr, fmt.Errorf("final save failed: %w", err))
		}
		return runErr
	},
}

// runEditor reads commands until :quit, end of input or cancellation.
func runEditor(ctx context.Context, ed *editor.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		if !strings.HasPrefix(line, ":") {
			if err := ed.InsertText(line); err != nil {
				return err
			}
			printStatus(out, ed.State())
			continue
		}

		fields := strings.Fields(line[1:])
		if len(fields) == 0 {
			continue
		}
		arg := ""
		if len(fields) > 1 {
			arg = fields[1]
		}

		var err error
		switch fields[0] {
		case "quit", "q":
			return nil
		case "help", "h":
			fmt.Fprintln(out, editHelp)
			continue
		case "enter":
			err = ed.Enter()
		case "back":
			n := 1
			if arg != "" {
				if n, err = strconv.Atoi(arg); err != nil || n < 1 {
					fmt.Fprintln(out, "usage: :back [n]")
					continue
				}
			}
			for i := 0; i < n && err == nil; i++ {
				err = ed.DeleteBackward()
			}
		case "pick":
			preds := ed.State().Predictions
			n, convErr := strconv.Atoi(arg)
			if convErr != nil || n < 1 || n > len(preds) {
				fmt.Fprintf(out, "usage: :pick <1-%d>\n", len(preds))
				continue
			}
			err = ed.InsertSuggestion(preds[n-1].Word)
		case "style":
			style, ok := richtext.ParseStyle(arg)
			if !ok {
				fmt.Fprintln(out, "usage: :style bold|italic|underline|strike")
				continue
			}
			err = ed.ToggleStyle(style)
		case "block":
			kind, ok := richtext.ParseKind(arg)
			if !ok {
				fmt.Fprintln(out, "usage: :block p|h1|h2|h3|quote")
				continue
			}
			err = ed.SetBlockKind(kind)
		case "regen":
			if err = ed.Regenerate(); err == nil {
				ed.Wait()
			}
		case "show":
			st := ed.State()
			for i, p := range st.Pages {
				fmt.Fprintf(out, "--- page %d ---\n%s\n", i+1, p)
			}
			printSuggestions(out, st)
			continue
		case "save":
			if err = ed.Save(ctx); err == nil {
				fmt.Fprintln(out, "saved")
			}
		default:
			fmt.Fprintf(out, "unknown command :%s (try :help)\n", fields[0])
			continue
		}
		if err != nil {
			if errors.Is(err, editor.ErrClosed) {
				return err
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		printStatus(out, ed.State())
	}
	return scanner.Err()
}

func printStatus(out io.Writer, st editor.State) {
	fmt.Fprintf(out, "[page %d/%d, %d words, %s]\n",
		st.Cursor.PageIndex+1, len(st.Pages), st.Counts.Words, st.SaveStatus)
	if len(st.Oversized) > 0 {
		fmt.Fprintf(out, "warning: pages %v hold content taller than a page\n", st.Oversized)
	}
}

func printSuggestions(out io.Writer, st editor.State) {
	if st.Loading {
		fmt.Fprintln(out, "suggestions: loading...")
		return
	}
	parts := make([]string, len(st.Predictions))
	for i, p := range st.Predictions {
		parts[i] = fmt.Sprintf("%d:%s", i+1, p.Word)
	}
	fmt.Fprintf(out, "suggestions: %s\n", strings.Join(parts, " "))
}

func init() {
	editCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(editCmd)
}
