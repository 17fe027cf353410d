package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kyleking/sqlassist/internal/engine"
	"github.com/kyleking/sqlassist/internal/errors"
	"github.com/kyleking/sqlassist/internal/formatter"
	"github.com/kyleking/sqlassist/internal/logging"
)

// errAnswerFailed marks a response that was already printed with its error
var errAnswerFailed = stderrors.New("answer failed")

var (
	askConversation string
	askFormat       string
	askShowSQL      bool
	askRetries      int
)

const retryBackoff = 500 * time.Millisecond

// Asker is the part of the engine the commands drive
type Asker interface {
	Ask(ctx context.Context, req engine.Request) engine.Response
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question",
	Long: `Translate one question into SQL, run it and print the rows.

Examples:
  sqlassist ask "top 10 accounts by balance"
  sqlassist ask --show-sql "count accounts by branch"
  sqlassist ask --format json "balances under 100 since last month"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askConversation, "conversation", "", "Conversation ID to continue (requires a persistent session backend)")
	askCmd.Flags().StringVar(&askFormat, "format", "table", "Output format: table or json")
	askCmd.Flags().BoolVar(&askShowSQL, "show-sql", false, "Print the generated SQL above the rows")
	askCmd.Flags().IntVar(&askRetries, "retries", 2, "Retries for transient database errors")
	askCmd.Flags().String("session-backend", "", "Session store: memory, duckdb or sqlite3")
}

func runAsk(cmd *cobra.Command, args []string) error {
	format, err := formatter.ParseFormat(askFormat)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeValidation, "invalid --format")
	}

	if askRetries < 0 {
		return errors.New(errors.ErrTypeValidation, "--retries must not be negative")
	}

	cfg, err := GetConfigFromContext(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	req := engine.Request{Prompt: strings.Join(args, " "), ConversationID: askConversation}

	stop := startSpinner(format)
	resp := askWithRetry(ctx, a.engine, req, askRetries, retryBackoff)
	stop()

	if err := printResponse(cmd.OutOrStdout(), formatter.NewFormatter(askShowSQL), resp, format); err != nil {
		return err
	}

	if resp.Error != "" {
		return errAnswerFailed
	}

	return nil
}

// askWithRetry repeats a request while the response reports a transient
// failure, waiting backoff*attempt between tries
func askWithRetry(ctx context.Context, asker Asker, req engine.Request, retries int, backoff time.Duration) engine.Response {
	logger := logging.GetLogger()

	resp := asker.Ask(ctx, req)

	for attempt := 1; attempt <= retries && resp.Retryable; attempt++ {
		logger.WithFields(map[string]any{
			"attempt": attempt,
			"error":   resp.Error,
		}).Debug("retrying after transient failure")

		select {
		case <-ctx.Done():
			return resp
		case <-time.After(backoff * time.Duration(attempt)):
		}

		// The retry must land in the same conversation even when the
		// first attempt allocated the ID.
		req.ConversationID = resp.ConversationID
		resp = asker.Ask(ctx, req)
	}

	return resp
}

// startSpinner shows progress on an interactive stderr and returns its stop
// function
func startSpinner(format formatter.OutputFormat) func() {
	if format != formatter.FormatTable || !isatty.IsTerminal(os.Stderr.Fd()) {
		return func() {}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " querying..."
	s.Start()

	return s.Stop
}

func printResponse(w io.Writer, f *formatter.Formatter, resp engine.Response, format formatter.OutputFormat) error {
	out, err := f.FormatResponse(resp, format)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, out)

	return err
}
