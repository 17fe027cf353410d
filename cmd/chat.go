package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kyleking/sqlassist/internal/engine"
	"github.com/kyleking/sqlassist/internal/errors"
	"github.com/kyleking/sqlassist/internal/formatter"
)

var (
	chatShowSQL bool
	chatFormat  string
)

const chatPrompt = "sqlassist> "

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session with follow-up questions",
	Long: `Read questions line by line. Each question may refine the previous one,
for example "show balances over 5000" followed by "only branch 12".

Type "new" to start a fresh conversation and "exit" to quit.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatShowSQL, "show-sql", true, "Print the generated SQL above the rows")
	chatCmd.Flags().StringVar(&chatFormat, "format", "table", "Output format: table or json")
}

func runChat(cmd *cobra.Command, _ []string) error {
	format, err := formatter.ParseFormat(chatFormat)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeValidation, "invalid --format")
	}

	cfg, err := GetConfigFromContext(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Connected. Asking about %q; type \"help\" for columns, \"exit\" to quit.\n", a.catalog.TableName())

	return chatLoop(cmd.Context(), a.engine, cmd.InOrStdin(), cmd.OutOrStdout(), formatter.NewFormatter(chatShowSQL), format, uuid.NewString)
}

// chatLoop answers one question per input line within a single conversation
// until EOF or an exit command
func chatLoop(ctx context.Context, asker Asker, in io.Reader, out io.Writer, f *formatter.Formatter, format formatter.OutputFormat, newID func() string) error {
	scanner := bufio.NewScanner(in)
	conversationID := newID()

	for {
		fmt.Fprint(out, chatPrompt)

		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}

		line := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit", `\q`:
			return nil
		case "new":
			conversationID = newID()
			fmt.Fprintln(out, "Started a new conversation.")

			continue
		}

		if err := ctx.Err(); err != nil {
			return nil
		}

		resp := askWithRetry(ctx, asker, engine.Request{Prompt: line, ConversationID: conversationID}, 1, retryBackoff)

		if err := printResponse(out, f, resp, format); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, errors.ErrTypeInternal, "failed to read input")
	}

	return nil
}
