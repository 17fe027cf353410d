package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/sqlassist/internal/catalog"
	"github.com/kyleking/sqlassist/internal/config"
	"github.com/kyleking/sqlassist/internal/engine"
	"github.com/kyleking/sqlassist/internal/formatter"
	"github.com/kyleking/sqlassist/internal/gateway"
	"github.com/kyleking/sqlassist/internal/query"
	"github.com/kyleking/sqlassist/internal/session"
	"github.com/kyleking/sqlassist/internal/testutil"
)

// scriptedAsker replays responses in order and records every request
type scriptedAsker struct {
	mu        sync.Mutex
	responses []engine.Response
	requests  []engine.Request
}

func (s *scriptedAsker) Ask(_ context.Context, req engine.Request) engine.Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)

	if len(s.responses) == 0 {
		return engine.Response{ConversationID: req.ConversationID, Message: "ok"}
	}

	resp := s.responses[0]
	s.responses = s.responses[1:]

	return resp
}

func transient(id string) engine.Response {
	return engine.Response{ConversationID: id, SQL: "SELECT 1", Error: "Database retrieval error: timeout", Retryable: true}
}

func TestAskWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		responses []engine.Response
		retries   int
		wantCalls int
		wantError bool
	}{
		{
			name:      "success first time",
			responses: []engine.Response{{ConversationID: "c1"}},
			retries:   2,
			wantCalls: 1,
		},
		{
			name:      "recovers after transient failures",
			responses: []engine.Response{transient("c1"), transient("c1"), {ConversationID: "c1"}},
			retries:   2,
			wantCalls: 3,
		},
		{
			name:      "gives up after retries",
			responses: []engine.Response{transient("c1"), transient("c1"), transient("c1")},
			retries:   1,
			wantCalls: 2,
			wantError: true,
		},
		{
			name:      "permanent failures are not retried",
			responses: []engine.Response{{ConversationID: "c1", Error: "I can't run that query."}},
			retries:   3,
			wantCalls: 1,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asker := &scriptedAsker{responses: tt.responses}

			resp := askWithRetry(context.Background(), asker, engine.Request{Prompt: "q"}, tt.retries, time.Millisecond)

			assert.Len(t, asker.requests, tt.wantCalls)
			assert.Equal(t, tt.wantError, resp.Error != "")
		})
	}
}

func TestAskWithRetry_KeepsConversation(t *testing.T) {
	asker := &scriptedAsker{responses: []engine.Response{transient("allocated"), {ConversationID: "allocated"}}}

	askWithRetry(context.Background(), asker, engine.Request{Prompt: "q"}, 1, time.Millisecond)

	require.Len(t, asker.requests, 2)
	assert.Empty(t, asker.requests[0].ConversationID)
	assert.Equal(t, "allocated", asker.requests[1].ConversationID)
}

func TestAskWithRetry_Canceled(t *testing.T) {
	asker := &scriptedAsker{responses: []engine.Response{transient("c1"), {}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := askWithRetry(ctx, asker, engine.Request{Prompt: "q"}, 5, time.Hour)

	assert.Len(t, asker.requests, 1)
	assert.True(t, resp.Retryable)
}

func counterIDs() func() string {
	n := 0

	return func() string {
		n++
		return fmt.Sprintf("conv-%d", n)
	}
}

func TestChatLoop(t *testing.T) {
	asker := &scriptedAsker{}
	in := strings.NewReader("first question\n\n  second question  \nnew\nthird question\nexit\nnever asked\n")

	var out bytes.Buffer

	err := chatLoop(context.Background(), asker, in, &out, formatter.NewFormatter(false), formatter.FormatTable, counterIDs())
	require.NoError(t, err)

	require.Len(t, asker.requests, 3)
	assert.Equal(t, engine.Request{Prompt: "first question", ConversationID: "conv-1"}, asker.requests[0])
	assert.Equal(t, engine.Request{Prompt: "second question", ConversationID: "conv-1"}, asker.requests[1])
	assert.Equal(t, engine.Request{Prompt: "third question", ConversationID: "conv-2"}, asker.requests[2])

	assert.Contains(t, out.String(), "Started a new conversation.")
	assert.Equal(t, 3, strings.Count(out.String(), "ok\n"))
}

func TestChatLoop_EOF(t *testing.T) {
	asker := &scriptedAsker{}

	var out bytes.Buffer

	err := chatLoop(context.Background(), asker, strings.NewReader("only one"), &out, formatter.NewFormatter(false), formatter.FormatTable, counterIDs())
	require.NoError(t, err)
	assert.Len(t, asker.requests, 1)
}

func TestChatLoop_FollowUpAgainstDatabase(t *testing.T) {
	gw := gateway.New(testutil.NewOrdersDB(t), gateway.Options{Driver: "duckdb", RowCap: 1000}, nil)
	eng := engine.New(testutil.OrdersCatalog(t), query.DefaultLimits, gw, session.NewMemoryStore())

	in := strings.NewReader("show orders over 100\nonly those in region north\n")

	var out bytes.Buffer

	err := chatLoop(context.Background(), eng, in, &out, formatter.NewFormatter(true), formatter.FormatTable, counterIDs())
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "\n2 rows")
	assert.Contains(t, text, "\n1 row")
	assert.Contains(t, text, "region = ?")
}

func TestPrintSchema(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printSchema(&out, catalog.Default(), formatter.FormatTable))
	assert.Contains(t, out.String(), "ccod_bal")

	out.Reset()
	require.NoError(t, printSchema(&out, catalog.Default(), formatter.FormatJSON))

	var decoded struct {
		Table   string           `json:"table"`
		Columns []catalog.Column `json:"columns"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "ccod_bal", decoded.Table)
	assert.Equal(t, catalog.Default().Columns(), decoded.Columns)
}

func TestRedactDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://reader:s3cret@db:5432/bank?sslmode=disable", "postgres://reader:xxxxx@db:5432/bank?sslmode=disable"},
		{"postgres://db:5432/bank", "postgres://db:5432/bank"},
		{"/var/lib/bank.duckdb?access_mode=READ_ONLY", "/var/lib/bank.duckdb?access_mode=READ_ONLY"},
		{"host=db user=reader password=s3cret", "host=db user=reader password=s3cret"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, redactDSN(tt.in), tt.in)
	}
}

func TestPrintConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.DSN = "postgres://reader:s3cret@db/bank"

	var out bytes.Buffer
	require.NoError(t, printConfig(&out, cfg))

	assert.NotContains(t, out.String(), "s3cret")
	assert.Contains(t, out.String(), `"driver": "pgx"`)
	assert.Equal(t, "postgres://reader:s3cret@db/bank", cfg.Database.DSN, "caller's config untouched")
}

func TestRootCommand_Schema(t *testing.T) {
	t.Setenv("SQLASSIST_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"schema", "--format", "json"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		schemaFormat = "table"
	})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), `"table": "ccod_bal"`)
}
