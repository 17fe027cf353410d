package query_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/sqlassist/internal/query"
	"github.com/kyleking/sqlassist/internal/testutil"
)

// A persisted turn must rebind exactly the parameters it was built with;
// plain JSON would turn int64(3) into float64(3).
func TestTurn_JSONKeepsValueTypes(t *testing.T) {
	turn := query.Turn{
		Intent: testutil.NewIntent(
			testutil.WithFilter("quantity", query.CmpIn, int64(1), int64(3)),
			testutil.WithFilter("amount", query.CmpGt, 99.5),
			testutil.WithFilter("created_at", query.CmpGte, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
			testutil.WithFilter("paid", query.CmpEq, true),
			testutil.WithFilter("customer", query.CmpLike, "o'brien"),
			testutil.WithOrder("amount", query.Desc),
			testutil.WithLimit(5),
		),
		Timestamp: testutil.FixedNow,
	}

	data, err := json.Marshal(turn)
	require.NoError(t, err)

	var restored query.Turn
	require.NoError(t, json.Unmarshal(data, &restored))

	if diff := cmp.Diff(turn, restored); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	assert.IsType(t, int64(0), restored.Intent.Filters[0].Values[0])
}

func TestPredicate_UnmarshalRejectsUnknownType(t *testing.T) {
	var p query.Predicate

	err := json.Unmarshal([]byte(`{"column":"id","comparator":"eq","values":[{"type":"blob","value":"x"}]}`), &p)
	assert.Error(t, err)
}

func TestPredicate_MarshalRejectsUnsupportedValue(t *testing.T) {
	_, err := json.Marshal(query.Predicate{Column: "id", Comparator: query.CmpEq, Values: []any{struct{}{}}})
	assert.Error(t, err)
}
