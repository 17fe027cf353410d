// Package testutil provides fixtures and helpers shared by the package tests
package testutil

import "time"

const (
	// TestTimeout is the default timeout for test operations
	TestTimeout = 30 * time.Second

	// ShortTestTimeout is a shorter timeout for quick operations
	ShortTestTimeout = 5 * time.Second

	// OrdersTableName is the table described by OrdersTable
	OrdersTableName = "orders"

	// TestConversationID is a fixed conversation id for session tests
	TestConversationID = "conv-test-0001"
)

// FixedNow anchors relative dates in extractor tests (a Saturday)
var FixedNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)
