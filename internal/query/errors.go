package query

import (
	"fmt"
	"strings"
)

// FailureReason classifies why an utterance could not be turned into an intent
type FailureReason string

const (
	ReasonAmbiguousColumn      FailureReason = "ambiguous_column"
	ReasonUnknownColumn        FailureReason = "unknown_column"
	ReasonUnparseableValue     FailureReason = "unparseable_value"
	ReasonUnsupportedOperation FailureReason = "unsupported_operation"
)

// ExtractionError reports an utterance the extractor could not read. It is
// recovered by asking the user to rephrase, never surfaced as a failure.
type ExtractionError struct {
	Reason     FailureReason
	Phrase     string
	Candidates []string
}

func (e *ExtractionError) Error() string {
	if len(e.Candidates) > 0 {
		return fmt.Sprintf("%s: %q (candidates: %s)", e.Reason, e.Phrase, strings.Join(e.Candidates, ", "))
	}

	return fmt.Sprintf("%s: %q", e.Reason, e.Phrase)
}

// Clarification is the conversational reply asking the user to rephrase
func (e *ExtractionError) Clarification() string {
	switch e.Reason {
	case ReasonAmbiguousColumn:
		return fmt.Sprintf("%q could mean more than one column (%s). Which one did you mean?",
			e.Phrase, strings.Join(e.Candidates, " or "))
	case ReasonUnknownColumn:
		return fmt.Sprintf("I don't know a column called %q. Ask \"help\" to see what I can look up.", e.Phrase)
	case ReasonUnparseableValue:
		return fmt.Sprintf("I couldn't understand the value %q. Could you rephrase it?", e.Phrase)
	case ReasonUnsupportedOperation:
		return fmt.Sprintf("I can only look data up, and %q isn't something I can do. Try asking for rows, counts or totals.", e.Phrase)
	default:
		return "I couldn't understand that question. Could you rephrase it?"
	}
}

func unsupported(phrase string) error {
	return &ExtractionError{Reason: ReasonUnsupportedOperation, Phrase: phrase}
}

func unparseable(phrase string) error {
	return &ExtractionError{Reason: ReasonUnparseableValue, Phrase: phrase}
}

func unknownColumn(phrase string) error {
	return &ExtractionError{Reason: ReasonUnknownColumn, Phrase: phrase}
}
