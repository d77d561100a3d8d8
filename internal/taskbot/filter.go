package taskbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// EventFilter is a jq query that decides if an event is processed.
// The query is run on the JSON payload of the event and must evaluate to
// exactly 1 boolean value.
type EventFilter struct {
	query *gojq.Query
}

// NewEventFilter parses a jq query.
func NewEventFilter(jqQuery string) (*EventFilter, error) {
	query, err := gojq.Parse(jqQuery)
	if err != nil {
		return nil, fmt.Errorf("parsing jq query %q failed: %w", jqQuery, err)
	}

	return &EventFilter{query: query}, nil
}

func goJQIterToSlice(iter gojq.Iter) ([]any, []error) {
	var result []any
	var errors []error

	for {
		res, ok := iter.Next()
		if !ok {
			return result, errors
		}

		if err, isErr := res.(error); isErr {
			errors = append(errors, err)
			continue
		}

		result = append(result, res)
	}
}

func errString(errs []error) string {
	var result strings.Builder

	for i, err := range errs {
		if i > 0 {
			result.WriteString("; ")
		}

		result.WriteString(fmt.Sprintf("error %d: %s", i, err))
	}

	return result.String()
}

// Match runs the query on the unmarshalled JSON event.
func (f *EventFilter) Match(ctx context.Context, event any) (bool, error) {
	result, errors := goJQIterToSlice(f.query.RunWithContext(ctx, event))
	if len(errors) != 0 {
		return false, fmt.Errorf("json query returned errors, query: %q, errors: %s", f.query.String(), errString(errors))
	}

	if len(result) == 0 {
		return false, fmt.Errorf("json query returned 0 results, expected 1, query: %q", f.query.String())
	}

	if len(result) > 1 {
		return false, fmt.Errorf("json query returned multiple results, expected 1, query: %q, result: '%+v'", f.query.String(), result)
	}

	val, ok := result[0].(bool)
	if !ok {
		return false, fmt.Errorf(
			"json query returned non-bool result: %+v (%T), query: %q",
			result[0], result[0], f.query.String(),
		)
	}

	return val, nil
}

func (f *EventFilter) String() string {
	return f.query.String()
}
