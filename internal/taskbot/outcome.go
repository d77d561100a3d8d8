package taskbot

import "fmt"

// Outcome is the result of processing an event.
type Outcome uint8

const (
	OutcomeUndefined Outcome = iota
	// OutcomeTestSucceeded is returned for Bitbucket webhook connection
	// tests.
	OutcomeTestSucceeded
	// OutcomeIgnored is returned for events that are not processed.
	OutcomeIgnored
	// OutcomeNoWorkflow is returned when no workflow matched the
	// branches of the pull request.
	OutcomeNoWorkflow
	// OutcomeExecuted is returned when the comment and all tasks of a
	// workflow were created.
	OutcomeExecuted
	// OutcomeFailed is returned together with an error.
	OutcomeFailed
)

var outcomeStrings = [...]string{
	OutcomeUndefined:     "undefined",
	OutcomeTestSucceeded: "test_succeeded",
	OutcomeIgnored:       "ignored",
	OutcomeNoWorkflow:    "no_workflow",
	OutcomeExecuted:      "executed",
	OutcomeFailed:        "failed",
}

var outcomeResponses = [...]string{
	OutcomeTestSucceeded: "Success",
	OutcomeIgnored:       "Ignoring unexpected payload",
	OutcomeNoWorkflow:    "No workflow",
	OutcomeExecuted:      "Success",
}

func (o Outcome) String() string {
	// it can not be <0 because it's type is uint8
	if int(o) > len(outcomeStrings)-1 {
		return fmt.Sprintf("unsupported Outcome value: %d", o)
	}

	return outcomeStrings[o]
}

// Response returns the text that is sent back to the webhook caller.
// It is empty for OutcomeFailed and OutcomeUndefined.
func (o Outcome) Response() string {
	if int(o) > len(outcomeResponses)-1 {
		return ""
	}

	return outcomeResponses[o]
}
