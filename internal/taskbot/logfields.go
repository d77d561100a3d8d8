package taskbot

import (
	"go.uber.org/zap"

	"github.com/simplesurance/taskbot/internal/logfields"
)

var (
	logEventTestEventReceived = logfields.Event("test_event_received")
	logEventEventIgnored      = logfields.Event("event_ignored")
	logEventWorkflowSelected  = logfields.Event("workflow_selected")
	logEventNoWorkflow        = logfields.Event("no_workflow_matched")
	logEventCommentCreated    = logfields.Event("workflow_comment_created")
	logEventTaskCreated       = logfields.Event("task_created")
	logEventWorkflowExecuted  = logfields.Event("workflow_executed")
	logEventWorkflowFailed    = logfields.Event("workflow_execution_failed")
	logEventConfigLoadFailed  = logfields.Event("workflow_config_loading_failed")
	logEventConfigErrReported = logfields.Event("workflow_config_error_reported")
	logEventReportingFailed   = logfields.Event("workflow_config_error_reporting_failed")
)

func logFieldReason(reason string) zap.Field {
	return zap.String("reason", reason)
}
