// Package taskbot processes Bitbucket webhook events.
//
// When a pull request is opened, the workflow configuration file is read
// from the default branch of the target repository. The first workflow
// whose merge patterns match the source and target branch of the pull
// request is executed: a comment is created on the pull request and then
// the tasks of the workflow are created, one after another, attached to the
// comment.
//
// If the configuration file can not be read or parsed, the error is
// reported as comment on the pull request.
package taskbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/taskbot/internal/bitbucket"
	"github.com/simplesurance/taskbot/internal/logfields"
	"github.com/simplesurance/taskbot/internal/maputils"
	"github.com/simplesurance/taskbot/internal/taskerr"
	"github.com/simplesurance/taskbot/internal/workflow"
)

const loggerName = "taskbot"

// Bot processes webhook events.
// It does not keep state between events, HandleEvent can be called
// concurrently.
type Bot struct {
	newGateway GatewayFactory
	configPath string
	filter     *EventFilter
	logger     *zap.Logger
}

type Option func(*Bot)

// WithConfigPath sets the path of the workflow configuration file in the
// repository.
func WithConfigPath(path string) Option {
	return func(b *Bot) {
		b.configPath = path
	}
}

// WithEventFilter sets a filter that is run on "pr:opened" events, events
// that do not match are ignored.
func WithEventFilter(f *EventFilter) Option {
	return func(b *Bot) {
		b.filter = f
	}
}

func New(gatewayFactory GatewayFactory, opts ...Option) *Bot {
	b := Bot{
		newGateway: gatewayFactory,
		configPath: workflow.DefaultConfigPath,
	}

	for _, opt := range opts {
		opt(&b)
	}

	if b.logger == nil {
		b.logger = zap.L().Named(loggerName)
	}

	return &b
}

// pullRequest is the pull request an event is processed for.
type pullRequest struct {
	ID         int64
	Repository *bitbucket.Repository
	FromBranch string
	ToBranch   string
	LogFields  []zap.Field
}

// HandleEvent processes the JSON payload of a webhook event.
// bearer is the token that is used to authenticate at the Bitbucket API.
//
// If an error is returned, Outcome is OutcomeFailed.
// The error wraps a *taskerr.DecodeError if the payload is invalid, a
// *taskerr.AddressingError if the Bitbucket instance could not be derived
// from the event, a *taskerr.ConfigError or *taskerr.ReportError if the
// workflow configuration could not be loaded or a *taskerr.RemoteError if
// creating the comment or a task failed.
func (b *Bot) HandleEvent(ctx context.Context, payload []byte, bearer string) (Outcome, error) {
	outcome, err := b.handleEvent(ctx, payload, bearer)
	if err != nil {
		outcome = OutcomeFailed
	}

	metrics.EventProcessedInc(outcome)

	return outcome, err
}

func (b *Bot) handleEvent(ctx context.Context, payload []byte, bearer string) (Outcome, error) {
	var ev any

	if err := json.Unmarshal(payload, &ev); err != nil {
		return OutcomeFailed, taskerr.NewDecodeError(err)
	}

	fields, err := maputils.ObjectVal(ev)
	if err != nil {
		b.logger.Debug("ignoring event, payload is not a JSON object",
			logEventEventIgnored,
			logFieldReason("unsupported_payload"),
			zap.Error(err),
		)

		return OutcomeIgnored, nil
	}

	// a "test" field with a non-bool value is not a connection test, the
	// error is ignored
	if isTest, _ := maputils.BoolVal(fields, "test"); isTest {
		b.logger.Info("received webhook test event", logEventTestEventReceived)
		return OutcomeTestSucceeded, nil
	}

	eventKey, err := maputils.StrVal(fields, "eventKey")
	if err != nil {
		b.logger.Debug("ignoring event, eventKey field is invalid",
			logEventEventIgnored,
			logFieldReason("invalid_event_key"),
			zap.Error(err),
		)

		return OutcomeIgnored, nil
	}

	logger := b.logger.With(logfields.EventKey(eventKey))

	if eventKey != bitbucket.EventKeyPullRequestOpened {
		logger.Debug("ignoring event, event type is unsupported",
			logEventEventIgnored,
			logFieldReason("unsupported_event_type"),
		)

		return OutcomeIgnored, nil
	}

	if b.filter != nil {
		match, err := b.filter.Match(ctx, ev)
		if err != nil {
			return OutcomeFailed, taskerr.NewDecodeError(fmt.Errorf("evaluating event filter failed: %w", err))
		}

		if !match {
			logger.Debug("ignoring event, event filter does not match",
				logEventEventIgnored,
				logFieldReason("filter_mismatch"),
				zap.String("event_filter", b.filter.String()),
			)

			return OutcomeIgnored, nil
		}
	}

	prEvent, err := bitbucket.DecodePullRequestOpenedEvent(payload)
	if err != nil {
		return OutcomeFailed, taskerr.NewDecodeError(err)
	}

	return b.handlePullRequestOpened(ctx, logger, prEvent, bearer)
}

func newPullRequest(ev *bitbucket.PullRequestOpenedEvent) *pullRequest {
	pr := pullRequest{
		ID:         ev.PullRequest.ID,
		Repository: ev.PullRequest.ToRef.Repository,
		FromBranch: workflow.BranchName(ev.PullRequest.FromRef.ID),
		ToBranch:   workflow.BranchName(ev.PullRequest.ToRef.ID),
	}

	pr.LogFields = []zap.Field{
		logfields.Project(pr.Repository.ProjectKey()),
		logfields.Repository(pr.Repository.Slug),
		logfields.PullRequest(pr.ID),
		logfields.FromBranch(pr.FromBranch),
		logfields.ToBranch(pr.ToBranch),
	}

	return &pr
}

func (b *Bot) handlePullRequestOpened(
	ctx context.Context,
	logger *zap.Logger,
	ev *bitbucket.PullRequestOpenedEvent,
	bearer string,
) (Outcome, error) {
	baseURL, err := bitbucket.BaseURL(ev.PullRequest.SelfLink())
	if err != nil {
		return OutcomeFailed, taskerr.NewAddressingError(err)
	}

	pr := newPullRequest(ev)
	logger = logger.With(pr.LogFields...).With(logfields.BaseURL(baseURL))

	gw := b.newGateway(baseURL, bearer)

	cfg, err := b.loadConfig(ctx, gw, pr.Repository)
	if err != nil {
		logger.Error(
			"loading workflow configuration failed",
			logEventConfigLoadFailed,
			zap.String("config_path", b.configPath),
			zap.Error(err),
		)

		return OutcomeFailed, b.reportConfigError(ctx, logger, gw, pr, err)
	}

	logger.Debug("loaded workflow configuration", zap.String("workflow_config", cfg.String()))

	rule := cfg.Select(pr.FromBranch, pr.ToBranch)
	if rule == nil {
		logger.Info("no workflow for merge", logEventNoWorkflow)
		return OutcomeNoWorkflow, nil
	}

	logger.Info(
		"triggering workflow for merge",
		logEventWorkflowSelected,
		zap.Stringer("workflow", rule),
	)

	if err := b.executeRule(ctx, logger, gw, pr, rule); err != nil {
		logger.Error("executing workflow failed", logEventWorkflowFailed, zap.Error(err))
		return OutcomeFailed, err
	}

	logger.Info(
		"workflow executed",
		logEventWorkflowExecuted,
		zap.Int("tasks_created", len(rule.Tasks)),
	)

	return OutcomeExecuted, nil
}

func (b *Bot) loadConfig(ctx context.Context, gw Gateway, repo *bitbucket.Repository) (*workflow.Config, error) {
	data, err := gw.RawFile(ctx, repo, b.configPath)
	if err != nil {
		return nil, taskerr.NewConfigError(b.configPath, err)
	}

	cfg, err := workflow.Parse(data)
	if err != nil {
		return nil, taskerr.NewConfigError(b.configPath, err)
	}

	return cfg, nil
}

// reportConfigError creates a comment on the pull request that describes the
// error.
// It returns cfgErr if the comment was created, otherwise a
// *taskerr.ReportError.
func (b *Bot) reportConfigError(ctx context.Context, logger *zap.Logger, gw Gateway, pr *pullRequest, cfgErr error) error {
	var cause error = cfgErr

	var ce *taskerr.ConfigError
	if errors.As(cfgErr, &ce) {
		cause = ce.Err
	}

	text := fmt.Sprintf("Error reading %s configuration file from default branch: %s", b.configPath, cause)

	if _, err := gw.CommentPullRequest(ctx, pr.Repository, pr.ID, text); err != nil {
		logger.Error(
			"creating pull request comment for workflow configuration error failed",
			logEventReportingFailed,
			zap.NamedError("reported_error", cfgErr),
			zap.Error(err),
		)

		return &taskerr.ReportError{Err: err, Original: cfgErr}
	}

	logger.Info("reported workflow configuration error as pull request comment", logEventConfigErrReported)

	return cfgErr
}

// executeRule creates the comment of the rule and then its tasks in order.
// Tasks are created sequentially, the first failure aborts the execution.
// Tasks that have already been created are kept.
func (b *Bot) executeRule(ctx context.Context, logger *zap.Logger, gw Gateway, pr *pullRequest, rule *workflow.Rule) error {
	comment, err := gw.CommentPullRequest(ctx, pr.Repository, pr.ID, rule.Comment)
	if err != nil {
		return fmt.Errorf("creating workflow comment failed: %w", err)
	}

	if comment == nil || comment.ID <= 0 {
		return errors.New("creating workflow comment failed: no comment id was returned")
	}

	logger = logger.With(logfields.CommentID(comment.ID))
	logger.Debug("created workflow comment", logEventCommentCreated)

	for i, task := range rule.Tasks {
		if err := gw.CreateTask(ctx, pr.Repository, pr.ID, comment.ID, task); err != nil {
			return fmt.Errorf("creating task %d of %d failed: %w", i+1, len(rule.Tasks), err)
		}

		metrics.TaskCreatedInc()

		logger.Debug(
			"created task",
			logEventTaskCreated,
			zap.Int("task_nr", i+1),
			zap.Int("task_count", len(rule.Tasks)),
		)
	}

	return nil
}
