package taskbot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/taskbot/internal/bitbucket"
	"github.com/simplesurance/taskbot/internal/taskbot/mocks"
	"github.com/simplesurance/taskbot/internal/taskerr"
)

const (
	bearer     = "s3cr3t"
	prID       = 42
	commentID  = 7
	selfLink   = "https://bitbucket.example.com:7990/projects/SHOP/repos/webshop/pull-requests/42"
	baseURL    = "https://bitbucket.example.com:7990/"
	configPath = "workflow-tasks.toml"
)

const workflowConfig = `
[[workflow]]
merge = [
  { from = "release/*", to = "master" },
  { from = "hotfix/*", to = "master" },
]
comment = "Before merging into master, please check:"
tasks = [
  "Version number is bumped",
  "Changelog is updated",
  "Release notes are written",
]

[[workflow]]
merge = [{ from = "*", to = "develop" }]
comment = "Thanks for contributing!"
tasks = ["Unit tests are added"]
`

var repository = &bitbucket.Repository{
	Slug:    "webshop",
	Project: &bitbucket.Project{Key: "SHOP"},
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func prOpenedPayload(fromBranch, toBranch, link, title string) []byte {
	return []byte(fmt.Sprintf(`{
  "eventKey": "pr:opened",
  "date": "2019-05-21T11:02:35+0200",
  "pullRequest": {
    "id": %d,
    "title": %q,
    "fromRef": {
      "id": "refs/heads/%s",
      "repository": {"slug": "webshop", "project": {"key": "SHOP"}}
    },
    "toRef": {
      "id": "refs/heads/%s",
      "repository": {"slug": "webshop", "project": {"key": "SHOP"}}
    },
    "links": {"self": [{"href": %q}]}
  }
}`, prID, title, fromBranch, toBranch, link))
}

func releasePayload() []byte {
	return prOpenedPayload("release/1.2", "master", selfLink, "Release 1.2")
}

// newGatewayMock returns a GatewayFactory that returns gw and fails the
// test if it is called with unexpected arguments.
func newGatewayMock(t *testing.T, gw Gateway) GatewayFactory {
	return func(url, token string) Gateway {
		assert.Equal(t, baseURL, url)
		assert.Equal(t, bearer, token)
		return gw
	}
}

// failingGatewayFactory fails the test when it is called.
func failingGatewayFactory(t *testing.T) GatewayFactory {
	return func(string, string) Gateway {
		t.Error("gateway was created but no bitbucket api calls were expected")
		return nil
	}
}

func mockRawFileCall(gw *mocks.MockGateway, data string, err error) *gomock.Call {
	return gw.
		EXPECT().
		RawFile(gomock.Any(), gomock.Eq(repository), gomock.Eq(configPath)).
		DoAndReturn(func(context.Context, *bitbucket.Repository, string) ([]byte, error) {
			if err != nil {
				return nil, err
			}

			return []byte(data), nil
		})
}

func mockCommentCall(gw *mocks.MockGateway, text any, comment *bitbucket.Comment, err error) *gomock.Call {
	return gw.
		EXPECT().
		CommentPullRequest(gomock.Any(), gomock.Eq(repository), gomock.Eq(int64(prID)), text).
		Return(comment, err)
}

func mockCreateTaskCall(gw *mocks.MockGateway, text string, err error) *gomock.Call {
	return gw.
		EXPECT().
		CreateTask(gomock.Any(), gomock.Eq(repository), gomock.Eq(int64(prID)), gomock.Eq(int64(commentID)), gomock.Eq(text)).
		Return(err)
}

func newRemoteError(op string, status int) error {
	return &taskerr.RemoteError{
		Operation:  op,
		StatusCode: status,
		Body:       []byte(`{"errors":[{"message":"mocked"}]}`),
	}
}

func TestTestEventIsAcknowledged(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	bot := New(failingGatewayFactory(t))

	outcome, err := bot.HandleEvent(context.Background(), []byte(`{"test": true}`), bearer)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTestSucceeded, outcome)
	assert.Equal(t, "Success", outcome.Response())
}

func TestUnsupportedEventsAreIgnored(t *testing.T) {
	payloads := map[string]string{
		"pr_merged":        `{"eventKey": "pr:merged", "pullRequest": {"id": 1}}`,
		"repo_refs":        `{"eventKey": "repo:refs_changed"}`,
		"no_event_key":     `{"pullRequest": {"id": 1}}`,
		"non_string_key":   `{"eventKey": 1}`,
		"test_not_bool":    `{"test": "true"}`,
		"test_false":       `{"test": false}`,
		"array_payload":    `[1, 2, 3]`,
		"string_payload":   `"pr:opened"`,
		"null_payload":     `null`,
		"empty_object":     `{}`,
		"event_key_prefix": `{"eventKey": "pr:opened:x"}`,
	}

	for name, payload := range payloads {
		payload := payload

		t.Run(name, func(t *testing.T) {
			t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

			bot := New(failingGatewayFactory(t))

			outcome, err := bot.HandleEvent(context.Background(), []byte(payload), bearer)
			require.NoError(t, err)
			assert.Equal(t, OutcomeIgnored, outcome)
			assert.Equal(t, "Ignoring unexpected payload", outcome.Response())
		})
	}
}

func TestMalformedPayloadsReturnDecodeError(t *testing.T) {
	payloads := map[string]string{
		"invalid_json":       `{"eventKey": `,
		"no_pull_request":    `{"eventKey": "pr:opened"}`,
		"pull_request_no_id": `{"eventKey": "pr:opened", "pullRequest": {"title": "x"}}`,
		"no_links": `{"eventKey": "pr:opened", "pullRequest": {
			"id": 1,
			"fromRef": {"id": "refs/heads/a", "repository": {"slug": "r", "project": {"key": "P"}}},
			"toRef": {"id": "refs/heads/b", "repository": {"slug": "r", "project": {"key": "P"}}}
		}}`,
		"no_repository": `{"eventKey": "pr:opened", "pullRequest": {
			"id": 1,
			"fromRef": {"id": "refs/heads/a"},
			"toRef": {"id": "refs/heads/b"},
			"links": {"self": [{"href": "https://bitbucket/"}]}
		}}`,
		"wrong_id_type": `{"eventKey": "pr:opened", "pullRequest": {"id": "one"}}`,
	}

	for name, payload := range payloads {
		payload := payload

		t.Run(name, func(t *testing.T) {
			t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

			bot := New(failingGatewayFactory(t))

			outcome, err := bot.HandleEvent(context.Background(), []byte(payload), bearer)
			require.Error(t, err)
			assert.Equal(t, OutcomeFailed, outcome)

			var decodeErr *taskerr.DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestUnusableSelfLinkReturnsAddressingError(t *testing.T) {
	links := map[string]string{
		"unsupported_scheme": "ftp://bitbucket.example.com/projects/SHOP/repos/webshop/pull-requests/42",
		"no_host":            "/projects/SHOP/repos/webshop/pull-requests/42",
		"unparseable":        "http://[::1",
	}

	for name, link := range links {
		link := link

		t.Run(name, func(t *testing.T) {
			t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

			bot := New(failingGatewayFactory(t))

			outcome, err := bot.HandleEvent(
				context.Background(),
				prOpenedPayload("release/1.2", "master", link, "Release"),
				bearer,
			)
			require.Error(t, err)
			assert.Equal(t, OutcomeFailed, outcome)

			var addrErr *taskerr.AddressingError
			assert.ErrorAs(t, err, &addrErr)
		})
	}
}

func TestWorkflowIsExecuted(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(mockctrl)

	gomock.InOrder(
		mockRawFileCall(gw, workflowConfig, nil),
		mockCommentCall(gw, gomock.Eq("Before merging into master, please check:"), &bitbucket.Comment{ID: commentID}, nil),
		mockCreateTaskCall(gw, "Version number is bumped", nil),
		mockCreateTaskCall(gw, "Changelog is updated", nil),
		mockCreateTaskCall(gw, "Release notes are written", nil),
	)

	bot := New(newGatewayMock(t, gw))

	outcome, err := bot.HandleEvent(context.Background(), releasePayload(), bearer)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, outcome)
	assert.Equal(t, "Success", outcome.Response())
}

func TestFirstMatchingWorkflowIsExecuted(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	const cfg = `
[[workflow]]
merge = [{ from = "feature/*", to = "develop" }]
comment = "first"
tasks = ["task of first"]

[[workflow]]
merge = [{ from = "*", to = "*" }]
comment = "second"
tasks = ["task of second"]
`

	mockctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(mockctrl)

	gomock.InOrder(
		mockRawFileCall(gw, cfg, nil),
		mockCommentCall(gw, gomock.Eq("first"), &bitbucket.Comment{ID: commentID}, nil),
		mockCreateTaskCall(gw, "task of first", nil),
	)

	bot := New(newGatewayMock(t, gw))

	outcome, err := bot.HandleEvent(
		context.Background(),
		prOpenedPayload("feature/login", "develop", selfLink, "Login"),
		bearer,
	)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, outcome)
}

func TestWorkflowWithoutTasksCreatesOnlyComment(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	const cfg = `
[[workflow]]
merge = [{ from = "*", to = "master" }]
comment = "just a comment"
`

	mockctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(mockctrl)

	gomock.InOrder(
		mockRawFileCall(gw, cfg, nil),
		mockCommentCall(gw, gomock.Eq("just a comment"), &bitbucket.Comment{ID: commentID}, nil),
	)

	bot := New(newGatewayMock(t, gw))

	outcome, err := bot.HandleEvent(context.Background(), releasePayload(), bearer)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, outcome)
}

func TestNoMatchingWorkflow(t *testing.T) {
	configs := map[string]string{
		"no_match": workflowConfig,
		"empty":    "",
	}

	for name, cfg := range configs {
		cfg := cfg

		t.Run(name, func(t *testing.T) {
			t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

			mockctrl := gomock.NewController(t)
			gw := mocks.NewMockGateway(mockctrl)

			mockRawFileCall(gw, cfg, nil).Times(1)

			bot := New(newGatewayMock(t, gw))

			outcome, err := bot.HandleEvent(
				context.Background(),
				prOpenedPayload("feature/login", "master", selfLink, "Login"),
				bearer,
			)
			require.NoError(t, err)
			assert.Equal(t, OutcomeNoWorkflow, outcome)
			assert.Equal(t, "No workflow", outcome.Response())
		})
	}
}

func TestTaskFailureAbortsWorkflow(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(mockctrl)

	gomock.InOrder(
		mockRawFileCall(gw, workflowConfig, nil),
		mockCommentCall(gw, gomock.Any(), &bitbucket.Comment{ID: commentID}, nil),
		mockCreateTaskCall(gw, "Version number is bumped", nil),
		mockCreateTaskCall(gw, "Changelog is updated", newRemoteError("creating task", http.StatusInternalServerError)),
	)

	bot := New(newGatewayMock(t, gw))

	outcome, err := bot.HandleEvent(context.Background(), releasePayload(), bearer)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Contains(t, err.Error(), "task 2 of 3")

	var remoteErr *taskerr.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusInternalServerError, remoteErr.StatusCode)
}

func TestCommentFailureCreatesNoTasks(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(mockctrl)

	gomock.InOrder(
		mockRawFileCall(gw, workflowConfig, nil),
		mockCommentCall(gw, gomock.Any(), nil, newRemoteError("creating comment", http.StatusUnauthorized)),
	)

	bot := New(newGatewayMock(t, gw))

	outcome, err := bot.HandleEvent(context.Background(), releasePayload(), bearer)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	var remoteErr *taskerr.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusUnauthorized, remoteErr.StatusCode)
}

func TestMissingCommentIDCreatesNoTasks(t *testing.T) {
	comments := map[string]*bitbucket.Comment{
		"nil_comment": nil,
		"zero_id":     {ID: 0, Text: "Before merging into master, please check:"},
	}

	for name, comment := range comments {
		comment := comment

		t.Run(name, func(t *testing.T) {
			t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

			mockctrl := gomock.NewController(t)
			gw := mocks.NewMockGateway(mockctrl)

			gomock.InOrder(
				mockRawFileCall(gw, workflowConfig, nil),
				mockCommentCall(gw, gomock.Any(), comment, nil),
			)
			gw.EXPECT().CreateTask(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

			bot := New(newGatewayMock(t, gw))

			outcome, err := bot.HandleEvent(context.Background(), releasePayload(), bearer)
			require.Error(t, err)
			assert.Equal(t, OutcomeFailed, outcome)
		})
	}
}

func TestConfigErrorIsReportedAsComment(t *testing.T) {
	const errPrefix = "Error reading workflow-tasks.toml configuration file from default branch: "

	testcases := []struct {
		name       string
		rawFileErr error
		config     string
	}{
		{
			name:       "file_not_found",
			rawFileErr: newRemoteError("reading file", http.StatusNotFound),
		},
		{
			name:       "request_failed",
			rawFileErr: &taskerr.RemoteError{Operation: "reading file", Err: errors.New("connection refused")},
		},
		{
			name:   "invalid_toml",
			config: "[[workflow]\ncomment = ",
		},
		{
			name: "missing_comment",
			config: `
[[workflow]]
merge = [{ from = "*", to = "master" }]
tasks = ["a"]
`,
		},
		{
			name: "missing_merge",
			config: `
[[workflow]]
comment = "c"
`,
		},
		{
			name: "blank_task",
			config: `
[[workflow]]
merge = [{ from = "*", to = "master" }]
comment = "c"
tasks = ["a", ""]
`,
		},
	}

	for _, tc := range testcases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

			mockctrl := gomock.NewController(t)
			gw := mocks.NewMockGateway(mockctrl)

			var reported string
			gomock.InOrder(
				mockRawFileCall(gw, tc.config, tc.rawFileErr),
				mockCommentCall(gw, gomock.Any(), &bitbucket.Comment{ID: commentID}, nil).
					Do(func(_ context.Context, _ *bitbucket.Repository, _ int64, text string) {
						reported = text
					}),
			)

			bot := New(newGatewayMock(t, gw))

			outcome, err := bot.HandleEvent(context.Background(), releasePayload(), bearer)
			require.Error(t, err)
			assert.Equal(t, OutcomeFailed, outcome)

			var cfgErr *taskerr.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, configPath, cfgErr.Path)

			assert.True(t, strings.HasPrefix(reported, errPrefix), "comment %q does not start with %q", reported, errPrefix)
			assert.Equal(t, errPrefix+cfgErr.Err.Error(), reported)

			if tc.rawFileErr != nil {
				assert.ErrorIs(t, err, tc.rawFileErr)
			}
		})
	}
}

func TestConfigErrorReportingFailure(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(mockctrl)

	fileErr := newRemoteError("reading file", http.StatusNotFound)
	commentErr := newRemoteError("creating comment", http.StatusForbidden)

	gomock.InOrder(
		mockRawFileCall(gw, "", fileErr),
		mockCommentCall(gw, gomock.Any(), nil, commentErr).Times(1),
	)

	bot := New(newGatewayMock(t, gw))

	outcome, err := bot.HandleEvent(context.Background(), releasePayload(), bearer)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	var reportErr *taskerr.ReportError
	require.ErrorAs(t, err, &reportErr)
	assert.Equal(t, commentErr, reportErr.Err)

	var cfgErr *taskerr.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, taskerr.ErrNotFound)
}

func TestCustomConfigPath(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	const path = ".bitbucket/tasks.toml"

	mockctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(mockctrl)

	var reported string
	gomock.InOrder(
		gw.EXPECT().
			RawFile(gomock.Any(), gomock.Eq(repository), gomock.Eq(path)).
			Return(nil, newRemoteError("reading file", http.StatusNotFound)),
		mockCommentCall(gw, gomock.Any(), &bitbucket.Comment{ID: commentID}, nil).
			Do(func(_ context.Context, _ *bitbucket.Repository, _ int64, text string) {
				reported = text
			}),
	)

	bot := New(newGatewayMock(t, gw), WithConfigPath(path))

	_, err := bot.HandleEvent(context.Background(), releasePayload(), bearer)
	require.Error(t, err)
	assert.True(t,
		strings.HasPrefix(reported, "Error reading .bitbucket/tasks.toml configuration file from default branch: "),
		"unexpected comment: %q", reported,
	)
}

func TestEventFilter(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	filter, err := NewEventFilter(`.pullRequest.title | startswith("WIP") | not`)
	require.NoError(t, err)

	t.Run("filtered", func(t *testing.T) {
		bot := New(failingGatewayFactory(t), WithEventFilter(filter))

		outcome, err := bot.HandleEvent(
			context.Background(),
			prOpenedPayload("release/1.2", "master", selfLink, "WIP: Release 1.2"),
			bearer,
		)
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, outcome)
	})

	t.Run("passes", func(t *testing.T) {
		mockctrl := gomock.NewController(t)
		gw := mocks.NewMockGateway(mockctrl)

		mockRawFileCall(gw, "", nil).Times(1)

		bot := New(newGatewayMock(t, gw), WithEventFilter(filter))

		outcome, err := bot.HandleEvent(
			context.Background(),
			prOpenedPayload("release/1.2", "master", selfLink, "Release 1.2"),
			bearer,
		)
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoWorkflow, outcome)
	})

	t.Run("not_applied_to_test_events", func(t *testing.T) {
		bot := New(failingGatewayFactory(t), WithEventFilter(filter))

		outcome, err := bot.HandleEvent(context.Background(), []byte(`{"test": true}`), bearer)
		require.NoError(t, err)
		assert.Equal(t, OutcomeTestSucceeded, outcome)
	})
}

func TestEventFilterErrorReturnsDecodeError(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	filter, err := NewEventFilter(`.pullRequest.title`)
	require.NoError(t, err)

	bot := New(failingGatewayFactory(t), WithEventFilter(filter))

	outcome, err := bot.HandleEvent(context.Background(), releasePayload(), bearer)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	var decodeErr *taskerr.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestConcurrentEvents(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	const events = 20

	mockctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(mockctrl)

	mockRawFileCall(gw, workflowConfig, nil).Times(events)
	mockCommentCall(gw, gomock.Any(), &bitbucket.Comment{ID: commentID}, nil).Times(events)
	gw.EXPECT().
		CreateTask(gomock.Any(), gomock.Eq(repository), gomock.Eq(int64(prID)), gomock.Eq(int64(commentID)), gomock.Any()).
		Return(nil).
		Times(events * 3)

	bot := New(newGatewayMock(t, gw))

	var wg sync.WaitGroup
	outcomes := make([]Outcome, events)
	errs := make([]error, events)

	for i := 0; i < events; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = bot.HandleEvent(context.Background(), releasePayload(), bearer)
		}(i)
	}

	wg.Wait()

	for i := 0; i < events; i++ {
		assert.NoError(t, errs[i])
		assert.Equal(t, OutcomeExecuted, outcomes[i])
	}
}
