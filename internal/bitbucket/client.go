package bitbucket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/taskbot/internal/logfields"
	"github.com/simplesurance/taskbot/internal/taskerr"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "bitbucket_client"

const restAPIPath = "rest/api/1.0/"

// maxResponseBodySize is the max. number of bytes read from a response body.
const maxResponseBodySize = 10 * 1024 * 1024

// TaskAPI defines how tasks are created.
type TaskAPI string

const (
	// TaskAPIBlockerComment creates tasks as replies to the comment with
	// BLOCKER severity (Bitbucket Server >= 7.2).
	TaskAPIBlockerComment TaskAPI = "blocker_comment"
	// TaskAPIParent creates tasks via the tasks endpoint with the comment
	// as parent.
	TaskAPIParent TaskAPI = "parent"
	// TaskAPILegacy creates tasks via the tasks endpoint, anchored to
	// the comment (Bitbucket Server < 8.0).
	TaskAPILegacy TaskAPI = "legacy"
)

// ParseTaskAPI converts a string to a TaskAPI.
// An empty string is converted to TaskAPIBlockerComment.
func ParseTaskAPI(s string) (TaskAPI, error) {
	switch TaskAPI(s) {
	case "", TaskAPIBlockerComment:
		return TaskAPIBlockerComment, nil
	case TaskAPIParent:
		return TaskAPIParent, nil
	case TaskAPILegacy:
		return TaskAPILegacy, nil
	default:
		return "", fmt.Errorf(
			"unsupported task api: %q, expecting %q, %q or %q",
			s, TaskAPIBlockerComment, TaskAPIParent, TaskAPILegacy,
		)
	}
}

// Client is a Bitbucket Server REST API client.
// Requests are sent exactly once, they are not retried.
// Unsuccessful API calls return a *taskerr.RemoteError.
type Client struct {
	httpClt        *http.Client
	restAPIBaseURL string
	taskAPI        TaskAPI
	timeout        time.Duration
	logger         *zap.Logger
}

type Option func(*Client)

// WithTimeout sets the timeout for each http request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithTaskAPI defines which API is used to create tasks.
func WithTaskAPI(api TaskAPI) Option {
	return func(c *Client) {
		c.taskAPI = api
	}
}

// New returns a client for the Bitbucket instance reachable at baseURL.
// Requests are authenticated with the bearer token.
func New(baseURL, bearer string, opts ...Option) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	c := Client{
		restAPIBaseURL: baseURL + restAPIPath,
		taskAPI:        TaskAPIBlockerComment,
		timeout:        DefaultHTTPClientTimeout,
	}

	for _, opt := range opts {
		opt(&c)
	}

	c.httpClt = newHTTPClient(bearer, c.timeout)
	c.logger = zap.L().Named(loggerName).With(logfields.BaseURL(baseURL))

	return &c
}

func newHTTPClient(bearer string, timeout time.Duration) *http.Client {
	if bearer == "" {
		return &http.Client{
			Timeout: timeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: bearer},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = timeout

	return tc
}

func (clt *Client) repoURL(repo *Repository) string {
	return fmt.Sprintf(
		"%sprojects/%s/repos/%s/",
		clt.restAPIBaseURL, url.PathEscape(repo.ProjectKey()), url.PathEscape(repo.Slug),
	)
}

func (clt *Client) pullRequestCommentsURL(repo *Repository, pullRequestID int64) string {
	return fmt.Sprintf("%spull-requests/%d/comments", clt.repoURL(repo), pullRequestID)
}

// CommentPullRequest creates a comment on a pull request.
func (clt *Client) CommentPullRequest(ctx context.Context, repo *Repository, pullRequestID int64, text string) (*Comment, error) {
	var result Comment

	err := clt.do(
		ctx,
		opCreateComment,
		http.MethodPost,
		clt.pullRequestCommentsURL(repo, pullRequestID),
		&commentRequest{Text: text},
		http.StatusCreated,
		&result,
	)
	if err != nil {
		return nil, err
	}

	if result.ID <= 0 {
		return nil, &taskerr.RemoteError{
			Operation:  string(opCreateComment),
			StatusCode: http.StatusCreated,
			Err:        fmt.Errorf("response contains no valid comment id: %d", result.ID),
		}
	}

	return &result, nil
}

// RawFile returns the content of a file in the default branch of the
// repository.
// If the file does not exist, a taskerr.RemoteError is returned for that
// errors.Is(err, taskerr.ErrNotFound) is true.
func (clt *Client) RawFile(ctx context.Context, repo *Repository, path string) ([]byte, error) {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	u := clt.repoURL(repo) + "raw/" + strings.Join(segments, "/")

	return clt.doRaw(ctx, opReadFile, http.MethodGet, u, nil, http.StatusOK)
}

// CreateTask creates a task on the pull request that is attached to the
// comment with the ID commentID.
func (clt *Client) CreateTask(ctx context.Context, repo *Repository, pullRequestID, commentID int64, text string) error {
	switch clt.taskAPI {
	case TaskAPIParent:
		return clt.do(
			ctx,
			opCreateTask,
			http.MethodPost,
			clt.restAPIBaseURL+"tasks",
			&parentTaskRequest{
				Parent: &commentParent{ID: commentID},
				Text:   text,
			},
			http.StatusCreated,
			nil,
		)

	case TaskAPILegacy:
		return clt.do(
			ctx,
			opCreateTask,
			http.MethodPost,
			clt.restAPIBaseURL+"tasks",
			&legacyTaskRequest{
				Anchor: &taskAnchor{ID: commentID, Type: "COMMENT"},
				Text:   text,
			},
			http.StatusCreated,
			nil,
		)
	}

	return clt.do(
		ctx,
		opCreateTask,
		http.MethodPost,
		clt.pullRequestCommentsURL(repo, pullRequestID),
		&commentRequest{
			Text:     text,
			Parent:   &commentParent{ID: commentID},
			Severity: severityBlocker,
		},
		http.StatusCreated,
		nil,
	)
}

// do sends a request with reqBody as JSON payload and unmarshals the response
// into respBody.
// If reqBody or respBody is nil, they are ignored.
func (clt *Client) do(ctx context.Context, op operation, method, u string, reqBody any, expectedStatus int, respBody any) error {
	var body io.Reader

	if reqBody != nil {
		buf, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("%s: marshalling request failed: %w", op, err)
		}

		body = bytes.NewReader(buf)
	}

	respData, err := clt.doRaw(ctx, op, method, u, body, expectedStatus)
	if err != nil {
		return err
	}

	if respBody == nil {
		return nil
	}

	if err := json.Unmarshal(respData, respBody); err != nil {
		return fmt.Errorf("%s: converting response to JSON failed: %w", op, err)
	}

	return nil
}

func (clt *Client) doRaw(ctx context.Context, op operation, method, u string, body io.Reader, expectedStatus int) ([]byte, error) {
	logger := clt.logger.With(
		zap.String("http_method", method),
		zap.String("http_url", u),
		zap.String("operation", string(op)),
	)

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("%s: creating http request failed: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	startTime := time.Now()

	resp, err := clt.httpClt.Do(req)
	if err != nil {
		metrics.RequestDone(op, "error", time.Since(startTime))
		logger.Info(
			"sending http request failed",
			logfields.Event("bitbucket_api_request_failed"),
			zap.Error(err),
		)

		return nil, &taskerr.RemoteError{Operation: string(op), Err: err}
	}

	defer resp.Body.Close()

	metrics.RequestDone(op, strconv.Itoa(resp.StatusCode), time.Since(startTime))

	respData, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		logger.Warn(
			"reading http response body failed",
			logfields.Event("bitbucket_api_reading_response_body_failed"),
			zap.Int("http_response_code", resp.StatusCode),
			zap.Error(err),
		)

		if resp.StatusCode == expectedStatus {
			return nil, &taskerr.RemoteError{Operation: string(op), StatusCode: resp.StatusCode, Err: err}
		}
	}

	if resp.StatusCode != expectedStatus {
		logger.Info(
			"bitbucket api returned unexpected status code",
			logfields.Event("bitbucket_api_unexpected_status_code"),
			zap.Int("http_response_code", resp.StatusCode),
			zap.Int("http_expected_response_code", expectedStatus),
			zap.ByteString("http_response_body", respData),
		)

		return nil, &taskerr.RemoteError{
			Operation:  string(op),
			StatusCode: resp.StatusCode,
			Body:       respData,
		}
	}

	logger.Debug(
		"bitbucket api request successful",
		logfields.Event("bitbucket_api_request_successful"),
		zap.Int("http_response_code", resp.StatusCode),
	)

	return respData, nil
}
