package taskbot

import (
	"context"

	"github.com/simplesurance/taskbot/internal/bitbucket"
)

//go:generate mockgen -destination mocks/gateway.go -package mocks . Gateway

// Gateway provides the Bitbucket operations that are run when processing
// an event.
// Operations must not be retried by an implementation.
type Gateway interface {
	CommentPullRequest(ctx context.Context, repo *bitbucket.Repository, pullRequestID int64, text string) (*bitbucket.Comment, error)
	RawFile(ctx context.Context, repo *bitbucket.Repository, path string) ([]byte, error)
	CreateTask(ctx context.Context, repo *bitbucket.Repository, pullRequestID, commentID int64, text string) error
}

// GatewayFactory returns a Gateway for the Bitbucket instance at baseURL
// that authenticates with bearer.
// It is called once per processed event.
type GatewayFactory func(baseURL, bearer string) Gateway

// BitbucketGatewayFactory returns a GatewayFactory that creates
// bitbucket.Clients.
func BitbucketGatewayFactory(opts ...bitbucket.Option) GatewayFactory {
	return func(baseURL, bearer string) Gateway {
		return bitbucket.New(baseURL, bearer, opts...)
	}
}
