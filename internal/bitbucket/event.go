// Package bitbucket provides the Bitbucket Server webhook event types and a
// client for the Bitbucket Server REST API.
package bitbucket

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventKeyPullRequestOpened is the X-Event-Key and eventKey value of
// pull request opened events.
const EventKeyPullRequestOpened = "pr:opened"

// PullRequestOpenedEvent is a "pr:opened" webhook event.
// Only the fields that are used are defined.
type PullRequestOpenedEvent struct {
	EventKey    string       `json:"eventKey"`
	PullRequest *PullRequest `json:"pullRequest"`
}

type PullRequest struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	FromRef *Ref   `json:"fromRef"`
	ToRef   *Ref   `json:"toRef"`
	Links   *Links `json:"links"`
}

type Links struct {
	Self []*Link `json:"self"`
}

type Link struct {
	Href string `json:"href"`
}

// Ref is a git reference in a repository.
type Ref struct {
	// ID is the full ref name, e.g. "refs/heads/main".
	ID         string      `json:"id"`
	Repository *Repository `json:"repository"`
}

type Repository struct {
	Slug    string   `json:"slug"`
	Project *Project `json:"project"`
}

type Project struct {
	Key string `json:"key"`
}

func (r *Repository) String() string {
	return fmt.Sprintf("%s/%s", r.ProjectKey(), r.Slug)
}

// ProjectKey returns the key of the project, if it is unset an empty string
// is returned.
func (r *Repository) ProjectKey() string {
	if r.Project == nil {
		return ""
	}

	return r.Project.Key
}

// DecodePullRequestOpenedEvent unmarshals a "pr:opened" JSON payload and
// ensures all required fields are set.
func DecodePullRequestOpenedEvent(data []byte) (*PullRequestOpenedEvent, error) {
	var result PullRequestOpenedEvent

	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}

	return &result, nil
}

// Validate returns an error if a field that is required to process the event
// is missing.
func (e *PullRequestOpenedEvent) Validate() error {
	pr := e.PullRequest
	if pr == nil {
		return errors.New("missing field: 'pullRequest'")
	}

	if pr.ID <= 0 {
		return fmt.Errorf("pullRequest.id is %d, must be >0", pr.ID)
	}

	if pr.Links == nil {
		return errors.New("missing field: 'pullRequest.links'")
	}

	if len(pr.Links.Self) == 0 || pr.Links.Self[0] == nil {
		return errors.New("missing field: 'pullRequest.links.self'")
	}

	if err := validateRef(pr.FromRef); err != nil {
		return fmt.Errorf("pullRequest.fromRef: %w", err)
	}

	if err := validateRef(pr.ToRef); err != nil {
		return fmt.Errorf("pullRequest.toRef: %w", err)
	}

	return nil
}

func validateRef(ref *Ref) error {
	if ref == nil {
		return errors.New("missing")
	}

	if ref.ID == "" {
		return errors.New("missing field: 'id'")
	}

	if ref.Repository == nil {
		return errors.New("missing field: 'repository'")
	}

	if ref.Repository.Slug == "" {
		return errors.New("missing field: 'repository.slug'")
	}

	if ref.Repository.ProjectKey() == "" {
		return errors.New("missing field: 'repository.project.key'")
	}

	return nil
}

// SelfLink returns the first self link of the pull request.
// An empty string is returned if it has none.
func (p *PullRequest) SelfLink() string {
	if p.Links == nil || len(p.Links.Self) == 0 || p.Links.Self[0] == nil {
		return ""
	}

	return p.Links.Self[0].Href
}
