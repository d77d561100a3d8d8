package bitbucket

type operation string

const (
	opCreateComment operation = "creating comment"
	opReadFile      operation = "reading file"
	opCreateTask    operation = "creating task"
)

const severityBlocker = "BLOCKER"

// Comment is a pull request comment.
type Comment struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type commentRequest struct {
	Text     string         `json:"text"`
	Parent   *commentParent `json:"parent,omitempty"`
	Severity string         `json:"severity,omitempty"`
}

type commentParent struct {
	ID int64 `json:"id"`
}

type parentTaskRequest struct {
	Parent *commentParent `json:"parent"`
	Text   string         `json:"text"`
}

type legacyTaskRequest struct {
	Anchor *taskAnchor `json:"anchor"`
	Text   string      `json:"text"`
}

type taskAnchor struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}
