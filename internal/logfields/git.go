package logfields

import "go.uber.org/zap"

func PullRequest(val int64) zap.Field {
	return zap.Int64("bitbucket.pull_request", val)
}

func Repository(val string) zap.Field {
	return zap.String("bitbucket.repository", val)
}

func Project(val string) zap.Field {
	return zap.String("bitbucket.project", val)
}

func FromBranch(val string) zap.Field {
	return zap.String("git.from_branch", val)
}

func ToBranch(val string) zap.Field {
	return zap.String("git.to_branch", val)
}

func CommentID(val int64) zap.Field {
	return zap.Int64("bitbucket.comment_id", val)
}

func BaseURL(val string) zap.Field {
	return zap.String("bitbucket.base_url", val)
}
