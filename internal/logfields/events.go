package logfields

import "go.uber.org/zap"

func EventProvider(val string) zap.Field {
	return zap.String("event_provider", val)
}

func Event(val string) zap.Field {
	return zap.String("event", val)
}

func EventKey(val string) zap.Field {
	return zap.String("bitbucket.event_key", val)
}

func RequestID(val string) zap.Field {
	return zap.String("bitbucket.request_id", val)
}
