package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionEventsChannel returns the Redis PubSub channel that mirrors a session's transitions
func (r *CacheKeyStruct) SessionEventsChannel(sessionID string) string {
	return fmt.Sprintf("quiz:session:%s:events", sessionID)
}

// SessionRoutingKey returns the AMQP routing key for a transition into state
func (r *CacheKeyStruct) SessionRoutingKey(state string) string {
	return fmt.Sprintf("quiz.session.%s", state)
}

var CacheKey = NewCacheKeyStruct()
