package live

import (
	"time"

	"github.com/coder/websocket"
)

// DefaultReconnectDelay is the fixed pause between an abnormal close and the next open.
const DefaultReconnectDelay = 3 * time.Second

// ReconnectPolicy decides when a dropped channel is reopened.
// The delay never grows. MaxAttempts of zero retries forever.
type ReconnectPolicy struct {
	Delay       time.Duration
	MaxAttempts int
}

// DefaultReconnectPolicy retries every three seconds without limit.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{Delay: DefaultReconnectDelay}
}

// next returns the delay before reconnect attempt number attempt+1, or false
// once the policy is exhausted.
func (p ReconnectPolicy) next(attempt int) (time.Duration, bool) {
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		return 0, false
	}
	if p.Delay <= 0 {
		return DefaultReconnectDelay, true
	}
	return p.Delay, true
}

// IsNormalClosure reports whether code means the channel was closed on purpose.
func IsNormalClosure(code websocket.StatusCode) bool {
	return code == websocket.StatusNormalClosure
}
