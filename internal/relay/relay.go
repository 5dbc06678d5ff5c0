// ABOUTME: Relay entry points shared by the Matrix implementation and the noop fallback
// ABOUTME: NoopRelay stands in when no chat relay is configured

package relay

import "context"

// NoopRelay is used when the chat relay is disabled. Every push reports
// non-delivery so exchanges proceed through polling alone.
type NoopRelay struct{}

func (NoopRelay) Push(ctx context.Context, userID, requestID, question string) bool {
	return false
}
