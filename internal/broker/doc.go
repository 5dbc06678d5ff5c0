// Package broker orchestrates question/answer exchanges between an agent and
// a human.
//
// One Ask call covers one exchange: insert a PENDING request, optionally
// notify the chat relay, then poll the store until a human completes or
// dismisses the request or the timeout elapses. The web UI and the chat relay
// race to complete the same request; the store's conditional terminal write
// guarantees at most one completion, so the broker never has to arbitrate.
//
// Outcome handling:
//
//   - answered: the row is retained as history and an opportunistic
//     retention sweep runs.
//   - dismissed: the row is deleted immediately; dismissals never appear in
//     history.
//   - timed out: the row is deleted; timeouts never appear in history.
//
// The fixed-interval polling is the sole suspension point. Each waiting Ask
// call is an independent goroutine; no state is shared between exchanges
// outside the store.
package broker
