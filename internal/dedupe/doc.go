// Package dedupe provides a size-bounded TTL cache for suppressing duplicate
// event processing. The chat relay uses it to drop Matrix events that the
// sync loop re-delivers after reconnects.
package dedupe
