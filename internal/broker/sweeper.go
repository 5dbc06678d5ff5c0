// ABOUTME: Retention sweep for completed request history
// ABOUTME: Runs opportunistically after each completion observed by a broker loop

package broker

import "context"

// Sweep deletes completed requests older than the configured retention
// window. It runs after every completion a broker loop observes, so cleanup
// cost is amortized across completions instead of a background timer. With
// HistoryDays <= 0 sweeping is disabled and history is kept indefinitely.
//
// Under very low traffic, stale completed rows can linger past their nominal
// retention window until the next completion anywhere in the system.
func (b *Broker) Sweep(ctx context.Context) {
	if b.cfg.HistoryDays <= 0 {
		return
	}

	count, err := b.store.DeleteCompletedBefore(ctx, b.cfg.HistoryDays)
	if err != nil {
		b.logger.Warn("history sweep failed", "error", err)
		return
	}
	if count > 0 {
		b.logger.Info("swept old history", "deleted", count, "retention_days", b.cfg.HistoryDays)
	}
}
