// Package notify is the boundary to the notification/payment collaborator.
// The settlement engine hands the committed result over this port; delivery,
// user messaging, and any on-chain transfer happen on the other side.
package notify

import (
	"context"

	"go.uber.org/zap"

	"storypool/internal/settlement"
)

type Notifier interface {
	SettlementCompleted(ctx context.Context, result *settlement.Result) error
}

// LogNotifier is the default sink: it only logs. Useful in dev and as a
// stand-in until a real delivery collaborator is wired.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) SettlementCompleted(ctx context.Context, result *settlement.Result) error {
	if n == nil || n.Logger == nil || result == nil {
		return nil
	}
	n.Logger.Info("settlement completed",
		zap.String("pool_id", result.PoolID),
		zap.String("winning_choice_id", result.WinningChoiceID),
		zap.String("total_pool", result.TotalPool.String()),
		zap.String("winners_paid", result.WinnersPaid.String()),
		zap.Int("winners", len(result.Winners)),
		zap.Int("losers", len(result.Losers)),
		zap.Bool("no_winners", result.NoWinners),
	)
	return nil
}
