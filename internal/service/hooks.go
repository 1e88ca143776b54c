package service

import (
	"context"
	"fmt"

	"sheger-walk-admin/internal/cache"
	"sheger-walk-admin/internal/events"
	"sheger-walk-admin/internal/features"
	"sheger-walk-admin/internal/logger"
	"sheger-walk-admin/internal/models"
)

// dependents lists the cached collections that embed another resource and
// go stale when it changes. The mutated collection itself is re-read by the
// mutation.
var dependents = map[string][]string{
	"challenge":   {"leaderboard:"},
	"provider":    {srcChallenges.resource},
	"reward":      {srcChallenges.resource},
	"reward_type": {srcRewards.resource},
	"withdrawal":  {srcUsers.resource, srcTransactions.resource},
}

// RegisterHooks subscribes the audit log and cache invalidation to mutation
// events. It is a no-op on a disabled event manager. The hooks are skipped
// while the event_hooks_enabled flag is off.
func (s *Service) RegisterHooks() {
	s.events.SubscribeAll(s.gated(s.recordAudit))

	for _, t := range []events.EventType{
		events.EventChallengeCreated, events.EventChallengeUpdated, events.EventChallengeDeleted,
		events.EventProviderCreated, events.EventProviderUpdated, events.EventProviderDeleted,
		events.EventRewardCreated, events.EventRewardUpdated, events.EventRewardDeleted,
		events.EventRewardTypeCreated, events.EventRewardTypeUpdated, events.EventRewardTypeDeleted,
		events.EventWithdrawalApproved, events.EventWithdrawalRejected,
	} {
		s.events.Subscribe(t, s.gated(s.invalidateDependents))
	}
}

func (s *Service) gated(h events.Handler) events.Handler {
	return func(ctx context.Context, e events.Event) error {
		if !s.features.IsEnabled(features.FeatureEventHooksEnabled) {
			return nil
		}
		return h(ctx, e)
	}
}

func (s *Service) recordAudit(ctx context.Context, e events.Event) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.InsertAudit(ctx, models.AuditEntry{
		Resource:   e.Data.Resource,
		Action:     e.Data.Action,
		TargetID:   e.Data.TargetID,
		Succeeded:  e.Data.Succeeded,
		Message:    e.Data.Message,
		OccurredAt: e.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", e.Type, err)
	}
	return nil
}

func (s *Service) invalidateDependents(ctx context.Context, e events.Event) error {
	for _, resource := range dependents[e.Data.Resource] {
		if err := s.invalidate(ctx, resource); err != nil {
			return fmt.Errorf("failed to invalidate %s: %w", resource, err)
		}
		logger.Debug("Invalidated %s after %s", cache.Key(resource), e.Type)
	}
	return nil
}
