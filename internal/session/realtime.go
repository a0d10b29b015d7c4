package session

import (
	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/optimistic"
	"github.com/vibecampus/vibehub/internal/realtime"
)

// openBridge subscribes to the user's own profile, wallet, subscription
// and follow rows
func (s *Store) openBridge(gen uint64, userID string) {
	if s.subscriber == nil {
		return
	}
	b := realtime.Open(s.subscriber, "session:"+userID)
	subs := []struct {
		filter  realtime.Filter
		handler realtime.Handler
	}{
		{realtime.Eq(models.Profile{}.TableName(), "id", userID), s.onProfile(gen, userID)},
		{realtime.Eq(models.Wallet{}.TableName(), "user_id", userID), s.onWallet(gen, userID)},
		{realtime.Eq(models.Subscription{}.TableName(), "user_id", userID), s.onSubscription(gen, userID)},
		{realtime.Eq(models.Follow{}.TableName(), "follower_id", userID), s.onFollow(gen)},
	}
	for _, sub := range subs {
		if err := b.On(sub.filter, sub.handler); err != nil {
			s.logger.Error("Failed to subscribe", zap.Stringer("filter", sub.filter), zap.Error(err))
		}
	}

	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		b.Close()
		return
	}
	s.bridge = b
	s.mu.Unlock()
}

func (s *Store) onProfile(gen uint64, userID string) realtime.Handler {
	return func(ch realtime.Change) {
		s.profiles.Invalidate(userID)
		if ch.Type == realtime.EventDelete {
			s.apply(gen, func() { s.profile = nil })
			return
		}
		p, err := s.loadProfile(s.ctx, userID)
		if err != nil {
			s.logger.Debug("Profile refetch failed", zap.Error(err))
			return
		}
		s.apply(gen, func() { s.profile = p })
	}
}

func (s *Store) onWallet(gen uint64, userID string) realtime.Handler {
	return func(ch realtime.Change) {
		if ch.Type == realtime.EventDelete {
			s.apply(gen, func() { s.wallet = nil })
			return
		}
		w, err := s.backend.Wallet(s.ctx, userID)
		if err != nil {
			s.logger.Debug("Wallet refetch failed", zap.Error(err))
			return
		}
		s.apply(gen, func() { s.wallet = w })
	}
}

func (s *Store) onSubscription(gen uint64, userID string) realtime.Handler {
	return func(realtime.Change) {
		sub, err := s.backend.Subscription(s.ctx, userID)
		if err != nil {
			s.logger.Debug("Subscription refetch failed", zap.Error(err))
			return
		}
		s.apply(gen, func() { s.sub = sub })
	}
}

// onFollow keeps the followed set in line with changes made elsewhere,
// such as another device
func (s *Store) onFollow(gen uint64) realtime.Handler {
	return func(ch realtime.Change) {
		target, ok := ch.Column("following_id")
		if !ok || target == "" {
			return
		}
		following := ch.Type != realtime.EventDelete
		s.apply(gen, func() {
			v, ok := s.follows[target]
			if !ok {
				v = optimistic.New(false)
			}
			s.follows[target] = optimistic.Reduce(v, optimistic.ServerSetAction(following))
		})
	}
}

// apply runs fn under the lock unless the user has changed since gen
func (s *Store) apply(gen uint64, fn func()) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	fn()
	s.unlockAndNotify()
}
