package app

import (
	"context"

	"quizhub-service/internal/domain"
	"quizhub-service/internal/store"
	"quizhub-service/internal/streak"
)

// ActivityService records account activity that is not an attempt.
type ActivityService struct {
	deps Deps
}

func NewActivityService(deps Deps) *ActivityService {
	return &ActivityService{deps: deps.withDefaults()}
}

// RecordLogin touches the user's streak for today and returns the user.
func (s *ActivityService) RecordLogin(ctx context.Context, userID int64) (domain.User, error) {
	var user domain.User
	err := s.deps.Store.WithinTx(ctx, func(ctx context.Context, repo store.Repository) error {
		u, err := repo.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if streak.Touch(&u, s.deps.Clock()) {
			if err := repo.SaveUserProgress(ctx, u); err != nil {
				return err
			}
		}
		user = u
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	s.deps.logger(ctx).WithField("user_id", userID).WithField("streak_days", user.StreakDays).Debug("login recorded")
	return user, nil
}
