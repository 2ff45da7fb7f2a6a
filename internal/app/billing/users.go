package billing

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
)

// Identity is what an authenticated session knows about its user.
type Identity struct {
	UserID uint
	Email  string
	Name   string
}

// ResolveUser finds the session's user by id, then by email, and creates
// a FREE account when neither exists.
func (s *Service) ResolveUser(ctx context.Context, id Identity) (*users.User, error) {
	db := s.db.WithContext(ctx)
	if id.UserID != 0 {
		u, err := loadUser(db, id.UserID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
	}

	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return nil, ErrUserNotFound
	}

	var u users.User
	err := db.Where("email = ?", email).Take(&u).Error
	if err == nil {
		if id.UserID != 0 {
			s.log.Info("session user id not found, matched by email",
				zap.Uint("session_user_id", id.UserID),
				zap.Uint("user_id", u.ID),
			)
		}
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	u = users.NewFreeUser(email, id.Name)
	if err := db.Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race with a concurrent sign-in.
			if err := db.Where("email = ?", email).Take(&u).Error; err != nil {
				return nil, err
			}
			return &u, nil
		}
		return nil, err
	}
	s.log.Info("created user", zap.Uint("user_id", u.ID))
	return &u, nil
}
