package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/model"
	"github.com/ST10104037/hippocampus-site/internal/repository"
	"github.com/ST10104037/hippocampus-site/internal/session"
)

type ProfileService struct {
	profileRepo *repository.ProfileRepository
	logger      *zap.Logger
}

func NewProfileService(profileRepo *repository.ProfileRepository, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
		logger:      logger,
	}
}

// UpdateMyProfile changes the signed-in user's name, surname and phone
func (s *ProfileService) UpdateMyProfile(ctx context.Context, sess *session.Context, name, surname, phone string) error {
	if sess == nil || sess.UID() == "" {
		return ErrNotSignedIn
	}

	update := model.ProfileUpdate{Name: name, Surname: surname, Phone: phone}
	if err := s.profileRepo.UpdateProfile(ctx, sess.UID(), update); err != nil {
		return fmt.Errorf("update my profile: %w", err)
	}

	s.logger.Info("Profile updated", zap.String("uid", sess.UID()))
	return nil
}
