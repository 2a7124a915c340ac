package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/identity"
	"github.com/ST10104037/hippocampus-site/internal/model"
	"github.com/ST10104037/hippocampus-site/internal/repository"
)

// RegisterRequest is the self-registration form of a student
type RegisterRequest struct {
	Name            string `validate:"required"`
	Surname         string `validate:"required"`
	Email           string `validate:"required"`
	Phone           string
	Password        string `validate:"required,min=6"`
	ConfirmPassword string `validate:"eqfield=Password"`
}

type AccountService struct {
	profileRepo *repository.ProfileRepository
	sessions    identity.Factory
	logger      *zap.Logger
	now         func() time.Time
}

func NewAccountService(profileRepo *repository.ProfileRepository, sessions identity.Factory, logger *zap.Logger) *AccountService {
	return &AccountService{
		profileRepo: profileRepo,
		sessions:    sessions,
		logger:      logger,
		now:         time.Now,
	}
}

// Register creates a student account and its role document
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (string, error) {
	if err := checkRegisterRequest(req); err != nil {
		return "", err
	}

	var uid string
	err := identity.WithSecondarySession(ctx, s.sessions, func(ctx context.Context, p identity.Provider) error {
		created, err := p.CreateAccount(ctx, req.Email, req.Password)
		if err != nil {
			return err
		}
		uid = created.UID

		profile := &model.UserProfile{
			UID:       created.UID,
			Role:      model.RoleStudent,
			Name:      req.Name,
			Surname:   req.Surname,
			Phone:     req.Phone,
			Email:     created.Email,
			CreatedAt: s.now().UTC().Format(time.RFC3339Nano),
		}
		if err := s.profileRepo.Create(ctx, profile); err != nil {
			return fmt.Errorf("write student profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("🎓 Student registered", zap.String("uid", uid))
	return uid, nil
}

// checkRegisterRequest reports form errors in the order the form shows them
func checkRegisterRequest(req RegisterRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}

	for _, f := range fields {
		switch {
		case f.Field() == "ConfirmPassword":
			return ErrPasswordMismatch
		case f.Field() == "Password" && f.Tag() == "min":
			return ErrPasswordTooShort
		}
	}
	return fmt.Errorf("%w: %v", ErrMissingFields, err)
}
