package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
	"github.com/ST10104037/hippocampus-site/internal/identity"
	"github.com/ST10104037/hippocampus-site/internal/model"
	"github.com/ST10104037/hippocampus-site/internal/repository"
	"github.com/ST10104037/hippocampus-site/internal/session"
	"github.com/ST10104037/hippocampus-site/internal/view"
)

type AdminService struct {
	profileRepo *repository.ProfileRepository
	sessions    identity.Factory
	logger      *zap.Logger
	now         func() time.Time
}

// NewAdminService creates the admin operations. sessions opens the isolated
// provider instances used to create staff accounts.
func NewAdminService(profileRepo *repository.ProfileRepository, sessions identity.Factory, logger *zap.Logger) *AdminService {
	return &AdminService{
		profileRepo: profileRepo,
		sessions:    sessions,
		logger:      logger,
		now:         time.Now,
	}
}

func requireRole(sess *session.Context, role model.Role) error {
	if sess == nil {
		return ErrNotSignedIn
	}
	if sess.Role != role {
		return ErrForbidden
	}
	return nil
}

// UpdateUser applies an admin edit. Student-only fields are ignored for
// staff users. Malformed scheme or marks fail before anything is written.
func (s *AdminService) UpdateUser(ctx context.Context, sess *session.Context, uid string, update model.ProfileUpdate) error {
	if err := requireRole(sess, model.RoleAdmin); err != nil {
		return err
	}
	if uid == "" {
		return ErrNoUserSelected
	}

	target, err := s.profileRepo.Get(ctx, uid)
	if err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("update user %s: %w", uid, docstore.ErrNotFound)
	}

	if target.Role != model.RoleStudent {
		update.StudentNumber = nil
		update.MarkingScheme = nil
		update.Marks = nil
		update.LecturerUID = nil
	}

	if err := s.profileRepo.UpdateProfile(ctx, uid, update); err != nil {
		return err
	}

	s.logger.Info("User updated",
		zap.String("admin", sess.UID()),
		zap.String("uid", uid),
		zap.Bool("student_fields", update.HasStudentFields()))
	return nil
}

// DeleteUser removes a user's role and user documents. The sign-in account
// is left in place.
func (s *AdminService) DeleteUser(ctx context.Context, sess *session.Context, uid string) error {
	if err := requireRole(sess, model.RoleAdmin); err != nil {
		return err
	}
	if uid == "" {
		return ErrNoUserSelected
	}
	if uid == sess.UID() {
		return ErrSelfDelete
	}

	if err := s.profileRepo.Delete(ctx, uid); err != nil {
		return err
	}

	s.logger.Info("🗑 User deleted",
		zap.String("admin", sess.UID()),
		zap.String("uid", uid))
	return nil
}

// CreateStaffAccount registers a lecturer or admin account in an isolated
// provider session, so the admin stays signed in, and writes its profile.
func (s *AdminService) CreateStaffAccount(ctx context.Context, sess *session.Context, email, password string, role model.Role) (string, error) {
	if err := requireRole(sess, model.RoleAdmin); err != nil {
		return "", err
	}
	if !role.IsStaff() {
		return "", ErrInvalidStaffRole
	}

	var uid string
	err := identity.WithSecondarySession(ctx, s.sessions, func(ctx context.Context, p identity.Provider) error {
		created, err := p.CreateAccount(ctx, email, password)
		if err != nil {
			return err
		}
		uid = created.UID

		profile := model.NewStaffProfile(created.UID, created.Email, role, s.now())
		if err := s.profileRepo.Create(ctx, profile); err != nil {
			return fmt.Errorf("write staff profile: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Failed to create staff account",
			zap.String("email", email),
			zap.String("role", string(role)),
			zap.Error(err))
		return "", err
	}

	s.logger.Info("👤 Staff account created",
		zap.String("admin", sess.UID()),
		zap.String("uid", uid),
		zap.String("role", string(role)))
	return uid, nil
}

// Lecturers lists the lecturers of the roster, for assigning students
func (s *AdminService) Lecturers(v view.AdminView) []*model.UserProfile {
	var out []*model.UserProfile
	for _, u := range v.Users {
		if u.Role == model.RoleLecturer {
			out = append(out, u)
		}
	}
	return out
}

// EditableScheme is the scheme prefilled in the edit form
func (s *AdminService) EditableScheme(p *model.UserProfile) model.Weights {
	if len(p.MarkingScheme) == 0 {
		return model.DefaultMarkingScheme
	}
	return p.MarkingScheme
}

// EditForm prefills the edit form of uid from the stored profile. A student
// without a marking scheme is offered the default one.
func (s *AdminService) EditForm(ctx context.Context, sess *session.Context, uid string) (model.ProfileUpdate, error) {
	if err := requireRole(sess, model.RoleAdmin); err != nil {
		return model.ProfileUpdate{}, err
	}
	if uid == "" {
		return model.ProfileUpdate{}, ErrNoUserSelected
	}

	target, err := s.profileRepo.Get(ctx, uid)
	if err != nil {
		return model.ProfileUpdate{}, err
	}
	if target == nil {
		return model.ProfileUpdate{}, fmt.Errorf("edit user %s: %w", uid, docstore.ErrNotFound)
	}

	form := model.ProfileUpdate{Name: target.Name, Surname: target.Surname, Phone: target.Phone}
	if target.Role != model.RoleStudent {
		return form, nil
	}

	scheme, err := json.Marshal(s.EditableScheme(target))
	if err != nil {
		return model.ProfileUpdate{}, fmt.Errorf("encode marking scheme: %w", err)
	}
	marks, err := json.Marshal(target.Marks)
	if err != nil {
		return model.ProfileUpdate{}, fmt.Errorf("encode marks: %w", err)
	}

	schemeText, marksText := string(scheme), string(marks)
	studentNumber, lecturer := target.StudentNumber, target.LecturerUID
	form.StudentNumber = &studentNumber
	form.MarkingScheme = &schemeText
	form.Marks = &marksText
	form.LecturerUID = &lecturer
	return form, nil
}
