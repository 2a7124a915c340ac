package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
	"github.com/ST10104037/hippocampus-site/internal/model"
)

// ProfileRepository reads and writes role documents
type ProfileRepository struct {
	store docstore.Store
	appID string
}

func NewProfileRepository(store docstore.Store, appID string) *ProfileRepository {
	return &ProfileRepository{store: store, appID: appID}
}

// Get returns the profile of uid, nil when the user has no role document
func (r *ProfileRepository) Get(ctx context.Context, uid string) (*model.UserProfile, error) {
	doc, err := r.store.Get(ctx, docstore.RoleDocPath(r.appID, uid))
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if doc == nil {
		return nil, nil
	}

	profile, err := model.DecodeProfile(doc.Data.Bytes())
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", uid, err)
	}
	return profile, nil
}

// Create writes a new role document, replacing any existing one
func (r *ProfileRepository) Create(ctx context.Context, profile *model.UserProfile) error {
	if err := model.Validate(profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}

	fields, err := docstore.EncodeFields(profile)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}

	if err := r.store.Set(ctx, docstore.RoleDocPath(r.appID, profile.UID), fields, false); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// UpdateProfile applies an edit. Marking scheme and marks are parsed before
// anything is written; a parse failure returns *model.MalformedDataError.
func (r *ProfileRepository) UpdateProfile(ctx context.Context, uid string, update model.ProfileUpdate) error {
	fields := docstore.Fields{}

	if update.MarkingScheme != nil {
		scheme, err := model.ParseWeights(model.FieldMarkingScheme, *update.MarkingScheme)
		if err != nil {
			return err
		}
		if err := fields.Set("markingScheme", scheme); err != nil {
			return err
		}
	}
	if update.Marks != nil {
		marks, err := model.ParseWeights(model.FieldMarks, *update.Marks)
		if err != nil {
			return err
		}
		if err := fields.Set("marks", marks); err != nil {
			return err
		}
	}

	if err := errors.Join(
		fields.Set("name", update.Name),
		fields.Set("surname", update.Surname),
		fields.Set("phone", update.Phone),
	); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if update.StudentNumber != nil {
		if err := fields.Set("studentNumber", *update.StudentNumber); err != nil {
			return err
		}
	}
	if update.LecturerUID != nil {
		if err := fields.Set("lecturerUid", *update.LecturerUID); err != nil {
			return err
		}
	}

	if err := r.store.Update(ctx, docstore.RoleDocPath(r.appID, uid), fields); err != nil {
		return fmt.Errorf("update profile %s: %w", uid, err)
	}
	return nil
}

// Delete removes the role document, then the parent user document.
// Returns docstore.ErrNotFound when the user has no role document.
func (r *ProfileRepository) Delete(ctx context.Context, uid string) error {
	rolePath := docstore.RoleDocPath(r.appID, uid)

	doc, err := r.store.Get(ctx, rolePath)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("delete profile %s: %w", uid, docstore.ErrNotFound)
	}

	if err := r.store.Delete(ctx, rolePath); err != nil {
		return fmt.Errorf("delete role document: %w", err)
	}
	if err := r.store.Delete(ctx, docstore.UserDocPath(r.appID, uid)); err != nil {
		return fmt.Errorf("delete user document: %w", err)
	}
	return nil
}

// RoleQuery watches every role document
func (r *ProfileRepository) RoleQuery() docstore.Query {
	return docstore.GroupQuery(docstore.RoleCollection)
}

// StudentsOfQuery watches the students assigned to a lecturer
func (r *ProfileRepository) StudentsOfQuery(lecturerUID string) docstore.Query {
	return docstore.GroupQuery(docstore.RoleCollection,
		docstore.Eq("role", string(model.RoleStudent)),
		docstore.Eq("lecturerUid", lecturerUID),
	)
}

// DocumentQuery watches one user's role document
func (r *ProfileRepository) DocumentQuery(uid string) docstore.Query {
	return docstore.DocumentQuery(docstore.RoleDocPath(r.appID, uid))
}
