package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
	"github.com/ST10104037/hippocampus-site/internal/docstore/memory"
	"github.com/ST10104037/hippocampus-site/internal/identity"
	"github.com/ST10104037/hippocampus-site/internal/model"
	"github.com/ST10104037/hippocampus-site/internal/repository"
	"github.com/ST10104037/hippocampus-site/internal/session"
	"github.com/ST10104037/hippocampus-site/internal/view"
)

const appID = "app"

type fixture struct {
	store    *memory.Store
	accounts *identity.MemoryAccounts
	profiles *repository.ProfileRepository
	bookings *repository.BookingRepository
	admin    *AdminService
	account  *AccountService
	booking  *BookingService
	profile  *ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	store := memory.New()
	accounts := identity.NewMemoryAccounts()
	factory := identity.LocalFactory(accounts, identity.NewTokens("secret", time.Hour),
		identity.NewThrottle(5, time.Minute), logger)

	f := &fixture{
		store:    store,
		accounts: accounts,
		profiles: repository.NewProfileRepository(store, appID),
		bookings: repository.NewBookingRepository(store, appID),
	}
	f.admin = NewAdminService(f.profiles, factory, logger)
	f.account = NewAccountService(f.profiles, factory, logger)
	f.booking = NewBookingService(f.bookings, logger)
	f.profile = NewProfileService(f.profiles, logger)
	return f
}

func (f *fixture) seed(t *testing.T, p *model.UserProfile) *session.Context {
	t.Helper()
	require.NoError(t, f.profiles.Create(context.Background(), p))
	return &session.Context{
		Identity: identity.Identity{UID: p.UID, Email: p.Email},
		Profile:  p,
		Role:     p.Role,
	}
}

func strPtr(s string) *string { return &s }

func TestAdminService_UpdateUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.seed(t, &model.UserProfile{UID: "a1", Role: model.RoleAdmin})
	f.seed(t, &model.UserProfile{UID: "s1", Role: model.RoleStudent, Name: "Ann"})
	lect := f.seed(t, &model.UserProfile{UID: "l1", Role: model.RoleLecturer, Name: "Lee"})

	err := f.admin.UpdateUser(ctx, admin, "s1", model.ProfileUpdate{
		Name:          "Ann",
		Surname:       "Smith",
		MarkingScheme: strPtr(`{"exam":1}`),
		LecturerUID:   strPtr("l1"),
	})
	require.NoError(t, err)
	got, err := f.profiles.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "l1", got.LecturerUID)
	assert.Equal(t, 1.0, got.MarkingScheme.Value("exam"))

	// student fields are dropped for staff
	err = f.admin.UpdateUser(ctx, admin, "l1", model.ProfileUpdate{Name: "Lee", Marks: strPtr(`{"exam":90}`)})
	require.NoError(t, err)
	got, err = f.profiles.Get(ctx, "l1")
	require.NoError(t, err)
	assert.Empty(t, got.Marks)

	err = f.admin.UpdateUser(ctx, admin, "s1", model.ProfileUpdate{Marks: strPtr("not json")})
	assert.Equal(t, "❌ Marks data is not valid JSON.", ErrorMessage(err))

	err = f.admin.UpdateUser(ctx, admin, "ghost", model.ProfileUpdate{Name: "x"})
	assert.True(t, errors.Is(err, docstore.ErrNotFound))

	err = f.admin.UpdateUser(ctx, lect, "s1", model.ProfileUpdate{Name: "x"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAdminService_DeleteUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.seed(t, &model.UserProfile{UID: "a1", Role: model.RoleAdmin})
	f.seed(t, &model.UserProfile{UID: "s1", Role: model.RoleStudent})

	assert.ErrorIs(t, f.admin.DeleteUser(ctx, admin, "a1"), ErrSelfDelete)
	require.NoError(t, f.admin.DeleteUser(ctx, admin, "s1"))

	got, err := f.profiles.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = f.admin.DeleteUser(ctx, admin, "s1")
	assert.Equal(t, "❌ User profile not found.", ErrorMessage(err))
}

func TestAdminService_CreateStaffAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.seed(t, &model.UserProfile{UID: "a1", Role: model.RoleAdmin})

	_, err := f.admin.CreateStaffAccount(ctx, admin, "x@example.com", "secret1", model.RoleStudent)
	assert.ErrorIs(t, err, ErrInvalidStaffRole)

	uid, err := f.admin.CreateStaffAccount(ctx, admin, "Lect@Example.com", "secret1", model.RoleLecturer)
	require.NoError(t, err)

	p, err := f.profiles.Get(ctx, uid)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, model.RoleLecturer, p.Role)
	assert.Equal(t, "Staff", p.Name)
	assert.Equal(t, "lecturer", p.Surname)
	assert.Equal(t, "lect@example.com", p.Email)

	_, err = f.admin.CreateStaffAccount(ctx, admin, "lect@example.com", "secret1", model.RoleAdmin)
	assert.Equal(t, "❌ This email address is already registered. Please login.", ErrorMessage(err))

	_, err = f.admin.CreateStaffAccount(ctx, admin, "short@example.com", "123", model.RoleAdmin)
	code, ok := identity.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, identity.CodeWeakPassword, code)
}

func TestAdminService_Lecturers(t *testing.T) {
	f := newFixture(t)
	v := view.AdminView{Users: []*model.UserProfile{
		{UID: "s1", Role: model.RoleStudent},
		{UID: "l1", Role: model.RoleLecturer},
		{UID: "l2", Role: model.RoleLecturer},
	}}

	lecturers := f.admin.Lecturers(v)
	require.Len(t, lecturers, 2)
	assert.Equal(t, "l1", lecturers[0].UID)

	assert.Equal(t, model.DefaultMarkingScheme, f.admin.EditableScheme(&model.UserProfile{}))
}

func TestAdminService_EditForm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.seed(t, &model.UserProfile{UID: "admin", Role: model.RoleAdmin})
	lecturer := f.seed(t, &model.UserProfile{UID: "l1", Role: model.RoleLecturer, Name: "Ada"})
	f.seed(t, &model.UserProfile{UID: "s1", Role: model.RoleStudent, Name: "Sam", StudentNumber: "ST1"})

	form, err := f.admin.EditForm(ctx, admin, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Sam", form.Name)
	require.NotNil(t, form.MarkingScheme)
	assert.JSONEq(t, `{"iceTasks":0.1,"assignment1":0.25,"assignment2":0.3,"exam":0.35}`, *form.MarkingScheme)
	assert.Equal(t, "{}", *form.Marks)
	assert.Equal(t, "ST1", *form.StudentNumber)

	// saving the untouched form stores the offered scheme
	require.NoError(t, f.admin.UpdateUser(ctx, admin, "s1", form))
	stored, err := f.profiles.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultMarkingScheme, stored.MarkingScheme)

	form, err = f.admin.EditForm(ctx, admin, "l1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", form.Name)
	assert.False(t, form.HasStudentFields())

	_, err = f.admin.EditForm(ctx, lecturer, "s1")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.admin.EditForm(ctx, admin, "ghost")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestBookingService_Flow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	student := f.seed(t, &model.UserProfile{UID: "s1", Role: model.RoleStudent, LecturerUID: "l1"})
	lecturer := f.seed(t, &model.UserProfile{UID: "l1", Role: model.RoleLecturer})
	other := f.seed(t, &model.UserProfile{UID: "l2", Role: model.RoleLecturer})

	_, err := f.booking.RequestBooking(ctx, student, BookingRequest{ModuleName: "PROG6212"})
	assert.Equal(t, "❌ Please fill in all required fields.", ErrorMessage(err))

	b, err := f.booking.RequestBooking(ctx, student, BookingRequest{ModuleName: "PROG6212", PreferredTime: "Mon 10:00"})
	require.NoError(t, err)
	assert.Equal(t, "l1", b.LecturerUID)

	_, err = f.booking.RequestBooking(ctx, lecturer, BookingRequest{ModuleName: "M", PreferredTime: "T"})
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, f.booking.ChangeStatus(ctx, lecturer, b.ID, "pending"), ErrInvalidStatus)
	assert.ErrorIs(t, f.booking.ChangeStatus(ctx, other, b.ID, "accepted"), ErrNotAddressed)
	require.NoError(t, f.booking.ChangeStatus(ctx, lecturer, b.ID, "accepted"))

	err = f.booking.ChangeStatus(ctx, lecturer, b.ID, "rejected")
	assert.Equal(t, "❌ This booking has already been decided.", ErrorMessage(err))

	assert.ErrorIs(t, f.booking.ChangeStatus(ctx, lecturer, "missing", "accepted"), ErrBookingNotFound)
}

func TestBookingService_UnassignedVisibleToAnyLecturer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	student := f.seed(t, &model.UserProfile{UID: "s1", Role: model.RoleStudent})
	lecturer := f.seed(t, &model.UserProfile{UID: "l9", Role: model.RoleLecturer})

	b, err := f.booking.RequestBooking(ctx, student, BookingRequest{ModuleName: "M", PreferredTime: "T"})
	require.NoError(t, err)
	assert.Equal(t, model.UnassignedLecturer, b.LecturerUID)
	require.NoError(t, f.booking.ChangeStatus(ctx, lecturer, b.ID, "rejected"))
}

func TestAccountService_Register(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := RegisterRequest{
		Name: "Ann", Surname: "Smith", Email: "ann@example.com", Phone: "082",
		Password: "secret1", ConfirmPassword: "secret2",
	}
	_, err := f.account.Register(ctx, req)
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	req.Password, req.ConfirmPassword = "12345", "12345"
	_, err = f.account.Register(ctx, req)
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	req.Password, req.ConfirmPassword = "secret1", "secret1"
	uid, err := f.account.Register(ctx, req)
	require.NoError(t, err)

	p, err := f.profiles.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, model.RoleStudent, p.Role)
	assert.Equal(t, "082", p.Phone)
	assert.NotEmpty(t, p.CreatedAt)

	acc, err := f.accounts.GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, uid, acc.UID)
}

func TestProfileService_UpdateMyProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sess := f.seed(t, &model.UserProfile{UID: "s1", Role: model.RoleStudent, StudentNumber: "ST1"})

	require.NoError(t, f.profile.UpdateMyProfile(ctx, sess, "Ann", "Smith", "083"))
	p, err := f.profiles.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "083", p.Phone)
	assert.Equal(t, "ST1", p.StudentNumber)

	assert.ErrorIs(t, f.profile.UpdateMyProfile(ctx, nil, "a", "b", "c"), ErrNotSignedIn)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "", ErrorMessage(nil))
	assert.Equal(t, "❌ You do not have permission to do that.",
		ErrorMessage(&docstore.PermissionError{Op: docstore.OpWrite, Path: "x"}))
	assert.Equal(t, "❌ Invalid email or password. Please try again.",
		ErrorMessage(&identity.AuthError{Code: identity.CodeInvalidCredential}))
	assert.Equal(t, "❌ An error occurred. Please try again.", ErrorMessage(errors.New("boom")))
}
