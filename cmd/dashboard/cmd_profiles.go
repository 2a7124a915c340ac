package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ST10104037/hippocampus-site/internal/app"
	"github.com/ST10104037/hippocampus-site/internal/model"
	"github.com/ST10104037/hippocampus-site/internal/service"
)

func runUpdateProfile(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		ctx := cmd.Context()
		sess, err := a.SignInAs(ctx, email, password)
		if err != nil {
			return userError(err)
		}

		current := sess.Profile
		err = a.Services.Profile.UpdateMyProfile(ctx, sess,
			flagOr(cmd, "name", name, current.Name),
			flagOr(cmd, "surname", surname, current.Surname),
			flagOr(cmd, "phone", phone, current.Phone))
		if err != nil {
			return userError(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✅ Profile updated.")
		return nil
	})
}

func runUpdateUser(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		ctx := cmd.Context()
		sess, err := a.SignInAs(ctx, adminEmail, adminPassword)
		if err != nil {
			return userError(err)
		}

		form, err := a.Services.Admin.EditForm(ctx, sess, targetUID)
		if err != nil {
			return userError(err)
		}
		student := form.HasStudentFields()

		form.Name = flagOr(cmd, "name", name, form.Name)
		form.Surname = flagOr(cmd, "surname", surname, form.Surname)
		form.Phone = flagOr(cmd, "phone", phone, form.Phone)
		setIfChanged(cmd, "student-number", studentNumber, &form.StudentNumber)
		setIfChanged(cmd, "scheme", scheme, &form.MarkingScheme)
		setIfChanged(cmd, "marks", marks, &form.Marks)
		setIfChanged(cmd, "lecturer", lecturerUID, &form.LecturerUID)

		if err := a.Services.Admin.UpdateUser(ctx, sess, targetUID, form); err != nil {
			return userError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ User %s updated.\n", targetUID)
		if student {
			fmt.Fprintf(cmd.OutOrStdout(), "📋 Marking scheme: %s\n", *form.MarkingScheme)
		}
		return nil
	})
}

func runBook(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		ctx := cmd.Context()
		sess, err := a.SignInAs(ctx, email, password)
		if err != nil {
			return userError(err)
		}

		booking, err := a.Services.Booking.RequestBooking(ctx, sess, service.BookingRequest{
			ModuleName:    moduleName,
			PreferredTime: preferredTime,
		})
		if err != nil {
			return userError(err)
		}

		lecturer := "any lecturer"
		if booking.LecturerUID != model.UnassignedLecturer {
			lecturer = booking.LecturerUID
		}
		fmt.Fprintf(cmd.OutOrStdout(), "📅 Booking %s requested from %s.\n", booking.ID, lecturer)
		return nil
	})
}

// flagOr returns the flag value when it was given, fallback otherwise
func flagOr(cmd *cobra.Command, flag, value, fallback string) string {
	if cmd.Flags().Changed(flag) {
		return value
	}
	return fallback
}

func setIfChanged(cmd *cobra.Command, flag, value string, dst **string) {
	if cmd.Flags().Changed(flag) {
		v := value
		*dst = &v
	}
}
