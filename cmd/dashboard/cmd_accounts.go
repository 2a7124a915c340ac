package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/app"
	"github.com/ST10104037/hippocampus-site/internal/model"
	"github.com/ST10104037/hippocampus-site/internal/service"
)

func runRegister(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		uid, err := a.Services.Account.Register(cmd.Context(), service.RegisterRequest{
			Name:            name,
			Surname:         surname,
			Email:           email,
			Phone:           phone,
			Password:        password,
			ConfirmPassword: confirm,
		})
		if err != nil {
			return userError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Student registered: %s\n", uid)
		return nil
	})
}

func runCreateStaff(cmd *cobra.Command, args []string) error {
	role, ok := model.ParseRole(staffRole)
	if !ok {
		return userError(service.ErrInvalidStaffRole)
	}

	return withApp(cmd.Context(), func(a *app.App) error {
		ctx := cmd.Context()
		sess, err := a.SignInAs(ctx, adminEmail, adminPassword)
		if err != nil {
			return userError(err)
		}

		uid, err := a.Services.Admin.CreateStaffAccount(ctx, sess, email, password, role)
		if err != nil {
			return userError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s account created: %s\n", role.Title(), uid)
		return nil
	})
}

func runBootstrapAdmin(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		uid, err := a.BootstrapAdmin(cmd.Context(), email, password)
		if err != nil {
			return userError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Admin account created: %s\n", uid)
		return nil
	})
}

// userError keeps the cause for the log and shows the user-facing text
func userError(err error) error {
	logger.Debug("Command failed", zap.Error(err))
	return fmt.Errorf("%s", service.ErrorMessage(err))
}
