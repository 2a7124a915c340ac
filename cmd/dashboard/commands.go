package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/app"
	"github.com/ST10104037/hippocampus-site/internal/config"
)

var (
	cfg    *config.Config
	logger *zap.Logger

	email    string
	password string

	adminEmail    string
	adminPassword string
	staffRole     string

	name    string
	surname string
	phone   string
	confirm string
	migrate bool

	targetUID     string
	studentNumber string
	scheme        string
	marks         string
	lecturerUID   string

	moduleName    string
	preferredTime string

	rootCmd = &cobra.Command{
		Use:   "dashboard",
		Short: "Hippocampus student, lecturer and admin dashboard",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
			logger = app.NewLogger(cfg.Environment)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard: live views, Telegram bot, /health and /metrics",
		RunE:  runServe, // cmd_serve.go
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE:  runMigrate, // cmd_serve.go
	}

	registerCmd = &cobra.Command{
		Use:   "register",
		Short: "Register a student account",
		RunE:  runRegister, // cmd_accounts.go
	}

	createStaffCmd = &cobra.Command{
		Use:   "create-staff",
		Short: "Create a lecturer or admin account, acting as an admin",
		RunE:  runCreateStaff, // cmd_accounts.go
	}

	updateProfileCmd = &cobra.Command{
		Use:   "update-profile",
		Short: "Change your own name, surname or phone",
		RunE:  runUpdateProfile, // cmd_profiles.go
	}

	updateUserCmd = &cobra.Command{
		Use:   "update-user",
		Short: "Edit a user's profile, marking scheme and marks, acting as an admin",
		Long: "Edit a user's profile, acting as an admin. Flags left out keep their stored value;\n" +
			"a student without a marking scheme gets the default scheme.",
		RunE: runUpdateUser, // cmd_profiles.go
	}

	bookCmd = &cobra.Command{
		Use:   "book",
		Short: "Request a consultation with your lecturer, as a student",
		RunE:  runBook, // cmd_profiles.go
	}

	bootstrapAdminCmd = &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the first admin account of an empty installation",
		RunE:  runBootstrapAdmin, // cmd_accounts.go
	}
)

func init() {
	serveCmd.Flags().BoolVar(&migrate, "migrate", true, "Apply migrations before serving (postgres store)")

	for _, cmd := range []*cobra.Command{registerCmd, createStaffCmd, bootstrapAdminCmd} {
		cmd.Flags().StringVar(&email, "email", "", "Email of the new account")
		cmd.Flags().StringVar(&password, "password", "", "Password of the new account")
		_ = cmd.MarkFlagRequired("email")
		_ = cmd.MarkFlagRequired("password")
	}

	registerCmd.Flags().StringVar(&name, "name", "", "First name")
	registerCmd.Flags().StringVar(&surname, "surname", "", "Surname")
	registerCmd.Flags().StringVar(&phone, "phone", "", "Phone number")
	registerCmd.Flags().StringVar(&confirm, "confirm-password", "", "Password again")

	createStaffCmd.Flags().StringVar(&adminEmail, "admin-email", "", "Email of the acting admin")
	createStaffCmd.Flags().StringVar(&adminPassword, "admin-password", "", "Password of the acting admin")
	createStaffCmd.Flags().StringVar(&staffRole, "role", "lecturer", "Role of the new account: lecturer or admin")
	_ = createStaffCmd.MarkFlagRequired("admin-email")
	_ = createStaffCmd.MarkFlagRequired("admin-password")

	for _, cmd := range []*cobra.Command{updateProfileCmd, bookCmd} {
		cmd.Flags().StringVar(&email, "email", "", "Your email")
		cmd.Flags().StringVar(&password, "password", "", "Your password")
		_ = cmd.MarkFlagRequired("email")
		_ = cmd.MarkFlagRequired("password")
	}
	for _, cmd := range []*cobra.Command{updateProfileCmd, updateUserCmd} {
		cmd.Flags().StringVar(&name, "name", "", "First name")
		cmd.Flags().StringVar(&surname, "surname", "", "Surname")
		cmd.Flags().StringVar(&phone, "phone", "", "Phone number")
	}

	updateUserCmd.Flags().StringVar(&adminEmail, "admin-email", "", "Email of the acting admin")
	updateUserCmd.Flags().StringVar(&adminPassword, "admin-password", "", "Password of the acting admin")
	updateUserCmd.Flags().StringVar(&targetUID, "uid", "", "User to edit")
	updateUserCmd.Flags().StringVar(&studentNumber, "student-number", "", "Student number (students)")
	updateUserCmd.Flags().StringVar(&scheme, "scheme", "", `Marking scheme JSON, e.g. {"exam":0.6,"assignment1":0.4} (students)`)
	updateUserCmd.Flags().StringVar(&marks, "marks", "", `Marks JSON, e.g. {"exam":72} (students)`)
	updateUserCmd.Flags().StringVar(&lecturerUID, "lecturer", "", "Lecturer uid, or unassigned (students)")
	_ = updateUserCmd.MarkFlagRequired("admin-email")
	_ = updateUserCmd.MarkFlagRequired("admin-password")
	_ = updateUserCmd.MarkFlagRequired("uid")

	bookCmd.Flags().StringVar(&moduleName, "module", "", "Module the consultation is about")
	bookCmd.Flags().StringVar(&preferredTime, "time", "", "Preferred date and time")

	rootCmd.AddCommand(serveCmd, migrateCmd, registerCmd, createStaffCmd, bootstrapAdminCmd,
		updateProfileCmd, updateUserCmd, bookCmd)
}

// withApp wires the dashboard for a one-off command and closes it after
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Migrate(ctx); err != nil {
		return err
	}
	return fn(a)
}
