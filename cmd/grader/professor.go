package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/database"
	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/repository"
	"github.com/noah-isme/gema-grader/internal/service"
)

func newProfessorCmd(logger func() zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "professor",
		Short: "Manage professor accounts for the dashboard",
	}
	cmd.AddCommand(newProfessorCreateCmd(logger))
	return cmd
}

func newProfessorCreateCmd(logger func() zerolog.Logger) *cobra.Command {
	req := dto.ProfessorCreateRequest{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a professor account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadTooling()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			db, _, err := database.Open(cfg.DatabaseURL, cfg.SQLitePath)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}

			// Token signing is never exercised here, so the secret may be empty.
			auth := service.NewAuthService(
				repository.NewProfessorRepository(db),
				validator.New(validator.WithRequiredStructEnabled()),
				cfg.JWTSecret,
				cfg.JWTTokenTTL,
				logger(),
			)

			professor, err := auth.CreateProfessor(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to create professor: %w", err)
			}

			green := color.New(color.FgGreen)
			_, err = green.Fprintf(cmd.OutOrStdout(), "✓ Created %s %s <%s> (id %d)\n", professor.Role, professor.Name, professor.Email, professor.ID)
			return err
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Login email")
	cmd.Flags().StringVar(&req.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&req.Password, "password", "", "Initial password (min 8 characters)")
	cmd.Flags().StringVar(&req.Role, "role", "", "Role (professor, admin)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
