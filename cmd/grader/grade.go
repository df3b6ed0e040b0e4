package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-grader/internal/compiler"
	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/grading"
)

type gradeOptions struct {
	name    string
	email   string
	rubric  string
	format  string
	offline bool
}

func newGradeCmd(logger func() zerolog.Logger) *cobra.Command {
	opts := &gradeOptions{}

	cmd := &cobra.Command{
		Use:   "grade TRANSACTION_FILE PORTFOLIO_FILE",
		Short: "Grade a submission from local source files",
		Long: `Grade a submission from local source files.

Examples:
  # Grade with the configured compiler chain
  grader grade TransactionHistory.java PortfolioManager.java --name "Rikin Shah"

  # Grade without any toolchain and print YAML
  grader grade TransactionHistory.java PortfolioManager.java --name "Rikin Shah" --offline --format yaml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrade(cmd, args, opts, logger())
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Student name expected in the program banner")
	cmd.Flags().StringVar(&opts.email, "email", "", "Student email")
	cmd.Flags().StringVarP(&opts.rubric, "rubric", "r", "", "Rubric to apply (strict, lenient). Defaults to GRADER_GRADING_RUBRIC")
	cmd.Flags().StringVarP(&opts.format, "format", "o", formatText, "Output format (text, json, yaml)")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Skip every toolchain and grade through simulation")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runGrade(cmd *cobra.Command, args []string, opts *gradeOptions, logger zerolog.Logger) error {
	if !validFormat(opts.format) {
		return fmt.Errorf("unsupported format %q, use text, json or yaml", opts.format)
	}

	cfg, err := config.LoadTooling()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	rubricName := cfg.Rubric
	if opts.rubric != "" {
		rubricName = opts.rubric
	}
	rubric, err := grading.RubricByName(rubricName)
	if err != nil {
		return err
	}

	transaction, err := readSource(args[0])
	if err != nil {
		return err
	}
	portfolio, err := readSource(args[1])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	adapter, closeCompiler := compiler.NewChain(ctx, compiler.ChainConfig{
		Offline:       opts.offline,
		DockerEnabled: cfg.DockerEnabled,
		DockerHost:    cfg.DockerHost,
		Local: compiler.LocalConfig{
			Image:          cfg.JavaImage,
			CompileTimeout: cfg.CompileTimeout,
			RunTimeout:     cfg.RunTimeout,
			MemoryLimitMB:  int64(cfg.CodeRunMemoryMB),
			CPUShares:      int64(cfg.CodeRunCPUShares),
		},
		RemoteServices: cfg.RemoteServices,
	}, logger)
	defer func() { _ = closeCompiler() }()

	out := cmd.OutOrStdout()
	var s *spinner.Spinner
	if opts.format == formatText {
		s = spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
		s.Suffix = fmt.Sprintf(" Grading with %s...", describeSteps(adapter.Steps()))
		s.Start()
	}

	result := grading.NewGrader(adapter, rubric, logger).Grade(ctx, grading.SubmissionInput{
		StudentName:       opts.name,
		StudentEmail:      opts.email,
		TransactionSource: transaction,
		PortfolioSource:   portfolio,
	})

	if s != nil {
		s.Stop()
	}

	return writeReport(out, opts.format, newGradeReport(opts.name, rubric.Name, result))
}

func readSource(path string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".java") {
		return "", fmt.Errorf("%s is not a .java file", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(content), nil
}

func describeSteps(steps []string) string {
	if len(steps) == 0 {
		return "simulation only"
	}
	return strings.Join(steps, " → ") + " → simulation"
}
