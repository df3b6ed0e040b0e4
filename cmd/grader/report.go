package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/gema-grader/internal/grading"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

type gradeReport struct {
	Student  string       `json:"student" yaml:"student"`
	Rubric   string       `json:"rubric" yaml:"rubric"`
	Backend  string       `json:"backend" yaml:"backend"`
	Compiled bool         `json:"compiled" yaml:"compiled"`
	Executed bool         `json:"executed" yaml:"executed"`
	Scores   reportScores `json:"scores" yaml:"scores"`
	Band     string       `json:"band" yaml:"band"`
	Tests    []reportTest `json:"tests" yaml:"tests"`
	Feedback []string     `json:"feedback" yaml:"feedback"`
}

type reportScores struct {
	TransactionHistory int `json:"transaction_history" yaml:"transaction_history"`
	PortfolioManager   int `json:"portfolio_manager" yaml:"portfolio_manager"`
	Display            int `json:"display" yaml:"display"`
	Standards          int `json:"standards" yaml:"standards"`
	Total              int `json:"total" yaml:"total"`
}

type reportTest struct {
	Name        string `json:"name" yaml:"name"`
	Passed      bool   `json:"passed" yaml:"passed"`
	Description string `json:"description" yaml:"description"`
}

func newGradeReport(student, rubric string, result grading.Result) gradeReport {
	tests := make([]reportTest, 0, len(result.TestResults))
	for _, test := range result.TestResults {
		tests = append(tests, reportTest{Name: test.Name, Passed: test.Success, Description: test.Description})
	}

	return gradeReport{
		Student:  student,
		Rubric:   rubric,
		Backend:  result.Compilation.Backend,
		Compiled: result.Compilation.CompilationSuccess,
		Executed: result.Compilation.ExecutionSuccess,
		Scores: reportScores{
			TransactionHistory: result.Grade.TransactionHistory,
			PortfolioManager:   result.Grade.PortfolioManager,
			Display:            result.Grade.Display,
			Standards:          result.Grade.Standards,
			Total:              result.Grade.Total,
		},
		Band:     grading.Band(result.Grade.Total),
		Tests:    tests,
		Feedback: result.Feedback,
	}
}

func validFormat(format string) bool {
	switch format {
	case formatText, formatJSON, formatYAML:
		return true
	}
	return false
}

func writeReport(w io.Writer, format string, report gradeReport) error {
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(report); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return encoder.Close()
	default:
		return writeText(w, report)
	}
}

func writeText(w io.Writer, report gradeReport) error {
	cyan := color.New(color.FgCyan, color.Bold)
	if _, err := cyan.Fprintf(w, "Brokerage account grade for %s (%s rubric, %s backend)\n\n", report.Student, report.Rubric, report.Backend); err != nil {
		return err
	}

	for _, line := range report.Feedback {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	_, err := totalColor(report.Scores.Total).Fprintf(w, "\nTotal: %d/%d (%s)\n", report.Scores.Total, grading.MaxScore, report.Band)
	return err
}

func totalColor(total int) *color.Color {
	switch {
	case total >= 80:
		return color.New(color.FgGreen, color.Bold)
	case total >= 60:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}
