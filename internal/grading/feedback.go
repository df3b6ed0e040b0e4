package grading

import (
	"fmt"
	"strings"
)

// FeedbackInput gathers everything the feedback report is rendered from.
type FeedbackInput struct {
	Analysis           AnalysisReport
	Grade              GradeBreakdown
	CompilationSuccess bool
	ExecutionSuccess   bool
	CompilationErrors  string
	ExecutionOutput    string
	TestResults        []TestResult
}

var sectionTitles = map[Category]string{
	CategoryTransactionHistory: "TransactionHistory Class",
	CategoryPortfolioManager:   "PortfolioManager Class",
	CategoryDisplay:            "Display Requirements",
	CategoryStandards:          "Coding Standards",
}

// SectionTitle returns the human readable name of a category.
func SectionTitle(category Category) string {
	return sectionTitles[category]
}

// GenerateFeedback renders the ordered feedback lines for a graded submission.
func GenerateFeedback(in FeedbackInput) []string {
	lines := make([]string, 0, 96)

	if in.CompilationSuccess {
		lines = append(lines, "✅ Code compiled successfully")
	} else {
		lines = append(lines, "❌ Compilation failed")
		if errs := strings.TrimSpace(in.CompilationErrors); errs != "" {
			lines = append(lines, "Compiler errors:", in.CompilationErrors)
		}
	}
	if in.CompilationSuccess {
		if in.ExecutionSuccess {
			lines = append(lines, "✅ Program executed successfully")
		} else {
			lines = append(lines, "❌ Program did not execute successfully")
			if errs := strings.TrimSpace(in.CompilationErrors); errs != "" {
				lines = append(lines, "Runtime errors:", in.CompilationErrors)
			}
		}
	}

	for _, category := range Categories {
		lines = append(lines, "", fmt.Sprintf("=== %s (%d/%d) ===", SectionTitle(category), in.Grade.Points(category), CategoryMax))
		lines = append(lines, categoryLines(category, in.Analysis.Group(category))...)
		if category == CategoryStandards {
			lines = append(lines, errorHandlingLine(in.TestResults))
		}
	}

	lines = append(lines, "", "=== Program Output ===", "```")
	if in.ExecutionOutput == "" {
		lines = append(lines, "(no output captured)")
	} else {
		lines = append(lines, in.ExecutionOutput)
	}
	lines = append(lines, "```")

	lines = append(lines, "", "=== Execution Tests ===")
	if len(in.TestResults) == 0 {
		lines = append(lines, "No execution tests were run")
	}
	for _, test := range in.TestResults {
		lines = append(lines, fmt.Sprintf("%s %s: %s", mark(test.Success), test.Name, test.Description))
	}

	lines = append(lines, "", "=== Score Breakdown ===")
	for _, category := range Categories {
		lines = append(lines, fmt.Sprintf("%s: %d/%d", SectionTitle(category), in.Grade.Points(category), CategoryMax))
	}
	lines = append(lines, fmt.Sprintf("Total: %d/%d", in.Grade.Total, MaxScore))
	lines = append(lines, "", BandComment(in.Grade.Total))

	return lines
}

// BandComment returns the qualitative verdict for a total score.
func BandComment(total int) string {
	switch {
	case total >= 90:
		return "Excellent work! Your submission meets nearly all requirements."
	case total >= 80:
		return "Good work! A few requirements need attention."
	case total >= 70:
		return "Satisfactory work. Review the missing items above."
	case total >= 60:
		return "Needs improvement. Several requirements are missing."
	default:
		return "Significant improvements needed. Review the assignment requirements carefully."
	}
}

// Band returns the short band name for a total score.
func Band(total int) string {
	switch {
	case total >= 90:
		return "excellent"
	case total >= 80:
		return "good"
	case total >= 70:
		return "satisfactory"
	case total >= 60:
		return "needs_improvement"
	default:
		return "significant_improvement"
	}
}

func categoryLines(category Category, set ProbeSet) []string {
	probes := Probes(category)
	lines := make([]string, 0, len(probes))
	for _, probe := range probes {
		switch probe.kind {
		case kindSetter:
			continue
		case kindGetter:
			lines = append(lines, accessorLine(probe.field, set[probe.Name], set["has"+upperFirst(probe.field)+"Setter"]))
		default:
			if set[probe.Name] {
				lines = append(lines, fmt.Sprintf("✅ %s: found", probe.Label))
			} else {
				lines = append(lines, fmt.Sprintf("❌ %s: missing", probe.Label))
			}
		}
	}
	return lines
}

func accessorLine(field string, getter, setter bool) string {
	switch {
	case getter && setter:
		return fmt.Sprintf("✅ Getter and setter for '%s': implemented", field)
	case getter:
		return fmt.Sprintf("⚠️ Getter and setter for '%s': partially implemented (getter only)", field)
	case setter:
		return fmt.Sprintf("⚠️ Getter and setter for '%s': partially implemented (setter only)", field)
	default:
		return fmt.Sprintf("❌ Getter and setter for '%s': missing", field)
	}
}

// errorHandlingLine reports menu error handling from the executed transcript,
// which may disagree with the static try/catch probe.
func errorHandlingLine(results []TestResult) string {
	if test, ok := FindTest(results, TestErrorHandling); ok && test.Success {
		return "✅ Menu error handling: demonstrated during execution"
	}
	return "❌ Menu error handling: not demonstrated during execution"
}

func mark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}
