package grading

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func feedbackFor(analysis AnalysisReport, compiled, executed bool, output string) []string {
	tests := AnalyzeOutput(output)
	grade := NewCalculator(StrictRubric).Calculate(analysis, compiled, executed, tests)
	return GenerateFeedback(FeedbackInput{
		Analysis:           analysis,
		Grade:              grade,
		CompilationSuccess: compiled,
		ExecutionSuccess:   executed,
		ExecutionOutput:    output,
		TestResults:        tests,
	})
}

func TestFeedbackSectionsInOrder(t *testing.T) {
	lines := feedbackFor(reportWith(true), true, true, sampleTranscript)

	require.Equal(t, "✅ Code compiled successfully", lines[0])
	require.Equal(t, "✅ Program executed successfully", lines[1])

	var headers []string
	for _, line := range lines {
		if strings.HasPrefix(line, "=== ") {
			headers = append(headers, line)
		}
	}
	require.Equal(t, []string{
		"=== TransactionHistory Class (25/25) ===",
		"=== PortfolioManager Class (25/25) ===",
		"=== Display Requirements (25/25) ===",
		"=== Coding Standards (25/25) ===",
		"=== Program Output ===",
		"=== Execution Tests ===",
		"=== Score Breakdown ===",
	}, headers)
	require.Contains(t, lines, "Total: 100/100")
	require.Equal(t, BandComment(100), lines[len(lines)-1])
}

func TestFeedbackEmbedsOutputVerbatim(t *testing.T) {
	output := "  line one\n\tline two with trailing space \n"

	lines := feedbackFor(reportWith(true), true, true, output)

	idx := indexOf(lines, "=== Program Output ===")
	require.GreaterOrEqual(t, idx, 0)
	require.Equal(t, "```", lines[idx+1])
	require.Equal(t, output, lines[idx+2])
	require.Equal(t, "```", lines[idx+3])
}

func TestFeedbackWithoutOutput(t *testing.T) {
	lines := GenerateFeedback(FeedbackInput{
		Analysis:          EmptyReport(),
		CompilationErrors: "Main.java:1: error: class expected",
	})

	require.Equal(t, "❌ Compilation failed", lines[0])
	require.Equal(t, "Compiler errors:", lines[1])
	require.Equal(t, "Main.java:1: error: class expected", lines[2])
	require.NotContains(t, lines, "✅ Program executed successfully")
	require.Contains(t, lines, "(no output captured)")
	require.Contains(t, lines, "No execution tests were run")
	require.Contains(t, lines, "Total: 0/100")
}

func TestFeedbackRuntimeFailure(t *testing.T) {
	lines := GenerateFeedback(FeedbackInput{
		Analysis:           reportWith(true),
		CompilationSuccess: true,
		CompilationErrors:  "Exception in thread \"main\"",
	})

	require.Equal(t, "✅ Code compiled successfully", lines[0])
	require.Equal(t, "❌ Program did not execute successfully", lines[1])
	require.Equal(t, "Runtime errors:", lines[2])
}

func TestFeedbackAccessorPairs(t *testing.T) {
	report := reportWith(true)
	report.TransactionHistory["hasTickerSetter"] = false
	report.TransactionHistory["hasQtyGetter"] = false
	report.TransactionHistory["hasCostBasisGetter"] = false
	report.TransactionHistory["hasCostBasisSetter"] = false

	lines := feedbackFor(report, true, true, sampleTranscript)

	require.Contains(t, lines, "⚠️ Getter and setter for 'ticker': partially implemented (getter only)")
	require.Contains(t, lines, "⚠️ Getter and setter for 'qty': partially implemented (setter only)")
	require.Contains(t, lines, "❌ Getter and setter for 'costBasis': missing")
	require.Contains(t, lines, "✅ Getter and setter for 'transDate': implemented")
	for _, line := range lines {
		require.NotContains(t, line, "Setter for '", "setters are folded into the pair line")
	}
}

func TestFeedbackMissingProbe(t *testing.T) {
	report := reportWith(true)
	report.Display["hasStudentName"] = false

	lines := feedbackFor(report, true, true, sampleTranscript)

	require.Contains(t, lines, "❌ Student name in menu header: missing")
	require.Contains(t, lines, "✅ Brokerage Account header banner: found")
}

func TestFeedbackErrorHandlingFollowsExecution(t *testing.T) {
	report := reportWith(true)
	output := strings.ReplaceAll(sampleTranscript, "Invalid option", "Unknown option")

	lines := feedbackFor(report, true, true, output)

	require.Contains(t, lines, "✅ try/catch error handling: found")
	require.Contains(t, lines, "❌ Menu error handling: not demonstrated during execution")

	lines = feedbackFor(report, true, true, sampleTranscript)
	require.Contains(t, lines, "✅ Menu error handling: demonstrated during execution")
}

func TestBandThresholds(t *testing.T) {
	cases := map[int]string{
		100: "excellent",
		90:  "excellent",
		89:  "good",
		80:  "good",
		79:  "satisfactory",
		70:  "satisfactory",
		69:  "needs_improvement",
		60:  "needs_improvement",
		59:  "significant_improvement",
		0:   "significant_improvement",
	}
	for total, band := range cases {
		require.Equal(t, band, Band(total), "total %d", total)
	}
	require.True(t, strings.HasPrefix(BandComment(95), "Excellent"))
	require.True(t, strings.HasPrefix(BandComment(10), "Significant"))
}

func indexOf(lines []string, target string) int {
	for i, line := range lines {
		if line == target {
			return i
		}
	}
	return -1
}
