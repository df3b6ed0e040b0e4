package compiler

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/noah-isme/gema-grader/internal/grading"
)

var (
	stringLiteral     = regexp.MustCompile(`"(?:\\.|[^"\\\n])*"|'(?:\\.|[^'\\\n])+'`)
	blockComment      = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment       = regexp.MustCompile(`//[^\n]*`)
	classKeyword      = regexp.MustCompile(`\bclass\s+\w+`)
	mainDeclaration   = regexp.MustCompile(`\bpublic\s+static\s+void\s+main\s*\(`)
	studentNameAssign = regexp.MustCompile(`\bstudentName\s*=\s*"([^"\n]+)"`)
)

const fallbackStudentName = "Student"

// Simulator stands in for a toolchain when none is reachable. It checks coarse
// syntax and renders a plausible transcript from the features the analyzer
// finds; the transcript never reflects what the program would really print.
type Simulator struct {
	now func() time.Time
}

// NewSimulator constructs a simulator. A nil clock uses time.Now.
func NewSimulator(now func() time.Time) *Simulator {
	if now == nil {
		now = time.Now
	}
	return &Simulator{now: now}
}

// Simulate returns a simulated compilation result. It never fails.
func (s *Simulator) Simulate(transactionSource, portfolioSource string) grading.CompilationResult {
	if problems := SyntaxProblems(transactionSource, portfolioSource); len(problems) > 0 {
		return grading.CompilationResult{
			CompilationErrors: strings.Join(problems, "\n"),
			Backend:           BackendSimulated,
		}
	}

	name := fallbackStudentName
	if m := studentNameAssign.FindStringSubmatch(portfolioSource + "\n" + transactionSource); m != nil {
		name = strings.TrimSpace(m[1])
	}

	analysis := grading.Analyze(transactionSource, portfolioSource, name)
	return grading.CompilationResult{
		CompilationSuccess: true,
		ExecutionSuccess:   true,
		ExecutionOutput:    s.transcript(analysis, name),
		Backend:            BackendSimulated,
	}
}

// SyntaxProblems runs the static heuristics and lists every problem found.
func SyntaxProblems(transactionSource, portfolioSource string) []string {
	var problems []string
	files := []struct {
		name   string
		source string
	}{
		{"TransactionHistory.java", transactionSource},
		{"PortfolioManager.java", portfolioSource},
	}

	for _, file := range files {
		code := stripNonCode(file.source)
		if strings.TrimSpace(code) == "" {
			problems = append(problems, fmt.Sprintf("%s: file is empty", file.name))
			continue
		}
		if !classKeyword.MatchString(code) {
			problems = append(problems, fmt.Sprintf("%s: no class declaration found", file.name))
		}
		if !strings.Contains(code, ";") {
			problems = append(problems, fmt.Sprintf("%s: no statements terminated by ';'", file.name))
		}
		if !balanced(code, '{', '}') {
			problems = append(problems, fmt.Sprintf("%s: unbalanced braces", file.name))
		}
		if !balanced(code, '(', ')') {
			problems = append(problems, fmt.Sprintf("%s: unbalanced parentheses", file.name))
		}
	}

	if !mainDeclaration.MatchString(stripNonCode(transactionSource)) && !mainDeclaration.MatchString(stripNonCode(portfolioSource)) {
		problems = append(problems, "no public static void main method found")
	}
	return problems
}

func stripNonCode(source string) string {
	source = blockComment.ReplaceAllString(source, "")
	source = stringLiteral.ReplaceAllString(source, `""`)
	return lineComment.ReplaceAllString(source, "")
}

func balanced(code string, open, closing rune) bool {
	depth := 0
	for _, r := range code {
		switch r {
		case open:
			depth++
		case closing:
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func (s *Simulator) transcript(analysis grading.AnalysisReport, name string) string {
	pm := analysis.PortfolioManager
	display := analysis.Display
	standards := analysis.Standards

	var menu strings.Builder
	if display["hasBrokerageHeader"] {
		header := "Brokerage Account"
		if display["hasStudentName"] {
			header = name + " " + header
		}
		menu.WriteString("\n" + header + "\n")
		if display["hasSeparatorLine"] {
			menu.WriteString(strings.Repeat("=", 36) + "\n")
		}
	}
	for _, option := range []struct{ key, line string }{
		{"hasMenuExit", "0 - Exit"},
		{"hasMenuDeposit", "1 - Deposit Cash"},
		{"hasMenuWithdraw", "2 - Withdraw Cash"},
		{"hasMenuBuy", "3 - Buy Stock"},
		{"hasMenuSell", "4 - Sell Stock"},
		{"hasMenuHistory", "5 - Display Transaction History"},
		{"hasMenuHoldings", "6 - Display Portfolio"},
	} {
		if pm[option.key] {
			menu.WriteString(option.line + "\n")
		}
	}
	if menu.Len() > 0 {
		menu.WriteString("Enter option (0 to 6): ")
	}
	prompt := menu.String()

	var out strings.Builder
	step := func(body string) {
		out.WriteString(prompt)
		out.WriteString(body)
	}

	if pm["hasDepositLogic"] {
		step("Enter deposit amount: $1000.00 deposited successfully.\n")
	}
	if pm["hasBuyLogic"] {
		step(fmt.Sprintf("Enter stock ticker: Enter quantity: Enter price per share: Bought 5 shares of %s at $100.00 per share.\n", grading.SyntheticTicker))
	}
	if standards["hasInputValidation"] || standards["hasTryCatch"] {
		step("Error: Invalid option. Please choose 0-6.\n")
	}
	if standards["hasInsufficientFundsCheck"] {
		step(fmt.Sprintf("Enter stock ticker: Enter quantity: Enter price per share: Error: Insufficient funds to buy 1000 shares of %s.\n", grading.SyntheticOversizedBuy))
	}
	if pm["hasHistoryLogic"] {
		var b strings.Builder
		if display["hasHistoryColumns"] {
			b.WriteString(fmt.Sprintf("\n%-12s %-12s %-12s %-12s %s\n", "Date", "Ticker", "Quantity", "Cost Basis", "Trans Type"))
			b.WriteString(strings.Repeat("=", 64) + "\n")
		}
		date := s.now().Format("01/02/2006")
		b.WriteString(fmt.Sprintf("%-12s %-12s %-12s %-12s %s\n", date, "CASH", "1000.00", "$1.00", "DEPOSIT"))
		b.WriteString(fmt.Sprintf("%-12s %-12s %-12s %-12s %s\n", date, grading.SyntheticTicker, "5.00", "$100.00", "BUY"))
		step(b.String())
	}
	if pm["hasHoldingsLogic"] {
		var b strings.Builder
		if display["hasPortfolioHeader"] {
			b.WriteString(fmt.Sprintf("\nPortfolio as of: %s\n", s.now().Format("01/02/2006 15:04:05")))
		}
		if display["hasPortfolioColumns"] {
			b.WriteString(fmt.Sprintf("%-12s %s\n", "Ticker", "Quantity"))
			b.WriteString(strings.Repeat("=", 32) + "\n")
		}
		b.WriteString(fmt.Sprintf("%-12s %s\n", "CASH", "500.00"))
		b.WriteString(fmt.Sprintf("%-12s %s\n", grading.SyntheticTicker, "5.00"))
		step(b.String())
	}
	step("Goodbye!\n")

	return out.String()
}
