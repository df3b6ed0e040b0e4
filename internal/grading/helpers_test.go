package grading

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleStudent = "Rikin Shah"

const sampleMenu = `
Rikin Shah Brokerage Account
====================================
0 - Exit
1 - Deposit Cash
2 - Withdraw Cash
3 - Buy Stock
4 - Sell Stock
5 - Display Transaction History
6 - Display Portfolio
Enter option (0 to 6): `

// sampleTranscript is what the sample program prints for SyntheticStdin.
const sampleTranscript = sampleMenu + `Enter deposit amount: $✅ $1000.0 deposited successfully!
` + sampleMenu + `Enter stock ticker: Enter quantity: Enter price per share: $✅ Bought 5.0 shares of AAPL at $100.0 per share!
` + sampleMenu + `❌ Error: Invalid option. Please choose 0-6.
` + sampleMenu + `Enter stock ticker: Enter quantity: Enter price per share: $❌ Error: Insufficient funds. Required: $500000.0, Available: $500.0
` + sampleMenu + `
Rikin Shah Brokerage Account
====================================

Date         Ticker       Quantity     Cost Basis   Trans Type
================================================================
01/15/2024   CASH         1000.00      $1.00         DEPOSIT
01/15/2024   AAPL         5.00         $100.00       BUY
01/15/2024   CASH         -500.00      $1.00         WITHDRAW
` + sampleMenu + `
Portfolio as of: 01/15/2024 10:30:00
====================================

Ticker       Quantity
================================
CASH         500.00
AAPL         5.00
` + sampleMenu + `Exiting...
Thank you for using the Portfolio Manager!
`

func loadSample(t *testing.T) (string, string) {
	t.Helper()

	transaction, err := os.ReadFile(filepath.Join("testdata", "TransactionHistory.java"))
	require.NoError(t, err)
	portfolio, err := os.ReadFile(filepath.Join("testdata", "PortfolioManager.java"))
	require.NoError(t, err)

	return string(transaction), string(portfolio)
}

func reportWith(value bool) AnalysisReport {
	report := EmptyReport()
	for _, category := range Categories {
		set := report.Group(category)
		for name := range set {
			set[name] = value
		}
	}
	return report
}

func allPassing(results []TestResult) []TestResult {
	out := make([]TestResult, len(results))
	for i, r := range results {
		r.Success = true
		out[i] = r
	}
	return out
}

type stubRunner struct {
	result CompilationResult
	panics bool
}

func (s stubRunner) CompileAndRun(ctx context.Context, transactionSource, portfolioSource string) CompilationResult {
	if s.panics {
		panic("runner exploded")
	}
	return s.result
}
