package grading

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnalyzeSamplePassesEveryProbe(t *testing.T) {
	transaction, portfolio := loadSample(t)

	report := Analyze(transaction, portfolio, sampleStudent)

	for _, category := range Categories {
		for name, passed := range report.Group(category) {
			require.Truef(t, passed, "%s probe %s should pass for the sample submission", category, name)
		}
	}
	require.Equal(t, len(transaction), report.FileAnalysis.TransactionFileSize)
	require.Equal(t, len(portfolio), report.FileAnalysis.PortfolioFileSize)
	require.Equal(t, 87, report.FileAnalysis.TransactionLineCount)
	require.Greater(t, report.FileAnalysis.PortfolioLineCount, 250)
}

func TestAnalyzeReportKeysMatchProbeTables(t *testing.T) {
	transaction, portfolio := loadSample(t)
	inputs := [][3]string{
		{"", "", ""},
		{transaction, portfolio, sampleStudent},
		{"class x {", "}}}}", "?*+"},
		{portfolio, transaction, "nobody"},
	}

	for _, in := range inputs {
		report := Analyze(in[0], in[1], in[2])
		for _, category := range Categories {
			set := report.Group(category)
			keys := make([]string, 0, len(set))
			for key := range set {
				keys = append(keys, key)
			}
			expected := ProbeNames(category)
			sort.Strings(keys)
			sort.Strings(expected)
			require.Equal(t, expected, keys, "category %s", category)
		}
	}
}

func TestAnalyzeEmptyInputIsAllFalse(t *testing.T) {
	report := Analyze("", "", "")

	for _, category := range Categories {
		for name, passed := range report.Group(category) {
			require.Falsef(t, passed, "%s probe %s should fail on empty input", category, name)
		}
	}
	require.Equal(t, FileAnalysis{}, report.FileAnalysis)
}

func TestAnalyzeTracksAccessorsIndependently(t *testing.T) {
	source := `
public class TransactionHistory {
    private String ticker;
    public String getTicker() { return ticker; }
    public void setQty(double qty) { this.qty = qty; }
}`

	report := Analyze(source, "", "")

	require.True(t, report.TransactionHistory["hasTickerGetter"])
	require.False(t, report.TransactionHistory["hasTickerSetter"])
	require.False(t, report.TransactionHistory["hasQtyGetter"])
	require.True(t, report.TransactionHistory["hasQtySetter"])
	require.True(t, report.TransactionHistory["hasTickerField"])
	require.False(t, report.TransactionHistory["hasQtyField"])
}

func TestAnalyzeConstructorsAreDistinguished(t *testing.T) {
	onlyDefault := Analyze("public class TransactionHistory { public TransactionHistory() {} }", "", "")
	require.True(t, onlyDefault.TransactionHistory["hasDefaultConstructor"])
	require.False(t, onlyDefault.TransactionHistory["hasOverloadedConstructor"])

	onlyOverloaded := Analyze("public class TransactionHistory { public TransactionHistory(String t) {} }", "", "")
	require.False(t, onlyOverloaded.TransactionHistory["hasDefaultConstructor"])
	require.True(t, onlyOverloaded.TransactionHistory["hasOverloadedConstructor"])
}

func TestAnalyzeMenuAcceptsEitherOrder(t *testing.T) {
	portfolio := `
System.out.println("Exit ..... 0");
System.out.println("[1] deposit");
System.out.println("Withdraw: 2");`

	report := Analyze("", portfolio, "")

	require.True(t, report.PortfolioManager["hasMenuExit"])
	require.True(t, report.PortfolioManager["hasMenuDeposit"])
	require.True(t, report.PortfolioManager["hasMenuWithdraw"])
	require.False(t, report.PortfolioManager["hasMenuBuy"])
	require.False(t, report.PortfolioManager["hasMenuHoldings"])
}

func TestAnalyzeStudentNameIsLiteralAndCaseInsensitive(t *testing.T) {
	portfolio := `public static void main(String[] a) { System.out.println("JANE   o'neil (c++) Brokerage Account"); }`

	require.True(t, Analyze("", portfolio, "Jane O'Neil (C++)").Display["hasStudentName"])
	require.False(t, Analyze("", portfolio, "Jane Doe").Display["hasStudentName"])
	require.False(t, Analyze("", portfolio, "   ").Display["hasStudentName"])
	require.False(t, Analyze("", strings.ReplaceAll(portfolio, "(c++)", "(cxx)"), "Jane O'Neil (C++)").Display["hasStudentName"])
}

func TestAnalyzeDisplayUsesFileWithMainMethod(t *testing.T) {
	transaction, portfolio := loadSample(t)

	swapped := Analyze(portfolio, transaction, sampleStudent)

	require.True(t, swapped.Display["hasStudentName"])
	require.True(t, swapped.Display["hasBrokerageHeader"])
	require.False(t, swapped.PortfolioManager["hasPortfolioListField"])
}

func TestAnalyzeNamingConventionsIgnoreProseInComments(t *testing.T) {
	transaction, portfolio := loadSample(t)
	require.Contains(t, transaction, "This class represents")

	report := Analyze(transaction, portfolio, sampleStudent)
	require.True(t, report.Standards["hasNamingConventions"])

	lower := strings.Replace(transaction, "public class TransactionHistory {", "public class transactionHistory {", 1)
	require.False(t, Analyze(lower, portfolio, sampleStudent).Standards["hasNamingConventions"])
}

func TestProbeWeightsSumToCategoryMax(t *testing.T) {
	for _, category := range Categories {
		var sum float64
		for _, probe := range Probes(category) {
			sum += probe.Weight
		}
		require.InDelta(t, CategoryMax, sum, 1e-9, "category %s", category)
	}
}
