package grading

import "strings"

// Analyze runs every probe table against the submitted sources.
func Analyze(transactionSource, portfolioSource, studentName string) AnalysisReport {
	src := Sources{
		Transaction: transactionSource,
		Portfolio:   portfolioSource,
		StudentName: studentName,
	}

	return AnalysisReport{
		TransactionHistory: evaluate(CategoryTransactionHistory, src),
		PortfolioManager:   evaluate(CategoryPortfolioManager, src),
		Display:            evaluate(CategoryDisplay, src),
		Standards:          evaluate(CategoryStandards, src),
		FileAnalysis: FileAnalysis{
			TransactionFileSize:  len(transactionSource),
			TransactionLineCount: lineCount(transactionSource),
			PortfolioFileSize:    len(portfolioSource),
			PortfolioLineCount:   lineCount(portfolioSource),
		},
	}
}

// EmptyReport returns a report with every probe set to false.
func EmptyReport() AnalysisReport {
	return Analyze("", "", "")
}

func evaluate(category Category, src Sources) ProbeSet {
	probes := Probes(category)
	set := make(ProbeSet, len(probes))
	for _, probe := range probes {
		set[probe.Name] = probe.Match(src)
	}
	return set
}

func lineCount(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(strings.TrimRight(text, "\n"), "\n") + 1
}
