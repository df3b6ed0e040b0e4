package grading

// Category identifies one of the four 25-point rubric buckets.
type Category string

const (
	CategoryTransactionHistory Category = "transactionHistory"
	CategoryPortfolioManager   Category = "portfolioManager"
	CategoryDisplay            Category = "display"
	CategoryStandards          Category = "standards"
)

// Categories lists the rubric buckets in display order.
var Categories = []Category{
	CategoryTransactionHistory,
	CategoryPortfolioManager,
	CategoryDisplay,
	CategoryStandards,
}

// CategoryMax is the point ceiling of every category.
const CategoryMax = 25

// MaxScore is the hard ceiling of a grade.
const MaxScore = 100

// SubmissionInput carries the raw material of one upload.
type SubmissionInput struct {
	StudentName       string `json:"student_name"`
	StudentEmail      string `json:"student_email"`
	TransactionSource string `json:"transaction_source"`
	PortfolioSource   string `json:"portfolio_source"`
}

// ProbeSet maps probe names to their outcome.
type ProbeSet map[string]bool

// FileAnalysis holds size metadata about the uploaded files.
type FileAnalysis struct {
	TransactionFileSize  int `json:"transactionFileSize"`
	TransactionLineCount int `json:"transactionLineCount"`
	PortfolioFileSize    int `json:"portfolioFileSize"`
	PortfolioLineCount   int `json:"portfolioLineCount"`
}

// AnalysisReport is the static analysis of a submission.
type AnalysisReport struct {
	TransactionHistory ProbeSet     `json:"transactionHistory"`
	PortfolioManager   ProbeSet     `json:"portfolioManager"`
	Display            ProbeSet     `json:"display"`
	Standards          ProbeSet     `json:"standards"`
	FileAnalysis       FileAnalysis `json:"fileAnalysis"`
}

// Group returns the probe set backing a category.
func (r AnalysisReport) Group(category Category) ProbeSet {
	switch category {
	case CategoryTransactionHistory:
		return r.TransactionHistory
	case CategoryPortfolioManager:
		return r.PortfolioManager
	case CategoryDisplay:
		return r.Display
	case CategoryStandards:
		return r.Standards
	default:
		return nil
	}
}

// CompilationResult describes what the compiler/runner adapter observed.
type CompilationResult struct {
	CompilationSuccess bool   `json:"compilationSuccess"`
	CompilationErrors  string `json:"compilationErrors"`
	ExecutionSuccess   bool   `json:"executionSuccess"`
	ExecutionOutput    string `json:"executionOutput"`
	Backend            string `json:"backend"`
}

// TestResult is the verdict of one execution output probe.
type TestResult struct {
	Name        string `json:"name"`
	Success     bool   `json:"success"`
	Description string `json:"description"`
}

// GradeBreakdown is the final rubric score.
type GradeBreakdown struct {
	TransactionHistory int `json:"transactionHistory"`
	PortfolioManager   int `json:"portfolioManager"`
	Display            int `json:"display"`
	Standards          int `json:"standards"`
	Total              int `json:"total"`
}

// Points returns the score awarded to a category.
func (g GradeBreakdown) Points(category Category) int {
	switch category {
	case CategoryTransactionHistory:
		return g.TransactionHistory
	case CategoryPortfolioManager:
		return g.PortfolioManager
	case CategoryDisplay:
		return g.Display
	case CategoryStandards:
		return g.Standards
	default:
		return 0
	}
}

// Result is the full output of grading one submission.
type Result struct {
	Analysis    AnalysisReport    `json:"analysis"`
	Grade       GradeBreakdown    `json:"grade"`
	TestResults []TestResult      `json:"testResults"`
	Feedback    []string          `json:"feedback"`
	Compilation CompilationResult `json:"compilation"`
}
