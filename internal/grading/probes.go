package grading

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Sources is the text a probe is evaluated against.
type Sources struct {
	Transaction string
	Portfolio   string
	StudentName string
}

var mainMethodPattern = regexp.MustCompile(`\bstatic\s+void\s+main\s*\(`)

// Main returns the file that declares the program entry point.
func (s Sources) Main() string {
	if !mainMethodPattern.MatchString(s.Portfolio) && mainMethodPattern.MatchString(s.Transaction) {
		return s.Transaction
	}
	return s.Portfolio
}

type probeKind int

const (
	kindPresence probeKind = iota
	kindGetter
	kindSetter
)

// Probe is a single named boolean test over the submitted sources.
type Probe struct {
	Name   string
	Label  string
	Weight float64
	Match  func(Sources) bool

	kind  probeKind
	field string
}

type matcher func(string) bool

func has(pattern string) matcher {
	re := regexp.MustCompile(pattern)
	return re.MatchString
}

func allOf(matchers ...matcher) matcher {
	return func(text string) bool {
		for _, m := range matchers {
			if !m(text) {
				return false
			}
		}
		return true
	}
}

func none(pattern string) matcher {
	m := has(pattern)
	return func(text string) bool { return !m(text) }
}

func inTransaction(m matcher) func(Sources) bool {
	return func(s Sources) bool { return m(s.Transaction) }
}

func inPortfolio(m matcher) func(Sources) bool {
	return func(s Sources) bool { return m(s.Portfolio) }
}

func inMain(m matcher) func(Sources) bool {
	return func(s Sources) bool { return m(s.Main()) }
}

func inBoth(m matcher) func(Sources) bool {
	return func(s Sources) bool { return m(s.Transaction) && m(s.Portfolio) }
}

func inEither(m matcher) func(Sources) bool {
	return func(s Sources) bool { return m(s.Transaction) || m(s.Portfolio) }
}

type javaField struct {
	name     string
	javaType string
}

var valueObjectFields = []javaField{
	{name: "ticker", javaType: "String"},
	{name: "transDate", javaType: "String"},
	{name: "transType", javaType: "String"},
	{name: "qty", javaType: "double"},
	{name: "costBasis", javaType: "double"},
}

type menuOption struct {
	number   int
	name     string
	keywords string
}

var menuOptions = []menuOption{
	{number: 0, name: "Exit", keywords: `exit|quit`},
	{number: 1, name: "Deposit", keywords: `deposit`},
	{number: 2, name: "Withdraw", keywords: `withdraw`},
	{number: 3, name: "Buy", keywords: `buy|purchase`},
	{number: 4, name: "Sell", keywords: `sell`},
	{number: 5, name: "History", keywords: `history|transactions?`},
	{number: 6, name: "Holdings", keywords: `holdings|portfolio`},
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// menuPattern accepts the option number next to its action keyword in either order.
func menuPattern(option menuOption) string {
	return fmt.Sprintf(`(?i)(?:\b%d\b[^\n\d]{0,30}(?:%s)|(?:%s)[^\n\d]{0,30}\b%d\b)`,
		option.number, option.keywords, option.keywords, option.number)
}

var transactionHistoryProbes = func() []Probe {
	probes := make([]Probe, 0, 18)
	for _, f := range valueObjectFields {
		probes = append(probes, Probe{
			Name:   "has" + upperFirst(f.name) + "Field",
			Label:  fmt.Sprintf("Private field '%s' (%s)", f.name, f.javaType),
			Weight: 1,
			Match:  inTransaction(has(fmt.Sprintf(`\bprivate\s+%s\s+%s\s*[;=]`, f.javaType, f.name))),
		})
	}

	probes = append(probes,
		Probe{
			Name:   "hasDefaultConstructor",
			Label:  "Default constructor",
			Weight: 2.5,
			Match:  inTransaction(has(`\bpublic\s+TransactionHistory\s*\(\s*\)`)),
		},
		Probe{
			Name:   "hasOverloadedConstructor",
			Label:  "Overloaded constructor",
			Weight: 2.5,
			Match:  inTransaction(has(`\bpublic\s+TransactionHistory\s*\(\s*\w[^)]*\)`)),
		},
	)

	for _, f := range valueObjectFields {
		name := upperFirst(f.name)
		probes = append(probes,
			Probe{
				Name:   "has" + name + "Getter",
				Label:  fmt.Sprintf("Getter for '%s'", f.name),
				Weight: 1,
				Match:  inTransaction(has(fmt.Sprintf(`\bpublic\s+%s\s+get%s\s*\(\s*\)`, f.javaType, name))),
				kind:   kindGetter,
				field:  f.name,
			},
			Probe{
				Name:   "has" + name + "Setter",
				Label:  fmt.Sprintf("Setter for '%s'", f.name),
				Weight: 1,
				Match:  inTransaction(has(fmt.Sprintf(`\bpublic\s+void\s+set%s\s*\(\s*%s\s+\w+\s*\)`, name, f.javaType))),
				kind:   kindSetter,
				field:  f.name,
			},
		)
	}

	probes = append(probes, Probe{
		Name:   "hasToString",
		Label:  "toString() method",
		Weight: 5,
		Match:  inTransaction(has(`\bpublic\s+String\s+toString\s*\(\s*\)`)),
	})
	return probes
}()

var portfolioManagerProbes = func() []Probe {
	probes := []Probe{
		{
			Name:   "hasPortfolioListField",
			Label:  "Private ArrayList<TransactionHistory> portfolioList field",
			Weight: 2.5,
			Match:  inPortfolio(has(`\bprivate\s+(?:final\s+)?(?:Array)?List\s*<\s*TransactionHistory\s*>\s+portfolioList\b`)),
		},
		{
			Name:   "hasPortfolioListInitialized",
			Label:  "portfolioList initialized with a new ArrayList",
			Weight: 2.5,
			Match:  inPortfolio(has(`\bportfolioList\s*=\s*new\s+ArrayList\s*<`)),
		},
	}

	for _, option := range menuOptions {
		probes = append(probes, Probe{
			Name:   "hasMenu" + option.name,
			Label:  fmt.Sprintf("Menu option %d (%s)", option.number, option.name),
			Weight: 1.25,
			Match:  inPortfolio(has(menuPattern(option))),
		})
	}

	logic := []struct {
		name    string
		label   string
		pattern string
	}{
		{"hasDepositLogic", "Deposit cash logic", `(?i)\bdeposit\w*\s*\(`},
		{"hasWithdrawLogic", "Withdraw cash logic", `(?i)\bwithdraw\w*\s*\(`},
		{"hasBuyLogic", "Buy stock logic", `(?i)\b(?:buy|purchase)\w*\s*\(`},
		{"hasSellLogic", "Sell stock logic", `(?i)\bsell\w*\s*\(`},
		{"hasHistoryLogic", "Transaction history logic", `(?i)\w*history\w*\s*\(`},
		{"hasHoldingsLogic", "Portfolio holdings logic", `(?i)\w*(?:holdings|portfolio)\w*\s*\(`},
	}
	for _, l := range logic {
		probes = append(probes, Probe{
			Name:   l.name,
			Label:  l.label,
			Weight: 1.875,
			Match:  inPortfolio(has(l.pattern)),
		})
	}
	return probes
}()

var displayProbes = []Probe{
	{
		Name:   "hasStudentName",
		Label:  "Student name in menu header",
		Weight: 5,
		Match: func(s Sources) bool {
			re := studentNamePattern(s.StudentName)
			if re == nil {
				return false
			}
			return re.MatchString(s.Main())
		},
	},
	{
		Name:   "hasBrokerageHeader",
		Label:  "Brokerage Account header banner",
		Weight: 3,
		Match:  inMain(has(`(?i)brokerage\s+account`)),
	},
	{
		Name:   "hasSeparatorLine",
		Label:  "Separator lines",
		Weight: 2,
		Match:  inMain(has(`={10,}|-{10,}`)),
	},
	{
		Name:   "hasHistoryColumns",
		Label:  "Transaction history column headers",
		Weight: 4,
		Match: inMain(allOf(
			has(`(?i)\bdate\b`),
			has(`(?i)\bticker\b`),
			has(`(?i)\bquantity\b`),
			has(`(?i)\bcost\s*basis\b`),
			has(`(?i)\btrans(?:action)?\s*type\b`),
		)),
	},
	{
		Name:   "hasPortfolioHeader",
		Label:  "\"Portfolio as of\" header",
		Weight: 3,
		Match:  inMain(has(`(?i)portfolio\s+as\s+of`)),
	},
	{
		Name:   "hasPortfolioColumns",
		Label:  "Portfolio ticker/quantity columns",
		Weight: 2,
		Match:  inMain(has(`(?i)"\s*ticker\s*"\s*,\s*"\s*quantity\s*"`)),
	},
	{
		Name:   "hasTimestampFormat",
		Label:  "Date/time stamp formatting",
		Weight: 3,
		Match:  inMain(has(`MM/dd/yyyy|yyyy-MM-dd|HH:mm|LocalDate(?:Time)?\.now\s*\(|new\s+Date\s*\(`)),
	},
	{
		Name:   "hasFormattedOutput",
		Label:  "Formatted (printf/String.format) output",
		Weight: 3,
		Match:  inMain(has(`\b(?:printf|String\.format)\s*\(`)),
	},
}

var standardsProbes = []Probe{
	{
		Name:   "hasHeaderComment",
		Label:  "Header comment block in both files",
		Weight: 3,
		Match:  inBoth(has(`\A\s*(?:/\*|//)`)),
	},
	{
		Name:   "hasAuthorInfo",
		Label:  "Author information in both files",
		Weight: 2,
		Match:  inBoth(has(`(?i)\b(?:author|student|name)\s*:`)),
	},
	{
		Name:   "hasInlineComments",
		Label:  "Inline comments",
		Weight: 2,
		Match:  inEither(has(`(?m)^\s*//`)),
	},
	{
		Name:   "hasConsistentModifiers",
		Label:  "Consistent public/private modifiers",
		Weight: 3,
		Match: inTransaction(allOf(
			has(`\bprivate\b`),
			has(`\bpublic\b`),
			none(`(?m)^[ \t]*(?:static\s+)?(?:final\s+)?(?:String|double|int|float|long|boolean|char)\s+\w+\s*;`),
		)),
	},
	{
		Name:   "hasNamingConventions",
		Label:  "Naming conventions (PascalCase classes, camelCase methods)",
		Weight: 3,
		Match: inBoth(allOf(
			has(`\bclass\s+[A-Z]\w*`),
			none(`\bclass\s+[a-z_]\w*\s*(?:\{|extends\b|implements\b)`),
			none(`\b(?:void|String|double|int|float|long|boolean|char)\s+[A-Z]\w*\s*\(`),
		)),
	},
	{
		Name:   "hasTryCatch",
		Label:  "try/catch error handling",
		Weight: 4,
		Match:  inPortfolio(allOf(has(`\btry\s*\{`), has(`\}\s*catch\s*\(`))),
	},
	{
		Name:   "hasInsufficientFundsCheck",
		Label:  "Insufficient funds check",
		Weight: 3,
		Match:  inPortfolio(has(`(?i)insufficient\s+funds`)),
	},
	{
		Name:   "hasInsufficientSharesCheck",
		Label:  "Insufficient shares check",
		Weight: 2,
		Match:  inPortfolio(has(`(?i)insufficient\s+shares`)),
	},
	{
		Name:   "hasInputValidation",
		Label:  "Input validation messages",
		Weight: 3,
		Match:  inPortfolio(has(`(?i)(?:invalid|valid\s+number|must\s+be\s+positive|try\s+again)`)),
	},
}

// studentNamePattern builds a case-insensitive matcher for the literal name.
func studentNamePattern(name string) *regexp.Regexp {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return nil
	}
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = regexp.QuoteMeta(part)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(quoted, `\s+`))
}

// Probes returns the ordered probe table of a category.
func Probes(category Category) []Probe {
	switch category {
	case CategoryTransactionHistory:
		return transactionHistoryProbes
	case CategoryPortfolioManager:
		return portfolioManagerProbes
	case CategoryDisplay:
		return displayProbes
	case CategoryStandards:
		return standardsProbes
	default:
		return nil
	}
}

// ProbeNames returns the ordered probe names of a category.
func ProbeNames(category Category) []string {
	probes := Probes(category)
	names := make([]string, len(probes))
	for i, p := range probes {
		names[i] = p.Name
	}
	return names
}
