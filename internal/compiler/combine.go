package compiler

import (
	"regexp"
	"strings"

	"github.com/noah-isme/gema-grader/internal/grading"
)

var (
	importLine  = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+(?:static[ \t]+)?[\w.]+(?:\.\*)?[ \t]*;[ \t]*\r?\n?`)
	packageLine = regexp.MustCompile(`(?m)^[ \t]*package[ \t]+[\w.]+[ \t]*;[ \t]*\r?\n?`)
	publicClass = regexp.MustCompile(`\bpublic\s+((?:final\s+|abstract\s+)*class\s+)(\w+)`)
	mainClass   = regexp.MustCompile(`\bpublic\s+(?:final\s+)?class\s+(\w+)`)
)

// Combine merges both sources into one compilation unit for services that
// accept a single file: imports are hoisted and deduplicated, package
// declarations dropped, and the helper class loses its public modifier.
func Combine(transactionSource, portfolioSource string) string {
	sources := grading.Sources{Transaction: transactionSource, Portfolio: portfolioSource}
	entry, helper := portfolioSource, transactionSource
	if sources.Main() != portfolioSource {
		entry, helper = transactionSource, portfolioSource
	}

	var imports []string
	seen := make(map[string]struct{})
	strip := func(src string) string {
		for _, match := range importLine.FindAllString(src, -1) {
			line := strings.TrimSpace(match)
			if _, ok := seen[line]; !ok {
				seen[line] = struct{}{}
				imports = append(imports, line)
			}
		}
		src = importLine.ReplaceAllString(src, "")
		return packageLine.ReplaceAllString(src, "")
	}

	helperBody := publicClass.ReplaceAllString(strip(helper), "$1$2")
	entryBody := strip(entry)

	var b strings.Builder
	for _, line := range imports {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if len(imports) > 0 {
		b.WriteByte('\n')
	}
	b.WriteString(strings.TrimSpace(helperBody))
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(entryBody))
	b.WriteByte('\n')
	return b.String()
}

// MainClass returns the public class declaring main, or the given default.
func MainClass(transactionSource, portfolioSource, fallback string) string {
	sources := grading.Sources{Transaction: transactionSource, Portfolio: portfolioSource}
	return ClassName(sources.Main(), fallback)
}

// ClassName returns the first public class declared in source, or the default.
func ClassName(source, fallback string) string {
	if m := mainClass.FindStringSubmatch(source); m != nil {
		return m[1]
	}
	return fallback
}
