// Package sqlcheck screens candidate SQL before it can reach the approval
// gate: a keyword blocklist first, then a parse-and-classify pass that only
// accepts a single SELECT statement.
package sqlcheck

import (
	"regexp"
	"strings"

	"github.com/auxten/postgresql-parser/pkg/sql/parser"
	"github.com/auxten/postgresql-parser/pkg/sql/sem/tree"
)

// BlockedKeywords are mutation statements that must never be executed,
// regardless of what the parser makes of the query.
var BlockedKeywords = []string{
	"DROP", "DELETE", "TRUNCATE", "ALTER", "UPDATE", "INSERT",
	"CREATE", "GRANT", "RENAME", "REVOKE", "DENY",
}

var blockedPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(BlockedKeywords, "|") + `)\b`)

type Verdict struct {
	IsSafe          bool     `json:"is_safe"`
	IsValidSyntax   *bool    `json:"is_valid_syntax,omitempty"`
	BlockedKeywords []string `json:"blocked_keywords,omitempty"`
}

// Validate runs both screens. The syntax verdict is only populated when the
// keyword screen passes; a parse failure is a verdict, never an error.
func Validate(sqlText string) Verdict {
	blocked := findBlockedKeywords(sqlText)
	if len(blocked) > 0 {
		return Verdict{IsSafe: false, BlockedKeywords: blocked}
	}

	valid := isSingleSelect(sqlText)
	return Verdict{IsSafe: true, IsValidSyntax: &valid}
}

func findBlockedKeywords(sqlText string) []string {
	matches := blockedPattern.FindAllString(sqlText, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	keywords := make([]string, 0, len(matches))
	for _, match := range matches {
		keyword := strings.ToUpper(match)
		if _, ok := seen[keyword]; ok {
			continue
		}
		seen[keyword] = struct{}{}
		keywords = append(keywords, keyword)
	}
	return keywords
}

func isSingleSelect(sqlText string) bool {
	statements, err := parser.Parse(sqlText)
	if err != nil {
		return false
	}
	if len(statements) != 1 {
		return false
	}
	_, ok := statements[0].AST.(*tree.Select)
	return ok
}
