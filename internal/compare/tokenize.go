package compare

import "strings"

// Line is one line of a text with its 1-based line number.
type Line struct {
	Text   string
	Number int
}

// Token is a maximal run of non-whitespace bytes with its position.
type Token struct {
	Text   string
	Index  int
	Line   int
	Column int
}

// SplitLines splits text on '\n'. A trailing newline does not start an
// extra empty line, so "" has no lines and "a\n" has one.
func SplitLines(text string) []Line {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	parts := strings.Split(text, "\n")
	lines := make([]Line, len(parts))
	for i, p := range parts {
		lines[i] = Line{Text: p, Number: i + 1}
	}
	return lines
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// Tokenize splits text on runs of ASCII whitespace. Tokens are compared as
// exact byte strings; no case folding or Unicode normalization is applied.
func Tokenize(text string) []Token {
	var tokens []Token
	line, col := 1, 1
	start := -1
	startLine, startCol := 0, 0

	for i := 0; i < len(text); i++ {
		c := text[i]
		if isSpace(c) {
			if start >= 0 {
				tokens = append(tokens, Token{
					Text:   text[start:i],
					Index:  len(tokens),
					Line:   startLine,
					Column: startCol,
				})
				start = -1
			}
		} else if start < 0 {
			start = i
			startLine, startCol = line, col
		}
		if c == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{
			Text:   text[start:],
			Index:  len(tokens),
			Line:   startLine,
			Column: startCol,
		})
	}
	return tokens
}
