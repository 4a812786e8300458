package compare

import (
	"slices"

	"github.com/UCL-RITS/Submitty/pkg/types"
)

// TokensResult is the token_match outcome. Missing and Extra list the
// unmatched token values in byte order, one entry per unmatched occurrence.
type TokensResult struct {
	Counts  types.TokenCounts
	Missing []string
	Extra   []string
}

func (TokensResult) isResult() {}

func (TokensResult) Mode() types.ComparisonMode { return types.ModeTokenMatch }

func (r TokensResult) Fraction() (num, den int) {
	return fraction(r.Counts.MatchedTokens, r.Counts.TotalExpectedTokens, r.Counts.TotalStudentTokens)
}

func (r TokensResult) Grade() float64 { return gradeOf(r) }

func (r TokensResult) Report() types.DiffReport {
	return types.DiffReport{
		Mode:   types.ModeTokenMatch,
		Counts: r.Counts,
	}
}

// CompareTokens matches the whitespace-separated tokens of both texts as
// multisets: order and spacing are ignored, duplicates count up to the
// smaller multiplicity.
func CompareTokens(student, expected string) TokensResult {
	s := tokenTexts(Tokenize(student))
	e := tokenTexts(Tokenize(expected))
	slices.Sort(s)
	slices.Sort(e)

	res := TokensResult{
		Counts: types.TokenCounts{
			TotalExpectedTokens: len(e),
			TotalStudentTokens:  len(s),
		},
	}

	i, j := 0, 0
	for i < len(s) && j < len(e) {
		switch {
		case s[i] == e[j]:
			res.Counts.MatchedTokens++
			i++
			j++
		case s[i] < e[j]:
			res.Extra = append(res.Extra, s[i])
			i++
		default:
			res.Missing = append(res.Missing, e[j])
			j++
		}
	}
	res.Extra = append(res.Extra, s[i:]...)
	res.Missing = append(res.Missing, e[j:]...)

	res.Counts.ExtraTokens = len(res.Extra)
	res.Counts.MissingTokens = len(res.Missing)
	return res
}

func tokenTexts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}
