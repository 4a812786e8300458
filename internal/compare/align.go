package compare

// EditKind is the kind of one alignment step.
type EditKind int

const (
	Match EditKind = iota
	Insert
	Delete
	Substitute
)

func (k EditKind) String() string {
	switch k {
	case Match:
		return "match"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	case Substitute:
		return "substitute"
	default:
		return "unknown"
	}
}

// Edit is one alignment step. A indexes the student sequence and B the
// expected sequence; an index is -1 when the step does not touch that side.
type Edit struct {
	Kind EditKind
	A, B int
}

// maxTableCells bounds the part of the LCS table held in memory at once.
// Larger inputs are split into row bands whose boundary rows are recomputed,
// so the alignment is the same as with a single table.
var maxTableCells = 1 << 24

// Align returns the longest-common-subsequence alignment of a (student) and
// b (expected). Among maximal alignments it prefers the one whose matches come
// earliest: when two elements differ, the student element is dropped first
// unless that would lose a match.
func Align(a, b []string) []Edit {
	n, m := len(a), len(b)
	edits := make([]Edit, 0, max(n, m))

	prefix := 0
	for prefix < n && prefix < m && a[prefix] == b[prefix] {
		edits = append(edits, Edit{Kind: Match, A: prefix, B: prefix})
		prefix++
	}
	suffix := 0
	for suffix < n-prefix && suffix < m-prefix && a[n-1-suffix] == b[m-1-suffix] {
		suffix++
	}

	edits = appendLCS(edits, a[prefix:n-suffix], b[prefix:m-suffix], prefix)

	for k := suffix; k > 0; k-- {
		edits = append(edits, Edit{Kind: Match, A: n - k, B: m - k})
	}
	return edits
}

// appendLCS walks the suffix LCS table of a and b from the top-left corner.
// Offsets shift indices back into the untrimmed sequences.
func appendLCS(edits []Edit, a, b []string, offset int) []Edit {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return appendRemainder(edits, 0, n, 0, m, offset)
	}

	w := &lcsWalker{a: a, b: b, offset: offset, edits: edits}
	j := w.walk(0, n, 0, make([]int32, m+1))
	return appendRemainder(w.edits, n, n, j, m, offset)
}

func appendRemainder(edits []Edit, i, n, j, m, offset int) []Edit {
	for ; i < n; i++ {
		edits = append(edits, Edit{Kind: Delete, A: offset + i, B: -1})
	}
	for ; j < m; j++ {
		edits = append(edits, Edit{Kind: Insert, A: -1, B: offset + j})
	}
	return edits
}

// lcsWalker emits the greedy walk over L, where L(i, j) is the LCS length of
// a[i:] and b[j:]. Every decision compares exact values of L, so splitting
// the rows into bands does not change the walk.
type lcsWalker struct {
	a, b   []string
	offset int
	edits  []Edit
}

// walk emits the edits for rows [i0, i1) entering at column j0, given
// below = L(i1, j0..m). It returns the column at which the walk reaches row i1.
func (w *lcsWalker) walk(i0, i1, j0 int, below []int32) int {
	rows := i1 - i0
	if rows == 1 || rows*len(below) <= maxTableCells {
		return w.walkBand(i0, i1, j0, below)
	}
	mid := i0 + rows/2
	upper := w.suffixRow(mid, i1, j0, below)
	jm := w.walk(i0, mid, j0, upper)
	return w.walk(mid, i1, jm, below[jm-j0:])
}

// suffixRow computes L(top, j0..m) from below = L(i1, j0..m) keeping two rows.
func (w *lcsWalker) suffixRow(top, i1, j0 int, below []int32) []int32 {
	next := append([]int32(nil), below...)
	cur := make([]int32, len(below))
	for i := i1 - 1; i >= top; i-- {
		fillRow(cur, next, w.a[i], w.b[j0:])
		cur, next = next, cur
	}
	return next
}

// walkBand builds the table for rows [i0, i1) and columns [j0, m] and walks it.
func (w *lcsWalker) walkBand(i0, i1, j0 int, below []int32) int {
	b := w.b[j0:]
	rows, width := i1-i0, len(below)
	table := make([]int32, (rows+1)*width)
	copy(table[rows*width:], below)
	for r := rows - 1; r >= 0; r-- {
		fillRow(table[r*width:(r+1)*width], table[(r+1)*width:(r+2)*width], w.a[i0+r], b)
	}

	r, j := 0, 0
	for r < rows && j < len(b) {
		switch {
		case w.a[i0+r] == b[j]:
			w.edits = append(w.edits, Edit{Kind: Match, A: w.offset + i0 + r, B: w.offset + j0 + j})
			r++
			j++
		case table[(r+1)*width+j] >= table[r*width+j+1]:
			w.edits = append(w.edits, Edit{Kind: Delete, A: w.offset + i0 + r, B: -1})
			r++
		default:
			w.edits = append(w.edits, Edit{Kind: Insert, A: -1, B: w.offset + j0 + j})
			j++
		}
	}
	for ; r < rows; r++ {
		w.edits = append(w.edits, Edit{Kind: Delete, A: w.offset + i0 + r, B: -1})
	}
	return j0 + j
}

// fillRow sets cur to one row of L given next, the row below it. The last
// column is the empty suffix of b.
func fillRow(cur, next []int32, ai string, b []string) {
	last := len(b)
	cur[last] = 0
	for j := last - 1; j >= 0; j-- {
		switch {
		case ai == b[j]:
			cur[j] = next[j+1] + 1
		case next[j] >= cur[j+1]:
			cur[j] = next[j]
		default:
			cur[j] = cur[j+1]
		}
	}
}

// Collapse rewrites every hunk (a maximal run of non-match edits) so that its
// deletions and insertions are paired in order into substitutions. Unpaired
// deletions, then unpaired insertions, follow the substitutions.
func Collapse(edits []Edit) []Edit {
	out := make([]Edit, 0, len(edits))
	var dels, ins []Edit

	flush := func() {
		pairs := min(len(dels), len(ins))
		for k := 0; k < pairs; k++ {
			out = append(out, Edit{Kind: Substitute, A: dels[k].A, B: ins[k].B})
		}
		out = append(out, dels[pairs:]...)
		out = append(out, ins[pairs:]...)
		dels, ins = dels[:0], ins[:0]
	}

	for _, e := range edits {
		switch e.Kind {
		case Delete:
			dels = append(dels, e)
		case Insert:
			ins = append(ins, e)
		default:
			flush()
			out = append(out, e)
		}
	}
	flush()
	return out
}
