package compare

// SetMaxTableCells lowers the in-memory table bound for the duration of a test.
func SetMaxTableCells(n int) (restore func()) {
	prev := maxTableCells
	maxTableCells = n
	return func() { maxTableCells = prev }
}
