package session

import "strings"

// Word accumulates committed text. It grows only through Append and empties
// only through Reset.
type Word struct {
	b strings.Builder
}

// Append adds s to the end of the word.
func (w *Word) Append(s string) {
	w.b.WriteString(s)
}

// Reset empties the word.
func (w *Word) Reset() {
	w.b.Reset()
}

// String returns the accumulated text.
func (w *Word) String() string {
	return w.b.String()
}

// Len returns the length of the accumulated text in bytes.
func (w *Word) Len() int {
	return w.b.Len()
}
