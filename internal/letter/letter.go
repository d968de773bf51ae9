// Package letter defines the fixed fingerspelling label set and the per-letter
// hold thresholds used when stabilizing classifier output.
package letter

import (
	"errors"
	"fmt"
)

// Label is one classifier output symbol.
type Label string

// Sentinel labels.
const (
	// Nothing means no hand was detected in the frame.
	Nothing Label = "_NOTHING"
	// Space is the explicit word separator gesture.
	Space Label = "_SPACE"
	// None is the neutral label a fresh run starts from. It is never produced
	// by a classifier.
	None Label = ""
)

// Count is the number of labels a classifier can produce.
const Count = 28

// ErrInvalidIndex is returned when a classifier index is outside the label table.
var ErrInvalidIndex = errors.New("label index out of range")

// Labels is the index-ordered label table shared with the classifier.
var Labels = [Count]Label{
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M", "N", "O",
	"P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z", Nothing, Space,
}

// FromIndex maps a classifier index to its label.
func FromIndex(i int) (Label, error) {
	if i < 0 || i >= Count {
		return None, fmt.Errorf("%w: %d", ErrInvalidIndex, i)
	}
	return Labels[i], nil
}

// Index returns the table index of l, or -1 if l is not a classifier label.
func Index(l Label) int {
	for i, candidate := range Labels {
		if candidate == l {
			return i
		}
	}
	return -1
}

// Parse returns the label named by s. Letters are accepted in either case.
func Parse(s string) (Label, error) {
	if len(s) == 1 && s[0] >= 'a' && s[0] <= 'z' {
		s = string(s[0] - 'a' + 'A')
	}
	if Index(Label(s)) < 0 {
		return None, fmt.Errorf("unknown label %q", s)
	}
	return Label(s), nil
}

// IsSentinel reports whether l is one of the non-letter labels.
func (l Label) IsSentinel() bool {
	return l == Nothing || l == Space
}

// Text returns the characters appended to a word when l is committed.
// Nothing yields the empty string; Space yields spaceLiteral.
func (l Label) Text(spaceLiteral string) string {
	switch l {
	case Nothing, None:
		return ""
	case Space:
		return spaceLiteral
	default:
		return string(l)
	}
}

func (l Label) String() string {
	if l == None {
		return "<none>"
	}
	return string(l)
}
