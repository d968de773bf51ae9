package letter

import (
	"errors"
	"testing"
)

func TestFromIndex(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		want    Label
		wantErr bool
	}{
		{name: "first letter", index: 0, want: "A"},
		{name: "last letter", index: 25, want: "Z"},
		{name: "nothing sentinel", index: 26, want: Nothing},
		{name: "space sentinel", index: 27, want: Space},
		{name: "negative", index: -1, wantErr: true},
		{name: "past end", index: 28, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromIndex(tt.index)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIndex) {
					t.Fatalf("FromIndex(%d) error = %v, want ErrInvalidIndex", tt.index, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromIndex(%d) unexpected error: %v", tt.index, err)
			}
			if got != tt.want {
				t.Errorf("FromIndex(%d) = %q, want %q", tt.index, got, tt.want)
			}
		})
	}
}

func TestLabels_TableIsTotal(t *testing.T) {
	seen := make(map[Label]bool)
	for i := 0; i < Count; i++ {
		l, err := FromIndex(i)
		if err != nil {
			t.Fatalf("FromIndex(%d): %v", i, err)
		}
		if seen[l] {
			t.Errorf("label %q appears twice", l)
		}
		seen[l] = true
		if Index(l) != i {
			t.Errorf("Index(%q) = %d, want %d", l, Index(l), i)
		}
	}
}

func TestParse(t *testing.T) {
	if l, err := Parse("b"); err != nil || l != "B" {
		t.Errorf("Parse(b) = %q, %v; want B", l, err)
	}
	if l, err := Parse("_SPACE"); err != nil || l != Space {
		t.Errorf("Parse(_SPACE) = %q, %v; want _SPACE", l, err)
	}
	if _, err := Parse("AA"); err == nil {
		t.Error("expected error for unknown label")
	}
}

func TestLabel_Text(t *testing.T) {
	if got := Label("Q").Text(" "); got != "Q" {
		t.Errorf("Text() = %q, want Q", got)
	}
	if got := Space.Text("_"); got != "_" {
		t.Errorf("Space.Text() = %q, want _", got)
	}
	if got := Nothing.Text(" "); got != "" {
		t.Errorf("Nothing.Text() = %q, want empty", got)
	}
}

func TestThresholds(t *testing.T) {
	t.Run("default thresholds", func(t *testing.T) {
		th := DefaultThresholds()
		if got := th.For("S"); got != 3 {
			t.Errorf("For(S) = %d, want 3", got)
		}
		if got := th.For("N"); got != 6 {
			t.Errorf("For(N) = %d, want 6", got)
		}
		if got := th.For("Q"); got != 5 {
			t.Errorf("For(Q) = %d, want 5", got)
		}
		if got := th.For(None); got != 5 {
			t.Errorf("For(None) = %d, want 5", got)
		}
	})

	t.Run("zero value falls back to default", func(t *testing.T) {
		var th Thresholds
		if got := th.For("A"); got != DefaultThreshold {
			t.Errorf("For(A) = %d, want %d", got, DefaultThreshold)
		}
	})

	t.Run("overrides are copied", func(t *testing.T) {
		overrides := map[Label]int{"S": 3}
		th := NewThresholds(0, overrides)
		overrides["S"] = 9
		if got := th.For("S"); got != 3 {
			t.Errorf("For(S) = %d, want 3", got)
		}
		if got := th.Default(); got != DefaultThreshold {
			t.Errorf("Default() = %d, want %d", got, DefaultThreshold)
		}
	})
}
