package book

import "testing"

func TestOutlineWindow(t *testing.T) {
	tests := []struct {
		name              string
		index, total, len int
		wantStart         int
		wantEnd           int
	}{
		{"first of five", 0, 5, 10, 0, 3},
		{"second of five", 1, 5, 10, 3, 5},
		{"third of five", 2, 5, 10, 4, 8},
		{"fourth of five", 3, 5, 10, 6, 10},
		{"last of five", 4, 5, 10, 7, 10},
		{"short outline", 2, 5, 3, 0, 3},
		{"empty outline", 0, 1, 0, 0, 0},
		{"single chunk long outline", 0, 1, 8, 0, 3},
		{"last with four entries", 1, 2, 4, 1, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := OutlineWindow(tt.index, tt.total, tt.len)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("OutlineWindow(%d, %d, %d) = [%d, %d), want [%d, %d)",
					tt.index, tt.total, tt.len, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestSelectOutline(t *testing.T) {
	outline := []string{"A", "B", "C", "D", "E"}
	got := SelectOutline(outline, 0, 2)
	if len(got) != 3 || got[0] != "A" || got[2] != "C" {
		t.Errorf("first chunk = %v", got)
	}
	got = SelectOutline(outline, 1, 2)
	if len(got) != 3 || got[0] != "C" || got[2] != "E" {
		t.Errorf("last chunk = %v", got)
	}
}
