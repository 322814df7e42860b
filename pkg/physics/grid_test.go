package physics

import "testing"

func TestRect_Overlaps(t *testing.T) {
	base := Rect{X: 1, Y: 1, Width: 2, Height: 2}

	tests := []struct {
		name  string
		other Rect
		want  bool
	}{
		{"identical", base, true},
		{"partial", Rect{X: 2, Y: 2, Width: 2, Height: 2}, true},
		{"touching_right_edge", Rect{X: 3, Y: 1, Width: 1, Height: 1}, false},
		{"touching_bottom_edge", Rect{X: 1, Y: 3, Width: 2, Height: 1}, false},
		{"contained", Rect{X: 2, Y: 2, Width: 1, Height: 1}, true},
		{"far", Rect{X: 10, Y: 10, Width: 1, Height: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Overlaps(tt.other); got != tt.want {
				t.Errorf("Overlaps(%v) = %v, want %v", tt.other, got, tt.want)
			}
			if got := tt.other.Overlaps(base); got != tt.want {
				t.Errorf("Overlaps is not symmetric for %v", tt.other)
			}
		})
	}
}

func TestRect_ContainsCell(t *testing.T) {
	r := Rect{X: 2, Y: 0, Width: 1, Height: 2}
	if !r.ContainsCell(2, 1) {
		t.Error("expected cell (2,1) inside")
	}
	if r.ContainsCell(2, 2) {
		t.Error("expected cell (2,2) outside")
	}
	if r.ContainsCell(3, 0) {
		t.Error("expected cell (3,0) outside")
	}
}

func TestSegmentCells(t *testing.T) {
	t.Run("horizontal", func(t *testing.T) {
		cells := SegmentCells(Vector2D{X: 0.5, Y: 0.5}, Vector2D{X: 3.5, Y: 0.5})
		want := []Cell{{0, 0}, {1, 0}, {2, 0}, {3, 0}}
		if len(cells) != len(want) {
			t.Fatalf("SegmentCells() = %v, want %v", cells, want)
		}
		for i := range want {
			if cells[i] != want[i] {
				t.Errorf("cell %d = %v, want %v", i, cells[i], want[i])
			}
		}
	})

	t.Run("single_point", func(t *testing.T) {
		cells := SegmentCells(Vector2D{X: 1.2, Y: 2.7}, Vector2D{X: 1.2, Y: 2.7})
		if len(cells) != 1 || cells[0] != (Cell{1, 2}) {
			t.Errorf("SegmentCells() = %v, want [{1 2}]", cells)
		}
	})

	t.Run("vertical_no_duplicates", func(t *testing.T) {
		cells := SegmentCells(Vector2D{X: 0.5, Y: 0.1}, Vector2D{X: 0.5, Y: 2.9})
		seen := map[Cell]bool{}
		for _, c := range cells {
			if seen[c] {
				t.Fatalf("duplicate cell %v", c)
			}
			seen[c] = true
		}
		if len(cells) != 3 {
			t.Errorf("expected 3 cells, got %v", cells)
		}
	})
}
