// pkg/physics/vector_test.go
package physics

import (
	"math"
	"testing"
)

func TestVector2D_Arithmetic(t *testing.T) {
	tests := []struct {
		name     string
		got      Vector2D
		expected Vector2D
	}{
		{"add", Vector2D{X: 3, Y: 4}.Add(Vector2D{X: 1, Y: 2}), Vector2D{X: 4, Y: 6}},
		{"sub", Vector2D{X: 3, Y: 4}.Sub(Vector2D{X: 1, Y: 2}), Vector2D{X: 2, Y: 2}},
		{"scale", Vector2D{X: 3, Y: -4}.Scale(2), Vector2D{X: 6, Y: -8}},
		{"div", Vector2D{X: 3, Y: -4}.Div(2), Vector2D{X: 1.5, Y: -2}},
		{"div_by_zero", Vector2D{X: 3, Y: -4}.Div(0), Vector2D{}},
		{"lerp_mid", Vector2D{}.Lerp(Vector2D{X: 4, Y: 2}, 0.5), Vector2D{X: 2, Y: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

func TestVector2D_Normalize(t *testing.T) {
	tests := []struct {
		name string
		v    Vector2D
		want Vector2D
	}{
		{"axis", Vector2D{X: 0, Y: 5}, Vector2D{X: 0, Y: 1}},
		{"diagonal", Vector2D{X: 3, Y: 4}, Vector2D{X: 0.6, Y: 0.8}},
		{"zero", Vector2D{}, Vector2D{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.v.Normalize()
			if math.Abs(got.X-tt.want.X) > 1e-9 || math.Abs(got.Y-tt.want.Y) > 1e-9 {
				t.Errorf("Normalize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVector2D_LengthDotDistance(t *testing.T) {
	v := Vector2D{X: 3, Y: 4}
	if v.Length() != 5 {
		t.Errorf("Length() = %v, want 5", v.Length())
	}
	if d := v.Dot(Vector2D{X: 2, Y: -1}); d != 2 {
		t.Errorf("Dot() = %v, want 2", d)
	}
	if d := v.Distance(Vector2D{}); d != 5 {
		t.Errorf("Distance() = %v, want 5", d)
	}
}
