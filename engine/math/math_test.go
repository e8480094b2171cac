package math

import (
	"testing"
)

func TestAlignUp(t *testing.T) {
	tests := []struct {
		name      string
		value     uint32
		alignment uint32
		want      uint32
	}{
		{"already aligned", 64, 64, 64},
		{"rounds up", 32, 64, 64},
		{"one past boundary", 65, 64, 128},
		{"alignment one", 37, 1, 37},
		{"zero stays zero", 0, 64, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AlignUp(tt.value, tt.alignment); got != tt.want {
				t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.value, tt.alignment, got, tt.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5, 1, 3); got != 3 {
		t.Errorf("Clamp(5,1,3) = %d, want 3", got)
	}
	if got := Clamp(-1.5, 0.0, 1.0); got != 0.0 {
		t.Errorf("Clamp(-1.5,0,1) = %f, want 0", got)
	}
	if got := Clamp(2, 1, 3); got != 2 {
		t.Errorf("Clamp(2,1,3) = %d, want 2", got)
	}
}

func TestMat4MulIdentity(t *testing.T) {
	id := NewMat4Identity()
	m := NewMat4Translation(NewVec3(1, 2, 3))
	got := m.Mul(id)
	if got != m {
		t.Errorf("m * I = %v, want %v", got, m)
	}
}

func TestMat4InverseRoundTrip(t *testing.T) {
	m := NewMat4Translation(NewVec3(3, -2, 7)).Mul(NewMat4EulerXYZ(0.3, -0.8, 1.1))
	inv := m.Inverse()
	got := m.Mul(inv)
	id := NewMat4Identity()
	for i := 0; i < 16; i++ {
		diff := got.Data[i] - id.Data[i]
		if diff < -1e-4 || diff > 1e-4 {
			t.Fatalf("m * m^-1 differs from identity at %d: %f", i, got.Data[i])
		}
	}
}

func TestTransformTranslationLayout(t *testing.T) {
	tr := NewTransformTranslation(4, 5, 6)
	// Row-major 3x4: translation sits at the end of each row.
	if tr.Rows[3] != 4 || tr.Rows[7] != 5 || tr.Rows[11] != 6 {
		t.Errorf("translation components misplaced: %v", tr.Rows)
	}
	if tr.Rows[0] != 1 || tr.Rows[5] != 1 || tr.Rows[10] != 1 {
		t.Errorf("rotation part is not identity: %v", tr.Rows)
	}
}
