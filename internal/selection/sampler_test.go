package selection

import (
	"math"
	"testing"
)

func TestBetaSamplerMoments(t *testing.T) {
	tests := []struct {
		alpha, beta float64
	}{
		{1, 1},
		{2, 5},
		{10, 3},
		{0.5, 0.5},
	}
	for _, tt := range tests {
		s := NewSeededSampler(1)
		const n = 20000
		var sum, sumSq float64
		for i := 0; i < n; i++ {
			x := s.Beta(tt.alpha, tt.beta)
			if x < 0 || x > 1 || math.IsNaN(x) {
				t.Fatalf("Beta(%v,%v) drew %v", tt.alpha, tt.beta, x)
			}
			sum += x
			sumSq += x * x
		}
		mean := sum / n
		variance := sumSq/n - mean*mean

		ab := tt.alpha + tt.beta
		wantMean := tt.alpha / ab
		wantVar := tt.alpha * tt.beta / (ab * ab * (ab + 1))
		if math.Abs(mean-wantMean) > 0.01 {
			t.Errorf("Beta(%v,%v) mean = %.4f, want %.4f", tt.alpha, tt.beta, mean, wantMean)
		}
		if math.Abs(variance-wantVar) > 0.01 {
			t.Errorf("Beta(%v,%v) variance = %.4f, want %.4f", tt.alpha, tt.beta, variance, wantVar)
		}
	}
}

func TestSeededSamplerIsDeterministic(t *testing.T) {
	a, b := NewSeededSampler(42), NewSeededSampler(42)
	for i := 0; i < 100; i++ {
		if x, y := a.Beta(2, 3), b.Beta(2, 3); x != y {
			t.Fatalf("draw %d: %v != %v", i, x, y)
		}
	}
	c := NewSeededSampler(43)
	same := true
	a = NewSeededSampler(42)
	for i := 0; i < 10; i++ {
		if a.Beta(2, 3) != c.Beta(2, 3) {
			same = false
		}
	}
	if same {
		t.Error("different seeds produced identical sequences")
	}
}
