package selection

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Sampler draws from Beta distributions.
type Sampler interface {
	Beta(alpha, beta float64) float64
}

// BetaSampler draws Beta variates as a ratio of two Gamma variates.
// It is safe for concurrent use.
type BetaSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededSampler returns a sampler whose sequence is fixed by seed.
func NewSeededSampler(seed uint64) *BetaSampler {
	return &BetaSampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewSampler seeds from the wall clock.
func NewSampler() *BetaSampler {
	return NewSeededSampler(uint64(time.Now().UnixNano()))
}

func (s *BetaSampler) Beta(alpha, beta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	x := s.gamma(alpha)
	y := s.gamma(beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// gamma draws Gamma(shape, 1) with the Marsaglia-Tsang method.
func (s *BetaSampler) gamma(shape float64) float64 {
	if shape < 1 {
		// Gamma(a) = Gamma(a+1) * U^(1/a)
		u := s.rng.Float64()
		return s.gamma(shape+1) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3
	c := 1 / math.Sqrt(9*d)
	for {
		x := s.rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := s.rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
