package distance

import (
	"context"
	"errors"
	"sync"

	"trip-assignment-service/internal/domain"
)

var ErrMockUnavailable = errors.New("mock routing service unavailable")

type MockPair struct {
	From, To domain.Coordinates
	Km       float64
}

// MockRoutingService answers from a fixed table of pairs. Unknown pairs are
// unroutable (nil). Calls with more than FailBatchesOver cells fail, which
// lets tests exercise the per-entry retry path.
type MockRoutingService struct {
	mu              sync.Mutex
	m               map[domain.PairKey]float64
	Unavailable     bool
	FailBatchesOver int
	Calls           int
}

func NewMockRoutingService(pairs []MockPair) *MockRoutingService {
	m := make(map[domain.PairKey]float64, len(pairs))
	for _, p := range pairs {
		m[domain.NewPairKey(p.From, p.To)] = p.Km
	}
	return &MockRoutingService{m: m}
}

func (s *MockRoutingService) Matrix(ctx context.Context, origins, destinations []domain.Coordinates) ([][]*float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Unavailable {
		return nil, ErrMockUnavailable
	}
	if s.FailBatchesOver > 0 && len(origins)*len(destinations) > s.FailBatchesOver {
		return nil, ErrMockUnavailable
	}

	out := make([][]*float64, len(origins))
	for i, o := range origins {
		out[i] = make([]*float64, len(destinations))
		for j, d := range destinations {
			if km, ok := s.m[domain.NewPairKey(o, d)]; ok {
				v := km
				out[i][j] = &v
			}
		}
	}
	return out, nil
}

func (s *MockRoutingService) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls
}
