package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type slowReader struct {
	hits    atomic.Int32
	release chan struct{}
	err     error
}

func (s *slowReader) FindProductByID(ctx context.Context, id int64) (domain.Product, error) {
	s.hits.Add(1)
	<-s.release
	if s.err != nil {
		return domain.Product{}, s.err
	}
	return domain.Product{ID: id, Name: "Mug", Price: decimal.RequireFromString("12.50")}, nil
}

func TestCachedReader_CollapsesConcurrentMisses(t *testing.T) {
	next := &slowReader{release: make(chan struct{})}
	reader := NewCachedReader(next, nil, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	const workers = 8
	var wg sync.WaitGroup
	results := make([]domain.Product, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = reader.FindProductByID(context.Background(), 42)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(next.release)
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: unexpected error: %v", i, errs[i])
		}
		if results[i].Name != "Mug" {
			t.Errorf("worker %d: unexpected product %+v", i, results[i])
		}
	}
	if hits := next.hits.Load(); hits != 1 {
		t.Errorf("expected 1 underlying lookup, got %d", hits)
	}
}

func TestCachedReader_PropagatesNotFound(t *testing.T) {
	next := &slowReader{release: make(chan struct{}), err: domain.ErrNotFound}
	close(next.release)
	reader := NewCachedReader(next, nil, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := reader.FindProductByID(context.Background(), 1)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := reader.Invalidate(context.Background(), 1); err != nil {
		t.Fatalf("invalidate without cache should be a no-op, got %v", err)
	}
}
