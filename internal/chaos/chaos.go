// internal/chaos/chaos.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrInjected marks every failure produced by an Injector.
var ErrInjected = errors.New("chaos: injected fault")

// Fault describes what to do to matching operations.
type Fault struct {
	Operation string        // exact operation name, empty matches all
	Latency   time.Duration // added before the operation runs
	Rate      float64       // 0.0 to 1.0 chance of failing the operation
}

// Injector decides, per operation, whether to delay or fail it.
type Injector struct {
	tracer trace.Tracer
	faults []Fault

	mu       sync.Mutex
	rand     *rand.Rand
	injected int
}

func NewInjector(seed int64, faults ...Fault) *Injector {
	return &Injector{
		tracer: otel.Tracer("ebookstore/chaos"),
		faults: faults,
		rand:   rand.New(rand.NewSource(seed)),
	}
}

// Inject applies every fault matching op. It returns an error wrapping
// ErrInjected when one of them fires, or ctx.Err() if ctx ends during the
// injected latency.
func (in *Injector) Inject(ctx context.Context, op string) error {
	for _, f := range in.faults {
		if f.Operation != "" && f.Operation != op {
			continue
		}

		if f.Latency > 0 {
			if err := sleep(ctx, f.Latency); err != nil {
				return err
			}
		}
		if in.roll(f.Rate) {
			_, span := in.tracer.Start(ctx, "chaos.inject", trace.WithAttributes(
				attribute.String("chaos.operation", op),
				attribute.Float64("chaos.rate", f.Rate),
			))
			span.End()
			return fmt.Errorf("%w: %s", ErrInjected, op)
		}
	}
	return nil
}

// Injected reports how many operations have been failed so far.
func (in *Injector) Injected() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.injected
}

func (in *Injector) roll(rate float64) bool {
	if rate <= 0 {
		return false
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if rate < 1 && in.rand.Float64() >= rate {
		return false
	}
	in.injected++
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
