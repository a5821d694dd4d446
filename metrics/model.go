package metrics

import (
	"context"
	"time"

	"github.com/hupe1980/tripmesh/model"
)

// instrumentedModel records call counts, latency and token usage of the
// wrapped model.
type instrumentedModel struct {
	next    model.Model
	metrics *Metrics
}

// WrapModel returns a model that reports to m.
func WrapModel(next model.Model, m *Metrics) model.Model {
	return &instrumentedModel{next: next, metrics: m}
}

func (im *instrumentedModel) Info() model.Info { return im.next.Info() }

func (im *instrumentedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	name := im.next.Info().Name
	start := time.Now()

	respCh, errCh := im.next.Generate(ctx, req)

	out := make(chan model.Response)
	outErr := make(chan error, 1)

	go func() {
		defer close(outErr)
		defer close(out)

		for resp := range respCh {
			if resp.Usage != nil {
				im.metrics.modelTokens.WithLabelValues(name, "prompt").Add(float64(resp.Usage.PromptTokens))
				im.metrics.modelTokens.WithLabelValues(name, "completion").Add(float64(resp.Usage.CompletionTokens))
			}

			select {
			case out <- resp:
			case <-ctx.Done():
				// Keep draining so the provider goroutine can exit.
			}
		}

		err := <-errCh

		outcome := OutcomeSuccess
		if err != nil {
			outcome = OutcomeError
		}

		im.metrics.modelCalls.WithLabelValues(name, outcome).Inc()
		im.metrics.modelLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())

		if err != nil {
			outErr <- err
		}
	}()

	return out, outErr
}
