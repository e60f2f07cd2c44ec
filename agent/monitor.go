package agent

import (
	"context"
	"time"

	"goa.design/streampipe/message"
	"goa.design/streampipe/telemetry"
)

const (
	stallWarnAfter  = 15 * time.Second
	stallErrorAfter = 30 * time.Second
)

// Monitored wraps a StreamingAgent so that a stalled producer (no yield
// between two consecutive stream items) is surfaced through logger rather
// than silently hanging the consumer, per spec §5's default monitoring task.
func Monitored(inner StreamingAgent, logger telemetry.Logger) StreamingAgent {
	return &monitoredAgent{inner: inner, logger: logger}
}

type monitoredAgent struct {
	inner  StreamingAgent
	logger telemetry.Logger
}

func (m *monitoredAgent) Invoke(ctx context.Context, messages []message.Message, opts *Options) ([]message.Message, error) {
	return m.inner.Invoke(ctx, messages, opts)
}

func (m *monitoredAgent) InvokeStreaming(ctx context.Context, messages []message.Message, opts *Options) (<-chan StreamItem, error) {
	src, err := m.inner.InvokeStreaming(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	out := make(chan StreamItem)
	go m.pump(ctx, src, out)
	return out, nil
}

func (m *monitoredAgent) pump(ctx context.Context, src <-chan StreamItem, out chan<- StreamItem) {
	defer close(out)

	lastYield := make(chan struct{}, 1)
	done := make(chan struct{})
	defer close(done)
	go m.watch(ctx, lastYield, done)

	for item := range src {
		select {
		case lastYield <- struct{}{}:
		default:
		}
		select {
		case out <- item:
		case <-ctx.Done():
			return
		}
	}
}

// watch logs a warning if no item is observed on lastYield within
// stallWarnAfter of the previous one, and an error at stallErrorAfter. It
// exits when done is closed.
func (m *monitoredAgent) watch(ctx context.Context, lastYield <-chan struct{}, done <-chan struct{}) {
	timer := time.NewTimer(stallWarnAfter)
	defer timer.Stop()
	warned := false
	for {
		select {
		case <-done:
			return
		case <-lastYield:
			warned = false
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(stallWarnAfter)
		case <-timer.C:
			if !warned {
				m.logger.Warn(ctx, "streaming middleware stalled", "component", "agent.monitor", "stalled_for", stallWarnAfter.String())
				warned = true
				timer.Reset(stallErrorAfter - stallWarnAfter)
				continue
			}
			m.logger.Error(ctx, "streaming middleware stalled", "component", "agent.monitor", "stalled_for", stallErrorAfter.String())
			timer.Reset(stallErrorAfter)
		}
	}
}
