package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/muhammadchandra19/bar-aggregator/pkg/errors"
	"github.com/muhammadchandra19/bar-aggregator/pkg/logger"
	barpublisherv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/bar-publisher/v1"
	streamreaderv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/stream-reader/v1"
	"golang.org/x/sync/errgroup"
)

// ServiceName is the name reported to the gRPC health service.
const ServiceName = "bar-aggregator"

// Runner is a long-running pipeline stage.
type Runner interface {
	Run(ctx context.Context) error
}

// StatusNotifier is told when the pipeline starts and stops serving.
type StatusNotifier interface {
	InitService(serviceName string)
	StopService(serviceName string)
}

// ErrNotRunning is reported by Probe while the pipeline is not running.
var ErrNotRunning = errors.NewErrorDetails("pipeline is not running", string(errors.GeneralInternalServerError), "pipeline")

// Pipeline wires stream reader -> queue -> aggregator -> sink and unwinds them deterministically.
type Pipeline struct {
	reader     streamreaderv1.Reader
	aggregator Runner
	publisher  barpublisherv1.Publisher
	status     StatusNotifier
	logger     logger.Interface

	running atomic.Bool
}

// NewPipeline creates a Pipeline. status may be nil.
func NewPipeline(
	reader streamreaderv1.Reader,
	aggregator Runner,
	publisher barpublisherv1.Publisher,
	status StatusNotifier,
	logger logger.Interface,
) *Pipeline {
	return &Pipeline{
		reader:     reader,
		aggregator: aggregator,
		publisher:  publisher,
		status:     status,
		logger:     logger,
	}
}

// Run starts the reader and the aggregator and blocks until both return.
// The reader closing the queue ends the aggregator; an aggregator failure cancels the reader.
// The first error is returned. The publisher is closed before Run returns.
func (p *Pipeline) Run(ctx context.Context) error {
	p.setRunning(true)
	defer p.setRunning(false)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.reader.Run(gctx)
	})
	g.Go(func() error {
		return p.aggregator.Run(gctx)
	})

	err := g.Wait()

	if cerr := p.publisher.Close(); cerr != nil {
		p.logger.Error(errors.TracerFromError(cerr), logger.Field{Key: "action", Value: "close_publisher"})
	}

	if err != nil {
		p.logger.Error(errors.TracerFromError(err), logger.Field{Key: "action", Value: "run_pipeline"})
		return err
	}

	p.logger.Info("pipeline finished")
	return nil
}

// Probe reports whether the pipeline is currently running.
func (p *Pipeline) Probe() error {
	if !p.running.Load() {
		return ErrNotRunning
	}
	return nil
}

func (p *Pipeline) setRunning(running bool) {
	p.running.Store(running)
	if p.status == nil {
		return
	}
	if running {
		p.status.InitService(ServiceName)
	} else {
		p.status.StopService(ServiceName)
	}
}
