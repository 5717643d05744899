package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/muhammadchandra19/bar-aggregator/pkg/grpclib/health"
	"github.com/muhammadchandra19/bar-aggregator/pkg/logger"
	"github.com/muhammadchandra19/bar-aggregator/pkg/redis"
	"github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/app/pipeline"
	barpublisherv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/bar-publisher/v1"
	decoderv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/decoder/v1"
	queuev1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/queue/v1"
	"github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/metrics"
	"github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/usecase/aggregator"
	barpublisher "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/usecase/bar-publisher"
	"github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/usecase/decoder"
	"github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/usecase/queue"
	streamreader "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/usecase/stream-reader"
	"github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/pkg/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	symbol := flag.String("symbol", "", "Ticker symbol to subscribe to (e.g. SPY)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --symbol SYMBOL\n\nSubscribes to trades and quotes for SYMBOL and publishes OHLCV bars to bars:SYMBOL.\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := &config.Config{}
	if err := config.Load(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg.Symbol = strings.TrimSpace(*symbol)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if cfg.Symbol == "" {
			flag.Usage()
		}
		return 1
	}

	log, err := logger.NewLogger(
		logger.WithLoggingLevel(logger.Level(cfg.App.LogLevel)),
		logger.WithOutputPaths(cfg.App.LogOutputs),
		logger.WithTimeKey("timestamp"),
		logger.WithLevelKey("severity"),
		logger.WithCallerTraceSkip(1),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = log.Sync() }()
	log = log.WithFields(logger.Field{Key: "service", Value: cfg.App.Name})

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(cfg.Symbol)

	publisher, err := buildPublisher(ctx, cfg, log, m)
	if err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "connect_sinks"})
		return 1
	}

	// Validate already rejected unknown enum values.
	format, _ := decoderv1.ParseFormat(cfg.Feed.Format)
	missingFieldPolicy, _ := decoderv1.ParseMissingFieldPolicy(cfg.Feed.MissingFieldPolicy)
	overflowPolicy, _ := queuev1.ParseOverflowPolicy(cfg.Queue.OverflowPolicy)

	dec, err := decoder.New(format, decoder.Options{
		Symbol:             cfg.Symbol,
		MissingFieldPolicy: missingFieldPolicy,
	})
	if err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "build_decoder"})
		return 1
	}

	q := queue.NewQueue(cfg.Queue.Capacity, overflowPolicy, m)

	reader := streamreader.NewReader(
		streamreader.NewWebsocketDialer(cfg.Feed.HandshakeTimeout),
		dec,
		q,
		log,
		m,
		streamreader.Options{
			URL:             cfg.Feed.URL,
			KeyID:           cfg.Feed.KeyID,
			SecretKey:       cfg.Feed.SecretKey,
			Symbol:          cfg.Symbol,
			ReadTimeout:     cfg.Feed.ReadTimeout,
			StopOnAuthError: cfg.Feed.StopOnAuthError,
			SIPFeed:         cfg.IsSIPFeed(),
		},
	)

	opts := aggregator.DefaultOptions()
	opts.Period = cfg.Aggregator.Period
	opts.PublishTimeout = cfg.Aggregator.FlushTimeout
	opts.AlignToWallClock = cfg.Aggregator.AlignToWallClock
	agg := aggregator.NewAggregatorWithOptions(cfg.Symbol, q, publisher, log, m, opts)

	healthServer := health.NewServer()
	p := pipeline.NewPipeline(reader, agg, publisher, healthServer, log)

	ops := pipeline.NewOpsServer(cfg.App.HTTPAddr, cfg.App.GRPCAddr, m.Handler(), p.Probe, healthServer, log)
	if err := ops.Start(); err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "start_ops_server"})
		_ = publisher.Close()
		return 1
	}

	log.Info("bar aggregator started",
		logger.Field{Key: "period", Value: cfg.Aggregator.Period.String()},
		logger.Field{Key: "sinks", Value: cfg.Sinks},
	)

	runErr := p.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "stop_ops_server"})
	}

	if runErr != nil {
		return 1
	}

	log.Info("bar aggregator shutdown complete")
	return 0
}

// buildPublisher connects every configured sink, each behind its own retry policy.
func buildPublisher(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (barpublisherv1.Publisher, error) {
	var sinks []barpublisher.NamedPublisher

	if cfg.HasSink(config.SinkRedis) {
		client := redis.NewClient(log, &cfg.Redis)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, barpublisher.NamedPublisher{
			Name:      barpublisher.SinkNameRedis,
			Publisher: barpublisher.NewRetryPublisher(barpublisher.NewRedisPublisher(client, log), cfg.Publish, log),
		})
	}

	if cfg.HasSink(config.SinkKafka) {
		sinks = append(sinks, barpublisher.NamedPublisher{
			Name:      barpublisher.SinkNameKafka,
			Publisher: barpublisher.NewRetryPublisher(barpublisher.NewKafkaPublisher(cfg.Kafka, log), cfg.Publish, log),
		})
	}

	return barpublisher.NewFanoutPublisher(m, sinks...), nil
}
