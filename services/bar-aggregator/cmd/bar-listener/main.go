package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/muhammadchandra19/bar-aggregator/pkg/logger"
	"github.com/muhammadchandra19/bar-aggregator/pkg/redis"
	barv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/bar/v1"
	"github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/pkg/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	symbol := flag.String("symbol", "", "Symbol whose bars to print (e.g. SPY)")
	flag.Parse()

	sym := strings.TrimSpace(*symbol)
	if sym == "" {
		flag.Usage()
		return 2
	}

	cfg := &config.Config{}
	if err := config.Load(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := redis.NewClient(log, &cfg.Redis)
	if err := client.Connect(ctx); err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "connect_redis"})
		return 1
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	channel := barv1.Channel(sym)
	pubsub, err := client.Subscribe(ctx, channel)
	if err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "subscribe"})
		return 1
	}
	defer pubsub.Close()

	log.Info("listening for bars", logger.Field{Key: "channel", Value: channel})

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return 0
		case msg, ok := <-msgs:
			if !ok {
				return 0
			}
			bar, err := barv1.FromBytes([]byte(msg.Payload))
			if err != nil {
				log.Warn("skipping undecodable bar", logger.Field{Key: "error", Value: err.Error()})
				continue
			}
			log.Info("bar",
				logger.Field{Key: "timestamp", Value: bar.Timestamp},
				logger.Field{Key: "open", Value: bar.Open},
				logger.Field{Key: "high", Value: bar.High},
				logger.Field{Key: "low", Value: bar.Low},
				logger.Field{Key: "close", Value: bar.Close},
				logger.Field{Key: "volume", Value: bar.Volume},
			)
		}
	}
}
