package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muhammadchandra19/bar-aggregator/pkg/logger"
	decoderv1 "github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/domain/decoder/v1"
	"github.com/muhammadchandra19/bar-aggregator/services/bar-aggregator/internal/usecase/simulator"
)

func main() {
	var (
		addr        = flag.String("addr", ":8765", "Listen address for the websocket feed")
		format      = flag.String("format", string(decoderv1.FormatFlat), "Wire format: flat or enveloped")
		rate        = flag.Duration("rate", 20*time.Millisecond, "Delay between events")
		count       = flag.Int("count", 0, "Events per connection (0 streams until the client disconnects)")
		basePrice   = flag.Float64("base-price", 450, "Starting price of the random walk")
		priceSpread = flag.Float64("price-spread", 0.02, "Quote bid/ask spread")
		symbol      = flag.String("symbol", "", "Symbol to stream (defaults to the subscribed one)")
		keyID       = flag.String("key", "", "Accepted API key id (empty accepts any)")
		secret      = flag.String("secret", "", "Accepted API secret (empty accepts any)")
		seed        = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
	)
	flag.Parse()

	log, err := logger.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	f, err := decoderv1.ParseFormat(*format)
	if err != nil || f == decoderv1.FormatAuto {
		log.Error(fmt.Errorf("format must be flat or enveloped, got %q", *format))
		os.Exit(2)
	}

	opts := simulator.DefaultOptions()
	opts.Symbol = *symbol
	opts.Format = f
	opts.Interval = *rate
	opts.Count = *count
	opts.BasePrice = *basePrice
	opts.Spread = *priceSpread
	opts.Seed = *seed
	opts.KeyID = *keyID
	opts.SecretKey = *secret

	mux := http.NewServeMux()
	mux.Handle("/", simulator.NewServer(opts, log))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("feed simulator listening",
			logger.Field{Key: "addr", Value: *addr},
			logger.Field{Key: "format", Value: f},
			logger.Field{Key: "rate", Value: rate.String()},
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, logger.Field{Key: "action", Value: "listen"})
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, logger.Field{Key: "action", Value: "shutdown"})
	}
	log.Info("feed simulator stopped")
}
