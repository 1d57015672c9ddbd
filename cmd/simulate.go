package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shopdemo/api/logging"
	"shopdemo/api/tracker"
	"shopdemo/api/utils"
)

var simulatedUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 13; SM-S901B) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/23.0 Chrome/115.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91",
}

var (
	simulatedPages    = []string{"/", "/games", "/games/1", "/games/2", "/cart", "/orders"}
	simulatedElements = []tracker.Element{
		{ID: "add-to-cart", TagName: "BUTTON", Text: "Add to cart"},
		{Classes: []string{"game-card", "featured"}, TagName: "DIV", Text: "Celeste"},
		{TagName: "A", Text: "Orders"},
		{ID: "checkout", TagName: "BUTTON", Text: " Checkout "},
	}
)

type simulateOptions struct {
	endpoint    string
	sessions    int
	clicks      int
	workers     int
	queueSize   int
	seed        int64
	sendTimeout time.Duration
	drain       time.Duration
	logLevel    string
}

func newSimulateCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive synthetic browsing sessions against an ingestion service.",
		Long: `Runs a number of event collectors concurrently, each browsing one or more
pages, scrolling, clicking and finally unloading. Events go through the same
bounded dispatcher a browser bridge would use.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(opts.logLevel, true)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			res, err := runSimulation(cmd.Context(), opts, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "simulated %d sessions: %d events queued, %d dropped\n", res.sessions, res.queued, res.dropped)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.endpoint, "endpoint", "http://localhost:3002/analytics", "Base URL of the ingestion service's analytics routes.")
	flags.IntVar(&opts.sessions, "sessions", 20, "Number of sessions to simulate.")
	flags.IntVar(&opts.clicks, "clicks", 5, "Clicks per session.")
	flags.IntVar(&opts.workers, "workers", 4, "Concurrent sessions and concurrent sends.")
	flags.IntVar(&opts.queueSize, "queue", 1024, "Outbound queue capacity.")
	flags.Int64Var(&opts.seed, "seed", time.Now().UnixNano(), "Random seed for identifiers and choices.")
	flags.DurationVar(&opts.sendTimeout, "send-timeout", 10*time.Second, "Timeout for a single event send.")
	flags.DurationVar(&opts.drain, "drain-timeout", 30*time.Second, "How long to wait for queued events on exit.")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level.")
	return cmd
}

type simulationResult struct {
	sessions int
	queued   int64
	dropped  int64
}

// countingEmitter tallies what the dispatcher accepted.
type countingEmitter struct {
	next    tracker.Emitter
	queued  atomic.Int64
	dropped atomic.Int64
}

func (e *countingEmitter) Emit(msg tracker.Message) bool {
	ok := e.next.Emit(msg)
	if ok {
		e.queued.Add(1)
	} else {
		e.dropped.Add(1)
	}
	return ok
}

func runSimulation(ctx context.Context, opts simulateOptions, logger *zap.Logger) (simulationResult, error) {
	if opts.sessions < 0 || opts.clicks < 0 {
		return simulationResult{}, fmt.Errorf("sessions and clicks must not be negative")
	}
	if opts.workers <= 0 {
		opts.workers = 1
	}

	dispatcher := tracker.NewDispatcher(
		tracker.NewHTTPSender(opts.endpoint, nil),
		tracker.DispatcherConfig{QueueSize: opts.queueSize, Workers: opts.workers, SendTimeout: opts.sendTimeout},
		logger,
	)
	emitter := &countingEmitter{next: dispatcher}
	ids := utils.NewSessionIDGenerator(opts.seed)

	var (
		rndMu sync.Mutex
		rnd   = rand.New(rand.NewSource(opts.seed))
	)
	intn := func(n int) int {
		rndMu.Lock()
		defer rndMu.Unlock()
		return rnd.Intn(n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers)
	for i := 0; i < opts.sessions; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			simulateSession(i, opts.clicks, emitter, ids, intn, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return simulationResult{}, err
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), opts.drain)
	defer cancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		logger.Warn("Dispatcher did not drain", zap.Error(err))
	}

	return simulationResult{
		sessions: opts.sessions,
		queued:   emitter.queued.Load(),
		dropped:  emitter.dropped.Load(),
	}, nil
}

// simulateSession browses 1 + n%3 pages. Clicks are spread over the pages and
// time advances on a virtual clock so durations look realistic.
func simulateSession(n, clicks int, emitter tracker.Emitter, ids *utils.SessionIDGenerator, intn func(int) int, logger *zap.Logger) {
	now := time.Now()
	clock := func() time.Time { return now }

	storage := tracker.MapStorage{}
	if n%2 == 0 {
		storage[tracker.UserIDKey] = fmt.Sprintf("user-%d", n)
	}

	c := tracker.New(
		tracker.Config{
			PageURL:   simulatedPages[intn(len(simulatedPages))],
			UserAgent: simulatedUserAgents[n%len(simulatedUserAgents)],
			Emitter:   emitter,
		},
		tracker.WithClock(clock),
		tracker.WithIDGenerator(ids.Next),
		tracker.WithStorage(storage),
		tracker.WithLogger(logger),
	)

	pages := 1 + n%3
	for p := 0; p < pages; p++ {
		if p > 0 {
			c.Navigate(simulatedPages[intn(len(simulatedPages))])
		}
		height := float64(1200 + intn(4000))
		for top := 0.0; top < height; top += float64(200 + intn(800)) {
			c.Scroll(tracker.ScrollMetrics{ScrollTop: top, ClientHeight: 800, ScrollHeight: height})
		}
		for k := p; k < clicks; k += pages {
			el := simulatedElements[intn(len(simulatedElements))]
			el.Rect = tracker.Rect{Top: float64(intn(800)) + 0.5, Left: float64(intn(1200)) + 0.25}
			c.Click(el)
		}
		now = now.Add(time.Duration(2+intn(90)) * time.Second)
	}
	c.Unload()
}
