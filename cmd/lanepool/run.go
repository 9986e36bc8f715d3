package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/utkarsh5026/lanepool/internal/algorithms"
	lpprom "github.com/utkarsh5026/lanepool/observability/prometheus"
	"github.com/utkarsh5026/lanepool/pool"
)

// job is the parameter of one synthetic task.
type job struct {
	queued time.Time
	work   time.Duration
}

func runCommand(s *session) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "push synthetic tasks through the pool and report queue wait per priority",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "tasks", Aliases: []string{"n"}, Value: 1000, Usage: "one-shot tasks to enqueue", EnvVars: []string{"LANEPOOL_TASKS"}},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Value: 0, Usage: "worker count (0 = GOMAXPROCS)", EnvVars: []string{"LANEPOOL_WORKERS"}},
			&cli.IntFlag{Name: "priorities", Aliases: []string{"p"}, Value: 8, Usage: "number of priority lanes", EnvVars: []string{"LANEPOOL_PRIORITIES"}},
			&cli.DurationFlag{Name: "work", Value: time.Millisecond, Usage: "simulated duration of each task", EnvVars: []string{"LANEPOOL_WORK"}},
			&cli.IntFlag{Name: "loopers", Value: 0, Usage: "looping background tasks at priority 0", EnvVars: []string{"LANEPOOL_LOOPERS"}},
			&cli.Float64Flag{Name: "rate", Value: 0, Usage: "max task starts per second (0 = unlimited)", EnvVars: []string{"LANEPOOL_RATE"}},
			&cli.IntFlag{Name: "burst", Value: 1, Usage: "rate limiter burst", EnvVars: []string{"LANEPOOL_BURST"}},
			&cli.DurationFlag{Name: "feed-interval", Value: 0, Usage: "periodic starvation feed interval (0 = off)", EnvVars: []string{"LANEPOOL_FEED_INTERVAL"}},
			&cli.IntFlag{Name: "feed-amount", Value: 1, Usage: "lanes to promote on each feed", EnvVars: []string{"LANEPOOL_FEED_AMOUNT"}},
			&cli.StringFlag{Name: "polling", Usage: "poll idle lanes with this backoff (exponential, jittered, decorrelated, constant)", EnvVars: []string{"LANEPOOL_POLLING"}},
			&cli.BoolFlag{Name: "pin", Usage: "pin workers to CPU cores", EnvVars: []string{"LANEPOOL_PIN"}},
			&cli.DurationFlag{Name: "stop-timeout", Value: 5 * time.Second, Usage: "how long Stop waits for workers (0 = forever)", EnvVars: []string{"LANEPOOL_STOP_TIMEOUT"}},
			&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address, e.g. :9090", EnvVars: []string{"LANEPOOL_METRICS_ADDR"}},
			&cli.BoolFlag{Name: "no-progress", Usage: "disable the progress bar", EnvVars: []string{"LANEPOOL_NO_PROGRESS"}},
		},
		Action: func(c *cli.Context) error {
			return runAction(c, s)
		},
	}
}

func runAction(c *cli.Context, s *session) error {
	tasks := c.Int("tasks")
	priorities := c.Int("priorities")
	if tasks < 0 {
		return cli.Exit("tasks must not be negative", 1)
	}
	if priorities < 1 {
		return cli.Exit("priorities must be at least 1", 1)
	}

	opts := []pool.Option{
		pool.WithName("lanepool-run"),
		pool.WithLogger(s.logger),
		pool.WithStopTimeout(c.Duration("stop-timeout")),
		pool.WithRateLimit(c.Float64("rate"), c.Int("burst")),
		pool.WithStarvationFeed(c.Duration("feed-interval"), c.Int("feed-amount")),
	}
	if name := c.String("polling"); name != "" {
		kind, ok := algorithms.ParseBackoffType(name)
		if !ok {
			return cli.Exit(fmt.Sprintf("unknown backoff %q", name), 1)
		}
		opts = append(opts, pool.WithPollingIdle(kind, time.Millisecond, 20*time.Millisecond))
	}
	if c.Bool("pin") {
		opts = append(opts, pool.WithCPUPinning())
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr := c.String("metrics-addr"); addr != "" {
		m, shutdown, err := serveMetrics(addr, s.logger)
		if err != nil {
			return cli.Exit(fmt.Sprintf("metrics endpoint: %v", err), 1)
		}
		defer shutdown()
		opts = append(opts, pool.WithMetrics(m.ForPool("lanepool-run")))
	}

	p, err := pool.New[job, time.Duration](priorities, opts...)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var heartbeats atomic.Int64
	for range c.Int("loopers") {
		_, err := p.Enqueue(func(ctx context.Context, j job) (*time.Duration, error) {
			heartbeats.Add(1)
			return nil, sleepCtx(ctx, j.work)
		}, job{work: c.Duration("work")}, false, 0)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	ids := make([]pool.TaskID, 0, tasks)
	lanes := make([]laneStats, priorities)
	for i := range lanes {
		lanes[i].priority = i
	}

	begin := time.Now()
	for i := range tasks {
		id, err := p.Enqueue(measureWait, job{queued: time.Now(), work: c.Duration("work")}, true, i%priorities)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		ids = append(ids, id)
	}

	if err := p.Start(c.Int("workers")); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	bold.Fprintf(s.out, "Running %d tasks on %d workers across %d lanes\n", tasks, p.Workers(), priorities)

	var bar *progressbar.ProgressBar
	if !c.Bool("no-progress") {
		bar = newProgressBar(s.out, tasks, "Awaiting results")
	}

	interrupted := false
	for _, id := range ids {
		res, err := p.AwaitResultContext(ctx, id)
		if err != nil {
			interrupted = true
			break
		}
		if res.Err != nil {
			lanes[res.Priority].failed++
		} else if res.Value != nil {
			lanes[res.Priority].add(*res.Value)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	elapsed := time.Since(begin)
	fmt.Fprintln(s.out)

	closeErr := p.Close()

	printLaneTable(s.out, lanes)

	done := 0
	for _, l := range lanes {
		done += l.tasks + l.failed
	}
	rows := [][2]string{
		{"Completed", fmt.Sprintf("%d / %d", done, tasks)},
		{"Elapsed", elapsed.Round(time.Millisecond).String()},
		{"Throughput", fmt.Sprintf("%.0f tasks/sec", float64(done)/max(elapsed.Seconds(), 1e-9))},
		{"Heartbeats", fmt.Sprintf("%d", heartbeats.Load())},
	}
	printSummaryTable(s.out, rows)

	switch {
	case pool.IsShutdownTimeout(closeErr):
		yellow.Fprintf(s.out, "warning: %v\n", closeErr)
	case closeErr != nil:
		return cli.Exit(closeErr.Error(), 1)
	}
	if interrupted {
		red.Fprintln(s.out, "interrupted before every result arrived")
		return cli.Exit("", 130)
	}

	green.Fprintln(s.out, "done")
	return nil
}

func measureWait(ctx context.Context, j job) (*time.Duration, error) {
	wait := time.Since(j.queued)
	if err := sleepCtx(ctx, j.work); err != nil {
		return nil, err
	}
	return &wait, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// serveMetrics starts an HTTP server exposing a fresh registry on addr and
// returns the exporter bound to it plus a shutdown func.
func serveMetrics(addr string, logger *zap.Logger) (*lpprom.MetricsExporter, func(), error) {
	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exporter, err := lpprom.NewMetricsExporter("lanepool", reg, lpprom.ExporterOptions{})
	if err != nil {
		return nil, nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return exporter, shutdown, nil
}
