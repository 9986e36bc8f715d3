package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/utkarsh5026/lanepool/pool"
)

// orderScenario pairs a value with its priority; values are enqueued in
// this order into a 16-lane pool before any worker starts.
var orderScenario = []struct{ value, priority int }{
	{0, 0}, {1, 0}, {2, 2}, {3, 6}, {5, 5}, {42, 7}, {69, 9}, {420, 10},
}

var expectedOrder = []int{420, 69, 42, 3, 5, 2, 0, 1}

func orderCommand(s *session) *cli.Command {
	return &cli.Command{
		Name:  "order",
		Usage: "show that a single worker drains lanes in strict priority order",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Value: 1, Usage: "worker count; ordering is only guaranteed with 1", EnvVars: []string{"LANEPOOL_WORKERS"}},
		},
		Action: func(c *cli.Context) error {
			got, err := runOrderScenario(c.Context, s, c.Int("workers"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			bold.Fprintln(s.out, "Execution order")
			fmt.Fprintf(s.out, "  expected: %s\n", joinInts(expectedOrder))
			fmt.Fprintf(s.out, "  actual:   %s\n", joinInts(got))

			if joinInts(got) == joinInts(expectedOrder) {
				green.Fprintln(s.out, "strict priority order held")
				return nil
			}
			if c.Int("workers") > 1 {
				yellow.Fprintln(s.out, "order differs; expected with more than one worker")
				return nil
			}
			red.Fprintln(s.out, "order differs")
			return cli.Exit("", 1)
		},
	}
}

func runOrderScenario(ctx context.Context, s *session, workers int) ([]int, error) {
	p, err := pool.New[int, int](16, pool.WithName("lanepool-order"), pool.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	defer p.Close()

	var mu sync.Mutex
	var order []int
	record := func(_ context.Context, v int) (*int, error) {
		mu.Lock()
		order = append(order, v)
		mu.Unlock()
		return nil, nil
	}

	for _, in := range orderScenario {
		if _, err := p.Enqueue(record, in.value, true, in.priority); err != nil {
			return nil, err
		}
	}

	if err := p.Start(max(workers, 1)); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := p.WaitIdle(waitCtx); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]int(nil), order...), nil
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, " ")
}
