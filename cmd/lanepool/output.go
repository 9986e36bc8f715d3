package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

func newProgressBar(out io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
	)
}

// laneStats accumulates queue wait for one priority.
type laneStats struct {
	priority int
	tasks    int
	failed   int
	total    time.Duration
	max      time.Duration
}

func (s *laneStats) add(wait time.Duration) {
	s.tasks++
	s.total += wait
	s.max = max(s.max, wait)
}

func (s *laneStats) mean() time.Duration {
	if s.tasks == 0 {
		return 0
	}
	return s.total / time.Duration(s.tasks)
}

func printLaneTable(out io.Writer, stats []laneStats) {
	table := tablewriter.NewWriter(out)
	table.Header("Priority", "Tasks", "Failed", "Mean wait", "Max wait")

	// highest priority first, matching dispatch order
	for i := len(stats) - 1; i >= 0; i-- {
		s := stats[i]
		if s.tasks == 0 && s.failed == 0 {
			continue
		}
		_ = table.Append(
			fmt.Sprintf("%d", s.priority),
			fmt.Sprintf("%d", s.tasks),
			fmt.Sprintf("%d", s.failed),
			s.mean().Round(time.Microsecond).String(),
			s.max.Round(time.Microsecond).String(),
		)
	}
	_ = table.Render()
}

func printSummaryTable(out io.Writer, rows [][2]string) {
	table := tablewriter.NewWriter(out)
	table.Header("Metric", "Value")
	for _, r := range rows {
		_ = table.Append(r[0], r[1])
	}
	_ = table.Render()
}
