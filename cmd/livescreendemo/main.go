// Command livescreendemo exercises the livescreen engine end to end: it
// registers one sticky block per simulated task plus an aggregate status
// table, drives them with a redraw ticker, and streams unrelated log
// lines above the sticky region while it runs.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/kjbreil/livescreen"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "livescreendemo",
		Short: "Demonstrates the livescreen sticky-block renderer",
	}
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a task config YAML file")
	cmd.AddCommand(watchCmd(&cfgPath))
	return cmd
}

// taskState is the per-block state rendered every tick.
type taskState struct {
	name    string
	elapsed time.Duration
	total   time.Duration
	done    bool
}

func (t taskState) percent() int {
	if t.total <= 0 {
		return 100
	}
	p := int(100 * t.elapsed / t.total)
	if p > 100 {
		p = 100
	}
	return p
}

func renderTask(state any) string {
	t := state.(taskState)
	bar := progressBar(t.percent(), 24)
	label := fmt.Sprintf("%-10s %s %3d%%", t.name, bar, t.percent())
	if t.done {
		return color.GreenString("✓ " + label)
	}
	return color.YellowString("… " + label)
}

func progressBar(pct, width int) string {
	filled := width * pct / 100
	if filled > width {
		filled = width
	}
	out := make([]byte, width)
	for i := range out {
		if i < filled {
			out[i] = '='
		} else {
			out[i] = ' '
		}
	}
	return "[" + string(out) + "]"
}

// renderSummary renders the aggregate status table block using
// rodaine/table, an external formatting collaborator the core engine
// never depends on directly.
func renderSummary(tasks []*taskState) livescreen.RenderFunc {
	return func(any) string {
		var buf writerBuf
		tbl := table.New("TASK", "PROGRESS", "STATUS")
		tbl.WithWriter(&buf)
		for _, t := range tasks {
			status := "running"
			if t.done {
				status = "done"
			}
			tbl.AddRow(t.name, fmt.Sprintf("%3d%%", t.percent()), status)
		}
		tbl.Print()
		return buf.String()
	}
}

// writerBuf adapts a strings.Builder-like buffer to io.Writer for
// table.Table.WithWriter, which rodaine/table requires.
type writerBuf struct {
	data []byte
}

func (w *writerBuf) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *writerBuf) String() string { return string(w.data) }

func watchCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the simulated build dashboard until it finishes or is interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			return runWatch(cfg)
		},
	}
}

func runWatch(cfg Config) error {
	interval, err := time.ParseDuration(cfg.Interval)
	if err != nil {
		return fmt.Errorf("parse interval: %w", err)
	}

	engine, err := livescreen.Start(livescreen.WithRefreshInterval(100 * time.Millisecond))
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	states := make([]*taskState, len(cfg.Tasks))
	for i, task := range cfg.Tasks {
		total, err := time.ParseDuration(task.Duration)
		if err != nil {
			return fmt.Errorf("parse duration for %s: %w", task.Name, err)
		}
		st := &taskState{name: task.Name, total: total}
		states[i] = st
		engine.AddBlock(task.Name, livescreen.WithState(*st), livescreen.WithRender(renderTask))
	}
	engine.AddBlock("__summary__", livescreen.WithRender(renderSummary(states)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	engine.PutChars([]byte(fmt.Sprintf("starting %d tasks...\n", len(states))))

	for {
		select {
		case <-sigCh:
			_ = engine.Flush()
			return engine.Stop()

		case <-ticker.C:
			allDone := true
			for _, st := range states {
				if !st.done {
					st.elapsed += interval
					if st.elapsed >= st.total {
						st.done = true
						engine.PutChars([]byte(fmt.Sprintf("%s finished\n", st.name)))
					}
					engine.Update(st.name, *st)
					allDone = false
				}
			}
			engine.Update("__summary__", nil)
			if allDone {
				_ = engine.Flush()
				return engine.Stop()
			}
		}
	}
}
