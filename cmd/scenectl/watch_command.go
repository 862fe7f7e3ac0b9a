package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"scene-index/internal/logging"
	"scene-index/internal/watcher"

	"github.com/spf13/cobra"
)

var errWatcherNotActive = errors.New("change watcher is not active")

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "watch <project>",
		Short: "Print scene invalidations as files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project := args[0]
			out := cmd.OutOrStdout()
			printer := &batchPrinter{out: out, json: ctx.opts.json}

			svc, err := ctx.openService(cmd.Context(), serviceOptions{
				watchProjects: []string{project},
				onBatch:       printer.print,
			})
			if err != nil {
				return err
			}
			defer func() {
				if cerr := svc.Close(); cerr != nil {
					logging.Warn("scenectl: close: %v", cerr)
				}
			}()

			if err := svc.Start(cmd.Context()); err != nil {
				return err
			}
			if status := svc.WatcherStatus(); status != watcher.StatusActive {
				return fmt.Errorf("%w: %s", errWatcherNotActive, status)
			}
			if len(svc.WatchedProjects()) == 0 {
				return fmt.Errorf("project %s cannot be watched", project)
			}

			runCtx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(runCtx, duration)
				defer cancel()
			}
			if !ctx.opts.json {
				fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl+C to stop)\n", project)
			}

			<-runCtx.Done()
			return nil
		},
	}
	cmd.Flags().DurationVar(&duration, "for", 0, "Stop after this long (default: until interrupted)")
	return cmd
}

// batchPrinter writes applied watcher batches, one line per event.
type batchPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	json bool
}

func (p *batchPrinter) print(batch watcher.Batch) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ev := range batch.Events {
		if p.json {
			line, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintln(p.out, string(line))
			continue
		}
		fmt.Fprintf(p.out, "%s\t%s\t%s\tscene %s\t%s\n",
			ev.Timestamp.Format("15:04:05.000"), ev.Kind, ev.ProjectID, ev.SceneID, ev.FilePath)
	}
}
