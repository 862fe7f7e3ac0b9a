package main

import (
	"fmt"
	"strconv"
	"time"

	"scene-index/internal/lookup"

	"github.com/spf13/cobra"
)

type lookupResult struct {
	Project string `json:"project"`
	Scene   string `json:"scene"`
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
}

func newLookupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <project> <scene>...",
		Short: "Print the video chosen for one or more scenes",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			project := args[0]
			if len(args) > 2 {
				return ctx.withService(cmd.Context(), func(svc *lookup.Service) error {
					return printSceneVideos(cmd, ctx.opts.json, project, svc.FindSceneVideos(cmd.Context(), project, args[1:]))
				})
			}
			target := args[1]
			return ctx.withService(cmd.Context(), func(svc *lookup.Service) error {
				path, ok, err := svc.FindSceneVideo(cmd.Context(), target, project)
				if err != nil {
					return err
				}
				if ctx.opts.json {
					if err := writeJSON(cmd, lookupResult{Project: project, Scene: target, Found: ok, Path: path}); err != nil {
						return err
					}
				} else if ok {
					fmt.Fprintln(cmd.OutOrStdout(), path)
				}
				if !ok {
					return fmt.Errorf("no video for scene %s in project %s", target, project)
				}
				return nil
			})
		},
	}
}

// printSceneVideos writes batch results and fails when any scene has no video.
func printSceneVideos(cmd *cobra.Command, asJSON bool, project string, results []lookup.SceneVideo) error {
	missing := 0
	rows := make([][]string, 0, len(results))
	out := make([]lookupResult, 0, len(results))
	for _, r := range results {
		if !r.Found {
			missing++
		}
		path := r.Path
		if r.Error != "" {
			path = r.Error
		}
		rows = append(rows, []string{r.Scene, path})
		out = append(out, lookupResult{Project: project, Scene: r.Scene, Found: r.Found, Path: r.Path})
	}

	if asJSON {
		if err := writeJSON(cmd, out); err != nil {
			return err
		}
	} else {
		writeTable(cmd.OutOrStdout(), []string{"Scene", "Video"}, rows, nil)
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d scenes in project %s have no video", missing, len(results), project)
	}
	return nil
}

func newVideosCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "videos <project>",
		Short: "List one video per scene in scene order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd.Context(), func(svc *lookup.Service) error {
				videos, err := svc.GetAllSceneVideos(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.opts.json {
					if videos == nil {
						videos = []string{}
					}
					return writeJSON(cmd, videos)
				}
				if len(videos) == 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "No videos in project %s\n", args[0])
					return nil
				}
				rows := make([][]string, len(videos))
				for i, v := range videos {
					rows[i] = []string{v}
				}
				writeTable(cmd.OutOrStdout(), []string{"Video"}, rows, nil)
				return nil
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <project>",
		Short: "Show the media of every scene of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd.Context(), func(svc *lookup.Service) error {
				status, err := svc.GetSceneStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.opts.json {
					return writeJSON(cmd, status)
				}

				rows := make([][]string, 0, len(status.Scenes))
				for _, s := range status.Scenes {
					rows = append(rows, []string{
						s.SceneID,
						strconv.Itoa(len(s.Videos)),
						strconv.Itoa(len(s.Audio)),
						strconv.Itoa(len(s.Images)),
						yesNo(s.ReadyForEditing),
					})
				}
				writeTable(cmd.OutOrStdout(),
					[]string{"Scene", "Videos", "Audio", "Images", "Ready"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft})
				fmt.Fprintf(cmd.ErrOrStderr(), "%d scenes, %d with video, %d files\n",
					status.TotalScenes, status.ScenesWithVideo, status.TotalFiles)
				return nil
			})
		},
	}
}

func newRebuildCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rebuild <project>",
		Short: "Rebuild the index of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project := args[0]
			return ctx.withService(cmd.Context(), func(svc *lookup.Service) error {
				start := time.Now()
				if !svc.UpdateSceneIndex(cmd.Context(), project, force) {
					return fmt.Errorf("rebuild of project %s failed", project)
				}
				if ctx.opts.json {
					return writeJSON(cmd, map[string]any{"success": true, "project": project})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt %s in %v\n", project, time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Rebuild even if the index was built recently")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache and index counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd.Context(), func(svc *lookup.Service) error {
				stats := svc.GetPerformanceStats(cmd.Context())
				if ctx.opts.json {
					return writeJSON(cmd, stats)
				}
				rows := [][]string{
					{"health", stats.Health},
					{"cache backend", stats.CacheBackend},
					{"lookups", strconv.FormatInt(stats.Lookups, 10)},
					{"cache hits", strconv.FormatInt(stats.CacheHits, 10)},
					{"cache misses", strconv.FormatInt(stats.CacheMisses, 10)},
					{"cache hit rate", fmt.Sprintf("%.1f%%", stats.CacheHitRate)},
					{"errors", strconv.FormatInt(stats.Errors, 10)},
					{"rebuilds", strconv.FormatInt(stats.Rebuilds, 10)},
					{"watcher", stats.WatcherStatus},
				}
				writeTable(cmd.OutOrStdout(), []string{"Counter", "Value"}, rows,
					[]columnAlignment{alignLeft, alignRight})
				return nil
			})
		},
	}
}
