package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	ctx := newCommandContext(opts)

	rootCmd := &cobra.Command{
		Use:           "scenectl",
		Short:         "Query and maintain the scene index of a media root",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx.applyLogLevel()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.root, "root", "", "Media root holding one directory per project (default MEDIA_ROOT)")
	flags.StringVar(&opts.cacheBackend, "cache", "", "Cache backend: memory, bolt or redis (default CACHE_BACKEND)")
	flags.StringVar(&opts.cacheAddr, "cache-addr", "", "bbolt file path or redis URL (default CACHE_ADDR)")
	flags.BoolVar(&opts.json, "json", false, "Write JSON instead of tables")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newLookupCommand(ctx))
	rootCmd.AddCommand(newVideosCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newRebuildCommand(ctx))
	rootCmd.AddCommand(newStatsCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))

	return rootCmd
}
