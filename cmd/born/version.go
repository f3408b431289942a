package main

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/born-ml/ckpt/internal/serialization"
	"github.com/urfave/cli/v3"
)

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			w := cmd.Root().Writer
			_, _ = fmt.Fprintf(w, "version:        %s\n", serialization.LibraryVersion)
			_, _ = fmt.Fprintf(w, "format version: %d\n", serialization.FormatVersion)
			if info, ok := debug.ReadBuildInfo(); ok {
				for _, setting := range info.Settings {
					if setting.Key == "vcs.revision" {
						_, _ = fmt.Fprintf(w, "commit:         %s\n", setting.Value)
					}
				}
			}
			return nil
		},
	}
}
