// Package main provides the born command, which inspects, verifies and
// converts .born checkpoint files.
package main

import (
	"context"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"k8s.io/klog/v2"
)

func newApp(stdout io.Writer) *cli.Command {
	s := &settings{}
	return &cli.Command{
		Name:   "born",
		Usage:  "Inspect and convert Born checkpoint files",
		Writer: stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "path to config.yaml",
				Value:       defaultConfigPath(),
				Destination: &s.configPath,
			},
			&cli.Int64Flag{
				Name:        "verbosity",
				Aliases:     []string{"v"},
				Usage:       "log verbosity (klog -v)",
				Destination: &s.verbosity,
			},
			&cli.StringFlag{
				Name:        "validation",
				Usage:       "header validation level (strict, normal, none)",
				Value:       "strict",
				Destination: &s.validation,
			},
			&cli.BoolFlag{
				Name:        "skip-checksum",
				Usage:       "do not verify the SHA-256 checksum",
				Destination: &s.skipChecksum,
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := loadConfig(s.configPath, cmd.IsSet("config"))
			if err != nil {
				return ctx, err
			}
			applyConfig(cmd, cfg, s)
			return ctx, setVerbosity(s.verbosity)
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			inspectCmd(s),
			verifyCmd(s),
			exportCmd(s),
			versionCmd(),
		},
	}
}

func main() {
	defer klog.Flush()
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		klog.Errorf("%v", err)
		klog.Flush()
		os.Exit(1)
	}
}
