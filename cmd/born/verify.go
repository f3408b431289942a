package main

import (
	"context"
	"fmt"

	"github.com/born-ml/ckpt/internal/serialization"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

func verifyCmd(s *settings) *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Fully decode one or more .born files, checking checksums and offsets",
		ArgsUsage: "FILE...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				return errors.New("verify: expected at least one FILE argument")
			}
			opts, err := s.readOptions()
			if err != nil {
				return err
			}
			w := cmd.Root().Writer
			var failed int
			for _, path := range cmd.Args().Slice() {
				b, err := serialization.ReadFile(path, opts...)
				if err != nil {
					failed++
					_, _ = fmt.Fprintf(w, "FAIL %s: %v\n", path, err)
					continue
				}
				var params, positions int
				if b.Params != nil {
					params = b.Params.Len()
				}
				if b.Optimizer != nil {
					positions = len(b.Optimizer.PerParam)
				}
				_, _ = fmt.Fprintf(w, "OK   %s: id=%s, %d params, %d optimizer entries, %d metadata keys\n",
					path, b.ID, params, positions, len(b.Metadata))
			}
			if failed > 0 {
				return errors.Errorf("%d of %d files failed verification", failed, cmd.NArg())
			}
			return nil
		},
	}
}
