package main

import (
	"context"
	"fmt"

	"github.com/born-ml/ckpt/internal/serialization"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

const formatSafeTensors = "safetensors"

func exportCmd(s *settings) *cli.Command {
	var to string

	return &cli.Command{
		Name:      "export",
		Usage:     "Convert the parameters of a .born file to another format",
		ArgsUsage: "FILE OUT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "to",
				Usage:       "output format (safetensors)",
				Value:       formatSafeTensors,
				Destination: &to,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 2 {
				return errors.New("export: expected FILE and OUT arguments")
			}
			if to != formatSafeTensors {
				return errors.Errorf("export: unsupported format %q", to)
			}
			opts, err := s.readOptions()
			if err != nil {
				return err
			}
			in, out := cmd.Args().Get(0), cmd.Args().Get(1)

			b, err := serialization.ReadFile(in, opts...)
			if err != nil {
				return err
			}
			if b.Params == nil {
				return errors.Errorf("export: %s has no parameters", in)
			}
			metadata := map[string]string{"format": "pt", "born_id": b.ID}
			if b.Architecture != nil {
				metadata["born_architecture"] = b.Architecture.Type
			}
			if err := serialization.ExportSafeTensors(out, b.Params, metadata); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.Root().Writer, "Exported %d tensors to %s\n", b.Params.Len(), out)
			return nil
		},
	}
}
