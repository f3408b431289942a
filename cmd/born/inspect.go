package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/born-ml/ckpt/internal/optim"
	"github.com/born-ml/ckpt/internal/serialization"
	"github.com/born-ml/ckpt/internal/tensor"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

var (
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
)

func newTable(headers ...string) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func inspectCmd(s *settings) *cli.Command {
	var tensorLimit int64

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the header, tensors and metadata of a .born file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "limit",
				Usage:       "maximum number of parameter tensors to list (0 = all)",
				Destination: &tensorLimit,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errors.New("inspect: expected exactly one FILE argument")
			}
			opts, err := s.readOptions()
			if err != nil {
				return err
			}
			r, err := serialization.OpenMapped(cmd.Args().First(), opts...)
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()
			return printInspect(cmd.Root().Writer, r, int(tensorLimit))
		},
	}
}

func printInspect(w io.Writer, r *serialization.MmapReader, limit int) error {
	h := r.Header()

	summary := newTable("Field", "Value").
		Row("ID", h.ID).
		Row("Format version", strconv.FormatUint(uint64(r.Version()), 10)).
		Row("Library version", h.LibraryVersion).
		Row("Created", h.CreatedAt.Format(time.RFC3339)).
		Row("Sections", sectionNames(r.Flags())).
		Row("File size", humanize.Bytes(uint64(r.Size()))). //nolint:gosec // G115: size of a mapped file
		Row("Checksum", fmt.Sprintf("%x", r.Checksum()))
	if h.Architecture != nil {
		summary.Row("Architecture", h.Architecture.Type)
	}
	_, _ = fmt.Fprintln(w, summary.String())

	if h.Params != nil {
		var total int64
		t := newTable("Name", "DType", "Shape", "Size")
		for i, meta := range h.Params.Tensors {
			total += meta.Size
			if limit > 0 && i >= limit {
				continue
			}
			t.Row(meta.Name, meta.DType, tensor.Shape(meta.Shape).String(), humanize.Bytes(uint64(meta.Size))) //nolint:gosec // G115: validated size
		}
		_, _ = fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Parameters: %s tensors, %s",
			humanize.Comma(int64(len(h.Params.Tensors))), humanize.Bytes(uint64(total))))) //nolint:gosec // G115: sum of validated sizes
		_, _ = fmt.Fprintln(w, t.String())
	}

	if o := h.OptimizerState; o != nil {
		t := newTable("Group", "Params", "LR", "Hyperparameters")
		for i, g := range o.ParamGroups {
			t.Row(strconv.Itoa(i), strconv.Itoa(len(g.Params)), strconv.FormatFloat(g.LR, 'g', -1, 64), groupHyperparameters(o.Kind, g))
		}
		var buffers int
		for _, st := range o.State {
			buffers += len(st.Buffers)
		}
		_, _ = fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Optimizer: %s, %d positions with state, %d buffers",
			o.Kind, len(o.State), buffers)))
		_, _ = fmt.Fprintln(w, t.String())
	}

	if len(h.Metadata) > 0 {
		var md map[string]json.RawMessage
		if err := json.Unmarshal(h.Metadata, &md); err != nil {
			return errors.Wrap(err, "malformed metadata")
		}
		t := newTable("Key", "Value")
		for _, k := range sortedStrings(md) {
			t.Row(k, string(md[k]))
		}
		_, _ = fmt.Fprintln(w, titleStyle.Render("Metadata"))
		_, _ = fmt.Fprintln(w, t.String())
	}
	return nil
}

func sectionNames(flags uint32) string {
	var names []string
	for _, f := range []struct {
		bit  uint32
		name string
	}{
		{serialization.FlagHasParams, "params"},
		{serialization.FlagHasOptimizer, "optimizer_state"},
		{serialization.FlagHasMetadata, "metadata"},
		{serialization.FlagHasArchitecture, "architecture"},
	} {
		if flags&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

func groupHyperparameters(kind string, g optim.ParamGroup) string {
	var parts []string
	switch kind {
	case optim.KindAdam:
		parts = append(parts, fmt.Sprintf("betas=(%g, %g)", g.Betas[0], g.Betas[1]), fmt.Sprintf("eps=%g", g.Eps))
	default:
		if g.Momentum != 0 {
			parts = append(parts, fmt.Sprintf("momentum=%g", g.Momentum))
		}
		if g.Dampening != 0 {
			parts = append(parts, fmt.Sprintf("dampening=%g", g.Dampening))
		}
		if g.Nesterov {
			parts = append(parts, "nesterov")
		}
	}
	if g.WeightDecay != 0 {
		parts = append(parts, fmt.Sprintf("weight_decay=%g", g.WeightDecay))
	}
	return strings.Join(parts, " ")
}

func sortedStrings[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
