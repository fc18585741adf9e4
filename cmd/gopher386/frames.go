package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"gopher386/kernel/klog"

	units "github.com/docker/go-units"
	"github.com/google/subcommands"
)

// framesCmd implements subcommands.Command for the "frames" command.
type framesCmd struct {
	keep bool
}

// Name implements subcommands.Command.Name.
func (*framesCmd) Name() string {
	return "frames"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*framesCmd) Synopsis() string {
	return "allocate frames after bring-up and list them"
}

// Usage implements subcommands.Command.Usage.
func (*framesCmd) Usage() string {
	return `frames [flags] <count> - run the memory bring-up, allocate count frames and list their addresses in allocation order.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *framesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.keep, "keep", false, "do not release the frames before reporting the free count.")
}

// Execute implements subcommands.Command.Execute.
func (c *framesCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	env := args[0].(*environment)

	count, err := strconv.Atoi(f.Arg(0))
	if err != nil {
		env.logger.Error().Err(err).Msg("bad frame count")
		return subcommands.ExitUsageError
	}

	report, ok := boot(env)
	if !ok {
		return subcommands.ExitFailure
	}

	alloc := report.Allocator
	run, kerr := alloc.Allocate(count)
	if kerr != nil {
		env.logger.Error().Int("count", count).Int("free_frames", alloc.FreeCount()).Msg(kerr.Message)
		return subcommands.ExitFailure
	}

	size := frameSizeString(run.FrameSize())
	for i, addr := range run.Addresses() {
		fmt.Fprintf(env.out, "%3d %s %s\n", i, klog.Addr(addr), size)
	}

	if !c.keep {
		if kerr := alloc.Free(run); kerr != nil {
			env.logger.Error().Msg(kerr.Message)
			return subcommands.ExitFailure
		}
	}
	fmt.Fprintf(env.out, "free: %d\n", alloc.FreeCount())
	return subcommands.ExitSuccess
}

func frameSizeString(size uintptr) string {
	return units.BytesSize(float64(size))
}
