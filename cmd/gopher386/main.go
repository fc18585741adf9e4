// Command gopher386 runs the i386 memory bring-up on a modelled machine and
// inspects the result.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"os"

	"gopher386/config"
	"gopher386/kernel/driver/tty"
	"gopher386/kernel/driver/video/console"
	"gopher386/kernel/kfmt"
	"gopher386/kernel/klog"

	"github.com/google/subcommands"
	"github.com/phuslu/log"
	"github.com/pkg/errors"
)

var (
	configPath = flag.String("config", "", "path to a TOML machine description; the reference machine is used if empty.")
	logLevel   = flag.String("log-level", "info", "minimum level of console log lines: debug, info, warn or error.")
	screen     = flag.Bool("screen", false, "render console output on an emulated 80x25 VGA text screen and print the screen on exit.")
)

// environment is passed to every subcommand.
type environment struct {
	cfg    *config.Machine
	logger *log.Logger

	// out receives command results; log lines go to the kernel console.
	out io.Writer
}

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(bootCmd), "")
	subcommands.Register(new(translateCmd), "")
	subcommands.Register(new(framesCmd), "")
	subcommands.Register(new(dumpCmd), "")

	flag.Parse()

	stdout := bufio.NewWriter(os.Stdout)
	status := run(stdout)
	stdout.Flush()
	os.Exit(int(status))
}

func run(stdout *bufio.Writer) subcommands.ExitStatus {
	var vga *console.Ega
	if *screen {
		vga = console.NewEga(console.TextWidth, console.TextHeight)
		var vt tty.Vt
		vt.AttachTo(vga)
		kfmt.SetOutputSink(kfmt.PutcWriter{Putc: vt.Putc})
	} else {
		kfmt.SetOutputSink(kfmt.PutcWriter{Putc: func(ch byte) { _ = stdout.WriteByte(ch) }})
	}

	logger := klog.New("mm", *logLevel)
	cfg, err := loadMachine(*configPath)
	if err != nil {
		logger.Error().Err(err).Msg("cannot load machine description")
		return subcommands.ExitFailure
	}

	env := &environment{cfg: cfg, logger: logger, out: stdout}
	status := subcommands.Execute(context.Background(), env)

	if vga != nil {
		for _, line := range vga.Lines() {
			_, _ = stdout.WriteString(line + "\n")
		}
	}
	return status
}

func loadMachine(path string) (*config.Machine, error) {
	if path == "" {
		return config.Default(), nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "loading machine description")
	}
	return cfg, nil
}
