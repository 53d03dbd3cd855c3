// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DataDog/datadog-retroflect/config"
	"github.com/DataDog/datadog-retroflect/divert"
	"github.com/DataDog/datadog-retroflect/log"
	"github.com/DataDog/datadog-retroflect/reflector"
	"github.com/DataDog/datadog-retroflect/replay"
	"github.com/DataDog/datadog-retroflect/windivert"
)

const defaultLogLevel = "warn"

var errReplayPartition = errors.New("--partition cannot be used with --replay")

// pflag reports a negative number as a bundle of unknown shorthands.
var unknownShorthand = regexp.MustCompile(`^unknown shorthand flag: \S+ in (-\S+)$`)

type args struct {
	priority   int
	verbose    bool
	logLevel   string
	logFile    string
	configFile string
	partition  bool
	replay     string
	replayOut  string
}

// NewRootCommand returns the retroflect command with its subcommands.
func NewRootCommand() *cobra.Command {
	var a args
	rootCmd := &cobra.Command{
		Use:   "retroflect [reflect_address_or_shield_port]...",
		Short: "Reflect outbound packets back to the local host",
		Long: `retroflect makes the local host believe it is talking to remote hosts.

Each argument is an IPv4 address, an IPv6 address or a port number. Outbound
TCP and UDP packets to a reflect address come back as inbound packets from that
address. Inbound TCP and UDP packets to a shield port are dropped.

Arguments after -- are never read as flags.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, positional []string) error {
			return run(cmd, &a, positional)
		},
	}

	rootCmd.Flags().IntVarP(&a.priority, "priority", "p", config.DefaultPriority,
		fmt.Sprintf("WinDivert handle priority, between %d (highest) and %d (lowest)", config.MinPriority, config.MaxPriority))
	rootCmd.Flags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().StringVar(&a.logLevel, "log-level", defaultLogLevel, "Log level (error, warn, info, debug, trace)")
	rootCmd.Flags().StringVar(&a.logFile, "log-file", "", "Write logs to a rotating file instead of stderr")
	rootCmd.Flags().StringVarP(&a.configFile, "config", "c", "", "YAML configuration file")
	rootCmd.Flags().BoolVar(&a.partition, "partition", false, "Run one session for IPv4 and one for IPv6 reflect addresses")
	rootCmd.Flags().StringVar(&a.replay, "replay", "", "Replay a pcap capture instead of diverting live traffic")
	rootCmd.Flags().StringVar(&a.replayOut, "replay-out", "", "Write packets injected during --replay to this pcap file")

	rootCmd.SetFlagErrorFunc(flagError)
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), errorMessage(err))
		os.Exit(1)
	}
}

// flagError reports a numeric argument mistaken for flags the same way as
// any other argument that is neither an address nor a port.
func flagError(_ *cobra.Command, err error) error {
	m := unknownShorthand.FindStringSubmatch(err.Error())
	if m == nil {
		return err
	}
	if _, convErr := strconv.Atoi(m[1]); convErr != nil {
		return err
	}
	if _, argErr := config.ParseArgs([]string{m[1]}); argErr != nil {
		return argErr
	}
	return err
}

// errorMessage adds a hint for errors the user can fix by elevating.
func errorMessage(err error) string {
	if reflector.ClassifyError(err).Code == reflector.ErrCodeDenied {
		return fmt.Sprintf("%s\nare you running retroflect with Administrator privileges?", err)
	}
	return err.Error()
}

func run(cmd *cobra.Command, a *args, positional []string) error {
	var file *config.File
	if a.configFile != "" {
		var err error
		if file, err = config.Load(a.configFile); err != nil {
			return err
		}
	}

	if len(positional) == 0 && file == nil {
		fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
		return nil
	}

	targets, err := config.ParseArgs(positional)
	if err != nil {
		return err
	}
	if file != nil {
		applyFile(cmd, a, file)
		fileTargets, err := file.Targets()
		if err != nil {
			return err
		}
		targets = targets.Merge(fileTargets)
	}
	if err := targets.Validate(); err != nil {
		return err
	}
	if err := config.ValidatePriority(a.priority); err != nil {
		return err
	}
	if a.replay != "" && a.partition {
		return errReplayPartition
	}

	closeLog, err := setupLogging(a)
	if err != nil {
		return err
	}
	defer closeLog()

	out := cmd.OutOrStdout()
	printTargets(out, targets)

	open, err := opener(a, targets)
	if err != nil {
		return err
	}
	var once sync.Once
	announce := func(params divert.OpenParams) (divert.Session, error) {
		s, err := open(params)
		if err == nil {
			once.Do(func() { fmt.Fprintln(out, "Reflection in progress...") })
		}
		return s, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return reflector.RunAll(ctx, announce, reflector.Partitions(targets, a.partition),
		reflector.Params{Priority: int16(a.priority)})
}

// applyFile fills in the settings not given on the command line.
func applyFile(cmd *cobra.Command, a *args, f *config.File) {
	flags := cmd.Flags()
	if !flags.Changed("priority") {
		a.priority = f.Priority
	}
	if !flags.Changed("log-level") && f.LogLevel != "" {
		a.logLevel = f.LogLevel
	}
	if !flags.Changed("log-file") {
		a.logFile = f.LogFile
	}
	if !flags.Changed("partition") {
		a.partition = f.Partition
	}
}

func setupLogging(a *args) (func(), error) {
	level, err := log.ParseLogLevel(a.logLevel)
	if err != nil {
		return nil, err
	}
	if a.verbose && level < log.LevelDebug {
		level = log.LevelDebug
	}
	log.SetVerbose(true)
	log.SetLogLevel(level)

	if a.logFile == "" {
		return func() {}, nil
	}
	w, err := log.NewFileWriter(log.FileOptions{
		Path:       a.logFile,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	})
	if err != nil {
		return nil, err
	}
	log.SetOutput(w)
	return func() {
		log.SetOutput(os.Stderr)
		_ = w.Close()
	}, nil
}

func opener(a *args, targets config.Targets) (divert.Opener, error) {
	if a.replay != "" {
		return replay.Opener(a.replay, a.replayOut, targets), nil
	}
	if err := windivert.Load(); err != nil {
		return nil, &divert.EngineError{Op: "loading WinDivert", Err: err}
	}
	return windivert.Open, nil
}

func printTargets(w io.Writer, t config.Targets) {
	fmt.Fprintln(w, "Reflect IP addresses:")
	for _, addr := range t.Reflect.All() {
		fmt.Fprintf(w, "  %s\n", addr)
	}
	fmt.Fprintln(w, "Shield Ports:")
	if len(t.Shield) == 0 {
		fmt.Fprintln(w, "  None")
	}
	for _, port := range t.Shield {
		fmt.Fprintf(w, "  %d\n", port)
	}
}
