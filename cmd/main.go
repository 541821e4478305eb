package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"syscall"

	"github.com/brettbedarf/webvfs/config"
	"github.com/brettbedarf/webvfs/filesystem"
	"github.com/brettbedarf/webvfs/internal/util"
	"github.com/brettbedarf/webvfs/seed"
	"github.com/brettbedarf/webvfs/server"
	"github.com/brettbedarf/webvfs/storage"
)

func main() {
	// Parse command line arguments
	var (
		configPath string
		verbose    int
		backend    string
		grant      string
		perm       string
		replace    bool
		in         string
		umount     bool
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	flag.StringVar(&configPath, "c", "", "--config (shorthand)")
	flag.IntVar(&verbose, "verbose", 3, "Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	flag.IntVar(&verbose, "v", 3, "--verbose (shorthand)")
	flag.StringVar(&backend, "backend", "", "Storage backend: bolt, local, private, handle, object")
	flag.StringVar(&backend, "b", "", "--backend (shorthand)")
	flag.StringVar(&grant, "grant", "", "File to grant the handle backend")
	flag.StringVar(&perm, "perm", "user", "Permission for mkdir/mv: user, elevated, system or 0..2")
	flag.BoolVar(&replace, "replace", false, "merge: replace matching keys")
	flag.StringVar(&in, "in", "", "write/update: read content from file")
	flag.BoolVar(&umount, "umount", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	flag.BoolVar(&umount, "u", false, "--umount (shorthand)")
	flag.Usage = usage
	flag.Parse()

	logLvl := util.LevelFromVerbose(verbose)
	util.InitializeLogger(logLvl)
	logger := util.GetLogger("main")

	cfg := config.NewDefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.NewConfigFromFile(configPath); err != nil {
			logger.Fatal().Err(err).Str("config", configPath).Msg("Failed to load config")
		}
	}
	override := &config.ConfigOverride{}
	if flagSet("verbose", "v") {
		override.LogLvl = &verbose
	}
	if backend != "" {
		override.Backend = &backend
	}
	if grant != "" {
		override.HandlePath = &grant
	}
	cfg.Merge(override)
	// config file may have changed the level
	util.InitializeLogger(cfg.LogLvl)

	permission, err := parsePermission(perm)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid -perm")
	}

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	name, args := flag.Arg(0), flag.Args()[1:]

	storage.RegisterBuiltins()
	seed.RegisterBuiltins()
	store, err := storage.Open(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Backend).Msg("Failed to open backend")
	}

	vfs := filesystem.New(cfg, store, storage.WithErrorHandler(func(op string, err error) {
		logger.Warn().Err(err).Str("op", op).Str("backend", cfg.Backend).Msg("Backend operation failed")
	}))

	ctx := context.Background()
	if err := vfs.Initialize(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize file system")
	}
	logger.Debug().Str("backend", cfg.Backend).Str("command", name).Msg("WebVFS initialized")

	if name == "mount" {
		err = mount(cfg, vfs, args, umount)
	} else {
		err = runCommand(ctx, vfs, name, args, &commandOpts{
			perm:    permission,
			replace: replace,
			in:      in,
			stdin:   os.Stdin,
			out:     os.Stdout,
		})
	}

	if cerr := vfs.Close(ctx); cerr != nil {
		logger.Error().Err(cerr).Msg("Failed to persist file system")
	}
	if errors.Is(err, errFalse) {
		os.Exit(1)
	}
	if err != nil {
		logger.Error().Err(err).Str("command", name).Msg("Command failed")
		os.Exit(1)
	}
}

func mount(cfg *config.Config, vfs *filesystem.FileSystem, args []string, umount bool) error {
	logger := util.GetLogger("main")
	if len(args) == 0 {
		return fmt.Errorf("usage: mount <mountpoint>")
	}
	mnt := args[0]

	// Try unmount if requested
	if umount {
		cmd := exec.Command("fusermount", "-u", mnt)
		// we ignore error here if not already mounted
		cmd.Run() // nolint:errcheck
	}

	srv := server.New(cfg, vfs)
	if err := srv.Serve(mnt); err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	logger.Info().Str("mountpoint", mnt).Msg("Filesystem mounted successfully")

	sig := <-signalChan
	logger.Info().Str("signal", sig.String()).Msg("Received signal, unmounting filesystem")

	if err := srv.Unmount(); err != nil {
		return err
	}
	logger.Info().Msg("Filesystem unmounted successfully")
	return nil
}

// flagSet reports whether any of the named flags was given on the command line
func flagSet(names ...string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		for _, n := range names {
			if f.Name == n {
				set = true
			}
		}
	})
	return set
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] <command> [args]\n\nCommands:\n", os.Args[0])
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", commands[name].usage)
	}
	fmt.Fprintf(out, "  mount <mountpoint>\n\nFlags:\n")
	flag.PrintDefaults()
}
