package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/filesystem"
	"github.com/dustin/go-humanize"
)

// errFalse makes `exists` exit non-zero without logging an error
var errFalse = errors.New("false")

type commandOpts struct {
	perm    webvfs.Permission // mkdir, mv
	replace bool              // merge
	in      string            // write, update: read content from this file
	stdin   io.Reader
	out     io.Writer
}

type command struct {
	usage   string
	minArgs int
	run     func(ctx context.Context, vfs *filesystem.FileSystem, args []string, opts *commandOpts) error
}

var commands = map[string]command{
	"ls": {"ls <path>", 1, func(ctx context.Context, vfs *filesystem.FileSystem, args []string, opts *commandOpts) error {
		children, err := vfs.ReadDir(args[0])
		if err != nil {
			return err
		}
		names := make([]string, 0, len(children))
		for name := range children {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			n := children[name]
			contentType, size := "", ""
			if f, ok := n.(*webvfs.File); ok {
				contentType = f.ContentType
				size = humanize.Bytes(uint64(len(f.Content.Bytes())))
			}
			fmt.Fprintf(opts.out, "%s\t%s\t%s\t%s\t%s\n", n.Kind(), n.Meta().Permission, name, contentType, size)
		}
		return nil
	}},
	"cat": {"cat <path> <name>", 2, func(ctx context.Context, vfs *filesystem.FileSystem, args []string, opts *commandOpts) error {
		f, err := vfs.ReadFile(args[0], args[1])
		if err != nil {
			return err
		}
		_, err = opts.out.Write(f.Content.Bytes())
		return err
	}},
	"exists": {"exists <path> <name>", 2, func(ctx context.Context, vfs *filesystem.FileSystem, args []string, opts *commandOpts) error {
		ok := vfs.Exists(args[0], args[1])
		fmt.Fprintln(opts.out, ok)
		if !ok {
			return errFalse
		}
		return nil
	}},
	"write": {"write <path> <name> <contentType> [content]", 3, func(ctx context.Context, vfs *filesystem.FileSystem, args []string, opts *commandOpts) error {
		content, err := readContent(args[2], args[3:], opts)
		if err != nil {
			return err
		}
		return vfs.WriteFile(args[0], args[1], content, args[2])
	}},
	"mkdir": {"mkdir <path> <name>", 2, func(ctx context.Context, vfs *filesystem.FileSystem, args []string, opts *commandOpts) error {
		return vfs.WriteDirectory(args[0], args[1], opts.perm)
	}},
	"rm": {"rm <path> <name>", 2, func(ctx context.Context, vfs *filesystem.FileSystem, args []string, opts *commandOpts) error {
		return vfs.DeleteFile(args[0], args[1])
	}},
	"update": {"update <path> <name> <contentType> <newName|-> [content]", 4, func(ctx context.Context, vfs *filesystem.FileSystem, args []string, opts *commandOpts) error {
		content, err := readContent(args[2], args[4:], opts)
		if err != nil {
			return err
		}
		newName := args[3]
		if newName == "-" {
			newName = ""
		}
		return vfs.UpdateFile(args[0], args[1], content, args[2], newName)
	}},
	"mv": {"mv <src> <dst> <name> [newName]", 3, func(ctx context.Context, vfs *filesystem.FileSystem, args []string, opts *commandOpts) error {
		newName := ""
		if len(args) > 3 {
			newName = args[3]
		}
		return vfs.Move(args[0], args[1], args[2], newName, opts.perm)
	}},
	"merge": {"merge <target> <source>", 2, func(ctx context.Context, vfs *filesystem.FileSystem, args []string, opts *commandOpts) error {
		return vfs.UpdateSpecificDirectory(args[0], args[1], opts.replace)
	}},
	"reset": {"reset", 0, func(ctx context.Context, vfs *filesystem.FileSystem, args []string, opts *commandOpts) error {
		ok, err := vfs.Reset(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(opts.out, ok)
		return nil
	}},
}

// runCommand dispatches one facade command. mount is handled by main.
func runCommand(ctx context.Context, vfs *filesystem.FileSystem, name string, args []string, opts *commandOpts) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	if len(args) < cmd.minArgs {
		return fmt.Errorf("usage: %s", cmd.usage)
	}
	return cmd.run(ctx, vfs, args, opts)
}

// readContent takes content from the -in file, the trailing argument, or stdin
// in that order
func readContent(contentType string, rest []string, opts *commandOpts) (webvfs.Content, error) {
	var data []byte
	var err error
	switch {
	case opts.in != "":
		data, err = os.ReadFile(opts.in)
	case len(rest) > 0:
		data = []byte(rest[0])
	default:
		data, err = io.ReadAll(opts.stdin)
	}
	if err != nil {
		return webvfs.Content{}, fmt.Errorf("failed to read content: %w", err)
	}
	return webvfs.ContentFromBytes(contentType, data)
}

func parsePermission(s string) (webvfs.Permission, error) {
	switch s {
	case "user":
		return webvfs.User, nil
	case "elevated":
		return webvfs.Elevated, nil
	case "system":
		return webvfs.System, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid permission %q", s)
	}
	return webvfs.Permission(n), nil
}
