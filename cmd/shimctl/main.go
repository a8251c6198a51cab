// shimctl inspects how deno-shim would treat an invocation on this host.
//
//	shimctl explain [--path P] [--config F] -- <argv...>
//	shimctl caps [--helper P] [--json]
//	shimctl pin [--path P] [--runtime NAME]
//	shimctl version
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/VikingOwl91/smallweb-shim/internal/config"
	"github.com/VikingOwl91/smallweb-shim/internal/environ"
	"github.com/VikingOwl91/smallweb-shim/internal/sandbox"
	"github.com/VikingOwl91/smallweb-shim/internal/shim"
	"github.com/VikingOwl91/smallweb-shim/internal/supply"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const usage = `usage: shimctl <command> [flags]

commands:
  explain   show what deno-shim would do with an argument vector
  caps      report sandbox capabilities of this host
  pin       print the supply pin for the real runtime on PATH
  version   print version
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "shimctl: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	env, err := environ.Load()
	if err != nil {
		return err
	}

	switch args[0] {
	case "explain":
		return runExplain(args[1:], env, stdout, stderr)
	case "caps":
		return runCaps(args[1:], env, stdout, stderr)
	case "pin":
		return runPin(args[1:], env, stdout, stderr)
	case "version", "--version":
		fmt.Fprintf(stdout, "shimctl %s (%s, %s)\n", version, commit, date)
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return errUsage
	}
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("shimctl "+name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errUsage
		}
		return err
	}
	return nil
}

func loadSettings(path string, env *environ.Env) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadOptional(env.SettingsPath())
}

func runExplain(args []string, env *environ.Env, stdout, stderr io.Writer) error {
	fs := newFlagSet("explain", stderr)
	pathVar := fs.String("path", env.Path, "PATH value the invocation sees")
	configPath := fs.String("config", "", "settings file (default: $SMALLWEB_SHIM_CONFIG or ~/.config/smallweb-shim/config.yaml)")
	if err := parse(fs, args); err != nil {
		return err
	}

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintln(stderr, "explain: an argument vector is required after --")
		return errUsage
	}

	settings, err := loadSettings(*configPath, env)
	if err != nil {
		return err
	}

	e, err := shim.Explain(shim.Options{
		Args:     argv,
		Path:     *pathVar,
		Environ:  os.Environ(),
		Settings: settings,
	})
	if err != nil {
		return err
	}
	return e.WriteJSON(stdout)
}

func runCaps(args []string, env *environ.Env, stdout, stderr io.Writer) error {
	fs := newFlagSet("caps", stderr)
	helper := fs.String("helper", "", "bwrap path override (default: settings sandbox.helper, then PATH)")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parse(fs, args); err != nil {
		return err
	}

	if *helper == "" {
		if settings, err := loadSettings("", env); err == nil {
			*helper = settings.Sandbox.Helper
		}
	}

	caps := sandbox.DetectCapabilities(*helper)
	if *asJSON {
		data, err := json.MarshalIndent(caps, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling capabilities: %w", err)
		}
		fmt.Fprintf(stdout, "%s\n", data)
		return nil
	}

	helperPath := caps.Helper
	if helperPath == "" {
		helperPath = "(not found)"
	}
	fmt.Fprintf(stdout, "bwrap:          %s\n", helperPath)
	fmt.Fprintf(stdout, "user namespace: %t\n", caps.UserNamespace)
	fmt.Fprintf(stdout, "landlock:       %t (abi %d)\n", caps.Landlock, caps.LandlockABI)
	fmt.Fprintf(stdout, "kernel:         %s\n", caps.Kernel)
	fmt.Fprintf(stdout, "level:          %s\n", caps.EffectiveLevel())
	return nil
}

func runPin(args []string, env *environ.Env, stdout, stderr io.Writer) error {
	fs := newFlagSet("pin", stderr)
	pathVar := fs.String("path", env.Path, "PATH to resolve the runtime on")
	runtime := fs.String("runtime", config.DefaultRuntime, "runtime command name")
	if err := parse(fs, args); err != nil {
		return err
	}

	resolved, err := supply.ResolvePath(*runtime, *pathVar)
	if err != nil {
		return err
	}
	hash, err := supply.ComputeFileHash(resolved)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "supply:")
	fmt.Fprintf(stdout, "  hash: %q\n", hash)
	fmt.Fprintln(stdout, "  allowed_paths:")
	fmt.Fprintf(stdout, "    - %q\n", filepath.Dir(resolved))
	return nil
}
