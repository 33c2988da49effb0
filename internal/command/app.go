// Package command implements the kvcache command line interface.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/leonardcser/kvcache/internal/cache"
	"github.com/leonardcser/kvcache/internal/config"
	"github.com/leonardcser/kvcache/internal/engine"
	"github.com/leonardcser/kvcache/internal/logger"
	"github.com/leonardcser/kvcache/internal/tools"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitInit    = 1
	ExitCommand = 2
	ExitMiss    = 3
)

// ErrMiss is returned by "has" when the key holds no fresh value.
var ErrMiss = errors.New("key not found")

// initError marks failures that happen before a command touches the cache.
type initError struct{ err error }

func (e *initError) Error() string { return e.err.Error() }
func (e *initError) Unwrap() error { return e.err }

// ExitCode maps an error returned by the app to a process exit code.
func ExitCode(err error) int {
	var ie *initError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrMiss):
		return ExitMiss
	case errors.As(err, &ie):
		return ExitInit
	default:
		return ExitCommand
	}
}

// InitApp builds the root command. Output goes to out.
func InitApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "kvcache",
		Usage:  "inspect and modify a kvcache store",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				Sources: cli.NewValueSourceChain(cli.EnvVar("KVCACHE_CONFIG")),
			},
			&cli.StringFlag{
				Name:    "engine",
				Aliases: []string{"e"},
				Usage:   "cache engine: file, memory or bolt. Overrides the config",
			},
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "cache directory; the bolt database defaults to <dir>.bbolt. Overrides the config",
			},
		},
		// Exit codes are mapped by ExitCode; never let cli call os.Exit.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "print the value stored under KEY as JSON",
				ArgsUsage: "KEY",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "default", Usage: "JSON value printed on a miss"},
				},
				Action: GetAction,
			},
			{
				Name:      "set",
				Usage:     "store VALUE under KEY. VALUE is parsed as JSON, else kept as a string",
				ArgsUsage: "KEY VALUE",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "ttl", Aliases: []string{"t"}, Usage: "time to live, e.g. 90s. 0 uses the default TTL, a negative value is already expired"},
				},
				Action: SetAction,
			},
			{
				Name:      "delete",
				Usage:     "delete one or more keys",
				ArgsUsage: "KEY...",
				Action:    DeleteAction,
			},
			{
				Name:      "has",
				Usage:     "report whether KEY holds a fresh value. Exits 3 on a miss",
				ArgsUsage: "KEY",
				Action:    HasAction,
			},
			{
				Name:   "clear",
				Usage:  "remove every entry",
				Action: ClearAction,
			},
		},
	}
}

// GetAction prints the value of the key as JSON.
func GetAction(ctx context.Context, cmd *cli.Command) error {
	key, err := exactArgs(cmd, 1)
	if err != nil {
		return err
	}
	var def any
	if raw := cmd.String("default"); raw != "" {
		def = tools.ParseValue(raw)
	}
	return withCache(cmd, func(c cache.Cache[any]) error {
		v, err := c.Get(key[0], def)
		if err != nil {
			return err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode value: %w", err)
		}
		_, err = fmt.Fprintln(cmd.Root().Writer, string(b))
		return err
	})
}

// SetAction stores a value.
func SetAction(ctx context.Context, cmd *cli.Command) error {
	args, err := exactArgs(cmd, 2)
	if err != nil {
		return err
	}
	return withCache(cmd, func(c cache.Cache[any]) error {
		ok, err := c.Set(args[0], tools.ParseValue(args[1]), cmd.Duration("ttl"))
		return result(ok, err, "set")
	})
}

// DeleteAction deletes every key given, stopping at the first failure.
func DeleteAction(ctx context.Context, cmd *cli.Command) error {
	keys := cmd.Args().Slice()
	if len(keys) == 0 {
		return fmt.Errorf("delete: at least one KEY is required")
	}
	return withCache(cmd, func(c cache.Cache[any]) error {
		ok, err := c.DeleteMultiple(keys)
		return result(ok, err, "delete")
	})
}

// HasAction prints whether the key holds a fresh value.
func HasAction(ctx context.Context, cmd *cli.Command) error {
	key, err := exactArgs(cmd, 1)
	if err != nil {
		return err
	}
	return withCache(cmd, func(c cache.Cache[any]) error {
		ok, err := c.Has(key[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.Root().Writer, ok)
		if !ok {
			return ErrMiss
		}
		return nil
	})
}

// ClearAction removes every entry.
func ClearAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 0 {
		return fmt.Errorf("clear: takes no arguments")
	}
	return withCache(cmd, func(c cache.Cache[any]) error {
		return result(c.Clear(), nil, "clear")
	})
}

// Load resolves the configuration for cmd: the config file (or environment)
// first, then the --engine and --dir flags.
func Load(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if cmd.IsSet("dir") {
		cfg.Dir = cmd.String("dir")
		cfg.Bolt.Path = config.BoltPathFor(cfg.Dir)
	}
	if cmd.IsSet("engine") {
		switch e := cmd.String("engine"); e {
		case config.EngineFile, config.EngineMemory, config.EngineBolt:
			cfg.Engine = e
		default:
			return nil, fmt.Errorf("unknown engine %q", e)
		}
	}
	return cfg, nil
}

func withCache(cmd *cli.Command, fn func(cache.Cache[any]) error) error {
	cfg, err := Load(cmd)
	if err != nil {
		return &initError{err}
	}
	if cfg.Logging.Path != "" {
		if err := logger.Init(cfg.Logging.Path, cfg.Logging.Level, logger.Rotation{
			MaxSize:    cfg.Logging.MaxSize,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAge,
			Compress:   cfg.Logging.Compress,
		}); err != nil {
			return &initError{fmt.Errorf("failed to initialize logger: %w", err)}
		}
		defer logger.Close()
	}

	eng, err := engine.Open(cfg, logger.L(), nil)
	if err != nil {
		return &initError{err}
	}
	defer eng.Close()

	logger.Debugf("Executing %s on engine %s", cmd.Name, eng.Name)
	return fn(eng.Cache)
}

func exactArgs(cmd *cli.Command, n int) ([]string, error) {
	if cmd.Args().Len() != n {
		return nil, fmt.Errorf("%s: expected %d argument(s), got %d", cmd.Name, n, cmd.Args().Len())
	}
	return cmd.Args().Slice(), nil
}

func result(ok bool, err error, op string) error {
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s failed", op)
	}
	return nil
}
