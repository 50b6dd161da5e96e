package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/mukti/internal"
	"github.com/starford/mukti/internal/apperr"
	"github.com/starford/mukti/internal/redirect"
	"github.com/starford/mukti/internal/registry"
	"github.com/starford/mukti/internal/releaseservice"
	pkgconfig "github.com/starford/mukti/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// loadConfig reads the optional config file and applies every flag the
// user set on top of it.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}

	if cmd.IsSet("json") {
		cfg.Registry.Path = cmd.String("json")
	}
	if cmd.IsSet("log-level") {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
			return nil, fmt.Errorf("%w: --log-level: %v", apperr.ErrInvalidArgument, err)
		}
	}
	if cmd.IsSet("log-format") {
		cfg.App.LogFormat = cmd.String("log-format")
	}
	if cmd.IsSet("jobs") {
		cfg.Checksums.Jobs = int(cmd.Int("jobs"))
	}
	if cmd.IsSet("flavor") {
		cfg.Redirects.Flavor = cmd.String("flavor")
	}
	if cmd.IsSet("prefix") {
		cfg.Redirects.Prefix = cmd.String("prefix")
	}
	if cmd.IsSet("status") {
		cfg.Redirects.Status = int(cmd.Int("status"))
	}
	if cmd.IsSet("versioned") {
		cfg.Redirects.Versioned = cmd.Bool("versioned")
	}
	if cmd.IsSet("alias") {
		cfg.Redirects.Aliases = cmd.StringSlice("alias")
	}
	if cmd.IsSet("port") {
		cfg.HTTP.Port = int(cmd.Int("port"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	root := cmd.Root()
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithOutput(root.Writer, root.ErrWriter),
		internal.WithVersion(version),
	}, nil
}

func addRelease(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.AddRelease(ctx, releaseservice.AddReleaseRequest{
		Version:        cmd.String("version"),
		ReleaseURL:     cmd.String("release-url"),
		ArchivePrefix:  cmd.String("archive-prefix"),
		Archives:       cmd.StringSlice("archive"),
		Overwrite:      cmd.Bool("overwrite"),
		FetchChecksums: cmd.Bool("fetch-checksums"),
	}, opts...)
}

func outputDir(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("%w: expected exactly one OUTPUT_DIR argument, got %d", apperr.ErrInvalidArgument, cmd.Args().Len())
	}
	return cmd.Args().First(), nil
}

func generateRedirects(ctx context.Context, cmd *cli.Command) error {
	dir, err := outputDir(cmd)
	if err != nil {
		return err
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.GenerateRedirects(ctx, cmd.String("version"), dir, opts...)
}

func backfillChecksums(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.BackfillChecksums(ctx, opts...)
}

func yankRelease(ctx context.Context, cmd *cli.Command) error {
	v := cmd.String("version")
	if v == "" {
		return fmt.Errorf("%w: --version is required", apperr.ErrInvalidArgument)
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.YankRelease(ctx, v, opts...)
}

func show(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Show(ctx, opts...)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Serve(ctx, opts...)
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, opts...)
}

func watch(ctx context.Context, cmd *cli.Command) error {
	dir, err := outputDir(cmd)
	if err != nil {
		return err
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Watch(ctx, cmd.String("version"), dir, opts...)
}

// redirectFlags are shared by every command that resolves aliases. The
// generating commands also take --flavor and --version.
func redirectFlags(generating bool) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "prefix",
			Usage: "Path prefix for generated redirect sources",
			Value: redirect.DefaultPrefix,
		},
		&cli.IntFlag{
			Name:  "status",
			Usage: "HTTP status of generated redirects (301, 302, 307 or 308)",
			Value: redirect.DefaultStatus,
		},
		&cli.BoolFlag{
			Name:  "versioned",
			Usage: "Also emit /latest, per-range and per-version redirects",
		},
		&cli.StringSliceFlag{
			Name:  "alias",
			Usage: "Alias in the form NAME=TARGET:KIND (repeatable)",
		},
	}
	if !generating {
		return flags
	}
	return append(flags,
		&cli.StringFlag{
			Name:  "flavor",
			Usage: fmt.Sprintf("Redirect output flavor (%v)", redirect.Flavors()),
			Value: redirect.DefaultFlavor,
		},
		&cli.StringFlag{
			Name:  "version",
			Usage: "Release to resolve aliases against (default: most recent active release)",
		},
	)
}

func jobsFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "jobs",
		Usage: "Number of archives downloaded in parallel",
		Value: 4,
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "mukti-bin",
		Usage: "Maintain a release registry and generate download redirects from it",
		OnUsageError: func(_ context.Context, _ *cli.Command, err error, _ bool) error {
			return fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "json",
				Usage:       "Path to the releases registry",
				DefaultText: registry.DefaultPath,
				Sources:     cli.EnvVars("MUKTI_RELEASES_JSON"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an optional YAML config file",
				Sources: cli.EnvVars("MUKTI_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("MUKTI_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format (text or json)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "add-release",
				Usage:  "Add a release and its archives to the registry",
				Action: addRelease,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "version", Usage: "Semantic version of the release"},
					&cli.StringFlag{Name: "release-url", Usage: "URL of the release page"},
					&cli.StringFlag{Name: "archive-prefix", Usage: "Base URL shared by all archives"},
					&cli.StringSliceFlag{Name: "archive", Usage: "Archive in the form TARGET:KIND=FILENAME (repeatable)"},
					&cli.BoolFlag{Name: "overwrite", Usage: "Replace an existing release with the same version"},
					&cli.BoolFlag{Name: "fetch-checksums", Usage: "Download archives and record sha256 and blake2b digests"},
					jobsFlag(),
				},
			},
			{
				Name:      "generate-redirects",
				Usage:     "Write redirect rules for the aliases into OUTPUT_DIR",
				ArgsUsage: "OUTPUT_DIR",
				Action:    generateRedirects,
				Flags:     redirectFlags(true),
			},
			{
				Name:   "backfill-checksums",
				Usage:  "Download archives that have no digests yet and record them",
				Action: backfillChecksums,
				Flags:  []cli.Flag{jobsFlag()},
			},
			{
				Name:   "yank-release",
				Usage:  "Mark a release as withdrawn",
				Action: yankRelease,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "version", Usage: "Version to yank"},
				},
			},
			{
				Name:   "show",
				Usage:  "Print a summary of the registry",
				Action: show,
			},
			{
				Name:   "serve",
				Usage:  "Serve the registry API and preview the redirects over HTTP",
				Action: serve,
				Flags: append(redirectFlags(false), &cli.IntFlag{
					Name:    "port",
					Usage:   "HTTP port",
					Sources: cli.EnvVars("MUKTI_HTTP_PORT"),
				}),
			},
			{
				Name:   "mcp",
				Usage:  "Expose the registry to MCP clients over stdio",
				Action: serveMCP,
				Flags:  redirectFlags(false),
			},
			{
				Name:      "watch",
				Usage:     "Regenerate redirects into OUTPUT_DIR whenever the registry changes",
				ArgsUsage: "OUTPUT_DIR",
				Action:    watch,
				Flags:     redirectFlags(true),
			},
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("mukti-bin failed",
			slog.String("category", apperr.Category(err)),
			slog.String("error", err.Error()))
		os.Exit(apperr.ExitCode(err))
	}
}
