// Command placemark pages through a Placemark collection and prints every item
// as one JSON line.
//
//	placemark [flags] places|folders|folder-places|links
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/placemark-app/placemark-client/pkg/catalog"
	"github.com/placemark-app/placemark-client/pkg/client"
	"github.com/placemark-app/placemark-client/pkg/config"
	"github.com/placemark-app/placemark-client/pkg/logging"
	"github.com/placemark-app/placemark-client/pkg/metrics"
	"github.com/placemark-app/placemark-client/pkg/pagination"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// options are the parsed command line arguments.
type options struct {
	collection string
	filter     catalog.Filter
	pages      int
	envFile    string
}

func (o options) validate() error {
	switch o.collection {
	case "places", "folders", "links":
	case "folder-places":
		if o.filter.FolderID <= 0 {
			return fmt.Errorf("folder-places requires --folder")
		}
	default:
		return fmt.Errorf("unknown collection %q", o.collection)
	}

	if o.pages < 0 {
		return fmt.Errorf("--pages must be >= 0")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "placemark: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the command; action receives the validated options.
func newRootCmd(action func(cmd *cobra.Command, opts options) error) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "placemark [flags] places|folders|folder-places|links",
		Short:         "Page through a Placemark collection and print items as JSON lines",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.collection = args[0]
			if err := opts.validate(); err != nil {
				return err
			}
			return action(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&opts.filter.Categories, "category", nil, "category filter (repeatable)")
	flags.StringArrayVar(&opts.filter.Regions, "region", nil, "region filter (repeatable)")
	flags.Int64Var(&opts.filter.FolderID, "folder", 0, "folder ID for folder-places")
	flags.IntVar(&opts.pages, "pages", 0, "maximum number of pages to load (0 = all)")
	flags.StringVar(&opts.envFile, "env", ".env", "optional env file")

	return cmd
}

// execute parses args and runs the command. Help and usage go to stderr so
// stdout only carries items.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(func(cmd *cobra.Command, opts options) error {
		return run(cmd.Context(), opts, stdout, stderr)
	})
	cmd.SetArgs(args)
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return err
	}

	logCfg := cfg.Logging()
	logCfg.Output = stderr
	logging.Setup(logCfg)

	if cfg.MetricsAddr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.MetricsAddr); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	redisClient := cfg.Redis()
	if redisClient != nil {
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")
	}

	apiClient, err := client.New(cfg.Client(redisClient))
	if err != nil {
		return err
	}
	defer apiClient.Close()

	svc := catalog.NewService(apiClient, cfg.PageSize)

	var printed int
	switch opts.collection {
	case "places":
		printed, err = drain(ctx, svc.Places(opts.filter), opts.pages, stdout)
	case "folder-places":
		printed, err = drain(ctx, svc.FolderPlaces(opts.filter.FolderID, opts.filter), opts.pages, stdout)
	case "folders":
		printed, err = drain(ctx, svc.Folders(opts.filter), opts.pages, stdout)
	case "links":
		printed, err = drain(ctx, svc.CollectionLinks(opts.filter), opts.pages, stdout)
	}

	log.Info().
		Str("collection", opts.collection).
		Int("items", printed).
		Msg("Done")

	if client.IsUnauthorized(err) {
		return fmt.Errorf("not signed in or session expired: %w", err)
	}
	return err
}

// drain loads pages until the collection is exhausted or maxPages were loaded,
// writing each newly accumulated item as a JSON line.
func drain[T pagination.Item](ctx context.Context, f *pagination.Fetcher[T], maxPages int, out io.Writer) (int, error) {
	enc := json.NewEncoder(out)
	printed := 0

	_, err := f.DrainFunc(ctx, maxPages, func(appended []T) error {
		for _, item := range appended {
			if err := enc.Encode(item); err != nil {
				return fmt.Errorf("write item: %w", err)
			}
			printed++
		}
		return nil
	})
	return printed, err
}
