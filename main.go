// Command ytm-history-scrobbler converts a Google Takeout YouTube Music
// watch history into an album-enriched JSON dataset for Last.fm Scrubbler
// WPF's file parser.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/kkdai/youtube/v2"
	"github.com/urfave/cli/v2"

	"github.com/Laesx/ytm-history-scrobbler/internal/cache"
	"github.com/Laesx/ytm-history-scrobbler/internal/enricher"
	"github.com/Laesx/ytm-history-scrobbler/internal/export"
	"github.com/Laesx/ytm-history-scrobbler/internal/mbrainz"
	"github.com/Laesx/ytm-history-scrobbler/internal/models"
	"github.com/Laesx/ytm-history-scrobbler/internal/parser"
	"github.com/Laesx/ytm-history-scrobbler/internal/ytmusic"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// testModeLimit caps a --test-mode run to a quick, representative slice.
const testModeLimit = 500

func main() {
	// A missing .env is fine; explicit environment variables still apply.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := &cli.App{
		Name:    "ytm-history-scrobbler",
		Usage:   "Convert a YouTube Music watch history export into a scrobble-ready dataset",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "history", Value: "watch-history.json", Usage: "Takeout watch history file", EnvVars: []string{"YTM_HISTORY_FILE"}},
			&cli.StringFlag{Name: "auth", Value: "browser.json", Usage: "browser headers file (ytmusicapi format)", EnvVars: []string{"YTM_AUTH_FILE"}},
			&cli.StringFlag{Name: "cache", Value: "ytm-cache.db", Usage: "match cache database", EnvVars: []string{"YTM_CACHE_FILE"}},
			&cli.StringFlag{Name: "out-dir", Value: ".", Usage: "directory for the output files", EnvVars: []string{"YTM_OUT_DIR"}},
			&cli.IntFlag{Name: "limit", Usage: "process only the first N songs"},
			&cli.BoolFlag{Name: "only-uploads", Usage: "keep only library uploads"},
			&cli.BoolFlag{Name: "test-mode", Usage: "limit the run to 500 songs"},
			&cli.BoolFlag{Name: "no-album", Usage: "skip album enrichment entirely"},
			&cli.BoolFlag{Name: "mb-fallback", Usage: "ask MusicBrainz when the catalog search finds no album"},
			&cli.BoolFlag{Name: "refresh-library", Usage: "refetch the upload library even when a snapshot is stored"},
			&cli.BoolFlag{Name: "verbose", Usage: "debug logging"},
		},
		Action: runConvert,
		Commands: []*cli.Command{
			inspectCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func newLogger(verbose bool) hclog.Logger {
	level := hclog.Info
	if verbose {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{Name: "ytm-history", Level: level})
}

func runConvert(c *cli.Context) error {
	logger := newLogger(c.Bool("verbose"))

	listens := parser.ParseHistoryFile(c.String("history"), logger.Named("parser"))
	listens = applyFilters(c, logger, listens)

	// The snapshot lets a run be inspected before any network traffic; losing
	// it is not worth aborting over.
	if path, err := export.WriteSnapshot(c.String("out-dir"), listens); err != nil {
		logger.Warn("could not write the pre-enrichment snapshot", "error", err)
	} else {
		logger.Info("wrote pre-enrichment snapshot", "path", path)
	}

	if !c.Bool("no-album") {
		if err := enrich(c, logger, listens); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	paths, err := export.WriteFormatted(c.String("out-dir"), listens)
	if err != nil {
		return cli.Exit(fmt.Sprintf("write dataset: %v", err), 1)
	}
	printCompletion(paths)
	return nil
}

// applyFilters narrows the parsed listens per the run flags, in the fixed
// order limit, only-uploads, test-mode.
func applyFilters(c *cli.Context, logger hclog.Logger, listens []models.Listen) []models.Listen {
	if limit := c.Int("limit"); limit > 0 && limit < len(listens) {
		listens = listens[:limit]
		logger.Info("limited input", "songs", len(listens))
	}
	if c.Bool("only-uploads") {
		uploads := listens[:0]
		for _, l := range listens {
			if l.IsLibraryUpload {
				uploads = append(uploads, l)
			}
		}
		listens = uploads
		logger.Info("kept library uploads only", "songs", len(listens))
	}
	if c.Bool("test-mode") {
		if len(listens) > testModeLimit {
			listens = listens[:testModeLimit]
		}
		logger.Info("test mode", "songs", len(listens))
	}
	return listens
}

func enrich(c *cli.Context, logger hclog.Logger, listens []models.Listen) error {
	client, err := ytmusic.NewClient(c.String("auth"), logger.Named("ytmusic"))
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	store := cache.Open(c.String("cache"), logger.Named("cache"))
	defer store.Close()
	store.Load()
	logger.Info("match cache ready", "entries", store.Len())

	opts := []enricher.Option{enricher.WithRefreshLibrary(c.Bool("refresh-library"))}
	if c.Bool("mb-fallback") {
		resolver, err := mbrainz.NewResolver(os.Getenv("MB_CONTACT"), logger.Named("mbrainz"))
		if err != nil {
			return fmt.Errorf("musicbrainz fallback: %w", err)
		}
		opts = append(opts, enricher.WithFallback(resolver))
	}

	resolved := enricher.New(client, store, logger.Named("enricher"), opts...).Run(c.Context, listens)
	logger.Info("enrichment finished", "resolved", resolved, "total", len(listens))
	return nil
}

func printCompletion(paths []string) {
	fmt.Println("Finished successfully, dataset written to:")
	for _, path := range paths {
		fmt.Println("  " + path)
	}
	fmt.Println()
	fmt.Println("Import with Last.fm Scrubbler WPF (https://github.com/SHOEGAZEssb/Last.fm-Scrubbler-WPF):")
	fmt.Println("pick 'File Parse Scrobbler', set the parser to JSON, load the file and click Parse.")
}

// inspectCmd is a diagnostic for individual match failures: it shows what
// the cache, the public video metadata and the catalog search each know
// about one video.
func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show cached, live and catalog metadata for one video",
		ArgsUsage: "<video-id-or-url>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("inspect needs exactly one video id or URL", 1)
			}
			logger := newLogger(c.Bool("verbose"))
			id := parser.ExternalID(c.Args().First())
			fmt.Println("video id:", id)

			if _, err := os.Stat(c.String("cache")); err == nil {
				store := cache.Open(c.String("cache"), logger.Named("cache"))
				store.Load()
				if entry, ok := store.Get(id); ok {
					fmt.Printf("cache:    album=%q artist=%q\n", entry.AlbumName, entry.ArtistName)
				} else {
					fmt.Println("cache:    no entry")
				}
				store.Close()
			}

			yt := youtube.Client{}
			video, err := yt.GetVideoContext(c.Context, id)
			if err != nil {
				fmt.Println("video:    lookup failed:", err)
			} else {
				fmt.Printf("video:    title=%q channel=%q duration=%s\n", video.Title, video.Author, video.Duration)
			}

			client, err := ytmusic.NewClient(c.String("auth"), logger.Named("ytmusic"))
			if err != nil || video == nil {
				logger.Debug("skipping catalog lookup", "error", err)
				return nil
			}
			artist, track := parser.SplitVideoTitle(video.Title, video.Author)
			query := track
			if artist != "" {
				query = artist + " - " + track
			}
			results, err := client.SearchSongs(c.Context, query, 1)
			if err != nil {
				fmt.Println("catalog:  search failed:", err)
				return nil
			}
			if len(results) == 0 {
				fmt.Println("catalog:  no result")
				return nil
			}
			fmt.Printf("catalog:  title=%q artist=%q album=%q\n", results[0].Title, results[0].FirstArtist(), results[0].AlbumName)
			return nil
		},
	}
}
