package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/jessevdk/go-flags"

	"github.com/guyfedwards/feedstash/internal/commands"
	"github.com/guyfedwards/feedstash/internal/config"
	"github.com/guyfedwards/feedstash/internal/fetcher"
	"github.com/guyfedwards/feedstash/internal/logging"
	"github.com/guyfedwards/feedstash/internal/render"
	"github.com/guyfedwards/feedstash/internal/server"
	"github.com/guyfedwards/feedstash/internal/store"
	"github.com/guyfedwards/feedstash/internal/store/badgerstore"
	"github.com/guyfedwards/feedstash/internal/store/memorystore"
	"github.com/guyfedwards/feedstash/internal/store/sqlitestore"
	"github.com/guyfedwards/feedstash/internal/version"
)

type Options struct {
	Verbose        bool     `short:"v" long:"verbose" description:"Show verbose logging"`
	ConfigPath     string   `short:"c" long:"config-path" description:"Location of config.yml" env:"FEEDSTASH_CONFIG_FILE"`
	PreviewSources []string `short:"f" long:"feed" description:"Feed(s) URL(s) for preview"`
	Create         bool     `long:"create" description:"Create config file if it doesn't exist"`
	Storage        string   `short:"s" long:"storage" description:"Storage backend" choice:"badger" choice:"sqlite" choice:"memory"`
	StoragePath    string   `long:"storage-path" description:"Where the storage backend keeps its data"`
}

var (
	options Options
)

// Setup subcommands

type Add struct {
	Video      bool `long:"video" description:"Source is a video channel"`
	Positional struct {
		Url  string `positional-arg-name:"URL" required:"yes"`
		Name string `positional-arg-name:"NAME"`
	} `positional-args:"yes"`
}

func (r *Add) Execute(args []string) error {
	return withCmds(func(ctx context.Context, cmds *commands.Commands) error {
		src, err := cmds.AddFeed(ctx, r.Positional.Url, r.Positional.Name, r.Video)
		if err != nil {
			return err
		}
		fmt.Printf("added %s (%s)\n", src.Name, src.ID)
		return nil
	})
}

type Remove struct {
	Positional struct {
		ID string `positional-arg-name:"ID" required:"yes"`
	} `positional-args:"yes"`
}

func (r *Remove) Execute(args []string) error {
	return withCmds(func(ctx context.Context, cmds *commands.Commands) error {
		return cmds.RemoveFeed(r.Positional.ID)
	})
}

type Config struct{}

func (r *Config) Execute(args []string) error {
	return withCmds(func(ctx context.Context, cmds *commands.Commands) error {
		return cmds.ShowConfig(os.Stdout)
	})
}

type List struct {
	Sources bool `long:"sources" description:"List sources instead of items"`
}

func (r *List) Execute(args []string) error {
	return withCmds(func(ctx context.Context, cmds *commands.Commands) error {
		if r.Sources {
			return cmds.ListSources(os.Stdout)
		}
		return cmds.ListItems(os.Stdout)
	})
}

type Version struct{}

func (r *Version) Execute(args []string) error {
	fmt.Print(version.BuildVersion)
	if version.BuildRef != "" {
		fmt.Printf(" (%s)", version.BuildRef)
	}
	if version.BuildDate != "" {
		fmt.Printf(" on %s", version.BuildDate)
	}
	fmt.Println()
	return nil
}

type Refresh struct {
	Manual bool `long:"manual" description:"Count items published since the last refresh"`
}

func (r *Refresh) Execute(args []string) error {
	return withCmds(func(ctx context.Context, cmds *commands.Commands) error {
		trigger := commands.TriggerInitial
		if r.Manual {
			trigger = commands.TriggerManual
		}
		res, err := cmds.Refresh(ctx, trigger)
		if err != nil {
			return err
		}
		if r.Manual {
			fmt.Printf("%d items, %d new\n", res.Items, res.NewItems)
		} else {
			fmt.Printf("%d items\n", res.Items)
		}
		return nil
	})
}

type Bookmark struct {
	Positional struct {
		Link string `positional-arg-name:"LINK" required:"yes"`
	} `positional-args:"yes"`
}

func (r *Bookmark) Execute(args []string) error {
	return withCmds(func(ctx context.Context, cmds *commands.Commands) error {
		added, err := cmds.Bookmark(r.Positional.Link)
		if err != nil {
			return err
		}
		if !added {
			fmt.Println("already bookmarked")
		}
		return nil
	})
}

type Unbookmark struct {
	Positional struct {
		Link string `positional-arg-name:"LINK" required:"yes"`
	} `positional-args:"yes"`
}

func (r *Unbookmark) Execute(args []string) error {
	return withCmds(func(ctx context.Context, cmds *commands.Commands) error {
		return cmds.Unbookmark(r.Positional.Link)
	})
}

type Hide struct {
	Positional struct {
		Link string `positional-arg-name:"LINK" required:"yes"`
	} `positional-args:"yes"`
}

func (r *Hide) Execute(args []string) error {
	return withCmds(func(ctx context.Context, cmds *commands.Commands) error {
		return cmds.Hide(r.Positional.Link)
	})
}

type Read struct {
	Positional struct {
		Link string `positional-arg-name:"LINK" required:"yes"`
	} `positional-args:"yes"`
}

func (r *Read) Execute(args []string) error {
	return withCmds(func(ctx context.Context, cmds *commands.Commands) error {
		item, err := cmds.Visit(r.Positional.Link)
		if err != nil {
			return err
		}
		st := cmds.State()
		return render.Article(os.Stdout, item, store.SourceNameIn(st, item.Source), st.Theme, render.Width(os.Stdout))
	})
}

type History struct {
	Clear  bool   `long:"clear" description:"Forget every visit"`
	Remove string `long:"remove" description:"Forget the visit to this link"`
}

func (r *History) Execute(args []string) error {
	return withCmds(func(ctx context.Context, cmds *commands.Commands) error {
		switch {
		case r.Clear:
			return cmds.ClearHistory()
		case r.Remove != "":
			return cmds.RemoveHistory(r.Remove)
		}
		for _, h := range cmds.History() {
			fmt.Printf("%s  %s  %s  %s\n", h.VisitedAt.Local().Format("2006-01-02 15:04"), h.SourceName, h.Title, h.Link)
		}
		return nil
	})
}

type Info struct{}

func (r *Info) Execute(args []string) error {
	return withCmds(func(ctx context.Context, cmds *commands.Commands) error {
		info := cmds.StorageInfo()
		fmt.Printf("items:     %d (%d active)\n", info.ItemCount, info.ActiveItemCount)
		fmt.Printf("sources:   %d\n", info.SourceCount)
		fmt.Printf("bookmarks: %d\n", info.BookmarkCount)
		fmt.Printf("history:   %d\n", info.HistoryCount)
		fmt.Printf("hidden:    %d\n", info.HiddenCount)
		fmt.Printf("size:      %.1f KB\n", info.SizeKB)
		if !info.SizeWithinLimit {
			fmt.Println("warning: stored state is larger than the size limit")
		}
		return nil
	})
}

type Import struct {
	Miniflux   bool `long:"miniflux" description:"Import the subscriptions of the configured Miniflux account"`
	Positional struct {
		Source string `positional-arg-name:"SOURCE" description:"Source OPML data. Can be either a file path or a URL"`
	} `positional-args:"yes"`
}

func (r *Import) Execute(args []string) error {
	return withCmds(func(ctx context.Context, cmds *commands.Commands) error {
		var (
			res commands.ImportResult
			err error
		)
		switch {
		case r.Miniflux:
			res, err = cmds.ImportMiniflux()
		case r.Positional.Source != "":
			res, err = cmds.ImportSources(ctx, r.Positional.Source)
		default:
			return errors.New("import: SOURCE or --miniflux is required")
		}
		if err != nil {
			return err
		}
		fmt.Printf("added %d, skipped %d\n", res.Added, res.Skipped)
		return nil
	})
}

type Export struct{}

func (r *Export) Execute(args []string) error {
	return withCmds(func(ctx context.Context, cmds *commands.Commands) error {
		return cmds.ExportSources(os.Stdout)
	})
}

type Search struct {
	Positional struct {
		Query string `positional-arg-name:"QUERY"`
	} `positional-args:"yes"`
}

func (r *Search) Execute(args []string) error {
	return withCmds(func(ctx context.Context, cmds *commands.Commands) error {
		if _, err := cmds.Search(r.Positional.Query); err != nil {
			return err
		}
		return cmds.ListItems(os.Stdout)
	})
}

type Serve struct {
	Addr string `long:"addr" default:"127.0.0.1:8080" description:"Address to listen on"`
}

func (r *Serve) Execute(args []string) error {
	return withCmds(func(ctx context.Context, cmds *commands.Commands) error {
		srv := server.New(cmds, logging.Stderr(true))
		return srv.ListenAndServe(ctx, r.Addr)
	})
}

// withCmds builds Commands, runs fn and closes the store afterwards.
func withCmds(fn func(ctx context.Context, cmds *commands.Commands) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmds, err := getCmds()
	if err != nil {
		return err
	}
	defer cmds.Store().Close()

	return fn(ctx, cmds)
}

func getCmds() (*commands.Commands, error) {
	runtime, err := config.New().
		WithConfigPath(options.ConfigPath).
		WithPreviewSources(options.PreviewSources).
		WithVersion(version.BuildVersion).
		WithCreate(options.Create).
		WithStorage(options.Storage, options.StoragePath).
		Load()
	if err != nil {
		return nil, err
	}

	logger := logging.Stderr(options.Verbose)

	backend, err := openBackend(runtime)
	if err != nil {
		return nil, fmt.Errorf("main.go: %w", err)
	}

	limits := store.DefaultLimits()
	limits.MaxItems = runtime.Config.Retention.MaxItems
	limits.MaxHistory = runtime.Config.Retention.MaxHistory
	s := store.New(backend, store.WithLogger(logger), store.WithLimits(limits))

	cmds := commands.New(runtime, s, newFetcher(runtime, logger), logger)
	if _, err := cmds.SeedSources(); err != nil {
		s.Close()
		return nil, err
	}
	if err := cmds.ApplyPreferences(); err != nil {
		s.Close()
		return nil, err
	}
	return cmds, nil
}

func openBackend(runtime *config.Runtime) (store.Backend, error) {
	switch runtime.Config.Storage.Backend {
	case config.StorageMemory:
		return memorystore.NewMemoryStore(), nil
	case config.StorageSQLite:
		return sqlitestore.Open(runtime.StoragePath())
	default:
		return badgerstore.Open(runtime.StoragePath())
	}
}

func newFetcher(runtime *config.Runtime, logger *log.Logger) fetcher.Fetcher {
	cfg := runtime.Config
	opts := fetcher.Options{
		Timeout:       runtime.FetchTimeout(),
		UserAgent:     cfg.UserAgent,
		Concurrency:   cfg.Fetch.Concurrency,
		MinTLSVersion: runtime.MinTLSVersion(),
		Logger:        logger,
	}
	if cfg.Fetch.Mode == config.FetchBackend {
		return fetcher.NewBackendClient(cfg.Fetch.BackendURL, opts)
	}
	return fetcher.NewDirectFetcher(opts)
}

func main() {
	parser := flags.NewParser(&options, flags.Default)

	// add commands
	parser.AddCommand("add", "Add feed", "Subscribe to a new feed", &Add{})
	parser.AddCommand("remove", "Remove feed", "Unsubscribe from a feed by id", &Remove{})
	parser.AddCommand("list", "List items", "List cached items or sources", &List{})
	parser.AddCommand("refresh", "Refresh feeds", "Fetch every source and update the cache", &Refresh{})
	parser.AddCommand("read", "Read item", "Render an item and record the visit", &Read{})
	parser.AddCommand("bookmark", "Bookmark item", "Bookmark an item by link", &Bookmark{})
	parser.AddCommand("unbookmark", "Remove bookmark", "Remove a bookmark by link", &Unbookmark{})
	parser.AddCommand("hide", "Hide item", "Hide an item from the item list", &Hide{})
	parser.AddCommand("history", "Show history", "Show or edit reading history", &History{})
	parser.AddCommand("search", "Search items", "Filter items by title", &Search{})
	parser.AddCommand("info", "Storage info", "Show what is stored and how large it is", &Info{})
	parser.AddCommand("import", "Import feeds", "Import feeds from an OPML file or Miniflux", &Import{})
	parser.AddCommand("export", "Export feeds", "Write subscriptions as OPML", &Export{})
	parser.AddCommand("config", "Show config", "Show configuration", &Config{})
	parser.AddCommand("serve", "Serve API", "Serve the JSON API", &Serve{})
	parser.AddCommand("version", "Show Version", "Display version information", &Version{})

	// parse the command line arguments
	_, err := parser.Parse()
	if err != nil {
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
