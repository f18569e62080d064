package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/keibalab/umadata/internal/config"
	"github.com/keibalab/umadata/internal/index"
)

// indexer maintains the reverse index artifacts offline, so the API can
// start against a warm index.
func main() {
	var (
		configPath = flag.String("config", "", "optional YAML config file (env vars otherwise)")
		racesRoot  = flag.String("races", "", "scraped race document root (overrides config)")
		stateDir   = flag.String("state", "", "index artifact directory (overrides config)")
		rebuild    = flag.Bool("rebuild", false, "force a full rebuild even if artifacts exist")
		clear      = flag.Bool("clear", false, "delete the index artifacts and exit")
		stats      = flag.Bool("stats", false, "print index stats and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *racesRoot != "" {
		cfg.RacesRoot = *racesRoot
	}
	if *stateDir != "" {
		cfg.IndexStateDir = *stateDir
	}

	idx, err := index.NewStore(cfg.RacesRoot, cfg.IndexStateDir, cfg.IndexHorizonYears)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open index store: %v\n", err)
		os.Exit(1)
	}
	idx.SetLogger(func(format string, args ...any) {
		fmt.Printf(format+"\n", args...)
	})
	defer idx.Close()

	switch {
	case *clear:
		if err := idx.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "clear index: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("index artifacts cleared")
		return

	case *stats:
		if err := idx.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "load index: %v\n", err)
			os.Exit(1)
		}

	case *rebuild:
		if err := idx.Build(); err != nil {
			fmt.Fprintf(os.Stderr, "build index: %v\n", err)
			os.Exit(1)
		}

	default:
		// Load reuses valid artifacts and rebuilds only on drift.
		if err := idx.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "load index: %v\n", err)
			os.Exit(1)
		}
	}

	s := idx.Stats()
	fmt.Printf("horses=%d dates=%d races=%d\n", s.Horses, s.Dates, s.Races)
}
