// Command sockregctl inspects and sweeps the socket directory used by the
// registry: it lists socket files, probes each for a live listener, and
// removes dead leftovers after abnormal terminations.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/valkey-io/valkey-glide-sub007/internal/config"
	"github.com/valkey-io/valkey-glide-sub007/internal/logger"
	"github.com/valkey-io/valkey-glide-sub007/internal/sockio"
)

const probeConcurrency = 8

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("sockregctl", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	dirFlag := fs.String("dir", "", "socket directory (overrides config)")
	verbose := fs.Bool("verbose", false, "enable debug logging to stderr")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: sockregctl [flags] <list|sweep|status <path>>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	dir := cfg.SocketDir
	if *dirFlag != "" {
		dir = *dirFlag
	}

	level := logger.LevelWarn
	if *verbose {
		level = logger.LevelDebug
	}
	log := logger.NewWriter(level, os.Stderr, "sockregctl")

	timeout := time.Duration(cfg.ProbeTimeoutMillis) * time.Millisecond

	switch cmd := fs.Arg(0); cmd {
	case "", "list":
		return runList(dir, timeout)
	case "sweep":
		return runSweep(dir, timeout, log)
	case "status":
		if fs.Arg(1) == "" {
			return fmt.Errorf("status requires a socket path")
		}
		return runStatus(fs.Arg(1), timeout)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type probeResult struct {
	path string
	live bool
}

// probeAll checks every socket file under dir with bounded concurrency.
func probeAll(dir string, timeout time.Duration) ([]probeResult, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.sock"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(paths)

	results := make([]probeResult, len(paths))
	var g errgroup.Group
	g.SetLimit(probeConcurrency)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results[i] = probeResult{path: path, live: sockio.Probe(path, timeout)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func runList(dir string, timeout time.Duration) error {
	results, err := probeAll(dir, timeout)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Printf("No socket files in %s\n", dir)
		return nil
	}

	for _, res := range results {
		status := "dead"
		if res.live {
			status = "live"
		}
		fmt.Printf("%s  %-4s  %s\n", sockio.PathToken(res.path), status, res.path)
	}
	return nil
}

func runSweep(dir string, timeout time.Duration, log *logger.Logger) error {
	results, err := probeAll(dir, timeout)
	if err != nil {
		return err
	}

	var (
		mu    sync.Mutex
		swept int
	)
	var g errgroup.Group
	g.SetLimit(probeConcurrency)
	for _, res := range results {
		res := res
		if res.live {
			continue
		}
		g.Go(func() error {
			if err := os.Remove(res.path); err != nil && !os.IsNotExist(err) {
				log.Warn("Failed to remove %s: %v", res.path, err)
				return nil
			}
			log.Debug("Removed dead socket file %s", res.path)
			mu.Lock()
			swept++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Printf("Swept %d dead socket file(s) in %s\n", swept, dir)
	return nil
}

func runStatus(path string, timeout time.Duration) error {
	stat, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		fmt.Printf("%s: no socket file\n", path)
		return nil
	case err != nil:
		return fmt.Errorf("failed to stat %s: %w", path, err)
	case stat.Mode()&os.ModeSocket == 0:
		fmt.Printf("%s: exists but is not a socket\n", path)
		return nil
	}

	if sockio.Probe(path, timeout) {
		fmt.Printf("%s: live [%s]\n", path, sockio.PathToken(path))
	} else {
		fmt.Printf("%s: dead (no listener) [%s]\n", path, sockio.PathToken(path))
	}
	return nil
}
