package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"mime"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/client/config"
	"github.com/anthanhphan/go-chunked-file-storage/internal/client/ledger"
	"github.com/anthanhphan/go-chunked-file-storage/internal/client/uploader"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
)

func main() {
	var configPath, folder string
	var public bool
	flag.StringVar(&configPath, "configPath", "", "Path to configuration file")
	flag.StringVar(&folder, "folder", "/", "Destination folder")
	flag.BoolVar(&public, "public", false, "Make the uploaded files public")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: uploader [-configPath cfg.yaml] [-folder /dest] [-public] file|dir...")
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(&cfg.Logger)

	if err := run(cfg, folder, public || cfg.Public, flag.Args()); err != nil {
		if errors.Is(err, domain.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "Upload cancelled")
			os.Exit(130)
		}
		log.Fatalf("Upload failed: %v", err)
	}
}

func run(cfg *config.Config, folder string, public bool, paths []string) error {
	ctx := context.Background()

	db, err := ledger.OpenSQLite(ctx, cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer db.Close()

	items, closeFiles, err := openItems(paths, folder)
	if err != nil {
		return err
	}
	defer closeFiles()

	bars := newProgressBars(os.Stderr)
	defer bars.finish()

	coord := uploader.New(
		uploader.NewHTTPTransport(cfg.ServerURL, cfg.Token, cfg.RequestTimeout()),
		ledger.NewSQLite(db),
		uploader.Options{
			Concurrency: cfg.Concurrency,
			Retry: resilience.RetryPolicy{
				Attempts:  cfg.RetryAttempts,
				BaseDelay: cfg.RetryBaseDelay(),
				MaxDelay:  resilience.DefaultRetryPolicy.MaxDelay,
			},
			IsPublic:   public,
			OnProgress: bars.update,
		},
	)
	if err := coord.Enqueue(items, folder); err != nil {
		return err
	}

	// The first signal cancels and cleans up; a second one kills the process.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		signal.Stop(stop)
		coord.Cancel()
	}()

	return coord.Start(ctx)
}

// openItems turns the path arguments into upload items. A directory is walked
// and each file inside lands in the matching subfolder of dest, starting with
// the directory's own name. Files are opened on first read.
func openItems(paths []string, dest string) ([]uploader.Item, func(), error) {
	var files []*lazyFile
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	var items []uploader.Item
	add := func(p, folder string, info fs.FileInfo) {
		f := &lazyFile{path: p}
		files = append(files, f)
		items = append(items, uploader.Item{
			Name:     info.Name(),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			MimeType: mime.TypeByExtension(filepath.Ext(info.Name())),
			Folder:   folder,
			Data:     f,
		})
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, nil, err
		}
		if !info.IsDir() {
			add(p, "", info)
			continue
		}

		root := filepath.Dir(filepath.Clean(p))
		err = filepath.WalkDir(p, func(walked string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, filepath.Dir(walked))
			if err != nil {
				return err
			}
			add(walked, path.Join(dest, filepath.ToSlash(rel)), info)
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}

	if len(items) == 0 {
		return nil, nil, errors.New("no files to upload")
	}
	return items, closeAll, nil
}

// lazyFile opens path on the first read, so a large folder does not hold a
// descriptor per queued file. The coordinator closes it once the file is done.
type lazyFile struct {
	path string

	mu sync.Mutex
	f  *os.File
}

func (l *lazyFile) ReadAt(p []byte, off int64) (int, error) {
	l.mu.Lock()
	if l.f == nil {
		f, err := os.Open(l.path)
		if err != nil {
			l.mu.Unlock()
			return 0, err
		}
		l.f = f
	}
	f := l.f
	l.mu.Unlock()
	return f.ReadAt(p, off)
}

func (l *lazyFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
