// Package placement copies classified documents into the taxonomy folder tree.
package placement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/a3tai/ctd-organizer/internal/failure"
	"github.com/a3tai/ctd-organizer/internal/taxonomy"
)

// maxAttempts bounds the _N disambiguator search for a single file name
const maxAttempts = 10000

// Result describes one placed document
type Result struct {
	Source      string
	Destination string
	Bytes       int64
	Renamed     bool
}

// Options configures a Placer
type Options struct {
	// DryRun computes destinations without touching the disk. Planned names
	// are reserved in memory so repeated names still get distinct suffixes.
	DryRun bool
	Logger *slog.Logger
}

// Placer copies files into folders under a guarded output root
type Placer struct {
	guard  *Guard
	dryRun bool
	log    *slog.Logger

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	reserved map[string]struct{}
}

// New creates a placer rooted at outputRoot
func New(outputRoot string, opts Options) (*Placer, error) {
	guard, err := NewGuard(outputRoot)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Placer{
		guard:    guard,
		dryRun:   opts.DryRun,
		log:      logger,
		locks:    make(map[string]*sync.Mutex),
		reserved: make(map[string]struct{}),
	}, nil
}

// DryRun reports whether the placer only plans destinations
func (p *Placer) DryRun() bool {
	return p.dryRun
}

// folderLock returns the mutex serialising name selection within folder
func (p *Placer) folderLock(folder string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[folder]
	if !ok {
		l = &sync.Mutex{}
		p.locks[folder] = l
	}
	return l
}

// Place copies src into destFolder and returns where it landed. An existing
// file is never overwritten: name.ext, name_1.ext, name_2.ext... are tried in
// order and the first free name is claimed with an exclusive create.
func (p *Placer) Place(ctx context.Context, src, destFolder string) (Result, error) {
	res := Result{Source: src}
	if err := ctx.Err(); err != nil {
		return res, failure.Wrap(failure.KindPlacementIO, err, "placement cancelled").WithPath(src)
	}

	folder := filepath.Clean(destFolder)
	if err := p.guard.Check(folder); err != nil {
		return res, failure.Wrap(failure.KindPlacementIO, err, "invalid destination").WithPath(src)
	}

	info, err := os.Stat(src)
	if err != nil {
		return res, failure.Wrap(failure.KindPlacementIO, err, "cannot access source").WithPath(src)
	}
	if !info.Mode().IsRegular() {
		return res, failure.New(failure.KindPlacementIO, "source is not a regular file").WithPath(src)
	}

	lock := p.folderLock(folder)
	lock.Lock()
	defer lock.Unlock()

	if p.dryRun {
		dest, err := p.plan(folder, filepath.Base(src))
		if err != nil {
			return res, failure.Wrap(failure.KindPlacementIO, err, "cannot choose destination name").WithPath(src)
		}
		res.Destination, res.Bytes = dest, info.Size()
		res.Renamed = filepath.Base(dest) != filepath.Base(src)
		return res, nil
	}

	if err := os.MkdirAll(folder, taxonomy.DirPerm); err != nil {
		return res, failure.Wrap(failure.KindPlacementIO, err, "cannot create destination folder").WithPath(src)
	}

	out, dest, err := claim(folder, filepath.Base(src))
	if err != nil {
		return res, failure.Wrap(failure.KindPlacementIO, err, "cannot choose destination name").WithPath(src)
	}

	n, err := copyInto(out, src)
	if err != nil {
		_ = os.Remove(dest)
		return res, failure.Wrap(failure.KindPlacementIO, err, "copy failed").WithPath(src)
	}

	mtime := info.ModTime()
	if err := os.Chtimes(dest, mtime, mtime); err != nil {
		p.log.Warn("could not preserve modification time", "path", dest, "error", err)
	}
	if err := os.Chmod(dest, info.Mode().Perm()); err != nil {
		p.log.Warn("could not preserve permissions", "path", dest, "error", err)
	}

	res.Destination, res.Bytes = dest, n
	res.Renamed = filepath.Base(dest) != filepath.Base(src)
	p.log.Debug("document placed", "source", src, "destination", dest, "bytes", n)
	return res, nil
}

// Candidate returns the i-th destination name for base: base itself for 0,
// otherwise stem_i.ext.
func Candidate(base string, i int) string {
	if i == 0 {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return stem + "_" + strconv.Itoa(i) + ext
}

// claim creates the first free candidate in folder exclusively
func claim(folder, base string) (*os.File, string, error) {
	for i := 0; i < maxAttempts; i++ {
		dest := filepath.Join(folder, Candidate(base, i))
		f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return f, dest, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("no free name for %s after %d attempts", base, maxAttempts)
}

// plan picks the first candidate that neither exists on disk nor was
// already planned during this run
func (p *Placer) plan(folder, base string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < maxAttempts; i++ {
		dest := filepath.Join(folder, Candidate(base, i))
		if _, taken := p.reserved[dest]; taken {
			continue
		}
		if _, err := os.Lstat(dest); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		p.reserved[dest] = struct{}{}
		return dest, nil
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", base, maxAttempts)
}

func copyInto(out *os.File, src string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		_ = out.Close()
		return 0, err
	}
	defer in.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return n, err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return n, err
	}
	return n, out.Close()
}
