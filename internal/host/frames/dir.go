package frames

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/cadmatch/internal/imaging"
	"github.com/Faultbox/cadmatch/internal/logger"
	"github.com/Faultbox/cadmatch/internal/pipeline"
)

// Dir publishes every image written into a directory as a new frame.
// Files that fail to decode (usually still being written) are skipped until
// their next write event.
type Dir struct {
	*Slot
	path    string
	watcher *fsnotify.Watcher
	log     *zap.Logger
}

// NewDir watches path and publishes its newest existing image, if any.
func NewDir(path string) (*Dir, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("frame directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("frame directory: %s is not a directory", path)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", path, err)
	}

	d := &Dir{
		Slot:    &Slot{},
		path:    path,
		watcher: w,
		log:     logger.Named("frames").With(zap.String("dir", path)),
	}
	if newest := d.newest(); newest != "" {
		d.publish(newest)
	}
	return d, nil
}

// Run forwards filesystem events until ctx is done, then closes the
// watcher.
func (d *Dir) Run(ctx context.Context) {
	defer d.watcher.Close()
	for {
		select {
		case e, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 && imaging.IsImageFile(e.Name) {
				d.publish(e.Name)
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.log.Warn("watch error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dir) publish(path string) {
	img, err := imaging.Load(path)
	if err != nil {
		d.log.Debug("skipping unreadable image", zap.String("file", path), zap.Error(err))
		return
	}
	b := img.Bounds()
	d.Put(&pipeline.Frame{
		Image:      img,
		Width:      b.Dx(),
		Height:     b.Dy(),
		Intrinsics: NominalIntrinsics(b.Dx(), b.Dy()),
	})
	d.log.Debug("frame published", zap.String("file", filepath.Base(path)))
}

// newest returns the most recently modified image in the directory.
func (d *Dir) newest() string {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return ""
	}
	type file struct {
		path string
		mod  int64
	}
	var files []file
	for _, e := range entries {
		if e.IsDir() || !imaging.IsImageFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, file{filepath.Join(d.path, e.Name()), info.ModTime().UnixNano()})
	}
	if len(files) == 0 {
		return ""
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].mod != files[j].mod {
			return files[i].mod > files[j].mod
		}
		return files[i].path < files[j].path
	})
	return files[0].path
}
