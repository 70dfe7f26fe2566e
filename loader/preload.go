package loader

import (
	"context"
	"io/fs"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	qtwasm "github.com/wippyai/qtwasm-loader"
	"github.com/wippyai/qtwasm-loader/errors"
	"github.com/wippyai/qtwasm-loader/fetch"
	"github.com/wippyai/qtwasm-loader/manifest"
)

// fetchManifests fetches all manifests concurrently and flattens their
// entries in declaration order. A nil f falls back to a router over the
// working directory.
func fetchManifests(ctx context.Context, f fetch.Fetcher, locations []string) ([]manifest.Entry, error) {
	if len(locations) == 0 {
		return nil, nil
	}
	if f == nil {
		r := fetch.New("")
		defer func() {
			if err := r.Close(); err != nil {
				Logger().Debug("close default fetcher", zap.Error(err))
			}
		}()
		f = r
	}

	lists := make([][]manifest.Entry, len(locations))

	g, gctx := errgroup.WithContext(ctx)
	for i, loc := range locations {
		g.Go(func() error {
			data, err := f.Fetch(gctx, loc)
			if err != nil {
				return errors.New(errors.PhasePreload, errors.KindFetch).
					Path(loc).
					Detail("could not fetch preload file: %s", loc).
					Cause(err).
					Build()
			}
			entries, err := manifest.Parse(data)
			if err != nil {
				return errors.New(errors.PhasePreload, errors.KindInvalidData).
					Path(loc).
					Detail("decode manifest").
					Cause(err).
					Build()
			}
			lists[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var files []manifest.Entry
	for _, l := range lists {
		files = append(files, l...)
	}
	return files, nil
}

// materialize registers every entry with the instance's virtual filesystem.
func materialize(inst qtwasm.Instance, files []manifest.Entry, qtdir string) error {
	exp, ok := inst.(qtwasm.FSExporter)
	var vfs qtwasm.FileSystem
	if ok {
		vfs = exp.FS()
	}
	if vfs == nil {
		return errors.CapabilityMissing("FS", "FS must be exported if preload is used")
	}

	for _, file := range files {
		if err := makeDirs(vfs, file.Destination); err != nil {
			return err
		}
		dir, name := file.Split()
		if err := vfs.CreatePreloadedFile(dir, name, file.ResolveSource(qtdir), true, true); err != nil {
			return err
		}
	}
	return nil
}

// makeDirs creates every missing parent directory of filePath.
func makeDirs(vfs qtwasm.FileSystem, filePath string) error {
	parts := strings.Split(filePath, "/")
	dir := ""
	for _, part := range parts[:len(parts)-1] {
		if part == "" {
			continue
		}
		dir += "/" + part
		if err := vfs.Mkdir(dir); err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
	}
	return nil
}
