package chunk

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/codeindex/internal/hash"
)

// ParseFiles parses a batch of files on a worker pool sized to the host
// CPU count. The batch contract is best-effort: files that fail to parse
// are dropped from the result rather than failing the batch.
func ParseFiles(ctx context.Context, files []FileInput) []ParsedFile {
	if len(files) == 0 {
		return nil
	}

	results := make([]*ParsedFile, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, file := range files {
		g.Go(func() error {
			chunks, err := ParseFile(gctx, file.Path, file.Content)
			if err != nil {
				slog.Debug("skipping unparseable file",
					slog.String("path", file.Path),
					slog.String("error", err.Error()))
				return nil
			}
			results[i] = &ParsedFile{
				Path:   file.Path,
				Chunks: chunks,
				Hash:   hash.Content(file.Content),
			}
			return nil
		})
	}

	// Workers never return errors; Wait only observes ctx cancellation.
	_ = g.Wait()

	parsed := make([]ParsedFile, 0, len(files))
	for _, r := range results {
		if r != nil {
			parsed = append(parsed, *r)
		}
	}
	return parsed
}
