package transcript

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tickd-io/tickd/internal/platform"
)

const (
	defaultPageSize = 100
	timeLayout      = "2006-01-02 15:04:05 MST"
)

// Source provides paginated channel history, oldest first. platform.Guild
// satisfies this.
type Source interface {
	Messages(ctx context.Context, channelID, afterID string, limit int) ([]platform.Message, error)
}

// Exporter serializes a channel's history to a text artifact, one line per
// message, oldest first. Message content is written verbatim; a message
// containing embedded newlines spans multiple physical lines in the artifact.
type Exporter struct {
	Dir         string // artifact directory
	PageSize    int    // messages per history page, default 100
	MaxMessages int    // cap on exported messages, 0 = unlimited
	Logger      *slog.Logger
}

// Export fetches the channel's full history and writes the artifact, named
// after the channel. Returns the artifact path and the message count.
func (e *Exporter) Export(ctx context.Context, src Source, ch *platform.Channel) (string, int, error) {
	msgs, err := Collect(ctx, src, ch.ID, e.pageSize(), e.MaxMessages)
	if err != nil {
		return "", 0, fmt.Errorf("transcript: collect %s: %w", ch.ID, err)
	}

	if e.Dir != "" {
		if err := os.MkdirAll(e.Dir, 0o755); err != nil {
			return "", 0, fmt.Errorf("transcript: mkdir: %w", err)
		}
	}
	path := filepath.Join(e.Dir, artifactName(ch.Name))

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("transcript: create %s: %w", path, err)
	}
	defer f.Close()

	n, err := Render(f, msgs)
	if err != nil {
		return "", 0, fmt.Errorf("transcript: write %s: %w", path, err)
	}

	if e.Logger != nil {
		e.Logger.Info("transcript exported", "channel", ch.ID, "path", path, "messages", n)
	}
	return path, n, nil
}

// Prune removes artifacts in the exporter directory older than maxAge,
// returning how many were deleted.
func (e *Exporter) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(e.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("transcript: prune: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(e.Dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (e *Exporter) pageSize() int {
	if e.PageSize > 0 {
		return e.PageSize
	}
	return defaultPageSize
}

// Collect pages through the channel's history oldest-first until it is
// exhausted, max messages are gathered, or the context is cancelled.
func Collect(ctx context.Context, src Source, channelID string, pageSize, max int) ([]platform.Message, error) {
	var out []platform.Message
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := src.Messages(ctx, channelID, after, pageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		out = append(out, page...)
		if max > 0 && len(out) >= max {
			out = out[:max]
			break
		}
		if len(page) < pageSize {
			break
		}
		after = page[len(page)-1].ID
	}
	return out, nil
}

// Render writes one "{author} ({timestamp}): {content}" line per message and
// returns the message count.
func Render(w io.Writer, msgs []platform.Message) (int, error) {
	for _, m := range msgs {
		if _, err := fmt.Fprintf(w, "%s (%s): %s\n", m.AuthorName, m.Timestamp.UTC().Format(timeLayout), m.Content); err != nil {
			return 0, err
		}
	}
	return len(msgs), nil
}

// artifactName maps a channel name to its artifact file name.
func artifactName(channel string) string {
	if channel == "" {
		channel = "transcript"
	}
	return channel + ".txt"
}
