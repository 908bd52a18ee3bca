package transcript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tickd-io/tickd/internal/platform"
)

type fakeSource struct {
	msgs  []platform.Message
	calls int
}

func (s *fakeSource) Messages(_ context.Context, _ string, afterID string, limit int) ([]platform.Message, error) {
	s.calls++
	start := 0
	if afterID != "" {
		for i, m := range s.msgs {
			if m.ID == afterID {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(s.msgs) {
		end = len(s.msgs)
	}
	return s.msgs[start:end], nil
}

func messages(n int) []platform.Message {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]platform.Message, n)
	for i := range out {
		out[i] = platform.Message{
			ID:         fmt.Sprintf("m%d", i+1),
			AuthorName: "jane",
			Content:    fmt.Sprintf("message %d", i+1),
			Timestamp:  base.Add(time.Duration(i) * time.Second),
		}
	}
	return out
}

func TestExport(t *testing.T) {
	src := &fakeSource{msgs: messages(3)}
	e := &Exporter{Dir: t.TempDir()}
	ch := &platform.Channel{ID: "ch-1", Name: "billing-jane-1"}

	path, count, err := e.Export(context.Background(), src, ch)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 messages, got %d", count)
	}
	if filepath.Base(path) != "billing-jane-1.txt" {
		t.Errorf("unexpected artifact name %q", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	want := "jane (2025-03-01 12:00:00 UTC): message 1\n" +
		"jane (2025-03-01 12:00:01 UTC): message 2\n" +
		"jane (2025-03-01 12:00:02 UTC): message 3\n"
	if string(data) != want {
		t.Errorf("artifact mismatch:\ngot:  %q\nwant: %q", string(data), want)
	}
}

func TestExport_EmptyChannel(t *testing.T) {
	src := &fakeSource{}
	e := &Exporter{Dir: t.TempDir()}

	path, count, err := e.Export(context.Background(), src, &platform.Channel{ID: "ch-1", Name: "empty-1"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 messages, got %d", count)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected empty artifact to exist: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty artifact, got %q", string(data))
	}
}

func TestExport_UnnamedChannel(t *testing.T) {
	src := &fakeSource{msgs: messages(1)}
	e := &Exporter{Dir: t.TempDir()}

	path, _, err := e.Export(context.Background(), src, &platform.Channel{ID: "ch-1"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filepath.Base(path) != "transcript.txt" {
		t.Errorf("unexpected fallback name %q", filepath.Base(path))
	}
}

func TestCollect_Pagination(t *testing.T) {
	src := &fakeSource{msgs: messages(25)}

	msgs, err := Collect(context.Background(), src, "ch-1", 10, 0)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(msgs) != 25 {
		t.Fatalf("expected 25 messages, got %d", len(msgs))
	}
	// 10 + 10 + 5: a short page ends the walk.
	if src.calls != 3 {
		t.Errorf("expected 3 history pages, got %d", src.calls)
	}
	for i, m := range msgs {
		if want := fmt.Sprintf("m%d", i+1); m.ID != want {
			t.Fatalf("message %d out of order: got %s, want %s", i, m.ID, want)
		}
	}
}

func TestCollect_MaxMessages(t *testing.T) {
	src := &fakeSource{msgs: messages(25)}

	msgs, err := Collect(context.Background(), src, "ch-1", 10, 15)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(msgs) != 15 {
		t.Errorf("expected cap at 15 messages, got %d", len(msgs))
	}
	if src.calls != 2 {
		t.Errorf("expected 2 history pages, got %d", src.calls)
	}
}

func TestCollect_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, &fakeSource{msgs: messages(5)}, "ch-1", 10, 0)
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestRender_VerbatimContent(t *testing.T) {
	var sb strings.Builder
	msgs := []platform.Message{{
		AuthorName: "jane",
		Content:    "line one\nline two",
		Timestamp:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}}

	n, err := Render(&sb, msgs)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if n != 1 {
		t.Errorf("expected count 1, got %d", n)
	}
	// Embedded newlines pass through untouched.
	if got := sb.String(); got != "jane (2025-03-01 12:00:00 UTC): line one\nline two\n" {
		t.Errorf("unexpected render output %q", got)
	}
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	e := &Exporter{Dir: dir}

	old := filepath.Join(dir, "old-ticket-1.txt")
	fresh := filepath.Join(dir, "fresh-ticket-2.txt")
	other := filepath.Join(dir, "notes.md")
	for _, p := range []string{old, fresh, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(other, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := e.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("stale artifact survived prune")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh artifact was pruned")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("non-artifact file was pruned")
	}
}

func TestPrune_MissingDir(t *testing.T) {
	e := &Exporter{Dir: filepath.Join(t.TempDir(), "nope")}
	removed, err := e.Prune(time.Hour)
	if err != nil || removed != 0 {
		t.Errorf("expected no-op on missing dir, got removed=%d err=%v", removed, err)
	}
}
