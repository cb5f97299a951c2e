package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// journal_mode stays "memory" for in-memory databases.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL
	}

	for _, tt := range tests {
		var got string
		if err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got); err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestOpenIsIdempotentOnFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lingo.db")
	for i := 0; i < 2; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		s.Close()
	}
}

func sampleSession(id, topic string, started time.Time) *SessionRecord {
	return &SessionRecord{
		ID:        id,
		Topic:     topic,
		State:     "completed",
		Settings:  `{"autoplay":true}`,
		StartedAt: started,
		EndedAt:   started.Add(3 * time.Minute),
		Lines: []LineRecord{
			{LineID: "line-0", Speaker: "Barista", Text: "What can I get you?", Status: "completed"},
			{LineID: "line-1", Speaker: "You", Text: "A flat white, please.", IsUserTurn: true, Status: "completed"},
			{LineID: "line-2", Speaker: "Barista", Text: "Anything else?", Status: "completed"},
			{LineID: "line-3", Speaker: "You", Text: "", IsUserTurn: true, Status: "failed"},
		},
		History: []HistoryRecord{
			{Sequence: 0, Speaker: "Barista", Text: "What can I get you?"},
			{Sequence: 1, Speaker: "You", Text: "A flat white, please."},
			{Sequence: 2, Speaker: "Barista", Text: "Anything else?"},
			{Sequence: 3, Speaker: "You", Text: "(could not understand)"},
		},
	}
}

func TestSessionSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()

	got, err := repo.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for unknown session")
	}

	started := time.Now().UTC().Truncate(time.Millisecond)
	rec := sampleSession("s-1", "ordering coffee", started)
	rec.FallbackUsed = true
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.Sequence == 0 {
		t.Fatal("expected sequence to be assigned")
	}

	got, err = repo.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected session")
	}
	if got.Topic != "ordering coffee" || !got.FallbackUsed || got.State != "completed" {
		t.Errorf("unexpected session: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, started)
	}
	if len(got.Lines) != 4 || !got.Lines[1].IsUserTurn || got.Lines[3].Status != "failed" {
		t.Errorf("unexpected lines: %+v", got.Lines)
	}
	if len(got.History) != 4 || got.History[3].Text != "(could not understand)" {
		t.Errorf("unexpected history: %+v", got.History)
	}
}

func TestSessionSaveReplaces(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()

	rec := sampleSession("s-1", "airport", time.Now())
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	rec.State = "failed"
	rec.Lines = rec.Lines[:2]
	rec.History = rec.History[:1]
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("resave: %v", err)
	}

	got, err := repo.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != "failed" || len(got.Lines) != 2 || len(got.History) != 1 {
		t.Errorf("save did not replace: state=%s lines=%d history=%d", got.State, len(got.Lines), len(got.History))
	}
}

func TestSessionLatestForTopic(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, topic := range []string{"hotel", "hotel", "museum"} {
		rec := sampleSession(fmt.Sprintf("s-%d", i), topic, base.Add(time.Duration(i)*time.Minute))
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	got, err := repo.LatestForTopic(ctx, "hotel")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got == nil || got.ID != "s-1" {
		t.Fatalf("expected s-1, got %+v", got)
	}

	none, err := repo.LatestForTopic(ctx, "bank")
	if err != nil || none != nil {
		t.Fatalf("expected nil for unknown topic, got %+v (%v)", none, err)
	}
}

func TestSessionListAndPrune(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		rec := sampleSession(fmt.Sprintf("s-%d", i), "market", base.Add(time.Duration(i)*time.Minute))
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	list, err := repo.List(ctx, QueryOpts{Limit: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].ID != "s-4" {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if list[0].LineCount != 4 || list[0].Completed != 3 || list[0].Failed != 1 {
		t.Errorf("unexpected counts: %+v", list[0])
	}

	removed, err := repo.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	list, err = repo.List(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("list after prune: %v", err)
	}
	if len(list) != 2 || list[1].ID != "s-3" {
		t.Fatalf("unexpected sessions after prune: %+v", list)
	}

	var orphans int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM session_lines WHERE session_id = 's-0'`).Scan(&orphans); err != nil {
		t.Fatalf("count orphans: %v", err)
	}
	if orphans != 0 {
		t.Errorf("expected pruned lines to be removed, found %d", orphans)
	}
}

func TestLLMEvents(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "claude", Model: "claude-haiku", Purpose: "script-gen", InputTokens: 100, OutputTokens: 400, LatencyMs: 900, Success: true},
		{Provider: "claude", Model: "claude-haiku", Purpose: "script-gen", LatencyMs: 100, Success: false, ErrorMessage: "rate limited"},
		{Provider: "mock", Model: "mock", Purpose: "ping", InputTokens: 1, OutputTokens: 1, LatencyMs: 2, Success: true},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 || all[0].Purpose != "ping" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if all[0].Sequence <= all[1].Sequence {
		t.Errorf("sequence not increasing: %d <= %d", all[0].Sequence, all[1].Sequence)
	}

	scripts, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "script-gen", Limit: 10})
	if err != nil {
		t.Fatalf("query by purpose: %v", err)
	}
	if len(scripts) != 2 {
		t.Fatalf("expected 2 script events, got %d", len(scripts))
	}

	one, err := repo.GetLLMEvent(ctx, scripts[0].ID)
	if err != nil || one == nil {
		t.Fatalf("get: %v", err)
	}
	if one.ErrorMessage != "rate limited" || one.Success {
		t.Errorf("unexpected event: %+v", one)
	}

	usage, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("expected 2 purposes, got %+v", usage)
	}
	gen := usage[1]
	if gen.Key != "script-gen" || gen.Calls != 2 || gen.Failures != 1 || gen.OutputTokens != 400 || gen.AvgLatencyMs != 500 {
		t.Errorf("unexpected script-gen usage: %+v", gen)
	}

	byModel, err := repo.LLMUsageByModel(ctx)
	if err != nil {
		t.Fatalf("usage by model: %v", err)
	}
	if len(byModel) != 2 {
		t.Errorf("expected 2 models, got %+v", byModel)
	}
}

func TestDefaultDBPath(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("LINGO_DB", filepath.Join(dir, "custom", "x.db"))
	p, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("default path: %v", err)
	}
	if p != filepath.Join(dir, "custom", "x.db") {
		t.Errorf("path = %q", p)
	}

	t.Setenv("LINGO_DB", "")
	t.Setenv("XDG_DATA_HOME", dir)
	p, err = DefaultDBPath()
	if err != nil {
		t.Fatalf("default path: %v", err)
	}
	if p != filepath.Join(dir, "lingo", "lingo.db") {
		t.Errorf("path = %q", p)
	}
}
