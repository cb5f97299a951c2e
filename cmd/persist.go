package cmd

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/lingo/internal/history"
	"github.com/abhisek/lingo/internal/session"
	"github.com/abhisek/lingo/internal/store"
)

// sessionRecord converts an engine snapshot and its history into the stored
// form. A session that never reached a terminal state is saved with its
// current state and the given end time.
func sessionRecord(snap session.Snapshot, entries []history.Entry, now time.Time) *store.SessionRecord {
	settings, _ := json.Marshal(snap.Settings)
	rec := &store.SessionRecord{
		ID:           snap.ID,
		Topic:        snap.Topic,
		State:        string(snap.State),
		FallbackUsed: snap.FallbackUsed,
		Settings:     string(settings),
		StartedAt:    snap.StartedAt,
		EndedAt:      snap.EndedAt,
	}
	if rec.EndedAt.IsZero() {
		rec.EndedAt = now
	}
	for i, l := range snap.Lines {
		rec.Lines = append(rec.Lines, store.LineRecord{
			Position:   i,
			LineID:     l.ID,
			Speaker:    l.Speaker,
			Text:       l.Text,
			IsUserTurn: l.IsUserTurn,
			Status:     string(l.Status),
		})
	}
	for _, e := range entries {
		rec.History = append(rec.History, store.HistoryRecord{
			Sequence: e.Sequence,
			Speaker:  e.Speaker,
			Text:     e.Text,
		})
	}
	return rec
}

// saveSession stores the engine's current session, if it has one.
func saveSession(ctx context.Context, repo store.SessionRepo, engine *session.Engine, logger *zap.Logger) {
	snap := engine.Snapshot()
	if snap.ID == "" || len(snap.Lines) == 0 {
		return
	}
	rec := sessionRecord(snap, engine.History(), time.Now())
	if err := repo.Save(ctx, rec); err != nil {
		logger.Warn("failed to save session", zap.String("session_id", snap.ID), zap.Error(err))
		return
	}
	logger.Debug("session saved", zap.String("session_id", snap.ID), zap.String("state", rec.State))
}

// previousContext describes the last saved conversation on topic so the
// next dialogue can build on it.
func previousContext(ctx context.Context, repo store.SessionRepo, topic string) string {
	rec, err := repo.LatestForTopic(ctx, topic)
	if err != nil || rec == nil {
		return ""
	}
	entries := make([]history.Entry, 0, len(rec.History))
	for _, h := range rec.History {
		entries = append(entries, history.Entry{Speaker: h.Speaker, Text: h.Text, Sequence: h.Sequence})
	}
	return history.Describe(entries)
}

// repoArchive adapts a SessionRepo to the terminal host.
type repoArchive struct {
	repo   store.SessionRepo
	logger *zap.Logger
}

func (a *repoArchive) Save(ctx context.Context, engine *session.Engine) {
	saveSession(ctx, a.repo, engine, a.logger)
}

func (a *repoArchive) PreviousContext(ctx context.Context, topic string) string {
	return previousContext(ctx, a.repo, topic)
}
