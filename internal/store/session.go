package store

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// sessionRepo implements SessionRepo with the ent SQL builder.
type sessionRepo struct {
	drv *entsql.Driver
	seq *sequenceCounter
}

var sessionColumns = []string{
	"id", "sequence", "topic", "state", "fallback_used", "settings", "started_at", "ended_at",
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func (r *sessionRepo) Save(ctx context.Context, rec *SessionRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("save session: empty id")
	}
	if rec.Sequence == 0 {
		seq, err := r.seq.Next(ctx)
		if err != nil {
			return err
		}
		rec.Sequence = seq
	}
	settings := rec.Settings
	if settings == "" {
		settings = "{}"
	}

	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := saveSession(ctx, tx, rec, settings); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

func saveSession(ctx context.Context, tx dialect.Tx, rec *SessionRecord, settings string) error {
	exec := func(q string, args []any) error {
		var res sql.Result
		return tx.Exec(ctx, q, args, &res)
	}

	q, args := builder().Insert(tableSessions).
		Columns(sessionColumns...).
		Values(rec.ID, rec.Sequence, rec.Topic, rec.State, rec.FallbackUsed, settings,
			toMillis(rec.StartedAt), toMillis(rec.EndedAt)).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()
	if err := exec(q, args); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	for _, table := range []string{tableLines, tableHistory} {
		q, args := builder().Delete(table).Where(entsql.EQ("session_id", rec.ID)).Query()
		if err := exec(q, args); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if len(rec.Lines) > 0 {
		ins := builder().Insert(tableLines).
			Columns("session_id", "position", "line_id", "speaker", "text", "is_user_turn", "status")
		for i, l := range rec.Lines {
			ins.Values(rec.ID, i, l.LineID, l.Speaker, l.Text, l.IsUserTurn, l.Status)
		}
		q, args := ins.Query()
		if err := exec(q, args); err != nil {
			return fmt.Errorf("insert lines: %w", err)
		}
	}

	if len(rec.History) > 0 {
		ins := builder().Insert(tableHistory).Columns("session_id", "sequence", "speaker", "text")
		for _, h := range rec.History {
			ins.Values(rec.ID, h.Sequence, h.Speaker, h.Text)
		}
		q, args := ins.Query()
		if err := exec(q, args); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*SessionRecord, error) {
	sel := builder().Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("id", id))
	return r.one(ctx, sel)
}

func (r *sessionRepo) LatestForTopic(ctx context.Context, topic string) (*SessionRecord, error) {
	sel := builder().Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("topic", topic)).
		OrderBy(entsql.Desc("started_at"), entsql.Desc("sequence")).
		Limit(1)
	return r.one(ctx, sel)
}

// one loads the first session matched by sel together with its lines and
// history, or nil when nothing matches.
func (r *sessionRepo) one(ctx context.Context, sel *entsql.Selector) (*SessionRecord, error) {
	recs, err := r.querySessions(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	rec := &recs[0]
	if rec.Lines, err = r.lines(ctx, rec.ID); err != nil {
		return nil, err
	}
	if rec.History, err = r.history(ctx, rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *sessionRepo) querySessions(ctx context.Context, sel *entsql.Selector) ([]SessionRecord, error) {
	q, args := sel.Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var started, ended int64
		if err := rows.Scan(&rec.ID, &rec.Sequence, &rec.Topic, &rec.State,
			&rec.FallbackUsed, &rec.Settings, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.StartedAt = fromMillis(started)
		rec.EndedAt = fromMillis(ended)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *sessionRepo) lines(ctx context.Context, id string) ([]LineRecord, error) {
	q, args := builder().Select("position", "line_id", "speaker", "text", "is_user_turn", "status").
		From(entsql.Table(tableLines)).
		Where(entsql.EQ("session_id", id)).
		OrderBy("position").
		Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer rows.Close()

	var out []LineRecord
	for rows.Next() {
		var l LineRecord
		if err := rows.Scan(&l.Position, &l.LineID, &l.Speaker, &l.Text, &l.IsUserTurn, &l.Status); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *sessionRepo) history(ctx context.Context, id string) ([]HistoryRecord, error) {
	q, args := builder().Select("sequence", "speaker", "text").
		From(entsql.Table(tableHistory)).
		Where(entsql.EQ("session_id", id)).
		OrderBy("sequence").
		Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var h HistoryRecord
		if err := rows.Scan(&h.Sequence, &h.Speaker, &h.Text); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *sessionRepo) List(ctx context.Context, opts QueryOpts) ([]SessionSummary, error) {
	sel := builder().Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		OrderBy(entsql.Desc("started_at"), entsql.Desc("sequence"))
	if opts.Topic != "" {
		sel.Where(entsql.EQ("topic", opts.Topic))
	}
	if opts.After > 0 {
		sel.Where(entsql.GT("sequence", opts.After))
	}
	if opts.Before > 0 {
		sel.Where(entsql.LT("sequence", opts.Before))
	}
	if !opts.From.IsZero() {
		sel.Where(entsql.GTE("started_at", toMillis(opts.From)))
	}
	if !opts.To.IsZero() {
		sel.Where(entsql.LTE("started_at", toMillis(opts.To)))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	recs, err := r.querySessions(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}

	ids := make([]any, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	counts, err := r.statusCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]SessionSummary, len(recs))
	for i, rec := range recs {
		c := counts[rec.ID]
		out[i] = SessionSummary{
			ID:           rec.ID,
			Sequence:     rec.Sequence,
			Topic:        rec.Topic,
			State:        rec.State,
			FallbackUsed: rec.FallbackUsed,
			StartedAt:    rec.StartedAt,
			EndedAt:      rec.EndedAt,
			LineCount:    c["total"],
			Completed:    c["completed"],
			Failed:       c["failed"],
		}
	}
	return out, nil
}

func (r *sessionRepo) statusCounts(ctx context.Context, ids []any) (map[string]map[string]int, error) {
	q, args := builder().Select("session_id", "status", entsql.Count("*")).
		From(entsql.Table(tableLines)).
		Where(entsql.In("session_id", ids...)).
		GroupBy("session_id", "status").
		Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("count lines: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]int)
	for rows.Next() {
		var id, status string
		var n int
		if err := rows.Scan(&id, &status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		if out[id] == nil {
			out[id] = make(map[string]int)
		}
		out[id][status] += n
		out[id]["total"] += n
	}
	return out, rows.Err()
}

func (r *sessionRepo) Prune(ctx context.Context, keep int) (int, error) {
	q, args := builder().Select("id").
		From(entsql.Table(tableSessions)).
		OrderBy(entsql.Desc("started_at"), entsql.Desc("sequence")).
		Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return 0, fmt.Errorf("query sessions for prune: %w", err)
	}
	var ids []any
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) <= keep {
		return 0, nil
	}
	stale := ids[keep:]

	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	for _, table := range []string{tableLines, tableHistory, tableSessions} {
		col := "session_id"
		if table == tableSessions {
			col = "id"
		}
		q, args := builder().Delete(table).Where(entsql.In(col, stale...)).Query()
		var res sql.Result
		if err := tx.Exec(ctx, q, args, &res); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("prune %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return len(stale), nil
}
