package syncx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mind-engage/emoscreen/internal/db"
)

// Event types.
const (
	TypeConfigIngested       = "ConfigIngested"
	TypeSubmissionFinalized  = "SubmissionFinalized"
	TypeSubmissionRescored   = "SubmissionRescored"
	TypeSubmissionDraftSaved = "SubmissionDraftSaved"
)

type Event struct {
	Seq       int64
	SiteID    string
	Type      string
	Key       string
	DataJSON  string
	CreatedAt int64
}

// EventRepo appends to event_log. Append takes the executor explicitly so
// events are written inside the caller's transaction.
type EventRepo struct {
	siteID string
	now    func() time.Time
}

func NewEventRepo(siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{siteID: siteID, now: time.Now}
}

func (r *EventRepo) Append(ctx context.Context, q db.Execer, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("event %s: %w", typ, err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, key, string(buf), r.now().Unix())
	return err
}

// Since lists events with seq greater than after, oldest first.
func (r *EventRepo) Since(ctx context.Context, q db.Execer, after int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log
		 WHERE seq > $1 ORDER BY seq LIMIT $2`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
