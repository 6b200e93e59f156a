package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/emoscreen/internal/db"
	syncx "github.com/mind-engage/emoscreen/internal/sync"
)

type SQLStore struct {
	db     *sql.DB
	events *syncx.EventRepo
	now    func() time.Time
}

func NewSQLStore(sqlDB *sql.DB, events *syncx.EventRepo) *SQLStore {
	if events == nil {
		events = syncx.NewEventRepo("")
	}
	return &SQLStore{db: sqlDB, events: events, now: time.Now}
}

const submissionCols = `id, form_code, config_version, child_name, child_dob, assessment_date, gender,
	completed_by, consent_given, status, total_score, total_score_max_display, has_concerns,
	revision, computed_json, created_at, updated_at, finalized_at`

func (s *SQLStore) Create(ctx context.Context, sub Submission) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO es_sub_submissions
		(id, form_code, config_version, child_name, child_dob, assessment_date, gender,
		 completed_by, consent_given, status, has_concerns, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		sub.ID, sub.FormCode, sub.ConfigVersion, sub.ChildName, sub.ChildDOB, sub.AssessmentDate, sub.Gender,
		sub.CompletedBy, sub.ConsentGiven, string(sub.Status), false, sub.CreatedAt, sub.UpdatedAt)
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (Submission, error) {
	return getSubmission(ctx, s.db, id)
}

func getSubmission(ctx context.Context, q db.Execer, id string) (Submission, error) {
	row := q.QueryRowContext(ctx, `SELECT `+submissionCols+` FROM es_sub_submissions WHERE id=$1`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	return sub, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (Submission, error) {
	var (
		sub       Submission
		status    string
		computed  sql.NullString
		finalized sql.NullInt64
	)
	err := row.Scan(&sub.ID, &sub.FormCode, &sub.ConfigVersion, &sub.ChildName, &sub.ChildDOB,
		&sub.AssessmentDate, &sub.Gender, &sub.CompletedBy, &sub.ConsentGiven, &status,
		&sub.TotalScore, &sub.TotalScoreMaxDisplay, &sub.HasConcerns, &sub.Revision, &computed,
		&sub.CreatedAt, &sub.UpdatedAt, &finalized)
	if err != nil {
		return Submission{}, err
	}
	sub.Status = Status(status)
	if computed.Valid && computed.String != "" {
		sub.Computed = json.RawMessage(computed.String)
	}
	sub.FinalizedAt = finalized.Int64
	return sub, nil
}

func (s *SQLStore) UpdateDemographics(ctx context.Context, id string, d Demographics) (Submission, error) {
	var out Submission
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		sub, err := draft(ctx, tx, id)
		if err != nil {
			return err
		}
		sub.Demographics = d
		sub.UpdatedAt = s.now().Unix()
		_, err = tx.ExecContext(ctx, `UPDATE es_sub_submissions SET child_name=$1, child_dob=$2,
			assessment_date=$3, gender=$4, completed_by=$5, consent_given=$6, updated_at=$7 WHERE id=$8`,
			d.ChildName, d.ChildDOB, d.AssessmentDate, d.Gender, d.CompletedBy, d.ConsentGiven, sub.UpdatedAt, id)
		out = sub
		return err
	})
	return out, err
}

func draft(ctx context.Context, q db.Execer, id string) (Submission, error) {
	sub, err := getSubmission(ctx, q, id)
	if err != nil {
		return Submission{}, err
	}
	if sub.Status == StatusFinal {
		return Submission{}, ErrFinal
	}
	return sub, nil
}

func (s *SQLStore) SaveAnswers(ctx context.Context, id string, answers []Answer) error {
	now := s.now().Unix()
	return db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if _, err := draft(ctx, tx, id); err != nil {
			return err
		}
		codes := make([]string, 0, len(answers))
		for _, a := range answers {
			values := a.Values
			if values == nil {
				values = []string{}
			}
			buf, err := json.Marshal(values)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `INSERT INTO es_sub_answers
				(submission_id, question_code, value_json, score_value, updated_at)
				VALUES ($1,$2,$3,$4,$5)
				ON CONFLICT (submission_id, question_code) DO UPDATE SET
				value_json=EXCLUDED.value_json, score_value=EXCLUDED.score_value, updated_at=EXCLUDED.updated_at`,
				id, a.QuestionCode, string(buf), a.Score, now)
			if err != nil {
				return fmt.Errorf("answer %s: %w", a.QuestionCode, err)
			}
			codes = append(codes, a.QuestionCode)
		}
		// status is re-checked under the row lock; a finalize committed since
		// the draft check wins
		res, err := tx.ExecContext(ctx, `UPDATE es_sub_submissions SET updated_at=$1, revision=revision+1
			WHERE id=$2 AND status=$3`, now, id, string(StatusDraft))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrFinal
		}
		return s.events.Append(ctx, tx, syncx.TypeSubmissionDraftSaved, id, map[string]any{"questions": codes})
	})
}

func (s *SQLStore) Answers(ctx context.Context, id string) ([]Answer, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT question_code, value_json, score_value, updated_at
		FROM es_sub_answers WHERE submission_id=$1 ORDER BY question_code`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Answer
	for rows.Next() {
		a := Answer{SubmissionID: id}
		var raw string
		if err := rows.Scan(&a.QuestionCode, &raw, &a.Score, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &a.Values); err != nil {
			return nil, fmt.Errorf("answer %s: %w", a.QuestionCode, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) ScaleScores(ctx context.Context, id string) ([]ScaleScore, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT scale_code, score, max_score, risk_factor, risk_percent,
		included_in_doctor_table, threshold_code, risk_level, include_in_patient_summary, created_at
		FROM es_sub_scale_scores WHERE submission_id=$1 ORDER BY scale_code`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScaleScore
	for rows.Next() {
		sc := ScaleScore{SubmissionID: id}
		if err := rows.Scan(&sc.ScaleCode, &sc.Score, &sc.MaxScore, &sc.RiskFactor, &sc.RiskPercent,
			&sc.Included, &sc.ThresholdCode, &sc.RiskLevel, &sc.InPatientSummary, &sc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Submission, error) {
	q := `SELECT ` + submissionCols + ` FROM es_sub_submissions WHERE ($1 = '' OR form_code = $1)
		AND ($2 = '' OR status = $2) ORDER BY created_at, id`
	args := []any{opts.FormCode, string(opts.Status)}
	if opts.Limit > 0 {
		q += ` LIMIT $3`
		args = append(args, opts.Limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ApplyOutcome deletes and re-inserts every scale row inside one
// transaction, so a failed run leaves the previous rows in place.
func (s *SQLStore) ApplyOutcome(ctx context.Context, id string, o Outcome, finalize bool) (Submission, error) {
	var out Submission
	now := s.now().Unix()
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		sub, err := getSubmission(ctx, tx, id)
		if err != nil {
			return err
		}
		if !finalize && sub.Status != StatusFinal {
			return ErrNotFinal
		}
		if sub.Revision != o.Revision {
			return ErrStale
		}
		typ := syncx.TypeSubmissionRescored
		if sub.Status != StatusFinal {
			typ = syncx.TypeSubmissionFinalized
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM es_sub_scale_scores WHERE submission_id=$1`, id); err != nil {
			return err
		}
		for _, sc := range o.Scales {
			_, err := tx.ExecContext(ctx, `INSERT INTO es_sub_scale_scores
				(submission_id, scale_code, score, max_score, risk_factor, risk_percent,
				 included_in_doctor_table, threshold_code, risk_level, include_in_patient_summary, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
				id, sc.ScaleCode, sc.Score, sc.MaxScore, sc.RiskFactor, sc.RiskPercent,
				sc.Included, sc.ThresholdCode, sc.RiskLevel, sc.InPatientSummary, now)
			if err != nil {
				return fmt.Errorf("scale %s: %w", sc.ScaleCode, err)
			}
		}
		applyTotals(&sub, o, now)
		var computed any
		if len(o.Computed) > 0 {
			computed = string(o.Computed)
		}
		var finalized any
		if sub.FinalizedAt != 0 {
			finalized = sub.FinalizedAt
		}
		res, err := tx.ExecContext(ctx, `UPDATE es_sub_submissions SET status=$1, total_score=$2,
			total_score_max_display=$3, has_concerns=$4, computed_json=$5, updated_at=$6, finalized_at=$7
			WHERE id=$8 AND revision=$9`,
			string(sub.Status), sub.TotalScore, sub.TotalScoreMaxDisplay, sub.HasConcerns, computed, now, finalized, id, o.Revision)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrStale
		}
		out = sub
		return s.events.Append(ctx, tx, typ, id, map[string]any{
			"form_code":    sub.FormCode,
			"total_score":  o.TotalScore.String(),
			"has_concerns": o.HasConcerns,
			"scales":       len(o.Scales),
		})
	})
	return out, err
}

var _ Store = (*SQLStore)(nil)
