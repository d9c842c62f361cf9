package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/mbolis/quick-form/model"
)

type Responses struct {
	db *sql.DB
}

func NewResponses(db *sql.DB) *Responses {
	return &Responses{db: db}
}

// Create stores a finished response. Responses are never updated.
func (s *Responses) Create(ctx context.Context, r *model.Response) error {
	data, err := encodeJSON(r.Values)
	if err != nil {
		return errors.Wrap(err, "encode values")
	}
	meta, err := encodeJSON(r.Meta)
	if err != nil {
		return errors.Wrap(err, "encode meta")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO response (id, form_id, submitted_at, data, ip, user_agent, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FormID, r.SubmittedAt, data, r.IP, r.UserAgent, meta,
	)
	return errors.Wrap(err, "insert response")
}

// List returns at most limit responses of a form, newest first.
func (s *Responses) List(ctx context.Context, formID string, limit int) ([]*model.Response, error) {
	responses := []*model.Response{}
	err := s.scan(ctx, "DESC", formID, limit, func(r *model.Response) error {
		responses = append(responses, r)
		return nil
	})
	return responses, err
}

// Each calls fn with at most limit responses of a form, oldest first, as
// they are read. An error from fn stops the iteration and is returned.
func (s *Responses) Each(ctx context.Context, formID string, limit int, fn func(*model.Response) error) error {
	return s.scan(ctx, "ASC", formID, limit, fn)
}

func (s *Responses) scan(ctx context.Context, order, formID string, limit int, fn func(*model.Response) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, form_id, submitted_at, data, ip, user_agent, meta
		FROM response
		WHERE form_id = ?
		ORDER BY submitted_at `+order+`, rowid `+order+`
		LIMIT ?`,
		formID, limit,
	)
	if err != nil {
		return errors.Wrap(err, "list responses")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r          model.Response
			data, meta string
		)
		err = rows.Scan(&r.ID, &r.FormID, &r.SubmittedAt, &data, &r.IP, &r.UserAgent, &meta)
		if err != nil {
			return errors.Wrap(err, "scan response")
		}
		if err = decodeJSON(data, &r.Values); err != nil {
			return errors.Wrap(err, "decode values")
		}
		if err = decodeJSON(meta, &r.Meta); err != nil {
			return errors.Wrap(err, "decode meta")
		}
		if err = fn(&r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Responses) Count(ctx context.Context, formID string) (n int, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM response WHERE form_id = ?`, formID).Scan(&n)
	return
}
