package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-form/model"
)

type Forms struct {
	db  *sql.DB
	now func() time.Time
}

func NewForms(db *sql.DB) *Forms {
	return &Forms{db: db, now: time.Now}
}

const formColumns = `id, title, slug, description, settings, fields, created_by, created_at, updated_at, archived`

// Create stores a new form, assigning its id and timestamps.
func (s *Forms) Create(ctx context.Context, f *model.Form) error {
	settings, fields, err := encodeForm(f)
	if err != nil {
		return err
	}
	if f.ID == "" {
		f.ID = uuid.Must(uuid.NewV4()).String()
	}
	now := s.now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO form (`+formColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Title, f.Slug, f.Description, settings, fields, f.CreatedBy, f.CreatedAt, f.UpdatedAt, f.Archived,
	)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	return errors.Wrap(err, "insert form")
}

// Update replaces the whole document of an existing form. The author and
// creation time are kept.
func (s *Forms) Update(ctx context.Context, f *model.Form) error {
	settings, fields, err := encodeForm(f)
	if err != nil {
		return err
	}
	f.UpdatedAt = s.now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE form
		SET title = ?, slug = ?, description = ?, settings = ?, fields = ?, updated_at = ?, archived = ?
		WHERE id = ?`,
		f.Title, f.Slug, f.Description, settings, fields, f.UpdatedAt, f.Archived,
		f.ID,
	)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	if err != nil {
		return errors.Wrap(err, "update form")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return s.db.QueryRowContext(ctx, `SELECT created_by, created_at FROM form WHERE id = ?`, f.ID).
		Scan(&f.CreatedBy, &f.CreatedAt)
}

func (s *Forms) Find(ctx context.Context, id string) (*model.Form, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+formColumns+` FROM form WHERE id = ?`, id)
	return scanForm(row)
}

func (s *Forms) FindBySlug(ctx context.Context, slug string) (*model.Form, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+formColumns+` FROM form WHERE slug = ?`, slug)
	return scanForm(row)
}

// List returns every form, newest first.
func (s *Forms) List(ctx context.Context) ([]*model.Form, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+formColumns+` FROM form ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list forms")
	}
	defer rows.Close()

	forms := []*model.Form{}
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

// Delete removes a form together with its responses.
func (s *Forms) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM form WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete form")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeForm(f *model.Form) (settings, fields string, err error) {
	settings, err = encodeJSON(f.Settings)
	if err != nil {
		return "", "", errors.Wrap(err, "encode settings")
	}
	fields, err = encodeJSON(f.Fields)
	if err != nil {
		return "", "", errors.Wrap(err, "encode fields")
	}
	return
}

func scanForm(row scanner) (*model.Form, error) {
	var (
		f                model.Form
		settings, fields string
	)
	err := row.Scan(
		&f.ID, &f.Title, &f.Slug, &f.Description, &settings, &fields,
		&f.CreatedBy, &f.CreatedAt, &f.UpdatedAt, &f.Archived,
	)
	if err != nil {
		return nil, notFound(err)
	}
	if err = decodeJSON(settings, &f.Settings); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	if err = decodeJSON(fields, &f.Fields); err != nil {
		return nil, errors.Wrap(err, "decode fields")
	}
	if f.Settings == nil {
		f.Settings = map[string]any{}
	}
	if f.Fields == nil {
		f.Fields = []model.Field{}
	}
	return &f, nil
}
