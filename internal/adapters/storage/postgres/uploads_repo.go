package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"treatment-plans/internal/domain/prescriptions"
)

type UploadsRepo struct {
	db *sql.DB
}

func NewUploadsRepo(db *sql.DB) *UploadsRepo {
	return &UploadsRepo{db: db}
}

const uploadColumns = `
	id, owner_user_id, original_name, file_path, content_type, notes,
	status, extracted_text, parsed_items, failure_reason, attempts,
	processed_at, created_at, updated_at`

func (r *UploadsRepo) Create(ctx context.Context, u prescriptions.Upload) error {
	items, err := marshalItems(u.ParsedItems)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO prescription_uploads (`+uploadColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		u.ID,
		u.OwnerUserID,
		u.OriginalName,
		u.FilePath,
		u.ContentType,
		u.Notes,
		string(u.Status),
		u.ExtractedText,
		items,
		u.FailureReason,
		u.Attempts,
		nullTime(u.ProcessedAt),
		u.CreatedAt,
		u.UpdatedAt,
	)
	return err
}

func (r *UploadsRepo) Update(ctx context.Context, u prescriptions.Upload) error {
	items, err := marshalItems(u.ParsedItems)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE prescription_uploads
		SET
			status = $2,
			extracted_text = $3,
			parsed_items = $4,
			failure_reason = $5,
			attempts = $6,
			processed_at = $7,
			updated_at = $8
		WHERE id = $1
	`,
		u.ID,
		string(u.Status),
		u.ExtractedText,
		items,
		u.FailureReason,
		u.Attempts,
		nullTime(u.ProcessedAt),
		u.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return rowsAffected(res, prescriptions.ErrNotFound)
}

func (r *UploadsRepo) GetByID(ctx context.Context, id string) (prescriptions.Upload, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return prescriptions.Upload{}, prescriptions.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+uploadColumns+` FROM prescription_uploads WHERE id = $1`, id)
	u, err := scanUpload(row)
	if err != nil {
		if isNoRows(err) {
			return prescriptions.Upload{}, prescriptions.ErrNotFound
		}
		return prescriptions.Upload{}, err
	}
	return u, nil
}

func (r *UploadsRepo) ListByOwner(ctx context.Context, ownerUserID string, limit int) ([]prescriptions.Upload, error) {
	if limit <= 0 {
		limit = prescriptions.ListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+uploadColumns+`
		FROM prescription_uploads
		WHERE owner_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, strings.TrimSpace(ownerUserID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]prescriptions.Upload, 0)
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UploadsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM prescription_uploads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffected(res, prescriptions.ErrNotFound)
}

func scanUpload(s scanner) (prescriptions.Upload, error) {
	var u prescriptions.Upload
	var status string
	var items []byte
	var processed sql.NullTime
	if err := s.Scan(
		&u.ID,
		&u.OwnerUserID,
		&u.OriginalName,
		&u.FilePath,
		&u.ContentType,
		&u.Notes,
		&status,
		&u.ExtractedText,
		&items,
		&u.FailureReason,
		&u.Attempts,
		&processed,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return prescriptions.Upload{}, err
	}
	u.Status = prescriptions.Status(status)
	u.ProcessedAt = timePtr(processed)
	if len(items) > 0 {
		if err := json.Unmarshal(items, &u.ParsedItems); err != nil {
			return prescriptions.Upload{}, fmt.Errorf("decode parsed_items: %w", err)
		}
	}
	if len(u.ParsedItems) == 0 {
		u.ParsedItems = nil
	}
	return u, nil
}

func marshalItems(items []prescriptions.ParsedItem) (string, error) {
	if items == nil {
		items = []prescriptions.ParsedItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode parsed_items: %w", err)
	}
	return string(b), nil
}
