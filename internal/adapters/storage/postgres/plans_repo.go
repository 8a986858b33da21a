package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"treatment-plans/internal/domain/plans"
)

type PlansRepo struct {
	db *sql.DB
}

func NewPlansRepo(db *sql.DB) *PlansRepo {
	return &PlansRepo{db: db}
}

const planColumns = `
	id, owner_user_id, title, status, instructions,
	start_at, end_at, source, is_active, created_at, updated_at`

const itemColumns = `
	id, plan_id, medication_id, medication_name, dosage, route, instructions,
	interval_minutes, total_doses, duration_days, first_dose_at, specific_times,
	created_at, updated_at`

const scheduleColumns = `
	id, item_id, scheduled_at, status, taken_at, was_skipped,
	deviation_minutes, notes, created_at, updated_at`

// Create inserta plan, items y tomas en una sola transacción.
func (r *PlansRepo) Create(ctx context.Context, p plans.Plan) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO treatment_plans (`+planColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`,
			p.ID,
			p.OwnerUserID,
			p.Title,
			string(p.Status),
			p.Instructions,
			nullTime(p.StartAt),
			nullTime(p.EndAt),
			string(p.Source),
			p.IsActive,
			p.CreatedAt,
			p.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}

		for pos, it := range p.Items {
			times, err := json.Marshal(orEmpty(it.SpecificTimes))
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO treatment_plan_items (`+itemColumns+`, position)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			`,
				it.ID,
				p.ID,
				nullString(it.MedicationID),
				it.MedicationName,
				it.Dosage,
				it.Route,
				it.Instructions,
				nullInt(it.IntervalMinutes),
				nullInt(it.TotalDoses),
				nullInt(it.DurationDays),
				nullTime(it.FirstDoseAt),
				string(times),
				it.CreatedAt,
				it.UpdatedAt,
				pos,
			); err != nil {
				return fmt.Errorf("insert item: %w", err)
			}

			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO treatment_plan_schedules (`+scheduleColumns+`)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			`)
			if err != nil {
				return err
			}
			for _, e := range it.Schedules {
				if _, err := stmt.ExecContext(ctx,
					e.ID,
					it.ID,
					e.ScheduledAt,
					string(e.Status),
					nullTime(e.TakenAt),
					e.WasSkipped,
					nullInt(e.DeviationMinutes),
					e.Notes,
					e.CreatedAt,
					e.UpdatedAt,
				); err != nil {
					stmt.Close()
					return fmt.Errorf("insert schedule: %w", err)
				}
			}
			stmt.Close()
		}
		return nil
	})
}

func (r *PlansRepo) GetByID(ctx context.Context, id string) (plans.Plan, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return plans.Plan{}, plans.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM treatment_plans WHERE id = $1`, id)
	p, err := scanPlan(row)
	if err != nil {
		if isNoRows(err) {
			return plans.Plan{}, plans.ErrNotFound
		}
		return plans.Plan{}, err
	}

	if err := r.attachItems(ctx, []*plans.Plan{&p}); err != nil {
		return plans.Plan{}, err
	}
	return p, nil
}

func (r *PlansRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]plans.Plan, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+planColumns+`
		FROM treatment_plans
		WHERE owner_user_id = $1
		ORDER BY created_at DESC
	`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]plans.Plan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ptrs := make([]*plans.Plan, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	if err := r.attachItems(ctx, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PlansRepo) Update(ctx context.Context, p plans.Plan) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE treatment_plans
		SET
			title = $2,
			instructions = $3,
			status = $4,
			is_active = $5,
			start_at = $6,
			end_at = $7,
			updated_at = $8
		WHERE id = $1
	`,
		p.ID,
		p.Title,
		p.Instructions,
		string(p.Status),
		p.IsActive,
		nullTime(p.StartAt),
		nullTime(p.EndAt),
		p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return rowsAffected(res, plans.ErrNotFound)
}

// Delete borra el plan; items y tomas caen por ON DELETE CASCADE.
func (r *PlansRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM treatment_plans WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffected(res, plans.ErrNotFound)
}

func (r *PlansRepo) GetItem(ctx context.Context, itemID string) (plans.Item, error) {
	return getItem(ctx, r.db, itemID, false)
}

func (r *PlansRepo) GetSchedule(ctx context.Context, scheduleID string) (plans.ScheduleEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM treatment_plan_schedules WHERE id = $1`, scheduleID)
	e, err := scanSchedule(row)
	if err != nil {
		if isNoRows(err) {
			return plans.ScheduleEntry{}, plans.ErrNotFound
		}
		return plans.ScheduleEntry{}, err
	}
	return e, nil
}

// MutateItemSchedules bloquea la fila del item con SELECT ... FOR UPDATE; dos
// transacciones sobre el mismo item quedan en serie.
func (r *PlansRepo) MutateItemSchedules(ctx context.Context, itemID string, fn func(plans.Item, []plans.ScheduleEntry) ([]plans.ScheduleEntry, error)) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		item, err := getItem(ctx, tx, itemID, true)
		if err != nil {
			return err
		}

		entries, err := loadSchedules(ctx, tx, []string{itemID})
		if err != nil {
			return err
		}

		changed, err := fn(item, entries[itemID])
		if err != nil {
			return err
		}

		for _, e := range changed {
			res, err := tx.ExecContext(ctx, `
				UPDATE treatment_plan_schedules
				SET
					scheduled_at = $2,
					status = $3,
					taken_at = $4,
					was_skipped = $5,
					deviation_minutes = $6,
					notes = $7,
					updated_at = $8
				WHERE id = $1 AND item_id = $9
			`,
				e.ID,
				e.ScheduledAt,
				string(e.Status),
				nullTime(e.TakenAt),
				e.WasSkipped,
				nullInt(e.DeviationMinutes),
				e.Notes,
				e.UpdatedAt,
				itemID,
			)
			if err != nil {
				return fmt.Errorf("update schedule %s: %w", e.ID, err)
			}
			if err := rowsAffected(res, plans.ErrNotFound); err != nil {
				return err
			}
		}
		return nil
	})
}

func getItem(ctx context.Context, q querier, itemID string, forUpdate bool) (plans.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM treatment_plan_items WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	it, err := scanItem(q.QueryRowContext(ctx, query, itemID))
	if err != nil {
		if isNoRows(err) {
			return plans.Item{}, plans.ErrNotFound
		}
		return plans.Item{}, err
	}
	return it, nil
}

func (r *PlansRepo) attachItems(ctx context.Context, ps []*plans.Plan) error {
	if len(ps) == 0 {
		return nil
	}
	ids := make([]string, len(ps))
	byID := make(map[string]*plans.Plan, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
		byID[p.ID] = p
		p.Items = []plans.Item{}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM treatment_plan_items
		WHERE plan_id = ANY($1)
		ORDER BY plan_id, position
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	var items []plans.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	itemIDs := make([]string, len(items))
	for i, it := range items {
		itemIDs[i] = it.ID
	}
	schedules, err := loadSchedules(ctx, r.db, itemIDs)
	if err != nil {
		return err
	}

	for _, it := range items {
		it.Schedules = schedules[it.ID]
		p := byID[it.PlanID]
		p.Items = append(p.Items, it)
	}
	return nil
}

// loadSchedules devuelve las tomas por item ordenadas por scheduled_at.
func loadSchedules(ctx context.Context, q querier, itemIDs []string) (map[string][]plans.ScheduleEntry, error) {
	out := make(map[string][]plans.ScheduleEntry, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM treatment_plan_schedules
		WHERE item_id = ANY($1)
		ORDER BY scheduled_at ASC, created_at ASC
	`, itemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out[e.ItemID] = append(out[e.ItemID], e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(s scanner) (plans.Plan, error) {
	var p plans.Plan
	var status, source string
	var start, end sql.NullTime
	if err := s.Scan(
		&p.ID,
		&p.OwnerUserID,
		&p.Title,
		&status,
		&p.Instructions,
		&start,
		&end,
		&source,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return plans.Plan{}, err
	}
	p.Status = plans.PlanStatus(status)
	p.Source = plans.Source(source)
	p.StartAt = timePtr(start)
	p.EndAt = timePtr(end)
	return p, nil
}

func scanItem(s scanner) (plans.Item, error) {
	var it plans.Item
	var medID sql.NullString
	var interval, total, duration sql.NullInt64
	var first sql.NullTime
	var times []byte
	if err := s.Scan(
		&it.ID,
		&it.PlanID,
		&medID,
		&it.MedicationName,
		&it.Dosage,
		&it.Route,
		&it.Instructions,
		&interval,
		&total,
		&duration,
		&first,
		&times,
		&it.CreatedAt,
		&it.UpdatedAt,
	); err != nil {
		return plans.Item{}, err
	}
	it.MedicationID = medID.String
	it.IntervalMinutes = intPtr(interval)
	it.TotalDoses = intPtr(total)
	it.DurationDays = intPtr(duration)
	it.FirstDoseAt = timePtr(first)
	if len(times) > 0 {
		if err := json.Unmarshal(times, &it.SpecificTimes); err != nil {
			return plans.Item{}, fmt.Errorf("decode specific_times: %w", err)
		}
	}
	if len(it.SpecificTimes) == 0 {
		it.SpecificTimes = nil
	}
	return it, nil
}

func scanSchedule(s scanner) (plans.ScheduleEntry, error) {
	var e plans.ScheduleEntry
	var status string
	var taken sql.NullTime
	var dev sql.NullInt64
	if err := s.Scan(
		&e.ID,
		&e.ItemID,
		&e.ScheduledAt,
		&status,
		&taken,
		&e.WasSkipped,
		&dev,
		&e.Notes,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return plans.ScheduleEntry{}, err
	}
	e.Status = plans.ScheduleStatus(status)
	e.TakenAt = timePtr(taken)
	e.DeviationMinutes = intPtr(dev)
	return e, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
