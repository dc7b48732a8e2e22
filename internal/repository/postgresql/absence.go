package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/absence"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type absenceRepositoryImpl struct {
	db *database.DB
}

func NewAbsenceRepository(db *database.DB) absence.AbsenceRepository {
	return &absenceRepositoryImpl{db: db}
}

// lockDayQuery takes a transaction-scoped advisory lock on one absence key
const lockDayQuery = `SELECT pg_advisory_xact_lock(hashtextextended($1::text || '|' || $2::date::text, 0))`

// LockDay implements absence.AbsenceRepository.
func (r *absenceRepositoryImpl) LockDay(ctx context.Context, employeeCode string, date civil.Date) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, lockDayQuery, employeeCode, date); err != nil {
		return fmt.Errorf("failed to lock absence key %s/%s: %w", employeeCode, date, err)
	}
	return nil
}

// InsertMissing implements absence.AbsenceRepository.
func (r *absenceRepositoryImpl) InsertMissing(ctx context.Context, records []absence.AbsenceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	inserted := 0
	err := NewTransactor(r.db).WithinTransaction(ctx, func(txCtx context.Context) error {
		n, err := r.insertMissing(txCtx, records)
		inserted = n
		return err
	})
	return inserted, err
}

func (r *absenceRepositoryImpl) insertMissing(ctx context.Context, records []absence.AbsenceRecord) (int, error) {
	q := GetQuerier(ctx, r.db)

	// Each insert runs after its lock, so it sees any check-in committed by a
	// concurrent recompute of the same day.
	query := `
		INSERT INTO absences (id, employee_code, employee_name, date, reason, status)
		SELECT $1::uuid, $2::text, $3::text, $4::date, $5::text, $6::text
		WHERE NOT EXISTS (
			SELECT 1 FROM attendance_days d
			WHERE d.employee_code = $2::text AND d.date = $4::date AND d.check_in_status = ANY($7::text[])
		)
		ON CONFLICT (employee_code, date) DO NOTHING
	`
	presence := []string{string(attendance.StatusPresent), string(attendance.StatusLate)}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(lockDayQuery, rec.EmployeeCode, rec.Date)
		batch.Queue(query, rec.ID, rec.EmployeeCode, rec.EmployeeName, rec.Date, rec.Reason, rec.Status, presence)
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for _, rec := range records {
		if _, err := results.Exec(); err != nil {
			return inserted, fmt.Errorf("failed to lock absence key %s/%s: %w", rec.EmployeeCode, rec.Date, err)
		}
		tag, err := results.Exec()
		if err != nil {
			if database.IsUniqueViolation(err) {
				continue
			}
			return inserted, fmt.Errorf("failed to insert absence for %s/%s: %w", rec.EmployeeCode, rec.Date, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// Delete implements absence.AbsenceRepository.
func (r *absenceRepositoryImpl) Delete(ctx context.Context, employeeCode string, date civil.Date) (bool, error) {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM absences WHERE employee_code = $1 AND date = $2`, employeeCode, date)
	if err != nil {
		return false, fmt.Errorf("failed to delete absence for %s/%s: %w", employeeCode, date, err)
	}
	return tag.RowsAffected() > 0, nil
}

// List implements absence.AbsenceRepository.
func (r *absenceRepositoryImpl) List(ctx context.Context, filter absence.Filter) ([]absence.AbsenceRecord, int64, error) {
	q := GetQuerier(ctx, r.db)

	var total int64
	countQuery := `
		SELECT COUNT(*)
		FROM absences a
		LEFT JOIN employees e ON e.employee_code = a.employee_code
		WHERE a.date >= $1 AND a.date <= $2 AND COALESCE(e.excluded, FALSE) = FALSE
	`
	if err := q.QueryRow(ctx, countQuery, filter.From, filter.To).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count absences: %w", err)
	}

	query := `
		SELECT a.id, a.employee_code, a.employee_name, a.date, a.reason, a.status, a.created_at
		FROM absences a
		LEFT JOIN employees e ON e.employee_code = a.employee_code
		WHERE a.date >= $1 AND a.date <= $2 AND COALESCE(e.excluded, FALSE) = FALSE
		ORDER BY a.date DESC, a.employee_code ASC
		LIMIT $3 OFFSET $4
	`

	rows, err := q.Query(ctx, query, filter.From, filter.To, filter.Limit, (filter.Page-1)*filter.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list absences: %w", err)
	}
	defer rows.Close()

	var records []absence.AbsenceRecord
	for rows.Next() {
		var rec absence.AbsenceRecord
		if err := rows.Scan(&rec.ID, &rec.EmployeeCode, &rec.EmployeeName, &rec.Date, &rec.Reason, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan absence: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// CountBetween implements absence.AbsenceRepository.
func (r *absenceRepositoryImpl) CountBetween(ctx context.Context, from, to civil.Date) (int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT COUNT(*)
		FROM absences a
		LEFT JOIN employees e ON e.employee_code = a.employee_code
		WHERE a.date >= $1 AND a.date <= $2 AND COALESCE(e.excluded, FALSE) = FALSE
	`

	var total int64
	if err := q.QueryRow(ctx, query, from, to).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count absences: %w", err)
	}
	return total, nil
}
