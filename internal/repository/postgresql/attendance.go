package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type attendanceDayRepository struct {
	db *database.DB
}

func NewAttendanceDayRepository(db *database.DB) attendance.AttendanceDayRepository {
	return &attendanceDayRepository{db: db}
}

const attendanceDayColumns = `
	employee_code, date, employee_name, check_in_time, check_in_status,
	check_out_time, check_out_status, total_hours, punch_count, updated_at`

// Upsert implements attendance.AttendanceDayRepository.
func (a *attendanceDayRepository) Upsert(ctx context.Context, day attendance.AttendanceDay) error {
	q := GetQuerier(ctx, a.db)

	query := `
		INSERT INTO attendance_days (
			employee_code, date, employee_name, check_in_time, check_in_status,
			check_out_time, check_out_status, total_hours, punch_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (employee_code, date) DO UPDATE SET
			employee_name = EXCLUDED.employee_name,
			check_in_time = EXCLUDED.check_in_time,
			check_in_status = EXCLUDED.check_in_status,
			check_out_time = EXCLUDED.check_out_time,
			check_out_status = EXCLUDED.check_out_status,
			total_hours = EXCLUDED.total_hours,
			punch_count = EXCLUDED.punch_count,
			updated_at = NOW()
	`

	inTime, inStatus := markColumns(day.CheckIn)
	outTime, outStatus := markColumns(day.CheckOut)

	_, err := q.Exec(ctx, query,
		day.EmployeeCode, day.Date, day.EmployeeName, inTime, inStatus,
		outTime, outStatus, day.TotalHours, day.PunchCount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert attendance day %s/%s: %w", day.EmployeeCode, day.Date, err)
	}
	return nil
}

// GetByEmployeeAndDate implements attendance.AttendanceDayRepository.
func (a *attendanceDayRepository) GetByEmployeeAndDate(ctx context.Context, employeeCode string, date civil.Date) (*attendance.AttendanceDay, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + attendanceDayColumns + `
		FROM attendance_days
		WHERE employee_code = $1 AND date = $2
	`

	day, err := scanAttendanceDay(q.QueryRow(ctx, query, employeeCode, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attendance day: %w", err)
	}
	return &day, nil
}

// ListPresentCodes implements attendance.AttendanceDayRepository.
func (a *attendanceDayRepository) ListPresentCodes(ctx context.Context, date civil.Date) ([]string, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT employee_code
		FROM attendance_days
		WHERE date = $1 AND check_in_status = ANY($2)
	`

	presence := []string{string(attendance.StatusPresent), string(attendance.StatusLate)}
	rows, err := q.Query(ctx, query, date, presence)
	if err != nil {
		return nil, fmt.Errorf("failed to list present employees: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return codes, nil
}

// List implements attendance.AttendanceDayRepository.
func (a *attendanceDayRepository) List(ctx context.Context, filter attendance.Filter) ([]attendance.AttendanceDay, int64, error) {
	q := GetQuerier(ctx, a.db)

	conditions := []string{"date >= $1", "date <= $2"}
	args := []interface{}{filter.From, filter.To}
	argIdx := 3

	if filter.EmployeeCode != nil && *filter.EmployeeCode != "" {
		conditions = append(conditions, fmt.Sprintf("employee_code = $%d", argIdx))
		args = append(args, *filter.EmployeeCode)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendance_days WHERE %s", whereClause)
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendance days: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s
		FROM attendance_days
		WHERE %s
		ORDER BY date DESC, check_in_time ASC NULLS LAST, employee_code ASC
		LIMIT $%d OFFSET $%d
	`, attendanceDayColumns, whereClause, argIdx, argIdx+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attendance days: %w", err)
	}
	defer rows.Close()

	var days []attendance.AttendanceDay
	for rows.Next() {
		day, err := scanAttendanceDay(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan attendance day: %w", err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return days, total, nil
}

// CountByStatus implements attendance.AttendanceDayRepository.
func (a *attendanceDayRepository) CountByStatus(ctx context.Context, from, to civil.Date) (attendance.StatusCounts, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT
			COUNT(*) FILTER (WHERE check_in_status = $3),
			COUNT(*) FILTER (WHERE check_in_status = $4),
			COUNT(*) FILTER (WHERE check_out_status = $5)
		FROM attendance_days
		WHERE date >= $1 AND date <= $2
	`

	var counts attendance.StatusCounts
	err := q.QueryRow(ctx, query, from, to,
		string(attendance.StatusPresent), string(attendance.StatusLate), string(attendance.StatusEarlyOut),
	).Scan(&counts.Present, &counts.Late, &counts.EarlyOut)
	if err != nil {
		return attendance.StatusCounts{}, fmt.Errorf("failed to count attendance statuses: %w", err)
	}
	return counts, nil
}

func markColumns(m *attendance.Mark) (*time.Time, *string) {
	if m == nil {
		return nil, nil
	}
	t := m.Time
	s := string(m.Status)
	return &t, &s
}

func scanAttendanceDay(row rowScanner) (attendance.AttendanceDay, error) {
	var (
		day                 attendance.AttendanceDay
		inTime, outTime     *time.Time
		inStatus, outStatus *string
	)
	err := row.Scan(
		&day.EmployeeCode, &day.Date, &day.EmployeeName, &inTime, &inStatus,
		&outTime, &outStatus, &day.TotalHours, &day.PunchCount, &day.UpdatedAt,
	)
	if err != nil {
		return attendance.AttendanceDay{}, err
	}
	if inTime != nil && inStatus != nil {
		day.CheckIn = &attendance.Mark{Time: *inTime, Status: attendance.Status(*inStatus)}
	}
	if outTime != nil && outStatus != nil {
		day.CheckOut = &attendance.Mark{Time: *outTime, Status: attendance.Status(*outStatus)}
	}
	return day, nil
}
