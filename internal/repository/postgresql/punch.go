package postgresql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/punch"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/database"
)

type punchRepositoryImpl struct {
	db *database.DB
}

func NewPunchRepository(db *database.DB) punch.PunchRepository {
	return &punchRepositoryImpl{db: db}
}

// Upsert implements punch.PunchRepository.
func (r *punchRepositoryImpl) Upsert(ctx context.Context, p punch.Punch) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO punches (
			id, employee_code, first_name, last_name, punch_time, state_label,
			verify_type, terminal_sn, terminal_alias, upload_time, raw
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			employee_code = EXCLUDED.employee_code,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			punch_time = EXCLUDED.punch_time,
			state_label = EXCLUDED.state_label,
			verify_type = EXCLUDED.verify_type,
			terminal_sn = EXCLUDED.terminal_sn,
			terminal_alias = EXCLUDED.terminal_alias,
			upload_time = EXCLUDED.upload_time,
			raw = EXCLUDED.raw,
			updated_at = NOW()
	`

	var raw interface{}
	if len(p.Raw) > 0 {
		raw = string(p.Raw)
	}

	_, err := q.Exec(ctx, query,
		p.ID, p.EmployeeCode, p.FirstName, p.LastName, p.PunchTime, p.StateLabel,
		p.VerifyType, p.TerminalSN, p.TerminalAlias, p.UploadTime, raw,
	)
	if err != nil {
		// Two writers racing on the same device ID; the row is already there.
		if database.IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("failed to upsert punch %d: %w", p.ID, err)
	}
	return nil
}

// ListForEmployeeBetween implements punch.PunchRepository.
func (r *punchRepositoryImpl) ListForEmployeeBetween(ctx context.Context, employeeCode string, from, to time.Time) ([]punch.Punch, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, employee_code, first_name, last_name, punch_time, state_label,
			verify_type, terminal_sn, terminal_alias, upload_time, raw, created_at, updated_at
		FROM punches
		WHERE employee_code = $1 AND punch_time >= $2 AND punch_time < $3
		ORDER BY punch_time ASC, id ASC
	`

	rows, err := q.Query(ctx, query, employeeCode, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list punches for %s: %w", employeeCode, err)
	}
	defer rows.Close()

	var punches []punch.Punch
	for rows.Next() {
		p, err := scanPunch(rows)
		if err != nil {
			return nil, err
		}
		punches = append(punches, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return punches, nil
}

// List implements punch.PunchRepository.
func (r *punchRepositoryImpl) List(ctx context.Context, filter punch.Filter) ([]punch.Punch, int64, error) {
	q := GetQuerier(ctx, r.db)

	conditions := []string{"punch_time >= $1", "punch_time < $2"}
	args := []interface{}{filter.From, filter.To}
	argIdx := 3

	if filter.Search != nil && *filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(employee_code ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)", argIdx, argIdx, argIdx))
		args = append(args, "%"+*filter.Search+"%")
		argIdx++
	}
	if filter.State != nil && *filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("state_label = $%d", argIdx))
		args = append(args, *filter.State)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM punches WHERE %s", whereClause)
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count punches: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, employee_code, first_name, last_name, punch_time, state_label,
			verify_type, terminal_sn, terminal_alias, upload_time, raw, created_at, updated_at
		FROM punches
		WHERE %s
		ORDER BY punch_time DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argIdx, argIdx+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list punches: %w", err)
	}
	defer rows.Close()

	var punches []punch.Punch
	for rows.Next() {
		p, err := scanPunch(rows)
		if err != nil {
			return nil, 0, err
		}
		punches = append(punches, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return punches, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPunch(row rowScanner) (punch.Punch, error) {
	var p punch.Punch
	var raw []byte
	err := row.Scan(
		&p.ID, &p.EmployeeCode, &p.FirstName, &p.LastName, &p.PunchTime, &p.StateLabel,
		&p.VerifyType, &p.TerminalSN, &p.TerminalAlias, &p.UploadTime, &raw, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return punch.Punch{}, fmt.Errorf("failed to scan punch: %w", err)
	}
	p.Raw = raw
	return p, nil
}
