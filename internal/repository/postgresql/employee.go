package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

const employeeColumns = `employee_code, display_name, department, position, excluded, deleted_on_device, created_at, updated_at`

// UpsertFromDevice implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) UpsertFromDevice(ctx context.Context, emp employee.Employee) error {
	q := GetQuerier(ctx, e.db)

	query := `
		INSERT INTO employees (employee_code, display_name, department, position)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (employee_code) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			department = EXCLUDED.department,
			position = EXCLUDED.position,
			deleted_on_device = FALSE,
			updated_at = NOW()
	`

	if _, err := q.Exec(ctx, query, emp.EmployeeCode, emp.DisplayName, emp.Department, emp.Position); err != nil {
		return fmt.Errorf("failed to upsert employee %s: %w", emp.EmployeeCode, err)
	}
	return nil
}

// MarkMissingAsDeleted implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) MarkMissingAsDeleted(ctx context.Context, seen []string) (int64, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		UPDATE employees
		SET deleted_on_device = TRUE, updated_at = NOW()
		WHERE deleted_on_device = FALSE AND NOT (employee_code = ANY($1))
	`

	if seen == nil {
		seen = []string{}
	}
	tag, err := q.Exec(ctx, query, seen)
	if err != nil {
		return 0, fmt.Errorf("failed to mark removed employees: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetByEmployeeCode implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetByEmployeeCode(ctx context.Context, employeeCode string) (employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE employee_code = $1`

	emp, err := scanEmployee(q.QueryRow(ctx, query, employeeCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee %s: %w", employeeCode, err)
	}
	return emp, nil
}

// ListActive implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) ListActive(ctx context.Context) ([]employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `SELECT ` + employeeColumns + `
		FROM employees
		WHERE excluded = FALSE AND deleted_on_device = FALSE
		ORDER BY employee_code
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active employees: %w", err)
	}
	defer rows.Close()

	var employees []employee.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return employees, nil
}

// SetExcluded implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) SetExcluded(ctx context.Context, employeeCode string, excluded bool) error {
	q := GetQuerier(ctx, e.db)

	tag, err := q.Exec(ctx, `
		UPDATE employees SET excluded = $1, updated_at = NOW() WHERE employee_code = $2
	`, excluded, employeeCode)
	if err != nil {
		return fmt.Errorf("failed to update exclusion for %s: %w", employeeCode, err)
	}
	if tag.RowsAffected() == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}

// List implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) List(ctx context.Context, filter employee.Filter) ([]employee.Employee, int64, error) {
	q := GetQuerier(ctx, e.db)

	conditions := []string{"1=1"}
	args := []interface{}{}
	argIdx := 1

	if filter.Search != nil && *filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(employee_code ILIKE $%d OR display_name ILIKE $%d OR department ILIKE $%d)", argIdx, argIdx, argIdx))
		args = append(args, "%"+*filter.Search+"%")
		argIdx++
	}
	if filter.Excluded != nil {
		conditions = append(conditions, fmt.Sprintf("excluded = $%d", argIdx))
		args = append(args, *filter.Excluded)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM employees WHERE %s", whereClause)
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count employees: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s
		FROM employees
		WHERE %s
		ORDER BY deleted_on_device ASC, employee_code ASC
		LIMIT $%d OFFSET $%d
	`, employeeColumns, whereClause, argIdx, argIdx+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []employee.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, 0, err
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return employees, total, nil
}

func scanEmployee(row rowScanner) (employee.Employee, error) {
	var emp employee.Employee
	err := row.Scan(
		&emp.EmployeeCode, &emp.DisplayName, &emp.Department, &emp.Position,
		&emp.Excluded, &emp.DeletedOnDevice, &emp.CreatedAt, &emp.UpdatedAt,
	)
	return emp, err
}
