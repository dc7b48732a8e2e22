// Package memory holds map-backed implementations of the repository
// interfaces. Services and handlers use it in tests in place of PostgreSQL.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/absence"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/employee"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/punch"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/database"
	"github.com/google/uuid"
)

// Store is one shared dataset so joins (absences against the directory)
// behave like the SQL versions.
type Store struct {
	mu        sync.Mutex
	punches   map[int64]punch.Punch
	days      map[attendance.Key]attendance.AttendanceDay
	absences  map[attendance.Key]absence.AbsenceRecord
	employees map[string]employee.Employee
	users     map[string]user.User
}

func NewStore() *Store {
	return &Store{
		punches:   make(map[int64]punch.Punch),
		days:      make(map[attendance.Key]attendance.AttendanceDay),
		absences:  make(map[attendance.Key]absence.AbsenceRecord),
		employees: make(map[string]employee.Employee),
		users:     make(map[string]user.User),
	}
}

func (s *Store) Punches() punch.PunchRepository {
	return punchRepo{s}
}

func (s *Store) Days() attendance.AttendanceDayRepository {
	return dayRepo{s}
}

func (s *Store) Absences() absence.AbsenceRepository {
	return absenceRepo{s}
}

func (s *Store) Employees() employee.EmployeeRepository {
	return employeeRepo{s}
}

func (s *Store) Users() user.UserRepository {
	return userRepo{s}
}

func (s *Store) Transactor() database.Transactor {
	return transactor{}
}

// AbsenceCount returns how many absence records exist.
func (s *Store) AbsenceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.absences)
}

// Absence returns the stored record for a key.
func (s *Store) Absence(code string, date civil.Date) (absence.AbsenceRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.absences[attendance.Key{EmployeeCode: code, Date: date}]
	return rec, ok
}

// Day returns the stored attendance day for a key.
func (s *Store) Day(code string, date civil.Date) (attendance.AttendanceDay, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.days[attendance.Key{EmployeeCode: code, Date: date}]
	return d, ok
}

type transactor struct{}

func (transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	start := (page - 1) * limit
	if start < 0 {
		start = 0
	}
	if start >= len(items) {
		return nil
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func inRange(d, from, to civil.Date) bool {
	return !d.Before(from) && !d.After(to)
}

// ===== punches =====

type punchRepo struct{ s *Store }

func (r punchRepo) Upsert(_ context.Context, p punch.Punch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	if old, ok := r.s.punches[p.ID]; ok {
		p.CreatedAt = old.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.s.punches[p.ID] = p
	return nil
}

func (r punchRepo) ListForEmployeeBetween(_ context.Context, employeeCode string, from, to time.Time) ([]punch.Punch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []punch.Punch
	for _, p := range r.s.punches {
		if p.EmployeeCode == employeeCode && !p.PunchTime.Before(from) && p.PunchTime.Before(to) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PunchTime.Equal(out[j].PunchTime) {
			return out[i].PunchTime.Before(out[j].PunchTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r punchRepo) List(_ context.Context, filter punch.Filter) ([]punch.Punch, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []punch.Punch
	for _, p := range r.s.punches {
		if p.PunchTime.Before(filter.From) || !p.PunchTime.Before(filter.To) {
			continue
		}
		if filter.Search != nil && *filter.Search != "" {
			q := strings.ToLower(*filter.Search)
			if !strings.Contains(strings.ToLower(p.EmployeeCode+" "+p.FirstName+" "+p.LastName), q) {
				continue
			}
		}
		if filter.State != nil && *filter.State != "" && p.StateLabel != *filter.State {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PunchTime.Equal(out[j].PunchTime) {
			return out[i].PunchTime.After(out[j].PunchTime)
		}
		return out[i].ID > out[j].ID
	})
	return paginate(out, filter.Page, filter.Limit), int64(len(out)), nil
}

// ===== attendance days =====

type dayRepo struct{ s *Store }

func (r dayRepo) Upsert(_ context.Context, day attendance.AttendanceDay) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	day.UpdatedAt = time.Now()
	r.s.days[attendance.Key{EmployeeCode: day.EmployeeCode, Date: day.Date}] = day
	return nil
}

func (r dayRepo) GetByEmployeeAndDate(_ context.Context, employeeCode string, date civil.Date) (*attendance.AttendanceDay, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.days[attendance.Key{EmployeeCode: employeeCode, Date: date}]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r dayRepo) ListPresentCodes(_ context.Context, date civil.Date) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var codes []string
	for k, d := range r.s.days {
		if k.Date == date && d.IsPresent() {
			codes = append(codes, k.EmployeeCode)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func (r dayRepo) List(_ context.Context, filter attendance.Filter) ([]attendance.AttendanceDay, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []attendance.AttendanceDay
	for k, d := range r.s.days {
		if !inRange(k.Date, filter.From, filter.To) {
			continue
		}
		if filter.EmployeeCode != nil && *filter.EmployeeCode != "" && k.EmployeeCode != *filter.EmployeeCode {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].EmployeeCode < out[j].EmployeeCode
	})
	return paginate(out, filter.Page, filter.Limit), int64(len(out)), nil
}

func (r dayRepo) CountByStatus(_ context.Context, from, to civil.Date) (attendance.StatusCounts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var counts attendance.StatusCounts
	for k, d := range r.s.days {
		if !inRange(k.Date, from, to) {
			continue
		}
		if d.CheckIn != nil {
			switch d.CheckIn.Status {
			case attendance.StatusPresent:
				counts.Present++
			case attendance.StatusLate:
				counts.Late++
			}
		}
		if d.CheckOut != nil && d.CheckOut.Status == attendance.StatusEarlyOut {
			counts.EarlyOut++
		}
	}
	return counts, nil
}

// ===== absences =====

type absenceRepo struct{ s *Store }

// LockDay is a no-op; every store call already holds the store mutex.
func (r absenceRepo) LockDay(_ context.Context, _ string, _ civil.Date) error {
	return nil
}

func (r absenceRepo) InsertMissing(_ context.Context, records []absence.AbsenceRecord) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inserted := 0
	for _, rec := range records {
		key := attendance.Key{EmployeeCode: rec.EmployeeCode, Date: rec.Date}
		if _, exists := r.s.absences[key]; exists {
			continue
		}
		if day, ok := r.s.days[key]; ok && day.IsPresent() {
			continue
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.CreatedAt = time.Now()
		r.s.absences[key] = rec
		inserted++
	}
	return inserted, nil
}

func (r absenceRepo) Delete(_ context.Context, employeeCode string, date civil.Date) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := attendance.Key{EmployeeCode: employeeCode, Date: date}
	if _, ok := r.s.absences[key]; !ok {
		return false, nil
	}
	delete(r.s.absences, key)
	return true, nil
}

func (r absenceRepo) visible(from, to civil.Date) []absence.AbsenceRecord {
	var out []absence.AbsenceRecord
	for k, rec := range r.s.absences {
		if !inRange(k.Date, from, to) {
			continue
		}
		if emp, ok := r.s.employees[k.EmployeeCode]; ok && emp.Excluded {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (r absenceRepo) List(_ context.Context, filter absence.Filter) ([]absence.AbsenceRecord, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.visible(filter.From, filter.To)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].EmployeeCode < out[j].EmployeeCode
	})
	return paginate(out, filter.Page, filter.Limit), int64(len(out)), nil
}

func (r absenceRepo) CountBetween(_ context.Context, from, to civil.Date) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.visible(from, to))), nil
}

// ===== employees =====

type employeeRepo struct{ s *Store }

func (r employeeRepo) UpsertFromDevice(_ context.Context, e employee.Employee) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	if old, ok := r.s.employees[e.EmployeeCode]; ok {
		old.DisplayName = e.DisplayName
		old.Department = e.Department
		old.Position = e.Position
		old.DeletedOnDevice = false
		old.UpdatedAt = now
		r.s.employees[e.EmployeeCode] = old
		return nil
	}
	r.s.employees[e.EmployeeCode] = employee.Employee{
		EmployeeCode: e.EmployeeCode,
		DisplayName:  e.DisplayName,
		Department:   e.Department,
		Position:     e.Position,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return nil
}

func (r employeeRepo) MarkMissingAsDeleted(_ context.Context, seen []string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	keep := make(map[string]bool, len(seen))
	for _, code := range seen {
		keep[code] = true
	}
	var n int64
	for code, e := range r.s.employees {
		if keep[code] || e.DeletedOnDevice {
			continue
		}
		e.DeletedOnDevice = true
		r.s.employees[code] = e
		n++
	}
	return n, nil
}

func (r employeeRepo) GetByEmployeeCode(_ context.Context, employeeCode string) (employee.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.employees[employeeCode]
	if !ok {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e, nil
}

func (r employeeRepo) ListActive(_ context.Context) ([]employee.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []employee.Employee
	for _, e := range r.s.employees {
		if e.IsActive() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeCode < out[j].EmployeeCode })
	return out, nil
}

func (r employeeRepo) SetExcluded(_ context.Context, employeeCode string, excluded bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.employees[employeeCode]
	if !ok {
		return employee.ErrEmployeeNotFound
	}
	e.Excluded = excluded
	e.UpdatedAt = time.Now()
	r.s.employees[employeeCode] = e
	return nil
}

func (r employeeRepo) List(_ context.Context, filter employee.Filter) ([]employee.Employee, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []employee.Employee
	for _, e := range r.s.employees {
		if filter.Search != nil && *filter.Search != "" {
			q := strings.ToLower(*filter.Search)
			if !strings.Contains(strings.ToLower(e.EmployeeCode+" "+e.DisplayName+" "+e.Department), q) {
				continue
			}
		}
		if filter.Excluded != nil && e.Excluded != *filter.Excluded {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeCode < out[j].EmployeeCode })
	return paginate(out, filter.Page, filter.Limit), int64(len(out)), nil
}

// ===== users =====

type userRepo struct{ s *Store }

func (r userRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[email]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return u, nil
}

func (r userRepo) Create(_ context.Context, newUser user.User) (user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	newUser.ID = uuid.NewString()
	newUser.CreatedAt = time.Now()
	newUser.UpdatedAt = newUser.CreatedAt
	r.s.users[newUser.Email] = newUser
	return newUser, nil
}

func (r userRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.users)), nil
}
