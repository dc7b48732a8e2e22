package biotime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/employee"
)

type personnel struct {
	EmpCode    flexString `json:"emp_code"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Department *struct {
		Name string `json:"dept_name"`
	} `json:"department"`
	Position *struct {
		Name string `json:"position_name"`
	} `json:"position"`
}

func (p personnel) toEmployee() employee.Employee {
	e := employee.Employee{
		EmployeeCode: string(p.EmpCode),
		DisplayName:  strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName)),
	}
	if p.Department != nil {
		e.Department = p.Department.Name
	}
	if p.Position != nil {
		e.Position = p.Position.Name
	}
	return e
}

// FetchEmployees pages through the controller's personnel list, handing each
// page to fn. Records without an employee code are dropped.
func (c *Client) FetchEmployees(ctx context.Context, fn func([]employee.Employee) error) (int, error) {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("page_size", strconv.Itoa(c.pageSize))
	cursor := &Cursor{query: q}
	pages := 0

	for cursor != nil {
		if pages >= c.maxPages {
			slog.Warn("BioTime: page limit reached while listing employees", "pages", pages)
			return pages, fmt.Errorf("%w after %d pages", ErrPageLimitReached, pages)
		}

		var page listResponse
		if err := c.getJSON(ctx, c.endpoint(employeesPath, cursor.query), &page); err != nil {
			return pages, err
		}
		pages++

		employees := make([]employee.Employee, 0, len(page.Data))
		for _, raw := range page.Data {
			var p personnel
			if err := json.Unmarshal(raw, &p); err != nil || p.EmpCode == "" {
				slog.Warn("BioTime: skipping personnel record without employee code")
				continue
			}
			employees = append(employees, p.toEmployee())
		}
		if err := fn(employees); err != nil {
			return pages, err
		}

		next, err := nextCursor(page.Next, len(page.Data))
		if err != nil {
			return pages, &ExternalServiceError{Path: employeesPath, Message: "invalid next link", Err: err}
		}
		cursor = next
	}
	return pages, nil
}
