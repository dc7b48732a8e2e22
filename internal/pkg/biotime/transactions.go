package biotime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/punch"
)

// deviceTimeLayout is how the controller formats wall-clock times (no zone).
const deviceTimeLayout = "2006-01-02 15:04:05"

// Cursor points at the next page of a paginated listing. A nil cursor means
// the first page.
type Cursor struct {
	query url.Values
}

// Page returns the page number the cursor refers to. A nil cursor is page 1;
// a cursor without a readable page number is 0.
func (c *Cursor) Page() int {
	if c == nil {
		return 1
	}
	n, _ := strconv.Atoi(c.query.Get("page"))
	return n
}

// listResponse is the controller's paginated envelope
type listResponse struct {
	Count int               `json:"count"`
	Next  *string           `json:"next"`
	Data  []json.RawMessage `json:"data"`
}

// flexString accepts JSON strings and numbers; emp_code comes as either
// depending on controller version.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type transaction struct {
	ID                int64      `json:"id"`
	EmpCode           flexString `json:"emp_code"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	PunchTime         string     `json:"punch_time"`
	PunchStateDisplay string     `json:"punch_state_display"`
	VerifyTypeDisplay string     `json:"verify_type_display"`
	TerminalSN        string     `json:"terminal_sn"`
	TerminalAlias     string     `json:"terminal_alias"`
	UploadTime        string     `json:"upload_time"`
}

// ParseTransaction converts one raw controller record into a Punch. Records
// that cannot be decoded still come back, with the missing fields zero, so the
// caller's validation reports them as malformed.
func ParseTransaction(raw json.RawMessage, loc *time.Location) punch.Punch {
	p := punch.Punch{Raw: raw}

	var tx transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return p
	}

	p.ID = tx.ID
	p.EmployeeCode = string(tx.EmpCode)
	p.FirstName = strings.TrimSpace(tx.FirstName)
	p.LastName = strings.TrimSpace(tx.LastName)
	p.StateLabel = tx.PunchStateDisplay
	p.VerifyType = tx.VerifyTypeDisplay
	p.TerminalSN = tx.TerminalSN
	p.TerminalAlias = tx.TerminalAlias

	if t, ok := parseDeviceTime(tx.PunchTime, loc); ok {
		p.PunchTime = t
	}
	if t, ok := parseDeviceTime(tx.UploadTime, loc); ok {
		p.UploadTime = &t
	}
	return p
}

// parseDeviceTime reads controller timestamps. Zone-less values are wall-clock
// time in loc; RFC3339 values carry their own offset.
func parseDeviceTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.ParseInLocation(deviceTimeLayout, s, loc); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// FetchPunches fetches one page of transactions in window. The returned cursor
// is nil when there are no more pages.
func (c *Client) FetchPunches(ctx context.Context, window punch.Window, cursor *Cursor) ([]punch.Punch, *Cursor, error) {
	query := c.windowQuery(window)
	if cursor != nil {
		query = cursor.query
	}

	var page listResponse
	if err := c.getJSON(ctx, c.endpoint(transactionsPath, query), &page); err != nil {
		return nil, nil, err
	}

	punches := make([]punch.Punch, 0, len(page.Data))
	for _, raw := range page.Data {
		punches = append(punches, ParseTransaction(raw, c.loc))
	}

	next, err := nextCursor(page.Next, len(page.Data))
	if err != nil {
		return nil, nil, &ExternalServiceError{Path: transactionsPath, Message: "invalid next link", Err: err}
	}
	return punches, next, nil
}

// FetchAllPunches follows cursors until the listing ends or MaxPages pages
// were read, handing each page to fn as soon as it arrives. It returns the
// number of pages read.
func (c *Client) FetchAllPunches(ctx context.Context, window punch.Window, fn func([]punch.Punch) error) (int, error) {
	var cursor *Cursor
	pages := 0

	for {
		if pages >= c.maxPages {
			slog.Warn("BioTime: page limit reached, stopping pagination", "pages", pages, "next_page", cursor.Page())
			return pages, fmt.Errorf("%w after %d pages", ErrPageLimitReached, pages)
		}

		punches, next, err := c.FetchPunches(ctx, window, cursor)
		if err != nil {
			return pages, err
		}
		pages++

		if err := fn(punches); err != nil {
			return pages, err
		}
		if next == nil {
			return pages, nil
		}
		cursor = next
	}
}

func (c *Client) windowQuery(window punch.Window) url.Values {
	q := url.Values{}
	q.Set("start_time", window.Start.In(c.loc).Format(deviceTimeLayout))
	q.Set("end_time", window.End.In(c.loc).Format(deviceTimeLayout))
	q.Set("page", "1")
	q.Set("page_size", strconv.Itoa(c.pageSize))
	return q
}

// nextCursor keeps only the query of the server's next link. The host in that
// link is whatever the controller believes its own address is, which is often
// not reachable from here.
func nextCursor(next *string, pageLen int) (*Cursor, error) {
	if next == nil || strings.TrimSpace(*next) == "" || pageLen == 0 {
		return nil, nil
	}
	u, err := url.Parse(*next)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	if q.Get("page") == "" {
		return nil, fmt.Errorf("next link %q has no page parameter", *next)
	}
	return &Cursor{query: q}, nil
}
