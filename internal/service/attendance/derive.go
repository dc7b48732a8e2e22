package attendance

import (
	"sort"
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/config"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/punch"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
	"github.com/shopspring/decimal"
)

// Rules classifies a day's punches. Cutoffs are offsets from local midnight in
// Location.
type Rules struct {
	Location       *time.Location
	DecisionTime   time.Duration
	LateAfter      time.Duration
	EarlyOutBefore time.Duration
}

func DefaultRules(loc *time.Location) Rules {
	return Rules{
		Location:       loc,
		DecisionTime:   10 * time.Hour,
		LateAfter:      8*time.Hour + 30*time.Minute,
		EarlyOutBefore: 15*time.Hour + 30*time.Minute,
	}
}

// NewRules builds Rules from the attendance configuration.
func NewRules(cfg config.AttendanceConfig, loc *time.Location) (Rules, error) {
	decision, err := config.ParseClock(cfg.DecisionTime)
	if err != nil {
		return Rules{}, err
	}
	late, err := config.ParseClock(cfg.LateAfter)
	if err != nil {
		return Rules{}, err
	}
	earlyOut, err := config.ParseClock(cfg.EarlyOutBefore)
	if err != nil {
		return Rules{}, err
	}
	return Rules{Location: loc, DecisionTime: decision, LateAfter: late, EarlyOutBefore: earlyOut}, nil
}

// Derive turns one employee's punches into the attendance day for date.
// Punches falling on another civil date are ignored. The result depends only
// on the arguments.
func (r Rules) Derive(employeeCode string, date civil.Date, punches []punch.Punch) attendance.AttendanceDay {
	day := attendance.AttendanceDay{EmployeeCode: employeeCode, Date: date}

	sorted := make([]punch.Punch, 0, len(punches))
	for _, p := range punches {
		if p.EmployeeCode == employeeCode && civil.FromTime(p.PunchTime, r.Location) == date {
			sorted = append(sorted, p)
		}
	}
	if len(sorted) == 0 {
		return day
	}
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].PunchTime.Equal(sorted[j].PunchTime) {
			return sorted[i].PunchTime.Before(sorted[j].PunchTime)
		}
		return sorted[i].ID < sorted[j].ID
	})

	first, last := sorted[0], sorted[len(sorted)-1]
	day.PunchCount = len(sorted)
	day.EmployeeName = last.DisplayName()

	if tod := r.timeOfDay(first.PunchTime); tod < r.DecisionTime {
		status := attendance.StatusPresent
		if tod > r.LateAfter {
			status = attendance.StatusLate
		}
		day.CheckIn = &attendance.Mark{Time: first.PunchTime, Status: status}
	}

	var out *punch.Punch
	switch {
	case len(sorted) >= 2 && last.PunchTime.After(first.PunchTime):
		out = &last
	case len(sorted) == 1 && r.timeOfDay(first.PunchTime) >= r.DecisionTime:
		out = &first
	}
	if out != nil {
		status := attendance.StatusCheckout
		if r.timeOfDay(out.PunchTime) < r.EarlyOutBefore {
			status = attendance.StatusEarlyOut
		}
		day.CheckOut = &attendance.Mark{Time: out.PunchTime, Status: status}
	}

	// A second scan within the same minute is not a checkout.
	if day.CheckIn != nil && day.CheckOut != nil && r.clock(day.CheckIn.Time) == r.clock(day.CheckOut.Time) {
		day.CheckOut = nil
	}

	if day.CheckIn != nil && day.CheckOut != nil {
		day.TotalHours = roundHours(day.CheckOut.Time.Sub(day.CheckIn.Time))
	}
	return day
}

// GroupByDay buckets punches by employee and civil date in loc.
func GroupByDay(punches []punch.Punch, loc *time.Location) map[attendance.Key][]punch.Punch {
	groups := make(map[attendance.Key][]punch.Punch)
	for _, p := range punches {
		key := attendance.Key{EmployeeCode: p.EmployeeCode, Date: civil.FromTime(p.PunchTime, loc)}
		groups[key] = append(groups[key], p)
	}
	return groups
}

func (r Rules) timeOfDay(t time.Time) time.Duration {
	local := t.In(r.Location)
	return time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
}

// clock is the displayed "15:04" time.
func (r Rules) clock(t time.Time) string {
	return t.In(r.Location).Format("15:04")
}

func roundHours(d time.Duration) float64 {
	hours, _ := decimal.NewFromInt(int64(d)).
		Div(decimal.NewFromInt(int64(time.Hour))).
		Round(2).
		Float64()
	return hours
}
