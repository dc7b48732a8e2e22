package attendance

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cmlabs-hris/biotime-attendance-go/internal/config"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/domain/punch"
	"github.com/cmlabs-hris/biotime-attendance-go/internal/pkg/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	doha  = time.FixedZone("AST", 3*60*60)
	today = civil.Date{Year: 2026, Month: time.October, Day: 18}
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 18, hour, minute, 0, 0, doha)
}

func scan(id int64, code string, t time.Time) punch.Punch {
	return punch.Punch{ID: id, EmployeeCode: code, FirstName: "Amal", PunchTime: t}
}

func TestDerive_SinglePunchBeforeDecisionIsCheckIn(t *testing.T) {
	day := DefaultRules(doha).Derive("1001", today, []punch.Punch{scan(1, "1001", at(7, 0))})

	require.NotNil(t, day.CheckIn)
	assert.Equal(t, attendance.StatusPresent, day.CheckIn.Status)
	assert.True(t, day.CheckIn.Time.Equal(at(7, 0)))
	assert.Nil(t, day.CheckOut)
	assert.Equal(t, float64(0), day.TotalHours)
	assert.Equal(t, 1, day.PunchCount)
}

func TestDerive_SinglePunchAfterDecisionIsCheckoutOnly(t *testing.T) {
	day := DefaultRules(doha).Derive("1001", today, []punch.Punch{scan(1, "1001", at(11, 15))})

	assert.Nil(t, day.CheckIn)
	require.NotNil(t, day.CheckOut)
	assert.Equal(t, attendance.StatusEarlyOut, day.CheckOut.Status)
	assert.True(t, day.CheckOut.Time.Equal(at(11, 15)))
	assert.Equal(t, float64(0), day.TotalHours)
	assert.False(t, day.IsPresent())
}

func TestDerive_LateCheckInAndCheckout(t *testing.T) {
	day := DefaultRules(doha).Derive("1001", today, []punch.Punch{
		scan(2, "1001", at(17, 10)),
		scan(1, "1001", at(8, 45)),
	})

	require.NotNil(t, day.CheckIn)
	require.NotNil(t, day.CheckOut)
	assert.Equal(t, attendance.StatusLate, day.CheckIn.Status)
	assert.Equal(t, attendance.StatusCheckout, day.CheckOut.Status)
	assert.Equal(t, 8.42, day.TotalHours)
	assert.True(t, day.IsPresent())
}

func TestDerive_DuplicateScanKeepsOnlyCheckIn(t *testing.T) {
	day := DefaultRules(doha).Derive("1001", today, []punch.Punch{
		scan(1, "1001", at(7, 30)),
		scan(2, "1001", at(7, 30)),
	})

	require.NotNil(t, day.CheckIn)
	assert.Nil(t, day.CheckOut)
	assert.Equal(t, float64(0), day.TotalHours)

	// Same minute, different second
	day = DefaultRules(doha).Derive("1001", today, []punch.Punch{
		scan(1, "1001", at(7, 30)),
		scan(2, "1001", at(7, 30).Add(20*time.Second)),
	})
	require.NotNil(t, day.CheckIn)
	assert.Nil(t, day.CheckOut)
}

func TestDerive_BoundaryTimes(t *testing.T) {
	rules := DefaultRules(doha)

	onTime := rules.Derive("1001", today, []punch.Punch{scan(1, "1001", at(8, 30))})
	assert.Equal(t, attendance.StatusPresent, onTime.CheckIn.Status)

	atDecision := rules.Derive("1001", today, []punch.Punch{scan(1, "1001", at(10, 0))})
	assert.Nil(t, atDecision.CheckIn)
	require.NotNil(t, atDecision.CheckOut)

	regular := rules.Derive("1001", today, []punch.Punch{scan(1, "1001", at(8, 0)), scan(2, "1001", at(15, 30))})
	assert.Equal(t, attendance.StatusCheckout, regular.CheckOut.Status)
	assert.Equal(t, 7.5, regular.TotalHours)
}

func TestDerive_FirstPunchAfterDecisionHasNoCheckIn(t *testing.T) {
	day := DefaultRules(doha).Derive("1001", today, []punch.Punch{
		scan(1, "1001", at(10, 30)),
		scan(2, "1001", at(16, 0)),
	})

	assert.Nil(t, day.CheckIn)
	require.NotNil(t, day.CheckOut)
	assert.Equal(t, attendance.StatusCheckout, day.CheckOut.Status)
	assert.Equal(t, float64(0), day.TotalHours)
}

func TestDerive_IgnoresOtherDaysAndEmployees(t *testing.T) {
	day := DefaultRules(doha).Derive("1001", today, []punch.Punch{
		scan(1, "1001", at(7, 0).Add(-24*time.Hour)),
		scan(2, "1002", at(7, 5)),
		scan(3, "1001", at(9, 0)),
	})

	require.NotNil(t, day.CheckIn)
	assert.True(t, day.CheckIn.Time.Equal(at(9, 0)))
	assert.Equal(t, 1, day.PunchCount)
}

func TestDerive_UsesReferenceTimezone(t *testing.T) {
	// 04:30 UTC is 07:30 in Doha
	p := scan(1, "1001", time.Date(2026, 10, 18, 4, 30, 0, 0, time.UTC))

	day := DefaultRules(doha).Derive("1001", today, []punch.Punch{p})
	require.NotNil(t, day.CheckIn)
	assert.Equal(t, attendance.StatusPresent, day.CheckIn.Status)
}

func TestDerive_IsDeterministic(t *testing.T) {
	punches := []punch.Punch{
		scan(3, "1001", at(12, 0)),
		scan(1, "1001", at(8, 45)),
		scan(2, "1001", at(17, 10)),
	}
	reversed := []punch.Punch{punches[2], punches[1], punches[0]}

	first, err := json.Marshal(DefaultRules(doha).Derive("1001", today, punches))
	require.NoError(t, err)
	second, err := json.Marshal(DefaultRules(doha).Derive("1001", today, reversed))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestDerive_NoPunches(t *testing.T) {
	day := DefaultRules(doha).Derive("1001", today, nil)

	assert.Nil(t, day.CheckIn)
	assert.Nil(t, day.CheckOut)
	assert.Equal(t, 0, day.PunchCount)
}

func TestGroupByDay(t *testing.T) {
	groups := GroupByDay([]punch.Punch{
		scan(1, "1001", at(7, 0)),
		scan(2, "1001", at(17, 0)),
		scan(3, "1002", at(8, 0)),
		// 23:30 UTC on the 17th is already the 18th in Doha
		scan(4, "1002", time.Date(2026, 10, 17, 23, 30, 0, 0, time.UTC)),
		scan(5, "1002", at(1, 0).Add(-3*time.Hour)),
	}, doha)

	assert.Len(t, groups[attendance.Key{EmployeeCode: "1001", Date: today}], 2)
	assert.Len(t, groups[attendance.Key{EmployeeCode: "1002", Date: today}], 2)
	assert.Len(t, groups[attendance.Key{EmployeeCode: "1002", Date: today.AddDays(-1)}], 1)
}

func TestNewRules(t *testing.T) {
	rules, err := NewRules(config.AttendanceConfig{
		DecisionTime:   "11:00",
		LateAfter:      "09:00",
		EarlyOutBefore: "16:00",
	}, doha)
	require.NoError(t, err)
	assert.Equal(t, 11*time.Hour, rules.DecisionTime)

	day := rules.Derive("1001", today, []punch.Punch{scan(1, "1001", at(8, 45))})
	assert.Equal(t, attendance.StatusPresent, day.CheckIn.Status)

	_, err = NewRules(config.AttendanceConfig{DecisionTime: "late", LateAfter: "09:00", EarlyOutBefore: "16:00"}, doha)
	assert.Error(t, err)
}
