package punch

import (
	"encoding/json"
	"time"
)

// Punch is one raw terminal scan as delivered by the device controller.
// ID is assigned by the device and is the deduplication key.
type Punch struct {
	ID            int64
	EmployeeCode  string
	FirstName     string
	LastName      string
	PunchTime     time.Time
	StateLabel    string
	VerifyType    string
	TerminalSN    string
	TerminalAlias string
	UploadTime    *time.Time
	Raw           json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DisplayName joins first and last name as the terminal reports them.
func (p Punch) DisplayName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// Validate reports a MalformedRecordError when the punch cannot be keyed.
func (p Punch) Validate() error {
	switch {
	case p.ID <= 0:
		return &MalformedRecordError{ID: p.ID, Reason: "missing id"}
	case p.EmployeeCode == "":
		return &MalformedRecordError{ID: p.ID, Reason: "missing employee code"}
	case p.PunchTime.IsZero():
		return &MalformedRecordError{ID: p.ID, Reason: "missing punch time"}
	}
	return nil
}
