package models

import "strings"

// Status is the closed set of shipment states. Stored as its label.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusPending
	StatusProcessing
	StatusInTransit
	StatusOutForDelivery
	StatusDelivered
	StatusFailedDelivery

	statusCount
)

// Severity is the semantic colour tier a status is displayed with.
type Severity string

const (
	SeverityNeutral       Severity = "neutral"
	SeveritySuccess       Severity = "success"
	SeverityInformational Severity = "info"
	SeverityWarning       Severity = "warning"
	SeverityDanger        Severity = "danger"
)

type statusMeta struct {
	label    string
	severity Severity
}

var statusTable = [...]statusMeta{
	StatusUnknown:        {label: "", severity: SeverityNeutral},
	StatusPending:        {label: "Pending", severity: SeverityWarning},
	StatusProcessing:     {label: "Processing", severity: SeverityInformational},
	StatusInTransit:      {label: "In Transit", severity: SeverityInformational},
	StatusOutForDelivery: {label: "Out for Delivery", severity: SeverityInformational},
	StatusDelivered:      {label: "Delivered", severity: SeveritySuccess},
	StatusFailedDelivery: {label: "Failed Delivery", severity: SeverityDanger},
}

// statusTable must have exactly one entry per Status.
var (
	_ [len(statusTable) - int(statusCount)]struct{}
	_ [int(statusCount) - len(statusTable)]struct{}
)

func (s Status) String() string {
	if s >= statusCount {
		return ""
	}
	return statusTable[s].label
}

func (s Status) Severity() Severity {
	if s >= statusCount {
		return SeverityNeutral
	}
	return statusTable[s].severity
}

// ParseStatus maps a stored label to its Status. Unknown labels give StatusUnknown, false.
func ParseStatus(label string) (Status, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return StatusUnknown, false
	}
	for i := StatusPending; i < statusCount; i++ {
		if statusTable[i].label == label {
			return i, true
		}
	}
	return StatusUnknown, false
}

// Statuses lists the selectable statuses in display order.
func Statuses() []Status {
	out := make([]Status, 0, int(statusCount)-1)
	for i := StatusPending; i < statusCount; i++ {
		out = append(out, i)
	}
	return out
}
