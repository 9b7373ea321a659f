package policies

import "time"

// Policy statuses.
const (
	StatusActive  = "Active"
	StatusExpired = "Expired"
	StatusLapsed  = "Lapsed"
)

// Statuses lists the accepted statuses in display order.
var Statuses = []string{StatusActive, StatusExpired, StatusLapsed}

// DateLayout is the form and storage layout for due dates.
const DateLayout = "2006-01-02"

// Display fallbacks for incomplete rows.
const (
	MissingClientName = "Client Name Missing"
	MissingPlanName   = "N/A"
)

// Policy is an insurance contract held by a client.
type Policy struct {
	ID                   string
	ClientID             string
	Company              string
	PlanName             string
	PolicyNo             string
	Premium              float64
	DueDate              time.Time
	Status               string
	CommissionPercentage float64
	CreatedAt            time.Time
	UpdatedAt            time.Time

	// Joined from clients on list queries.
	ClientName  string
	ClientPhone string
	ClientEmail string
}

// DueDateString renders the due date for form inputs.
func (p Policy) DueDateString() string {
	if p.DueDate.IsZero() {
		return ""
	}
	return p.DueDate.Format(DateLayout)
}

// DisplayClientName returns the client name or the missing-name fallback.
func (p Policy) DisplayClientName() string {
	if p.ClientName == "" {
		return MissingClientName
	}
	return p.ClientName
}

// DisplayPlanName returns the plan name or the missing-plan fallback.
func (p Policy) DisplayPlanName() string {
	if p.PlanName == "" {
		return MissingPlanName
	}
	return p.PlanName
}

// Input carries raw form values for create and update.
type Input struct {
	Company              string
	PlanName             string
	PolicyNo             string
	Premium              string
	DueDate              string
	Status               string
	CommissionPercentage string
}

// InputFromPolicy pre-fills an edit form.
func InputFromPolicy(p Policy) Input {
	return Input{
		Company:              p.Company,
		PlanName:             p.PlanName,
		PolicyNo:             p.PolicyNo,
		Premium:              formatNumber(p.Premium),
		DueDate:              p.DueDateString(),
		Status:               p.Status,
		CommissionPercentage: formatNumber(p.CommissionPercentage),
	}
}
