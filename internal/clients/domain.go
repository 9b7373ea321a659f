package clients

import "time"

// DateLayout is the form and storage layout for dates of birth.
const DateLayout = "2006-01-02"

// Client is a policy holder managed by the agency.
type Client struct {
	ID        string
	Name      string
	Phone     string
	Email     string
	DOB       *time.Time
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DOBString renders the date of birth for form inputs.
func (c Client) DOBString() string {
	if c.DOB == nil {
		return ""
	}
	return c.DOB.Format(DateLayout)
}

// Input carries raw form values for create and update.
type Input struct {
	Name  string
	Phone string
	Email string
	DOB   string
}
