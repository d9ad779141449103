package content

// ProjectLinks holds the optional outbound links of a project. Only the
// set ones are rendered.
type ProjectLinks struct {
	Live          string `json:"live,omitempty"`
	Github        string `json:"github,omitempty"`
	Report        string `json:"report,omitempty"`
	Documentation string `json:"documentation,omitempty"`
	Guide         string `json:"guide,omitempty"`
	Playstore     string `json:"playstore,omitempty"`
}

type Project struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	ShortDescription string       `json:"shortDescription"`
	Description      string       `json:"description"`
	Technologies     []string     `json:"technologies"`
	Category         string       `json:"category"`
	Status           string       `json:"status"`
	Featured         bool         `json:"featured"`
	Images           []string     `json:"images,omitempty"`
	Links            ProjectLinks `json:"links"`
	Features         []string     `json:"features"`
	Challenges       []string     `json:"challenges"`
	DateCompleted    string       `json:"dateCompleted"`
}

const (
	StatusCompleted  = "Completed"
	StatusInProgress = "In Progress"
	StatusPlanned    = "Planned"
)

// normalizedStatus maps whatever the data file says to one of the three
// known statuses, unknown values fall back to planned.
func normalizedStatus(status string) string {
	switch status {
	case StatusCompleted, StatusInProgress, StatusPlanned:
		return status
	default:
		return StatusPlanned
	}
}
