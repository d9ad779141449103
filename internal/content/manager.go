package content

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Profile is the static site content: who the author is, where they
// worked, plus the fun bits. Edited in the data files, never over HTTP.
type Profile struct {
	Experiences []Experience `json:"experiences"`
	Photos      []Photo      `json:"photos"`
	BucketList  []BucketItem `json:"bucketList"`
	Beliefs     []string     `json:"beliefs"`
}

type Experience struct {
	Company     string   `json:"company"`
	Role        string   `json:"role"`
	Range       string   `json:"range"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
}

type Photo struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

type BucketItem struct {
	Item   string `json:"item"`
	Status string `json:"status"` // none, progress, completed
}

type projectsFile struct {
	Projects []Project `json:"projects"`
}

// Manager serves the static site content. Everything is loaded once at
// startup and kept in memory, the data files change only on deploy.
type Manager struct {
	profile  Profile
	projects []Project
	byID     map[string]Project
}

func NewManager(profileReader, projectsReader io.Reader) (*Manager, error) {
	m := &Manager{
		byID: make(map[string]Project),
	}

	log.Println("reading site content ...")

	if err := json.NewDecoder(profileReader).Decode(&m.profile); err != nil {
		return nil, fmt.Errorf("decode profile content: %w", err)
	}

	var pf projectsFile
	if err := json.NewDecoder(projectsReader).Decode(&pf); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}

	for i := range pf.Projects {
		pf.Projects[i].Status = normalizedStatus(pf.Projects[i].Status)
	}
	m.projects = pf.Projects

	for _, p := range m.projects {
		if p.ID == "" {
			return nil, fmt.Errorf("project %q has no id", p.Name)
		}
		if _, ok := m.byID[p.ID]; ok {
			return nil, fmt.Errorf("duplicate project id %q", p.ID)
		}
		m.byID[p.ID] = p
	}

	// newest first, projects without a parsable date sink to the end
	sort.SliceStable(m.projects, func(i, j int) bool {
		return parseCompletedDate(m.projects[i].DateCompleted).
			After(parseCompletedDate(m.projects[j].DateCompleted))
	})

	log.Printf("site content read: %d experiences, %d projects", len(m.profile.Experiences), len(m.projects))

	return m, nil
}

func (m *Manager) Profile() Profile {
	return m.profile
}

// AllProjects returns every project, newest completed first.
func (m *Manager) AllProjects() []Project {
	projects := make([]Project, len(m.projects))
	copy(projects, m.projects)
	return projects
}

func (m *Manager) ProjectByID(id string) (Project, bool) {
	p, ok := m.byID[id]
	return p, ok
}

func (m *Manager) FeaturedProjects() []Project {
	var featured []Project
	for _, p := range m.projects {
		if p.Featured {
			featured = append(featured, p)
		}
	}
	return featured
}

// ProjectsByCategory matches by substring, case-insensitive, so
// "security" finds both "Cybersecurity" and "Network Security".
func (m *Manager) ProjectsByCategory(category string) []Project {
	var matched []Project
	for _, p := range m.projects {
		if strings.Contains(strings.ToLower(p.Category), strings.ToLower(category)) {
			matched = append(matched, p)
		}
	}
	return matched
}

func (m *Manager) ProjectsByTechnology(technology string) []Project {
	var matched []Project
	for _, p := range m.projects {
		for _, tech := range p.Technologies {
			if strings.Contains(strings.ToLower(tech), strings.ToLower(technology)) {
				matched = append(matched, p)
				break
			}
		}
	}
	return matched
}

func parseCompletedDate(date string) time.Time {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t
		}
	}
	return time.Time{}
}
