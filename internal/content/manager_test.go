package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProfileJson = `{
	"experiences": [
		{
			"company": "Vane Solutions",
			"role": "Software Engineer",
			"range": "July 2025 - Today",
			"description": "Designing and developing secure software solutions.",
			"skills": ["TypeScript", "Node.js"]
		},
		{
			"company": "Tassili Airlines",
			"role": "Internship",
			"range": "Dec 2024 - July 2025",
			"description": "Firewall rule optimization.",
			"skills": ["Python"]
		}
	],
	"photos": [
		{"src": "/images/me-1.jpg", "alt": "headshot"}
	],
	"bucketList": [
		{"item": "Finish my studies", "status": "completed"},
		{"item": "Travel the world", "status": "progress"}
	],
	"beliefs": [
		"Security through obscurity is not security"
	]
}`

const testProjectsJson = `{
	"projects": [
		{
			"id": "port-scanner",
			"name": "Port Scanner",
			"shortDescription": "fast scanner",
			"description": "a fast network port scanner",
			"technologies": ["Python", "Scapy"],
			"category": "Network Security",
			"status": "Completed",
			"featured": true,
			"links": {"github": "https://github.com/example/port-scanner"},
			"features": ["syn scan"],
			"challenges": ["rate limiting"],
			"dateCompleted": "2024-03-15"
		},
		{
			"id": "portfolio-site",
			"name": "Portfolio Site",
			"shortDescription": "this site",
			"description": "personal site with a sticker board",
			"technologies": ["Next.js", "TypeScript"],
			"category": "Web Development",
			"status": "In Progress",
			"featured": false,
			"links": {"live": "https://aimenbou.dev"},
			"features": ["sticker board"],
			"challenges": ["realtime"],
			"dateCompleted": "2025-06-01"
		},
		{
			"id": "old-experiment",
			"name": "Old Experiment",
			"shortDescription": "forgotten",
			"description": "an old one with a broken status",
			"technologies": ["C"],
			"category": "Cybersecurity",
			"status": "Abandoned",
			"featured": false,
			"links": {},
			"features": [],
			"challenges": [],
			"dateCompleted": "2023-01-10"
		}
	]
}`

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(strings.NewReader(testProfileJson), strings.NewReader(testProjectsJson))
	require.NoError(t, err)
	return m
}

func TestNewManager(t *testing.T) {
	m := newTestManager(t)

	profile := m.Profile()
	require.Len(t, profile.Experiences, 2)
	assert.Equal(t, "Vane Solutions", profile.Experiences[0].Company)
	assert.Len(t, profile.Photos, 1)
	assert.Len(t, profile.BucketList, 2)
	assert.Len(t, profile.Beliefs, 1)

	require.Len(t, m.AllProjects(), 3)
}

func TestNewManager_badInput(t *testing.T) {
	_, err := NewManager(strings.NewReader("not json"), strings.NewReader(testProjectsJson))
	assert.Error(t, err)

	_, err = NewManager(strings.NewReader(testProfileJson), strings.NewReader("not json"))
	assert.Error(t, err)

	noID := `{"projects": [{"name": "nameless"}]}`
	_, err = NewManager(strings.NewReader(testProfileJson), strings.NewReader(noID))
	assert.Error(t, err)

	dupID := `{"projects": [{"id": "a", "name": "one"}, {"id": "a", "name": "two"}]}`
	_, err = NewManager(strings.NewReader(testProfileJson), strings.NewReader(dupID))
	assert.Error(t, err)
}

func TestManager_AllProjects_sortedNewestFirst(t *testing.T) {
	m := newTestManager(t)

	projects := m.AllProjects()
	require.Len(t, projects, 3)
	assert.Equal(t, "portfolio-site", projects[0].ID)
	assert.Equal(t, "port-scanner", projects[1].ID)
	assert.Equal(t, "old-experiment", projects[2].ID)
}

func TestManager_statusNormalized(t *testing.T) {
	m := newTestManager(t)

	p, ok := m.ProjectByID("old-experiment")
	require.True(t, ok)
	// unknown status falls back to planned
	assert.Equal(t, StatusPlanned, p.Status)

	p, ok = m.ProjectByID("port-scanner")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, p.Status)
}

func TestManager_ProjectByID(t *testing.T) {
	m := newTestManager(t)

	p, ok := m.ProjectByID("port-scanner")
	require.True(t, ok)
	assert.Equal(t, "Port Scanner", p.Name)
	assert.Equal(t, "https://github.com/example/port-scanner", p.Links.Github)

	_, ok = m.ProjectByID("nope")
	assert.False(t, ok)
}

func TestManager_FeaturedProjects(t *testing.T) {
	m := newTestManager(t)

	featured := m.FeaturedProjects()
	require.Len(t, featured, 1)
	assert.Equal(t, "port-scanner", featured[0].ID)
}

func TestManager_ProjectsByCategory(t *testing.T) {
	m := newTestManager(t)

	// substring match, case-insensitive
	security := m.ProjectsByCategory("security")
	require.Len(t, security, 2)

	web := m.ProjectsByCategory("WEB")
	require.Len(t, web, 1)
	assert.Equal(t, "portfolio-site", web[0].ID)

	assert.Empty(t, m.ProjectsByCategory("cooking"))
}

func TestManager_ProjectsByTechnology(t *testing.T) {
	m := newTestManager(t)

	python := m.ProjectsByTechnology("python")
	require.Len(t, python, 1)
	assert.Equal(t, "port-scanner", python[0].ID)

	ts := m.ProjectsByTechnology("TypeScript")
	require.Len(t, ts, 1)
	assert.Equal(t, "portfolio-site", ts[0].ID)

	assert.Empty(t, m.ProjectsByTechnology("cobol"))
}
