package dashboard

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"strings"
	"time"

	"github.com/jrsteele09/repo-dashboard/github"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templateFS embed.FS

// GeneratingLabel is shown in place of the refresh time before the first refresh lands.
const GeneratingLabel = "Generating..."

type repoView struct {
	FullName    string   `json:"full_name"`
	HTMLURL     string   `json:"html_url"`
	Description string   `json:"description"`
	Language    string   `json:"language"`
	Stars       int      `json:"stargazers_count"`
	PushedAt    string   `json:"pushed_at"`
	Topics      []string `json:"topics"`
}

type pullRequestView struct {
	Title         string `json:"title"`
	HTMLURL       string `json:"html_url"`
	Number        int    `json:"number"`
	RepositoryURL string `json:"repository_url"`
}

// Repo returns "owner/name" from the API repository_url.
func (p pullRequestView) Repo() string {
	parts := strings.Split(strings.TrimSuffix(p.RepositoryURL, "/"), "/")
	if len(parts) < 2 {
		return p.RepositoryURL
	}
	return strings.Join(parts[len(parts)-2:], "/")
}

type pageData struct {
	User           github.User
	Repos          []repoView
	Starred        []repoView
	MyPullRequests []pullRequestView
	ReviewRequests []pullRequestView
	LastUpdated    string
}

// Renderer produces the materialized dashboard page.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("dashboard.html").Funcs(template.FuncMap{
		"date": formatDate,
	}).ParseFS(templateFS, "templates/dashboard.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render builds the page for a snapshot. lastUpdated is displayed as given.
func (r *Renderer) Render(user github.User, snap *Snapshot, lastUpdated string) ([]byte, error) {
	data := pageData{
		User:           user,
		Repos:          decodeItems[repoView](snap.Repos),
		Starred:        decodeItems[repoView](snap.Starred),
		MyPullRequests: decodeItems[pullRequestView](snap.MyPullRequests),
		ReviewRequests: decodeItems[pullRequestView](snap.ReviewRequests),
		LastUpdated:    lastUpdated,
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeItems[T any](raw []json.RawMessage) []T {
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			log.Debug().Err(err).Msg("skipping undecodable item")
			continue
		}
		out = append(out, v)
	}
	return out
}

// DisplayTime formats an ISO-8601 refresh timestamp for the page.
func DisplayTime(iso string) string {
	if iso == "" {
		return GeneratingLabel
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return iso
	}
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

func formatDate(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006")
}
