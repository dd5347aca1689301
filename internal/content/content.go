// Package content holds the copy rendered on the portfolio page.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed site.yaml
var siteYAML []byte

type Site struct {
	Owner    Owner     `yaml:"owner"`
	Hero     Hero      `yaml:"hero"`
	About    About     `yaml:"about"`
	Counters []Counter `yaml:"counters"`
	Projects []Project `yaml:"projects"`
	Skills   []Skills  `yaml:"skills"`
	Contact  Contact   `yaml:"contact"`
	Social   []Link    `yaml:"social"`
	Footer   Footer    `yaml:"footer"`
}

type Owner struct {
	Name          string `yaml:"name"`
	Role          string `yaml:"role"`
	SecondaryRole string `yaml:"secondary_role"`
	Email         string `yaml:"email"`
}

type Hero struct {
	Badge   string `yaml:"badge"`
	Tagline string `yaml:"tagline"`
}

type About struct {
	Heading string `yaml:"heading"`
	Mission string `yaml:"mission"`
	Cards   []Card `yaml:"cards"`
}

type Card struct {
	Title    string `yaml:"title"`
	Subtitle string `yaml:"subtitle"`
	Period   string `yaml:"period"`
	Body     string `yaml:"body"`
}

// Counter is a figure on the about section animated once it scrolls into view.
type Counter struct {
	Key    string `yaml:"key"`
	Label  string `yaml:"label"`
	Value  int    `yaml:"value"`
	Suffix string `yaml:"suffix"`
	// Duration overrides the server-wide animation duration when set.
	Duration time.Duration `yaml:"duration"`
}

type Project struct {
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	Technologies []string `yaml:"technologies"`
	Status       string   `yaml:"status"`
	// Links are optional; projects still in progress usually have neither.
	LiveURL      string   `yaml:"live_url"`
	RepoURL      string   `yaml:"repo_url"`
}

func (p Project) Completed() bool { return p.Status == "Completed" }

type Skills struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	// Progress is a self-assessed proficiency percentage.
	Progress    int      `yaml:"progress"`
	Skills      []string `yaml:"skills"`
}

type Contact struct {
	Heading string   `yaml:"heading"`
	Intro   string   `yaml:"intro"`
	Details []Detail `yaml:"details"`
}

type Detail struct {
	Label string `yaml:"label"`
	Value string `yaml:"value"`
}

type Link struct {
	Label string `yaml:"label"`
	Href  string `yaml:"href"`
}

type Footer struct {
	Note string `yaml:"note"`
}

// Load parses the embedded site copy.
func Load() (*Site, error) {
	return Parse(siteYAML)
}

func Parse(data []byte) (*Site, error) {
	var s Site
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse site content: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Site) validate() error {
	if s.Owner.Name == "" {
		return errors.New("site content: owner name is required")
	}
	seen := make(map[string]bool, len(s.Counters))
	for _, c := range s.Counters {
		switch {
		case c.Key == "":
			return fmt.Errorf("site content: counter %q has no key", c.Label)
		case seen[c.Key]:
			return fmt.Errorf("site content: duplicate counter key %q", c.Key)
		case c.Value < 0:
			return fmt.Errorf("site content: counter %q has negative value %d", c.Key, c.Value)
		case c.Duration < 0:
			return fmt.Errorf("site content: counter %q has negative duration", c.Key)
		}
		seen[c.Key] = true
	}
	for _, sk := range s.Skills {
		if sk.Progress < 0 || sk.Progress > 100 {
			return fmt.Errorf("site content: skill %q progress %d is outside 0-100", sk.Title, sk.Progress)
		}
	}
	return nil
}

// Counter looks up a counter by key.
func (s *Site) Counter(key string) (Counter, bool) {
	for _, c := range s.Counters {
		if c.Key == key {
			return c, true
		}
	}
	return Counter{}, false
}

func (s *Site) Year() int { return time.Now().Year() }
