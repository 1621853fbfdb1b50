package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"
)

var ErrEmptyCatalog = errors.New("service catalog has no services")

type catalogFile struct {
	Services []domain.Service `json:"services"`
}

// Catalog is the list of services offered to prospects, read from a YAML file.
type Catalog struct {
	path     string
	mu       sync.RWMutex
	services []domain.Service
	loaded   bool
}

func New(path string) *Catalog {
	return &Catalog{path: path}
}

// Load reads the file the first time it is called.
func (c *Catalog) Load() error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	return c.Reload()
}

// Reload reads the file again and replaces the services on success.
func (c *Catalog) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("reading service catalog %s: %w", c.path, err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing service catalog %s: %w", c.path, err)
	}
	if len(f.Services) == 0 {
		return ErrEmptyCatalog
	}
	for i, s := range f.Services {
		if s.ID == "" || s.Name == "" {
			return fmt.Errorf("service catalog entry %d needs an id and a name", i)
		}
	}

	c.mu.Lock()
	c.services = f.Services
	c.loaded = true
	c.mu.Unlock()

	zap.S().Named("catalog").Infow("service catalog loaded", "path", c.path, "services", len(f.Services))
	return nil
}

func (c *Catalog) Services() []domain.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Service(nil), c.services...)
}

// MatchServices ranks the loaded services for a prospect.
func (c *Catalog) MatchServices(research domain.Research, industry string, topN int) []domain.Service {
	return Match(c.Services(), research, industry, topN)
}

// Match scores services by keyword overlap with the research and returns the
// best topN, highest first. Ties keep catalog order.
//
// Scoring: 3 for an industry match, 0.5 per pain point word found in the
// research, 0.2 per description word longer than four letters found in it.
func Match(services []domain.Service, research domain.Research, industry string, topN int) []domain.Service {
	text := strings.ToLower(research.Text())
	industry = strings.ToLower(strings.TrimSpace(industry))

	type scored struct {
		score   float64
		service domain.Service
	}
	ranked := make([]scored, 0, len(services))
	for _, s := range services {
		ranked = append(ranked, scored{score: score(s, text, industry), service: s})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if topN > len(ranked) || topN < 0 {
		topN = len(ranked)
	}
	out := make([]domain.Service, 0, topN)
	for _, r := range ranked[:topN] {
		out = append(out, r.service)
	}
	return out
}

func score(s domain.Service, text, industry string) float64 {
	var total float64

	if industry != "" {
		for _, ind := range s.IdealForIndustries {
			ind = strings.ToLower(ind)
			if strings.Contains(industry, ind) || strings.Contains(ind, industry) {
				total += 3
				break
			}
		}
	}

	for _, pain := range s.PainPointsAddressed {
		for w := range words(pain) {
			if strings.Contains(text, w) {
				total += 0.5
			}
		}
	}

	for w := range words(s.Description) {
		if len(w) > 4 && strings.Contains(text, w) {
			total += 0.2
		}
	}

	return total
}

func words(s string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}
