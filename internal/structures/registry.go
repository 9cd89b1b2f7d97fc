// internal/structures/registry.go
package structures

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Corphon/StoryMap/internal/models"
	"github.com/Corphon/StoryMap/internal/utils"
)

//go:embed defaults/*.yaml
var defaultFS embed.FS

// Registry holds the story structures available to maps: the embedded
// defaults plus any YAML files found in a directory. A file whose id matches
// a default replaces it.
type Registry struct {
	mu         sync.RWMutex
	dir        string
	structures map[string]models.StoryStructure
	order      []string
	logger     *utils.Logger
}

// NewRegistry creates a registry for dir. Call Load before use.
func NewRegistry(dir string, logger *utils.Logger) *Registry {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Registry{
		dir:        strings.TrimSpace(dir),
		structures: map[string]models.StoryStructure{},
		logger:     logger,
	}
}

// Dir returns the watched directory.
func (r *Registry) Dir() string {
	return r.dir
}

// Load rebuilds the registry from the embedded defaults and the directory.
// Files that fail to parse are logged and skipped; the previous contents
// stay in place if the defaults themselves cannot be read.
func (r *Registry) Load() error {
	defaults, err := loadDefaults()
	if err != nil {
		return err
	}
	files, err := LoadStructureDir(r.dir, r.logger)
	if err != nil {
		return err
	}

	next := make(map[string]models.StoryStructure, len(defaults)+len(files))
	var order []string
	for _, s := range append(defaults, files...) {
		if _, exists := next[s.ID]; !exists {
			order = append(order, s.ID)
		}
		next[s.ID] = s
	}

	r.mu.Lock()
	r.structures = next
	r.order = order
	r.mu.Unlock()

	utils.GetMetricsCollector().SetGauge(utils.MetricStructuresLoaded, int64(len(order)))
	r.logger.Info("story structures loaded", map[string]interface{}{
		"count": len(order),
		"dir":   r.dir,
	})
	return nil
}

// List returns every structure, defaults first, then files by path.
func (r *Registry) List() []models.StoryStructure {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.StoryStructure, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.structures[id])
	}
	return out
}

// Get looks up a structure by id.
func (r *Registry) Get(id string) (*models.StoryStructure, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.structures[id]
	if !ok {
		return nil, false
	}
	return &s, true
}

// ParseStructureYAML decodes and validates one structure definition.
func ParseStructureYAML(data []byte) (models.StoryStructure, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return models.StoryStructure{}, fmt.Errorf("structure: definition is empty")
	}
	var s models.StoryStructure
	if err := yaml.Unmarshal(data, &s); err != nil {
		return models.StoryStructure{}, fmt.Errorf("structure: decode: %w", err)
	}
	if err := Validate(s); err != nil {
		return models.StoryStructure{}, err
	}
	return normalize(s), nil
}

// Validate checks ids and percentage positions.
func Validate(s models.StoryStructure) error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("structure: id is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("structure %s: name is required", s.ID)
	}
	seen := map[string]bool{}
	for i, b := range s.Beats {
		if b.ID == "" {
			return fmt.Errorf("structure %s: beat %d has no id", s.ID, i)
		}
		if seen[b.ID] {
			return fmt.Errorf("structure %s: duplicate beat %q", s.ID, b.ID)
		}
		seen[b.ID] = true
		if b.PercentagePosition < 0 || b.PercentagePosition > 100 {
			return fmt.Errorf("structure %s: beat %q position %v outside 0-100", s.ID, b.ID, b.PercentagePosition)
		}
	}
	return nil
}

// normalize sorts beats by percentage position and fills nil slices.
func normalize(s models.StoryStructure) models.StoryStructure {
	sort.SliceStable(s.Beats, func(i, j int) bool {
		return s.Beats[i].PercentagePosition < s.Beats[j].PercentagePosition
	})
	for i := range s.Beats {
		if s.Beats[i].RequiredThreads == nil {
			s.Beats[i].RequiredThreads = []string{}
		}
	}
	if s.Beats == nil {
		s.Beats = []models.StoryBeat{}
	}
	if s.CommonThreads == nil {
		s.CommonThreads = []models.CommonThread{}
	}
	return s
}

// LoadStructureDir parses every *.yaml / *.yml file in dir. A missing
// directory yields no structures.
func LoadStructureDir(dir string, logger *utils.Logger) ([]models.StoryStructure, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("structure: read %s: %w", dir, err)
	}

	var out []models.StoryStructure
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable structure file", map[string]interface{}{"path": path, "error": err})
			continue
		}
		s, err := ParseStructureYAML(data)
		if err != nil {
			logger.Warn("skipping invalid structure file", map[string]interface{}{"path": path, "error": err})
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func loadDefaults() ([]models.StoryStructure, error) {
	entries, err := fs.ReadDir(defaultFS, "defaults")
	if err != nil {
		return nil, fmt.Errorf("structure: read embedded defaults: %w", err)
	}
	out := make([]models.StoryStructure, 0, len(entries))
	for _, entry := range entries {
		data, err := defaultFS.ReadFile("defaults/" + entry.Name())
		if err != nil {
			return nil, err
		}
		s, err := ParseStructureYAML(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		out = append(out, s)
	}
	return out, nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
