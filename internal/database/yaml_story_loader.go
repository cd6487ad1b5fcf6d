package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"story-engine/internal/mechanics"
	"story-engine/internal/models"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ParseStoryYAML decodes a story file. The document has the JSON shape of
// models.StorySchema (story, variables, items, nodes, choices); condition and effect
// trees use the same tagged form as the API. The schema is validated before it is returned.
func ParseStoryYAML(data []byte) (*models.StorySchema, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: story file is empty", models.ErrBadRequest)
	}

	// Round-trip through JSON so condition/effect decoding and number handling match the API.
	raw, err := json.Marshal(jsonCompatible(doc))
	if err != nil {
		return nil, fmt.Errorf("convert yaml: %w", err)
	}
	schema := &models.StorySchema{}
	if err := json.Unmarshal(raw, schema); err != nil {
		return nil, fmt.Errorf("decode story: %w", err)
	}

	if schema.Story.ID == "" {
		return nil, fmt.Errorf("%w: story.id is required", models.ErrBadRequest)
	}
	for i := range schema.Nodes {
		if schema.Nodes[i].StoryID == "" {
			schema.Nodes[i].StoryID = schema.Story.ID
		}
	}
	for i := range schema.Variables {
		schema.Variables[i].DefaultValue = models.NormalizeValue(schema.Variables[i].DefaultValue)
	}

	if err := mechanics.ValidateSchema(schema).Err(); err != nil {
		return nil, fmt.Errorf("story %s: %w", schema.Story.ID, err)
	}
	return schema, nil
}

// LoadStoryDir parses every *.yaml and *.yml file in dir into a memory repository.
// Any invalid file fails the whole load.
func LoadStoryDir(dir string, logger *zap.Logger) (*MemoryStoryRepository, error) {
	log := logger.Named("StoryLoader").With(zap.String("dir", dir))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read story dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	schemas := make([]*models.StorySchema, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		schema, err := ParseStoryYAML(data)
		if err != nil {
			log.Error("Invalid story file", zap.String("file", name), zap.Error(err))
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if prev, dup := seen[schema.Story.ID]; dup {
			return nil, fmt.Errorf("%s: story %q already defined in %s", path, schema.Story.ID, prev)
		}
		seen[schema.Story.ID] = name
		schemas = append(schemas, schema)
		log.Debug("Story loaded", zap.String("file", name), zap.String("storyID", schema.Story.ID))
	}

	repo, err := NewMemoryStoryRepository(schemas...)
	if err != nil {
		return nil, fmt.Errorf("load stories from %s: %w", dir, err)
	}
	log.Info("Story files loaded", zap.Int("stories", len(schemas)))
	return repo, nil
}

// jsonCompatible turns yaml's map[any]any into map[string]any, recursively.
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = jsonCompatible(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = jsonCompatible(val)
		}
		return out
	default:
		return v
	}
}
