package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const ModelExtension = ".safetensors"

// Model is one weights file; Name is the file stem.
type Model struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// ListModels returns the regular *.safetensors files directly under dir,
// sorted by name. A missing dir yields no models.
func ListModels(dir string) ([]Model, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Model{}, nil
		}
		return nil, fmt.Errorf("catalog: list %s: %w", dir, err)
	}
	models := make([]Model, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) != ModelExtension {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		models = append(models, Model{
			Name: strings.TrimSuffix(name, ModelExtension),
			Path: filepath.Join(dir, name),
			Size: info.Size(),
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

// FindModel returns the model named name, if present.
func FindModel(dir, name string) (Model, bool, error) {
	models, err := ListModels(dir)
	if err != nil {
		return Model{}, false, err
	}
	for _, m := range models {
		if m.Name == name {
			return m, true, nil
		}
	}
	return Model{}, false, nil
}
