package reference

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed enums.yaml
var embedded []byte

// Default возвращает встроенный каталог справочников.
func Default() (Catalog, error) {
	return Parse(embedded)
}

// Parse читает список справочников из одного YAML-документа.
func Parse(data []byte) (Catalog, error) {
	var dirs []EnumDirectory
	if err := yaml.Unmarshal(data, &dirs); err != nil {
		return nil, fmt.Errorf("parse enums: %w", err)
	}
	result := make(Catalog, len(dirs))
	for _, d := range dirs {
		if err := add(result, d, "<embedded>"); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// LoadEnumCatalog читает все enum-справочники из папки (по одному справочнику на файл).
func LoadEnumCatalog(dir string) (Catalog, error) {
	result := make(Catalog)
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if file.IsDir() || !(strings.HasSuffix(file.Name(), ".yaml") || strings.HasSuffix(file.Name(), ".yml")) {
			continue
		}
		path := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var enumDir EnumDirectory
		if err := yaml.Unmarshal(data, &enumDir); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		// Имя справочника — из enumDir.Name или из имени файла
		if enumDir.Name == "" {
			enumDir.Name = strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
		}
		if err := add(result, enumDir, path); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func add(c Catalog, d EnumDirectory, source string) error {
	if d.Name == "" {
		return fmt.Errorf("enum directory without name in %s", source)
	}
	if _, dup := c[d.Name]; dup {
		return fmt.Errorf("duplicate enum directory %q (%s)", d.Name, source)
	}
	seen := make(map[string]struct{}, len(d.Items))
	for _, it := range d.Items {
		if _, dup := seen[it.Code]; dup {
			return fmt.Errorf("enum %q: duplicate code %q (%s)", d.Name, it.Code, source)
		}
		seen[it.Code] = struct{}{}
	}
	c[d.Name] = d
	return nil
}
