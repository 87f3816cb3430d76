package workspace

import (
	"configurator/internal/reference"
	"configurator/internal/schema"
)

// LoadRegistry читает справочники и схему; пустой путь — встроенная версия.
func LoadRegistry(schemaFile, enumsDir string) (*schema.Registry, reference.Catalog, error) {
	var (
		catalog reference.Catalog
		err     error
	)
	if enumsDir == "" {
		catalog, err = reference.Default()
	} else {
		catalog, err = reference.LoadEnumCatalog(enumsDir)
	}
	if err != nil {
		return nil, nil, err
	}

	var reg *schema.Registry
	if schemaFile == "" {
		reg, err = schema.Default(catalog)
	} else {
		reg, err = schema.LoadFile(schemaFile, catalog)
	}
	if err != nil {
		return nil, nil, err
	}
	return reg, catalog, nil
}
