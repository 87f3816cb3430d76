package api

import (
	"net/http"

	"configurator/internal/reference"
	"configurator/internal/schema"

	"github.com/gin-gonic/gin"
)

type metaListItem struct {
	Name              string `json:"name"`
	Label             string `json:"label"`
	PluralLabel       string `json:"pluralLabel"`
	ConfigurationName string `json:"configurationName,omitempty"`
}

type metaEntity struct {
	*schema.Entity
	Parents []string `json:"parents"`
}

// GET /api/meta
func MetaListHandler(reg *schema.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		entities := reg.Entities()
		out := make([]metaListItem, 0, len(entities))
		for _, e := range entities {
			out = append(out, metaListItem{
				Name:              e.Name,
				Label:             e.Label,
				PluralLabel:       e.PluralLabel,
				ConfigurationName: e.ConfigurationName,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/meta/:entity
func MetaEntityHandler(reg *schema.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := lookupEntity(c, reg, c.Param("entity"))
		if !ok {
			return
		}
		parents := []string{}
		for _, p := range reg.Parents(e.Name) {
			parents = append(parents, p.Name)
		}
		c.JSON(http.StatusOK, metaEntity{Entity: e, Parents: parents})
	}
}

// GET /api/meta/:entity/path/:target?kind=children|relations
func MetaPathHandler(reg *schema.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		source, ok := lookupEntity(c, reg, c.Param("entity"))
		if !ok {
			return
		}
		target, ok := lookupEntity(c, reg, c.Param("target"))
		if !ok {
			return
		}
		kind, ok := schema.ParseRelationKind(c.Query("kind"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown relation kind"})
			return
		}
		path, err := reg.FindPath(kind, source.Name, target.Name)
		if err != nil {
			abortWithError(c, err)
			return
		}
		names := make([]string, 0, len(path))
		for _, e := range path {
			names = append(names, e.Name)
		}
		c.JSON(http.StatusOK, gin.H{
			"source": source.Name,
			"target": target.Name,
			"kind":   kind.String(),
			"found":  len(names) > 0,
			"path":   names,
		})
	}
}

// GET /api/meta/_lint
func MetaLintHandler(reg *schema.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		issues := reg.Lint()
		if issues == nil {
			issues = []schema.Issue{}
		}
		c.JSON(http.StatusOK, gin.H{"ok": len(issues) == 0, "issues": issues})
	}
}

// GET /api/catalogs
func CatalogListHandler(catalog reference.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, catalog.Names())
	}
}

// GET /api/catalogs/:name
func CatalogHandler(catalog reference.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		dir, ok := catalog[name]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Catalog not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"name":  name,
			"items": dir.Items,
		})
	}
}

// lookupEntity понимает имя в любом регистре и configurationName.
func lookupEntity(c *gin.Context, reg *schema.Registry, raw string) (*schema.Entity, bool) {
	name, ok := reg.Normalize(raw)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
		return nil, false
	}
	return reg.MustEntity(name), true
}
