package api

import (
	"net/http"
	"strconv"
	"strings"

	"configurator/internal/compare"
	"configurator/internal/node"
	"configurator/internal/workspace"

	"github.com/gin-gonic/gin"
)

// nodeView — узел в ответах API. Used и Data только у запрошенного узла:
// IsUsed обходит весь граф по каждой структурирующей связи.
type nodeView struct {
	GlobalID string         `json:"gid"`
	Entity   string         `json:"entity"`
	ID       string         `json:"id,omitempty"`
	Label    string         `json:"label"`
	Parent   string         `json:"parent,omitempty"`
	Used     *bool          `json:"used,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

func viewOf(n *node.Node, languages []string, withData bool) nodeView {
	v := nodeView{
		Entity: n.EntityName(),
		ID:     n.ID(),
		Label:  n.Label(languages...),
	}
	if gid, err := n.GlobalID(nil); err == nil {
		v.GlobalID = gid
	}
	if p, err := n.Parent(); err == nil && p != nil {
		if gid, err := p.GlobalID(nil); err == nil {
			v.Parent = gid
		}
	}
	if withData {
		used := n.IsUsed()
		v.Used = &used
		v.Data = n.Export()
	}
	return v
}

func viewsOf(nodes []*node.Node, languages []string) []nodeView {
	out := make([]nodeView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, viewOf(n, languages, false))
	}
	return out
}

// languages: ?lang=fr,en или ?lang=fr&lang=en
func languages(c *gin.Context) []string {
	var out []string
	for _, raw := range c.QueryArray("lang") {
		for _, l := range strings.Split(raw, ",") {
			if l = strings.TrimSpace(l); l != "" {
				out = append(out, l)
			}
		}
	}
	return out
}

// POST /api/configs?name=...
func ImportHandler(store *workspace.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := c.GetRawData()
		if err != nil || len(data) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		snap, err := store.ImportJSON(strings.TrimSpace(c.Query("name")), data)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, snap)
	}
}

// GET /api/configs
func ListHandler(store *workspace.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, store.List())
	}
}

// GET /api/configs/:id
func GetHandler(store *workspace.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := snapshot(c, store)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// DELETE /api/configs/:id
func DeleteHandler(store *workspace.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Delete(c.Param("id")); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// GET /api/configs/:id/export — конфигурация целиком, в формате импорта.
func ExportHandler(store *workspace.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := snapshot(c, store)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, snap.Root.Export())
	}
}

// GET /api/configs/:id/node?gid=...
func NodeHandler(store *workspace.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, ok := findNode(c, store)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, viewOf(n, languages(c), true))
	}
}

// GET /api/configs/:id/children?gid=...&entity=...&slot=...
func ChildrenHandler(store *workspace.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, ok := findNode(c, store)
		if !ok {
			return
		}
		entity, ok := lookupEntity(c, store.Registry(), c.Query("entity"))
		if !ok {
			return
		}
		slot := node.AllSlots
		if raw := c.Query("slot"); raw != "" {
			i, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid slot"})
				return
			}
			slot = i
		}
		children, err := n.Children(entity.Name, slot)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, viewsOf(children, languages(c)))
	}
}

// GET /api/configs/:id/relations?gid=...&entity=...
func RelationsHandler(store *workspace.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, ok := findNode(c, store)
		if !ok {
			return
		}
		entity, ok := lookupEntity(c, store.Registry(), c.Query("entity"))
		if !ok {
			return
		}
		related, err := n.Relations(entity.Name)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, viewsOf(related, languages(c)))
	}
}

// GET /api/configs/:id/usage?gid=...
func UsageHandler(store *workspace.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, ok := findNode(c, store)
		if !ok {
			return
		}
		langs := languages(c)
		usage := make(map[string][]nodeView)
		for entity, nodes := range n.Usage() {
			usage[entity] = viewsOf(nodes, langs)
		}
		c.JSON(http.StatusOK, gin.H{
			"used":  n.IsUsed(),
			"usage": usage,
		})
	}
}

// GET /api/configs/:id/search?q=...&gid=...&lang=...
func SearchHandler(store *workspace.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := strings.TrimSpace(c.Query("q"))
		if q == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Query is required"})
			return
		}
		n, ok := findNode(c, store)
		if !ok {
			return
		}
		langs := languages(c)
		found := n.Search(q, langs)
		c.JSON(http.StatusOK, gin.H{
			"total": len(found),
			"items": viewsOf(found, langs),
		})
	}
}

// GET /api/configs/:id/diff/:other — чем :other отличается от :id.
func DiffHandler(store *workspace.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		diffs, err := store.Diff(c.Param("id"), c.Param("other"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		entries := compare.Explain(diffs)
		c.JSON(http.StatusOK, gin.H{
			"summary":     compare.Summarize(entries),
			"differences": compare.DescribeEntries(entries),
		})
	}
}

func snapshot(c *gin.Context, store *workspace.Store) (*workspace.Snapshot, bool) {
	snap, err := store.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return snap, true
}

// findNode: пустой gid — корень снимка.
func findNode(c *gin.Context, store *workspace.Store) (*node.Node, bool) {
	snap, ok := snapshot(c, store)
	if !ok {
		return nil, false
	}
	gid := strings.TrimSpace(c.Query("gid"))
	if gid == "" {
		return snap.Root, true
	}
	n, err := snap.Root.FindNode(gid)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return n, true
}
