// Package workspace хранит импортированные конфигурации в памяти: каждая живет
// в своей сессии со своей шиной.
package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"configurator/internal/bus"
	"configurator/internal/compare"
	"configurator/internal/metrics"
	"configurator/internal/migrate"
	"configurator/internal/node"
	"configurator/internal/reviver"
	"configurator/internal/schema"

	"github.com/oklog/ulid/v2"
)

var (
	ErrNotFound             = errors.New("snapshot not found")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrVersionMismatch      = errors.New("configurations have different versions")
)

// Snapshot — оживленная конфигурация. Граф не синхронизирован: один писатель.
type Snapshot struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	CreatedAt time.Time        `json:"created_at"`
	Version   int              `json:"version"`
	Reports   []migrate.Report `json:"reports,omitempty"`
	Nodes     int              `json:"nodes"`

	Root    *node.Node    `json:"-"`
	Session *node.Session `json:"-"`
}

type Options struct {
	Registry *schema.Registry
	Migrator *migrate.Migrator
	// Флаги оживления; фабрика и callback подставляются сессией.
	Revival reviver.Options
	Logger  *slog.Logger
}

type Store struct {
	mu        sync.RWMutex
	registry  *schema.Registry
	migrator  *migrate.Migrator
	revival   reviver.Options
	log       *slog.Logger
	snapshots map[string]*Snapshot
	entropy   io.Reader
}

func NewStore(opts Options) *Store {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	s := &Store{
		registry:  opts.Registry,
		migrator:  opts.Migrator,
		revival:   opts.Revival,
		log:       opts.Logger,
		snapshots: make(map[string]*Snapshot),
		entropy:   ulid.Monotonic(src, 0),
	}
	if s.migrator == nil {
		s.migrator = migrate.Default()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.migrator.WithLogger(s.log)
	return s
}

// newID вызывается под s.mu: монотонный источник энтропии не потокобезопасен.
func (s *Store) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *Store) Registry() *schema.Registry { return s.registry }

// Import мигрирует raw на месте, оживляет и сохраняет снимок.
func (s *Store) Import(name string, raw map[string]any) (*Snapshot, error) {
	reports, err := s.migrator.Migrate(raw)
	if err != nil {
		metrics.MigrationFailed()
		return nil, err
	}
	for _, r := range reports {
		metrics.MigrationApplied(r.Version)
	}

	b := bus.New(bus.WithDeliveryHook(func(ev bus.Event) { metrics.BusEvent(ev) }))
	session := node.NewSession(s.registry, node.WithBus(b), node.WithLogger(s.log))
	opts := s.revival
	user := opts.Callback
	count := 0
	opts.Callback = func(obj reviver.Object, entity string, container reviver.Object, rawObj map[string]any) {
		count++
		metrics.NodeRevived(entity)
		if user != nil {
			user(obj, entity, container, rawObj)
		}
	}
	root, err := session.Revive(raw, opts)
	if err != nil {
		return nil, err
	}
	version, _ := migrate.Version(raw)

	s.mu.Lock()
	snap := &Snapshot{
		ID:        s.newID(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Version:   version,
		Reports:   reports,
		Nodes:     count,
		Root:      root,
		Session:   session,
	}
	s.snapshots[snap.ID] = snap
	s.mu.Unlock()

	s.log.Info("snapshot imported", "id", snap.ID, "name", name, "version", version, "nodes", count, "migrations", len(reports))
	return snap, nil
}

// ImportJSON разбирает документ; корень обязан быть объектом.
func (s *Store) ImportJSON(name string, data []byte) (*Snapshot, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: root must be an object", ErrInvalidConfiguration)
	}
	return s.Import(name, m)
}

// ImportDir импортирует все *.json каталога; имя снимка — имя файла.
func (s *Store) ImportDir(dir string) ([]*Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []*Snapshot
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return out, err
		}
		snap, err := s.ImportJSON(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), data)
		if err != nil {
			return out, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *Store) Get(id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return snap, nil
}

// List — снимки в порядке импорта (ulid монотонен).
func (s *Store) List() []*Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Delete убирает снимок и сбрасывает его шину.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	snap, ok := s.snapshots[id]
	if ok {
		delete(s.snapshots, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	snap.Session.Bus().Reset()
	s.log.Info("snapshot deleted", "id", id, "name", snap.Name)
	return nil
}

// Diff сравнивает target с source: добавления — то, что есть только в target.
func (s *Store) Diff(sourceID, targetID string) ([]compare.Difference, error) {
	source, err := s.Get(sourceID)
	if err != nil {
		return nil, err
	}
	target, err := s.Get(targetID)
	if err != nil {
		return nil, err
	}
	if source.Version != target.Version {
		return nil, fmt.Errorf("%w: %d and %d", ErrVersionMismatch, source.Version, target.Version)
	}
	diffs := compare.Compare(target.Root, source.Root)
	metrics.DifferencesFound(len(diffs))
	return diffs, nil
}
