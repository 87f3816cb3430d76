// Package migrate поднимает версию сырого JSON конфигурации до текущей.
// Шаги работают только с разобранным JSON, до оживления в узлы.
package migrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// CurrentVersion — версия конфигурации, которую понимает приложение.
const CurrentVersion = 119

const versionProperty = "configVersion"

var (
	ErrApplicationOutdated = errors.New("application is outdated")
	ErrMissingMigration    = errors.New("missing migration")
	ErrMigration           = errors.New("migration failed")
)

type OutdatedError struct {
	Version int
	Current int
}

func (e *OutdatedError) Error() string {
	return fmt.Sprintf("application is outdated: config version is %d, application version is %d", e.Version, e.Current)
}

func (e *OutdatedError) Unwrap() error { return ErrApplicationOutdated }

type MissingError struct {
	Version int
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing migration script for version %d", e.Version)
}

func (e *MissingError) Unwrap() error { return ErrMissingMigration }

// StepError — шаг Version упал; вся миграция прервана.
type StepError struct {
	Version int
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("error during migration to version %d: %v", e.Version, e.Err)
}

func (e *StepError) Unwrap() []error { return []error{ErrMigration, e.Err} }

// Step переводит конфигурацию из версии Version в Version+1.
// Transform меняет config на месте и возвращает затронутые объекты для отчета.
type Step struct {
	Version      int
	Description  string
	Instructions string
	Transform    func(config map[string]any) ([]any, error)
}

type Report struct {
	Version      int    `json:"version"`
	Description  string `json:"description"`
	Instructions string `json:"instructions,omitempty"`
	Nodes        []any  `json:"nodes"`
}

type Migrator struct {
	current int
	steps   map[int]Step
	log     *slog.Logger
}

// New паникует на двух шагах с одной версией.
func New(current int, steps ...Step) *Migrator {
	m := &Migrator{current: current, steps: make(map[int]Step, len(steps)), log: slog.Default()}
	for _, s := range steps {
		if _, dup := m.steps[s.Version]; dup {
			panic(fmt.Sprintf("migrate: duplicate step for version %d", s.Version))
		}
		m.steps[s.Version] = s
	}
	return m
}

// Default — шаги приложения до CurrentVersion.
func Default() *Migrator {
	return New(CurrentVersion, Steps()...)
}

func (m *Migrator) WithLogger(l *slog.Logger) *Migrator {
	if l != nil {
		m.log = l
	}
	return m
}

func (m *Migrator) CurrentVersion() int { return m.current }

func (m *Migrator) IsUpToDate(config map[string]any) bool {
	v, err := Version(config)
	return err == nil && v == m.current
}

// Version читает configVersion; отсутствие поля — версия 0.
func Version(config map[string]any) (int, error) {
	switch v := config[versionProperty].(type) {
	case nil:
		return 0, nil
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", versionProperty, err)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("%s has unexpected type %T", versionProperty, v)
	}
}

// Migrate применяет шаги по одному, пока версия не станет текущей.
// Уже актуальная конфигурация дает пустой список отчетов.
func (m *Migrator) Migrate(config map[string]any) ([]Report, error) {
	version, err := Version(config)
	if err != nil {
		return nil, err
	}
	if version > m.current {
		return nil, &OutdatedError{Version: version, Current: m.current}
	}
	reports := []Report{}
	for version < m.current {
		step, ok := m.steps[version]
		if !ok {
			return reports, &MissingError{Version: version}
		}
		nodes, err := apply(step, config)
		if err != nil {
			return reports, &StepError{Version: version, Err: err}
		}
		version++
		config[versionProperty] = float64(version)
		m.log.Info("migration applied", "version", version, "description", step.Description, "nodes", len(nodes))
		reports = append(reports, Report{
			Version:      version,
			Description:  step.Description,
			Instructions: step.Instructions,
			Nodes:        nodes,
		})
	}
	return reports, nil
}

func apply(step Step, config map[string]any) (nodes []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return step.Transform(config)
}
