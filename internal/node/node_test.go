package node

import (
	"encoding/json"
	"errors"
	"testing"

	"configurator/internal/bus"
	"configurator/internal/reference"
	"configurator/internal/reviver"
	"configurator/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	catalog, err := reference.Default()
	require.NoError(t, err)
	reg, err := schema.Default(catalog)
	require.NoError(t, err)
	return reg
}

func studyJSON() map[string]any {
	return map[string]any{
		"className":   "Study",
		"id":          "TEST",
		"languageIds": []any{"en", "fr"},
		"scopeModels": []any{
			map[string]any{
				"className":       "ScopeModel",
				"id":              "PATIENT",
				"shortname":       map[string]any{"en": "Patient", "fr": "Patient"},
				"datasetModelIds": []any{"DEMOGRAPHICS", "VITALS"},
				"eventModels": []any{
					map[string]any{
						"className":       "EventModel",
						"id":              "BASELINE",
						"shortname":       map[string]any{"en": "Baseline visit", "fr": "Visite initiale"},
						"datasetModelIds": []any{"VITALS"},
					},
					map[string]any{"className": "EventModel", "shortname": map[string]any{"en": "Unnamed"}},
				},
			},
			map[string]any{"className": "ScopeModel", "id": "CENTER", "shortname": map[string]any{"en": "Center"}},
		},
		"datasetModels": []any{
			map[string]any{"className": "DatasetModel", "id": "DEMOGRAPHICS", "shortname": map[string]any{"en": "Demographics"}},
			map[string]any{"className": "DatasetModel", "id": "VITALS"},
			map[string]any{"className": "DatasetModel", "id": "UNUSED"},
		},
	}
}

func newStudyFixture(t *testing.T) (*Session, *Node) {
	t.Helper()
	s := NewSession(testRegistry(t))
	root, err := s.Revive(studyJSON(), reviver.Options{EnforceTypes: true})
	require.NoError(t, err)
	return s, root
}

func mustFind(t *testing.T, root *Node, gid string) *Node {
	t.Helper()
	n, err := root.FindNode(gid)
	require.NoError(t, err)
	return n
}

func TestGlobalIDScenario(t *testing.T) {
	s := NewSession(testRegistry(t))
	study, err := s.New("Study", map[string]any{"id": "TEST"})
	require.NoError(t, err)
	scope, err := s.New("ScopeModel", map[string]any{"id": "PATIENT"})
	require.NoError(t, err)
	require.NoError(t, study.AddChild(scope, 0))

	gid, err := scope.GlobalID(nil)
	require.NoError(t, err)
	assert.Equal(t, "Study:TEST|ScopeModel:PATIENT", gid)

	found, err := study.FindNode(gid)
	require.NoError(t, err)
	assert.Same(t, scope, found)
}

func TestGlobalIDRoundTrip(t *testing.T) {
	s, root := newStudyFixture(t)
	scope := mustFind(t, root, "Study:TEST|ScopeModel:PATIENT")
	rule, err := s.New("Rule", map[string]any{"id": "R1"})
	require.NoError(t, err)
	require.NoError(t, scope.AddChild(rule, 1))
	trigger, err := s.New("Rule", map[string]any{"id": "ON_LOGIN"})
	require.NoError(t, err)
	require.NoError(t, root.AddChild(trigger, 4))

	count := 0
	root.Walk(func(n *Node) bool {
		count++
		gid, err := n.GlobalID(nil)
		require.NoError(t, err)
		found, err := root.FindNode(gid)
		require.NoError(t, err, gid)
		assert.Same(t, n, found, gid)
		return true
	})
	assert.Equal(t, 10, count)

	gid, err := rule.GlobalID(nil)
	require.NoError(t, err)
	assert.Equal(t, "Study:TEST|ScopeModel:PATIENT|Rule-1:R1", gid)

	gid, err = trigger.GlobalID(nil)
	require.NoError(t, err)
	assert.Equal(t, "Study:TEST|Rule-4:ON_LOGIN", gid)
}

func TestGlobalIDPositionalAndRelative(t *testing.T) {
	_, root := newStudyFixture(t)
	scope := mustFind(t, root, "Study:TEST|ScopeModel:PATIENT")
	unnamed := mustFind(t, root, "Study:TEST|ScopeModel:PATIENT|EventModel:1")

	gid, err := unnamed.GlobalID(nil)
	require.NoError(t, err)
	assert.Equal(t, "Study:TEST|ScopeModel:PATIENT|EventModel:1", gid)

	rel, err := unnamed.GlobalID(scope)
	require.NoError(t, err)
	assert.Equal(t, "ScopeModel:PATIENT|EventModel:1", rel)
	assert.Same(t, unnamed, mustFind(t, scope, rel))

	center := mustFind(t, root, "Study:TEST|ScopeModel:CENTER")
	_, err = unnamed.GlobalID(center)
	assert.ErrorIs(t, err, ErrNotRelated)
}

func TestFindNodeErrors(t *testing.T) {
	_, root := newStudyFixture(t)
	tests := []struct {
		gid   string
		cause error
	}{
		{"Study:TEST|ScopeModel:NOPE", ErrNoSuchChild},
		{"Study:TEST|ScopeModel-3:PATIENT", ErrNoSuchChild},
		{"Study:TEST|Cell:C1", ErrNotRelated},
		{"Study:TEST|Nope:X", ErrNotRelated},
	}
	for _, tt := range tests {
		t.Run(tt.gid, func(t *testing.T) {
			_, err := root.FindNode(tt.gid)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidGlobalID)
			assert.ErrorIs(t, err, tt.cause)
			var gerr *GlobalIDError
			require.True(t, errors.As(err, &gerr))
			assert.Equal(t, tt.gid, gerr.ID)
		})
	}

	for _, gid := range []string{"ScopeModel:PATIENT", "Study:OTHER", "Study:TEST|ScopeModel-x:PATIENT", ""} {
		_, err := root.FindNode(gid)
		assert.ErrorIs(t, err, ErrInvalidGlobalID, gid)
	}
}

func TestParentNotSet(t *testing.T) {
	s, root := newStudyFixture(t)
	scope, err := s.Construct("ScopeModel")
	require.NoError(t, err)
	scope.Put("id", "LOOSE")

	assert.True(t, scope.HasParent())
	_, err = scope.Parent()
	assert.ErrorIs(t, err, ErrParentNotSet)
	_, err = scope.IsDescendantOf(root)
	assert.ErrorIs(t, err, ErrParentNotSet)

	gid, err := scope.GlobalID(nil)
	require.NoError(t, err)
	assert.Equal(t, "ScopeModel:LOOSE", gid)
	_, err = scope.GlobalID(root)
	assert.ErrorIs(t, err, ErrNotRelated)
	assert.NotErrorIs(t, err, ErrParentNotSet)

	assert.False(t, root.HasParent())
	parent, err := root.Parent()
	assert.NoError(t, err)
	assert.Nil(t, parent)
}

func TestNavigation(t *testing.T) {
	_, root := newStudyFixture(t)
	scope := mustFind(t, root, "Study:TEST|ScopeModel:PATIENT")
	baseline := mustFind(t, root, "Study:TEST|ScopeModel:PATIENT|EventModel:BASELINE")

	parent, err := scope.Parent()
	require.NoError(t, err)
	assert.Same(t, root, parent)

	events, err := root.Descendants("EventModel")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Same(t, baseline, events[0])

	_, err = scope.Descendants("Study")
	assert.ErrorIs(t, err, ErrNotRelated)

	ok, err := baseline.IsDescendantOf(root)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = root.IsAncestorOf(baseline)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = baseline.IsDescendantOf(baseline)
	require.NoError(t, err)
	assert.False(t, ok)

	anc, err := baseline.Ancestor("Study")
	require.NoError(t, err)
	assert.Same(t, root, anc)
	_, err = baseline.Ancestor("DatasetModel")
	assert.ErrorIs(t, err, ErrNotRelated)
	assert.Same(t, root, baseline.Root())

	siblings, err := scope.Siblings()
	require.NoError(t, err)
	require.Len(t, siblings, 1)
	assert.Equal(t, "CENTER", siblings[0].ID())

	byIndex, err := root.Child("ScopeModel", 0, "1")
	require.NoError(t, err)
	assert.Equal(t, "CENTER", byIndex.ID())

	_, err = root.Children("ScopeModel", 1)
	assert.ErrorIs(t, err, ErrNoSuchChild)
	_, err = root.Children("Cell", 0)
	assert.ErrorIs(t, err, ErrNotRelated)
}

func TestAddChild(t *testing.T) {
	s, root := newStudyFixture(t)
	scope := mustFind(t, root, "Study:TEST|ScopeModel:PATIENT")

	var added []AddChild
	s.Bus().Register(bus.NewCallbacks().On("onAddChildRule", func(ev bus.Event) {
		added = append(added, ev.(AddChild))
	}))

	rule, err := s.New("Rule", map[string]any{"id": "R1"})
	require.NoError(t, err)
	require.NoError(t, scope.AddChild(rule, 2))

	parent, err := rule.Parent()
	require.NoError(t, err)
	assert.Same(t, scope, parent)
	restore, err := scope.Children("Rule", 2)
	require.NoError(t, err)
	assert.Equal(t, []*Node{rule}, restore)
	require.Len(t, added, 1)
	assert.Equal(t, 2, added[0].Slot)

	assert.ErrorIs(t, scope.AddChild(rule, 5), ErrNoSuchChild)

	constraint, err := s.New("RuleConstraint", nil)
	require.NoError(t, err)
	list, err := s.New("RuleConditionList", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, constraint.AddChild(list, 0), ErrNotImplemented)
}

func TestRelationsAndUsage(t *testing.T) {
	_, root := newStudyFixture(t)
	scope := mustFind(t, root, "Study:TEST|ScopeModel:PATIENT")
	vitals := mustFind(t, root, "Study:TEST|DatasetModel:VITALS")
	unused := mustFind(t, root, "Study:TEST|DatasetModel:UNUSED")
	center := mustFind(t, root, "Study:TEST|ScopeModel:CENTER")

	datasets, err := scope.Relations("DatasetModel")
	require.NoError(t, err)
	assert.Equal(t, []string{"DEMOGRAPHICS", "VITALS"}, ids(datasets))

	scopes, err := vitals.Relations("ScopeModel")
	require.NoError(t, err)
	assert.Equal(t, []string{"PATIENT"}, ids(scopes))

	usage := vitals.Usage()
	assert.Equal(t, []string{"PATIENT"}, ids(usage["ScopeModel"]))
	assert.Equal(t, []string{"BASELINE"}, ids(usage["EventModel"]))
	assert.True(t, vitals.IsUsed())

	assert.Empty(t, unused.Usage())
	assert.False(t, unused.IsUsed())
	assert.True(t, center.IsUsed())

	_, err = scope.Relations("Menu")
	assert.ErrorIs(t, err, ErrNotRelated)
}

func TestRelationWithoutPropertyIsNotImplemented(t *testing.T) {
	s := NewSession(testRegistry(t))
	def, err := s.New("RuleDefinitionProperty", map[string]any{"id": "P"})
	require.NoError(t, err)
	_, err = def.Relations("Rule")
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.Empty(t, def.Usage())
}

func TestDeleteRemovesReferences(t *testing.T) {
	_, root := newStudyFixture(t)
	scope := mustFind(t, root, "Study:TEST|ScopeModel:PATIENT")
	baseline := mustFind(t, root, "Study:TEST|ScopeModel:PATIENT|EventModel:BASELINE")
	vitals := mustFind(t, root, "Study:TEST|DatasetModel:VITALS")

	vitals.DeleteTree()

	assert.Equal(t, []any{"DEMOGRAPHICS"}, scope.Get("datasetModelIds"))
	assert.Equal(t, []any{}, baseline.Get("datasetModelIds"))
	datasets, err := root.Children("DatasetModel", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"DEMOGRAPHICS", "UNUSED"}, ids(datasets))
	assert.False(t, root.Session().Bus().IsRegistered(vitals))
}

func TestRenameRewritesReferences(t *testing.T) {
	s, root := newStudyFixture(t)
	scope := mustFind(t, root, "Study:TEST|ScopeModel:PATIENT")
	demographics := mustFind(t, root, "Study:TEST|DatasetModel:DEMOGRAPHICS")

	other, err := s.New("Study", map[string]any{"id": "OTHER"})
	require.NoError(t, err)
	foreign, err := s.New("ScopeModel", map[string]any{"id": "X", "datasetModelIds": []any{"DEMOGRAPHICS"}})
	require.NoError(t, err)
	require.NoError(t, other.AddChild(foreign, 0))

	demographics.SetProperty("id", "DEMO")

	assert.Equal(t, []any{"DEMO", "VITALS"}, scope.Get("datasetModelIds"))
	assert.Equal(t, []any{"DEMOGRAPHICS"}, foreign.Get("datasetModelIds"))
}

func TestSetPropertyEmitsOnlyOnChange(t *testing.T) {
	s, root := newStudyFixture(t)
	scope := mustFind(t, root, "Study:TEST|ScopeModel:PATIENT")

	var got []string
	s.Bus().Register(bus.NewCallbacks().
		On("onChangeScopeModelMaxNumber", func(ev bus.Event) {
			got = append(got, "specific")
		}).
		On("onChange", func(ev bus.Event) {
			got = append(got, "generic:"+ev.(ChangeProperty).Property)
		}))

	scope.SetProperty("maxNumber", 10)
	scope.SetProperty("maxNumber", 10.0)
	scope.SetProperty("virtual", true)
	assert.Equal(t, []string{"specific", "generic:virtual"}, got)
}

func TestEventsAreDeliveredInWaves(t *testing.T) {
	s, root := newStudyFixture(t)
	scope := mustFind(t, root, "Study:TEST|ScopeModel:PATIENT")

	var log []string
	s.Bus().Register(bus.NewCallbacks().On("onChangeScopeModel", func(ev bus.Event) {
		ch := ev.(ChangeProperty)
		log = append(log, "a:"+ch.Property)
		if ch.Property == "maxNumber" {
			ch.Node.SetProperty("expectedNumber", "5")
		}
	}))
	s.Bus().Register(bus.NewCallbacks().On("onChangeScopeModel", func(ev bus.Event) {
		log = append(log, "b:"+ev.(ChangeProperty).Property)
	}))

	scope.SetProperty("maxNumber", 5)
	assert.Equal(t, []string{"a:maxNumber", "b:maxNumber", "a:expectedNumber", "b:expectedNumber"}, log)
}

func TestSearchAndLabel(t *testing.T) {
	_, root := newStudyFixture(t)

	assert.Equal(t, []string{"PATIENT"}, ids(root.Search("patient", nil)))
	assert.Equal(t, []string{"BASELINE"}, ids(root.Search("BASELINE VISIT", []string{"en"})))
	assert.Empty(t, root.Search("baseline visit", []string{"fr"}))
	assert.Equal(t, []string{"BASELINE"}, ids(root.Search("initiale", nil)))
	assert.Empty(t, root.Search("test", nil))

	scope := mustFind(t, root, "Study:TEST|ScopeModel:PATIENT")
	assert.Empty(t, scope.Search("patient", nil))
	assert.Equal(t, []string{"BASELINE"}, ids(scope.Search("baseline", nil)))

	baseline := mustFind(t, root, "Study:TEST|ScopeModel:PATIENT|EventModel:BASELINE")
	assert.Equal(t, "Visite initiale", baseline.Label("fr", "en"))
	assert.Equal(t, "Baseline visit", baseline.Label("de"))
	assert.Equal(t, "VITALS", mustFind(t, root, "Study:TEST|DatasetModel:VITALS").Label("en"))
}

func TestConstructAppliesDefaults(t *testing.T) {
	s := NewSession(testRegistry(t))
	study, err := s.Construct("Study")
	require.NoError(t, err)
	assert.Equal(t, 4.0, study.Get("passwordLength"))
	assert.Equal(t, false, study.Get("eproEnabled"))
	assert.Equal(t, []any{}, study.Get("scopeModels"))
	assert.Equal(t, map[string]any{}, study.Get("eventActions"))
	assert.False(t, s.Bus().IsRegistered(study))

	_, err = s.Construct("Nope")
	assert.ErrorIs(t, err, schema.ErrUnknownEntity)
}

func TestRevivalRegistersNodes(t *testing.T) {
	var created []string
	b := bus.New()
	b.Register(bus.NewCallbacks().On("onCreate", func(ev bus.Event) {
		created = append(created, ev.(CreateNode).Node.String())
	}))
	s := NewSession(testRegistry(t), WithBus(b))
	_, err := s.Revive(studyJSON(), reviver.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"EventModel:BASELINE", "EventModel", "ScopeModel:PATIENT", "ScopeModel:CENTER",
		"DatasetModel:DEMOGRAPHICS", "DatasetModel:VITALS", "DatasetModel:UNUSED", "Study:TEST",
	}, created)
	assert.Equal(t, 9, b.Listeners())
}

func TestExportOmitsBackReferences(t *testing.T) {
	_, root := newStudyFixture(t)
	data, err := json.Marshal(root)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "Study", out["className"])
	scope := out["scopeModels"].([]any)[0].(map[string]any)
	assert.Equal(t, "PATIENT", scope["id"])
	assert.NotContains(t, scope, "study")
	event := scope["eventModels"].([]any)[0].(map[string]any)
	assert.Equal(t, "EventModel", event["className"])
	assert.NotContains(t, event, "scopeModel")
}

func ids(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID()
	}
	return out
}
