package migrate

import (
	"fmt"
	"strings"
)

// Steps — шаги приложения в порядке версий.
func Steps() []Step {
	return []Step{
		{Version: 116, Description: "Update to latest version of Angular", Transform: renameMenuPages},
		{Version: 117, Description: "Migrate date and number format", Transform: migrateFieldFormats},
		{Version: 118, Description: "Rename and remove configuration options", Transform: renameOptions},
	}
}

func renameMenuPages(config map[string]any) ([]any, error) {
	var touched []any
	for _, m := range objects(config["menus"]) {
		ok, err := renameMenuPage(m)
		if err != nil {
			return nil, err
		}
		if ok {
			touched = append(touched, m)
		}
		for _, sub := range objects(m["submenus"]) {
			ok, err := renameMenuPage(sub)
			if err != nil {
				return nil, err
			}
			if ok {
				touched = append(touched, sub)
			}
		}
	}
	return touched, nil
}

func renameMenuPage(menu map[string]any) (bool, error) {
	action, ok := menu["action"].(map[string]any)
	if !ok {
		return false, fmt.Errorf("menu %v has no action", menu["id"])
	}
	page, _ := action["page"].(string)
	switch page {
	case "scope-page":
		context, _ := action["context"].([]any)
		if len(context) == 0 {
			return false, fmt.Errorf("menu %v: scope page without context", menu["id"])
		}
		scope, ok := context[0].(string)
		if !ok {
			return false, fmt.Errorf("menu %v: scope page context must be a string", menu["id"])
		}
		action["page"] = "scopes/" + strings.ToUpper(scope)
		action["context"] = []any{}
	case "contacts":
		action["page"] = "users"
	case "crf":
		action["page"] = "search"
		action["context"] = []any{}
	case "extract":
		action["page"] = "extracts"
	case "send-mail":
		action["page"] = "send-test-mail"
	default:
		return false, nil
	}
	return true, nil
}

func migrateFieldFormats(config map[string]any) ([]any, error) {
	var touched []any
	for _, fm := range fieldModels(config) {
		format, _ := fm["format"].(string)
		switch fm["type"] {
		case "DATE":
			move(fm, "yearsStart", "minYear")
			move(fm, "yearsStop", "maxYear")
			fm["withYears"] = strings.Contains(format, "yyyy")
			fm["withMonths"] = strings.Contains(format, "MM")
			fm["withDays"] = strings.Contains(format, "dd")
			fm["withHours"] = strings.Contains(format, "HH")
			fm["withMinutes"] = strings.Contains(format, "mm")
			fm["withSeconds"] = strings.Contains(format, "ss")
		case "DATE_SELECT":
			move(fm, "yearsStart", "minYear")
			move(fm, "yearsStop", "maxYear")
			move(fm, "displayYears", "withYears")
			move(fm, "displayMonths", "withMonths")
			move(fm, "displayDays", "withDays")
		case "NUMBER":
			if integer, decimal, ok := strings.Cut(format, "."); ok {
				decimal, _, _ = strings.Cut(decimal, ".")
				fm["maxIntegerDigits"] = float64(len(integer))
				fm["maxDecimalDigits"] = float64(len(decimal))
			} else {
				fm["maxIntegerDigits"] = float64(len(format))
			}
		}
		for _, k := range []string{"yearsStart", "yearsStop", "displayYears", "displayMonths", "displayDays", "format"} {
			delete(fm, k)
		}
		touched = append(touched, fm)
	}
	return touched, nil
}

func renameOptions(config map[string]any) ([]any, error) {
	for _, sm := range objects(config["scopeModels"]) {
		move(sm, "parents", "parentIds")
	}
	for _, fm := range fieldModels(config) {
		delete(fm, "helpHover")
		move(fm, "forDisplay", "inlineHelp")
		move(fm, "helpText", "advancedHelp")
		delete(fm, "size")
	}
	return nil, nil
}

func fieldModels(config map[string]any) []map[string]any {
	var out []map[string]any
	for _, dm := range objects(config["datasetModels"]) {
		out = append(out, objects(dm["fieldModels"])...)
	}
	return out
}

// objects — элементы-объекты JSON-массива; прочие элементы пропускаются.
func objects(v any) []map[string]any {
	list, _ := v.([]any)
	out := make([]map[string]any, 0, len(list))
	for _, it := range list {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// move переносит значение from в to; отсутствующее значение удаляет to.
func move(m map[string]any, from, to string) {
	v, ok := m[from]
	delete(m, from)
	if !ok || v == nil {
		delete(m, to)
		return
	}
	m[to] = v
}
