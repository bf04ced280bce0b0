package metadata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/samber/lo"
)

// Canonical type tags. Tags found in a document are compared after lower
// casing and replacing underscores with dashes, so SINGLE_SELECT and
// single-select are the same tag.
const (
	TypeText         = "text"
	TypeSingleSelect = "single-select"
	TypeAction       = "action"
	TypeMultiSelect  = "hierarchical-multi-select"
)

var tagAliases = map[string]string{
	TypeText:         TypeText,
	TypeSingleSelect: TypeSingleSelect,
	TypeAction:       TypeAction,
	TypeMultiSelect:  TypeMultiSelect,
	"multi-select":   TypeMultiSelect,
}

// Top-level keys that never describe a step.
var reservedKeys = map[string]bool{
	"_links":        true,
	"configuration": true,
}

// The service has shipped both spellings for the option list.
var payloadKeys = []string{"values", "content"}

// Parse converts a metadata document into its steps, in document order.
// Unknown keys and unknown step types are skipped; a known step type missing
// a required field fails with ErrMalformedMetadata.
func Parse(document []byte) ([]Step, error) {
	_, dataType, _, err := jsonparser.Get(document)
	if err != nil || dataType != jsonparser.Object {
		return nil, malformed("", "", "document is not a JSON object")
	}

	var steps []Step
	err = jsonparser.ObjectEach(document, func(rawKey, value []byte, dataType jsonparser.ValueType, _ int) error {
		key := string(rawKey)
		if reservedKeys[key] || dataType != jsonparser.Object {
			return nil
		}

		step, ok, err := parseStep(key, value)
		if err != nil {
			return err
		}
		if ok {
			steps = append(steps, step)
		}
		return nil
	})
	if err != nil {
		var me *MalformedError
		if errors.As(err, &me) {
			return nil, err
		}
		return nil, malformed("", "", "%v", err)
	}
	return steps, nil
}

func parseStep(key string, body []byte) (Step, bool, error) {
	tag, present, err := stringField(body, "type")
	if err != nil || !present {
		return Step{}, false, nil
	}
	typeName, known := tagAliases[strings.ReplaceAll(strings.ToLower(strings.TrimSpace(tag)), "_", "-")]
	if !known {
		return Step{}, false, nil
	}

	name, present, err := stringField(body, "id")
	if err != nil {
		return Step{}, false, malformed(key, "id", "%v", err)
	}
	if !present || name == "" {
		name = key
	}

	var kind Kind
	switch typeName {
	case TypeText:
		kind, err = parseText(key, body)
	case TypeSingleSelect:
		var values []Item
		var def string
		values, def, err = parseChoice(key, body, ItemOption)
		kind = SingleSelect{Default: def, Values: values}
	case TypeAction:
		var values []Item
		var def string
		values, def, err = parseChoice(key, body, ItemAction)
		kind = Action{Default: def, Values: values}
	case TypeMultiSelect:
		var values []Item
		values, err = parseGroups(key, body)
		kind = MultiSelect{Values: values}
	}
	if err != nil {
		return Step{}, false, err
	}
	return Step{Name: name, Kind: kind}, true, nil
}

func parseText(key string, body []byte) (Kind, error) {
	def, present, err := stringField(body, "default")
	if err != nil {
		return nil, malformed(key, "default", "%v", err)
	}
	if present {
		return Text{Default: def}, nil
	}

	def, present, err = stringField(body, "content")
	if err != nil {
		return nil, malformed(key, "content", "%v", err)
	}
	if !present {
		return nil, malformed(key, "default", "text step declares neither default nor content")
	}
	return Text{Default: def}, nil
}

// parseChoice reads the items of a single-select or action step and works
// out its default: a sibling "default" id wins over an item flagged
// "default": true, and the first item is used when neither is present.
func parseChoice(key string, body []byte, kind ItemKind) ([]Item, string, error) {
	payload, field, err := payloadArray(key, body)
	if err != nil {
		return nil, "", err
	}

	var (
		items   []Item
		flagged string
	)
	err = eachObject(key, field, payload, func(obj []byte) error {
		it, isDefault, err := parseItem(key, field, obj, kind)
		if err != nil {
			return err
		}
		if isDefault && flagged == "" {
			flagged = it.ID
		}
		items = append(items, it)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	if err := checkUnique(key, field, items); err != nil {
		return nil, "", err
	}

	def, present, err := stringField(body, "default")
	if err != nil {
		return nil, "", malformed(key, "default", "%v", err)
	}
	switch {
	case present:
	case flagged != "":
		def = flagged
	case len(items) > 0:
		def = items[0].ID
	}
	return items, def, nil
}

type group struct {
	name  string
	items []Item
}

func parseGroups(key string, body []byte) ([]Item, error) {
	payload, field, err := payloadArray(key, body)
	if err != nil {
		return nil, err
	}

	var groups []group
	err = eachObject(key, field, payload, func(obj []byte) error {
		name, present, err := stringField(obj, "name")
		if err != nil {
			return malformed(key, field+".name", "%v", err)
		}
		if !present {
			return malformed(key, field+".name", "group has no name")
		}

		values, valuesField, err := payloadArray(key, obj)
		if err != nil {
			return err
		}
		g := group{name: name}
		err = eachObject(key, valuesField, values, func(itemObj []byte) error {
			it, _, err := parseItem(key, valuesField, itemObj, ItemDependency)
			if err != nil {
				return err
			}
			it.Group = name
			g.items = append(g.items, it)
			return nil
		})
		if err != nil {
			return err
		}
		groups = append(groups, g)
		return nil
	})
	if err != nil {
		return nil, err
	}

	items := lo.FlatMap(groups, func(g group, _ int) []Item { return g.items })
	if err := checkUnique(key, field, items); err != nil {
		return nil, err
	}
	return items, nil
}

func parseItem(key, field string, obj []byte, kind ItemKind) (Item, bool, error) {
	id, present, err := stringField(obj, "id")
	if err != nil || !present {
		return Item{}, false, malformed(key, field+".id", "item needs a string id")
	}
	name, present, err := stringField(obj, "name")
	if err != nil || !present {
		return Item{}, false, malformed(key, field+".name", "item %q needs a string name", id)
	}
	description, _, _ := stringField(obj, "description")

	it := Item{ID: id, DisplayName: name, Description: description, Kind: kind}
	if kind == ItemAction {
		action, present, err := stringField(obj, "action")
		if err != nil || !present {
			return Item{}, false, malformed(key, field+".action", "action item %q needs a string action", id)
		}
		it.Action = action
	}

	isDefault, err := jsonparser.GetBoolean(obj, "default")
	return it, err == nil && isDefault, nil
}

func checkUnique(key, field string, items []Item) error {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it.ID] {
			return malformed(key, field, "duplicate item id %q", it.ID)
		}
		seen[it.ID] = true
	}
	return nil
}

// payloadArray returns the first of "values" or "content" present on obj,
// which must be an array.
func payloadArray(key string, obj []byte) ([]byte, string, error) {
	for _, field := range payloadKeys {
		value, dataType, _, err := jsonparser.Get(obj, field)
		if err != nil || dataType == jsonparser.NotExist {
			continue
		}
		if dataType != jsonparser.Array {
			return nil, field, malformed(key, field, "expected an array, got %s", dataType)
		}
		return value, field, nil
	}
	return nil, "", malformed(key, "values", "missing values or content")
}

// eachObject calls fn for every element of array, which must all be objects.
func eachObject(key, field string, array []byte, fn func(obj []byte) error) error {
	var cbErr error
	_, err := jsonparser.ArrayEach(array, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if cbErr != nil {
			return
		}
		if dataType != jsonparser.Object {
			cbErr = malformed(key, field, "expected an object element, got %s", dataType)
			return
		}
		cbErr = fn(value)
	})
	if cbErr != nil {
		return cbErr
	}
	if err != nil {
		return malformed(key, field, "%v", err)
	}
	return nil
}

// stringField reads obj[field]. present is false when the field is absent
// or null; err is set when it holds another JSON type.
func stringField(obj []byte, field string) (value string, present bool, err error) {
	raw, dataType, _, getErr := jsonparser.Get(obj, field)
	if getErr != nil || dataType == jsonparser.NotExist || dataType == jsonparser.Null {
		return "", false, nil
	}
	if dataType != jsonparser.String {
		return "", true, fmt.Errorf("expected a string, got %s", dataType)
	}
	value, err = jsonparser.ParseString(raw)
	if err != nil {
		return "", true, err
	}
	return value, true, nil
}
