package router

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"ledgerdesk/internal/common"
	"ledgerdesk/internal/models"
)

type paramType int

const (
	typeString paramType = iota
	typeFloat
	typeInt
	typeBool
	typeDate
	typeStringList
	typeDayEntries
	typeLineItems
)

type paramSpec struct {
	key string
	typ paramType
	def any
}

func req(key string, typ paramType) paramSpec {
	return paramSpec{key: key, typ: typ}
}

func opt(key string, typ paramType, def any) paramSpec {
	return paramSpec{key: key, typ: typ, def: def}
}

// coerce converts one raw parameter into its schema type. Callers often
// come through JSON, so numbers arrive as float64 and list parameters
// may arrive as JSON-encoded strings; both forms are accepted.
func coerce(spec paramSpec, v any) (any, error) {
	badType := func(expected string) error {
		return common.FieldError(common.ErrInvalidParameter, spec.key,
			"parameter %q must be %s, got %T", spec.key, expected, v)
	}

	switch spec.typ {
	case typeString:
		s, ok := v.(string)
		if !ok {
			return nil, badType("a string")
		}
		return strings.TrimSpace(s), nil

	case typeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return nil, badType("a number")
			}
			return f, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return nil, badType("a number")
			}
			return f, nil
		}
		return nil, badType("a number")

	case typeInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case float64:
			if n != float64(int(n)) {
				return nil, badType("an integer")
			}
			return int(n), nil
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, badType("an integer")
			}
			return int(i), nil
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(n))
			if err != nil {
				return nil, badType("an integer")
			}
			return i, nil
		}
		return nil, badType("an integer")

	case typeBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return nil, badType("a boolean")
			}
			return parsed, nil
		}
		return nil, badType("a boolean")

	case typeDate:
		s, ok := v.(string)
		if !ok {
			return nil, badType("a YYYY-MM-DD date string")
		}
		date, err := common.ParseDate(s, spec.key)
		if err != nil {
			return nil, err
		}
		return date, nil

	case typeStringList:
		return coerceStringList(spec.key, v)

	case typeDayEntries:
		return coerceDayEntries(spec.key, v)

	case typeLineItems:
		return coerceLineItems(spec.key, v)
	}
	return nil, badType("a supported type")
}

func coerceStringList(key string, v any) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, common.FieldError(common.ErrInvalidParameter, key,
					"parameter %q must be a list of strings", key)
			}
			out = append(out, strings.TrimSpace(s))
		}
		return out, nil
	case string:
		var out []string
		if err := json.Unmarshal([]byte(list), &out); err != nil {
			return nil, common.FieldError(common.ErrInvalidParameter, key,
				"parameter %q must be a JSON array of strings", key)
		}
		return out, nil
	}
	return nil, common.FieldError(common.ErrInvalidParameter, key,
		"parameter %q must be a list of strings, got %T", key, v)
}

// dayEntry is the wire shape of one work day.
type dayEntry struct {
	Day      string  `json:"day"`
	Quantity float64 `json:"quantity"`
	Item     string  `json:"item"`
	Job      string  `json:"job"`
	Cost     float64 `json:"cost"`
	Desc     string  `json:"description"`
}

func coerceDayEntries(key string, v any) ([]models.WorkDay, error) {
	raw, err := remarshal(key, v)
	if err != nil {
		return nil, err
	}
	var entries []dayEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, common.FieldError(common.ErrInvalidParameter, key,
			"parameter %q must be a list of day entries: %v", key, err)
	}
	out := make([]models.WorkDay, 0, len(entries))
	for _, e := range entries {
		day, err := models.ParseWeekday(e.Day)
		if err != nil {
			return nil, common.FieldError(common.ErrInvalidParameter, key,
				"parameter %q contains an invalid day of week %q", key, e.Day)
		}
		out = append(out, models.WorkDay{
			Day:      day,
			Quantity: e.Quantity,
			Item:     e.Item,
			Job:      e.Job,
			Cost:     e.Cost,
			Desc:     e.Desc,
		})
	}
	return out, nil
}

func coerceLineItems(key string, v any) ([]models.LineItem, error) {
	raw, err := remarshal(key, v)
	if err != nil {
		return nil, err
	}
	var items []models.LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, common.FieldError(common.ErrInvalidParameter, key,
			"parameter %q must be a list of line items: %v", key, err)
	}
	return items, nil
}

// remarshal normalizes a structured parameter to JSON bytes whether it
// arrived decoded or as an embedded JSON string.
func remarshal(key string, v any) ([]byte, error) {
	if s, ok := v.(string); ok {
		return []byte(s), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, common.FieldError(common.ErrInvalidParameter, key,
			"parameter %q is not a valid structured value", key)
	}
	return raw, nil
}

// ParamSet holds one command's coerced parameters. Accessors assume the
// schema already validated presence and type; a missing optional value
// returns the zero value.
type ParamSet struct {
	values map[string]any
}

func (p *ParamSet) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

func (p *ParamSet) Str(key string) string {
	s, _ := p.values[key].(string)
	return s
}

func (p *ParamSet) Float(key string) float64 {
	f, _ := p.values[key].(float64)
	return f
}

func (p *ParamSet) Int(key string) int {
	i, _ := p.values[key].(int)
	return i
}

func (p *ParamSet) Bool(key string) bool {
	b, _ := p.values[key].(bool)
	return b
}

func (p *ParamSet) Date(key string) time.Time {
	t, _ := p.values[key].(time.Time)
	return t
}

func (p *ParamSet) StrList(key string) []string {
	l, _ := p.values[key].([]string)
	return l
}

func (p *ParamSet) DayEntries(key string) []models.WorkDay {
	l, _ := p.values[key].([]models.WorkDay)
	return l
}

func (p *ParamSet) LineItems(key string) []models.LineItem {
	l, _ := p.values[key].([]models.LineItem)
	return l
}
