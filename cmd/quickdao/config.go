package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coregx/quickdao/internal/core"
)

// File is the YAML document read by quickdao: one entity and one operation.
type File struct {
	Entity    EntityConfig `yaml:"entity"`
	Operation string       `yaml:"operation"`
	Query     QueryConfig  `yaml:"query,omitempty"`

	// Values supplies entity fields for insert, update and update_selective,
	// and the id for get and delete_by_id.
	Values map[string]interface{} `yaml:"values,omitempty"`
	// Rows supplies the entities of batch_insert.
	Rows []map[string]interface{} `yaml:"rows,omitempty"`
	// BatchSize renders batch_insert for n rows when Rows is empty.
	BatchSize int `yaml:"batch_size,omitempty"`
}

// EntityConfig declares table, identity field and fields.
type EntityConfig struct {
	Table  string        `yaml:"table"`
	ID     string        `yaml:"id"`
	Fields []FieldConfig `yaml:"fields"`
}

// FieldConfig is one field; Column defaults to Name.
type FieldConfig struct {
	Name   string `yaml:"name"`
	Column string `yaml:"column,omitempty"`
}

// UnmarshalYAML accepts a bare field name as shorthand.
func (f *FieldConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		f.Name = node.Value
		return nil
	}
	type plain FieldConfig
	return node.Decode((*plain)(f))
}

// QueryConfig is the YAML form of a query.
type QueryConfig struct {
	Select  StringList        `yaml:"select,omitempty"`
	Where   []ConditionConfig `yaml:"where,omitempty"`
	GroupBy StringList        `yaml:"group_by,omitempty"`
	Having  []ConditionConfig `yaml:"having,omitempty"`
	// OrderBy entries are "field" or "field desc".
	OrderBy StringList `yaml:"order_by,omitempty"`
	Limit   int        `yaml:"limit,omitempty"`
	Offset  int        `yaml:"offset,omitempty"`
}

// ConditionConfig is either a criterion (Field, Op, Value) or a group
// (Or / And holding nested conditions).
type ConditionConfig struct {
	Field string      `yaml:"field,omitempty"`
	Op    string      `yaml:"op,omitempty"`
	Value interface{} `yaml:"value,omitempty"`

	Or  []ConditionConfig `yaml:"or,omitempty"`
	And []ConditionConfig `yaml:"and,omitempty"`
}

// StringList is a YAML type that can be either a string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler for StringList.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

// LoadFile reads and decodes path; "-" reads stdin.
func LoadFile(path string) (*File, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return DecodeFile(r)
}

// DecodeFile decodes a File, rejecting unknown keys.
func DecodeFile(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var file File
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode query file: %w", err)
	}
	if file.Operation == "" {
		return nil, fmt.Errorf("query file: operation is required")
	}
	return &file, nil
}

// Meta builds the entity metadata.
func (e EntityConfig) Meta() (*core.EntityMeta, error) {
	fields := make([]core.Field, len(e.Fields))
	for i, f := range e.Fields {
		fields[i] = core.Field{Name: f.Name, Column: f.Column}
	}
	id := e.ID
	if id == "" {
		id = "id"
	}
	return core.NewEntityMeta(e.Table, id, fields...)
}

// Build converts the YAML query into a core.Query.
func (q QueryConfig) Build() (*core.Query, error) {
	query := core.NewQuery()
	if len(q.Select) > 0 {
		query.Select(q.Select...)
	}
	if err := addConditions(query.Criteria(), q.Where); err != nil {
		return nil, fmt.Errorf("where: %w", err)
	}
	if len(q.GroupBy) > 0 {
		query.GroupBy(q.GroupBy...)
	}
	if err := addConditions(query.HavingCriteria(), q.Having); err != nil {
		return nil, fmt.Errorf("having: %w", err)
	}
	for _, entry := range q.OrderBy {
		name, dir, err := parseOrder(entry)
		if err != nil {
			return nil, err
		}
		query.OrderBy(name, dir)
	}
	if q.Limit > 0 {
		query.Limit(q.Limit).Offset(q.Offset)
	}
	return query, nil
}

func addConditions(c *core.Criteria, conds []ConditionConfig) error {
	for _, cond := range conds {
		switch {
		case len(cond.Or) > 0:
			var err error
			c.Or(func(g *core.Criteria) { err = addConditions(g, cond.Or) })
			if err != nil {
				return err
			}
		case len(cond.And) > 0:
			var err error
			c.AndGroup(func(g *core.Criteria) { err = addConditions(g, cond.And) })
			if err != nil {
				return err
			}
		default:
			criterion, err := cond.criterion()
			if err != nil {
				return err
			}
			c.Add(criterion)
		}
	}
	return nil
}

func (cond ConditionConfig) criterion() (core.Criterion, error) {
	if cond.Field == "" {
		return core.Criterion{}, fmt.Errorf("condition without field")
	}
	opName := cond.Op
	if opName == "" {
		opName = "eq"
	}
	op, err := core.ParseOperator(opName)
	if err != nil {
		return core.Criterion{}, err
	}

	var value core.Value
	switch v := cond.Value.(type) {
	case nil:
		value = core.Scalar(nil)
		if op == core.IsNull || op == core.IsNotNull {
			value = core.Value{}
		}
	case []interface{}:
		value = core.SequenceOf(v)
	default:
		value = core.Scalar(v)
	}
	return core.NewCriterion(cond.Field, op, value), nil
}

func parseOrder(entry string) (string, core.Direction, error) {
	parts := strings.Fields(entry)
	switch len(parts) {
	case 1:
		return parts[0], core.Asc, nil
	case 2:
		dir, err := core.ParseDirection(parts[1])
		return parts[0], dir, err
	}
	// Raw expressions may contain spaces; the last word is the direction
	// only when it parses as one.
	last := parts[len(parts)-1]
	if dir, err := core.ParseDirection(last); err == nil {
		return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(entry), last)), dir, nil
	}
	return strings.TrimSpace(entry), core.Asc, nil
}
