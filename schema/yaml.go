package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// yamlFile is the on-disk shape of a schema declaration.
type yamlFile struct {
	Types []yamlType `yaml:"types"`
}

type yamlType struct {
	Name     string       `yaml:"name"`
	Table    string       `yaml:"table"`
	SubTable bool         `yaml:"sub_table"`
	Embedded bool         `yaml:"embedded"`
	Parent   string       `yaml:"parent"`
	Columns  []yamlColumn `yaml:"columns"`
}

type yamlColumn struct {
	Name        string `yaml:"name"`
	Identifier  bool   `yaml:"identifier"`
	Primary     bool   `yaml:"primary"`
	Auto        bool   `yaml:"auto"`
	OmitUpsert  bool   `yaml:"omit_upsert"`
	NullableRef bool   `yaml:"nullable_ref"`
	Kind        string `yaml:"kind"`
}

// LoadYAML parses a YAML schema declaration and registers the declared
// types. Parent references may name a type declared earlier in the same
// document or one already registered. Loaded types have no entity factory
// until one is bound with Bind.
//
// Example declaration:
//
//	types:
//	  - name: User
//	    columns:
//	      - {name: id, primary: true, auto: true, omit_upsert: true}
//	      - {name: username, identifier: true}
//	  - name: Student
//	    sub_table: true
//	    parent: User
//	    columns:
//	      - {name: gpa}
func (r *Registry) LoadYAML(data []byte) error {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("schema: parsing yaml declaration: %w", err)
	}
	declared := make(map[string]*Type, len(f.Types))
	for _, yt := range f.Types {
		t := &Type{
			Name:     yt.Name,
			Table:    yt.Table,
			SubTable: yt.SubTable,
			Embedded: yt.Embedded,
		}
		if yt.Parent != "" {
			parent, ok := declared[yt.Parent]
			if !ok {
				parent, ok = r.Lookup(yt.Parent)
			}
			if !ok {
				return NewSchemaError(yt.Name, "unknown parent type %q", yt.Parent)
			}
			t.Parent = parent
		}
		for _, yc := range yt.Columns {
			c := &Column{
				Name:        yc.Name,
				Identifier:  yc.Identifier || yc.Primary,
				Primary:     yc.Primary,
				Auto:        yc.Auto,
				OmitUpsert:  yc.OmitUpsert,
				NullableRef: yc.NullableRef,
			}
			switch yc.Kind {
			case "", "any":
			case "time":
				c.Kind = KindTime
			case "date":
				c.Kind = KindDate
			default:
				return NewSchemaError(yt.Name, "column %q has unknown kind %q", yc.Name, yc.Kind)
			}
			t.Columns = append(t.Columns, c)
		}
		if err := r.Register(t); err != nil {
			return err
		}
		declared[t.Name] = t
	}
	return nil
}
