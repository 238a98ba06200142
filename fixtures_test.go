package advisor

import (
	"fmt"
	"time"

	"github.com/janiece-23/BetterAdvisor/schema"
)

// Test schema: a three-level user hierarchy, a section type related to
// students through a join table, and a token type with an
// application-assigned string key.
var (
	testRegistry = schema.NewRegistry()

	typeUser = &schema.Type{
		Name: "User",
		Columns: []*schema.Column{
			schema.Col("id").AsPrimary().AsAuto().SkipUpsert(),
			schema.Col("username").AsIdentifier(),
			schema.Col("email"),
			schema.Col("created_at").AsTime(),
		},
		New: func() schema.Entity { return &User{} },
	}

	typeStudent = &schema.Type{
		Name:     "Student",
		SubTable: true,
		Parent:   typeUser,
		Columns: []*schema.Column{
			schema.Col("gpa"),
			schema.Col("advisor_id").AsNullableRef(),
		},
		New: func() schema.Entity { return &Student{} },
	}

	typeGradStudent = &schema.Type{
		Name:     "GradStudent",
		SubTable: true,
		Parent:   typeStudent,
		Columns: []*schema.Column{
			schema.Col("thesis"),
		},
		New: func() schema.Entity { return &GradStudent{} },
	}

	typeSection = &schema.Type{
		Name: "Section",
		Columns: []*schema.Column{
			schema.Col("id").AsPrimary().AsAuto().SkipUpsert(),
			schema.Col("code").AsIdentifier(),
		},
		New: func() schema.Entity { return &Section{} },
	}

	typeToken = &schema.Type{
		Name: "Token",
		Columns: []*schema.Column{
			schema.Col("id").AsPrimary(),
			schema.Col("note"),
		},
		New: func() schema.Entity { return &Token{} },
	}

	// typeGhost carries no table metadata anywhere in its ancestry.
	typeGhost = &schema.Type{Name: "Ghost", Embedded: true}
)

func init() {
	testRegistry.MustRegister(typeUser, typeStudent, typeGradStudent, typeSection, typeToken)
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	}
	return 0, false
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	}
	return "", false
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	if i, ok := asInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func setInt64(dst *int64, column string, v any) error {
	x, ok := asInt64(v)
	if !ok {
		return fmt.Errorf("column %s: cannot assign %T", column, v)
	}
	*dst = x
	return nil
}

func setString(dst *string, column string, v any) error {
	x, ok := asString(v)
	if !ok {
		return fmt.Errorf("column %s: cannot assign %T", column, v)
	}
	*dst = x
	return nil
}

func setFloat64(dst *float64, column string, v any) error {
	x, ok := asFloat64(v)
	if !ok {
		return fmt.Errorf("column %s: cannot assign %T", column, v)
	}
	*dst = x
	return nil
}

func setTime(dst *time.Time, column string, v any) error {
	x, ok := v.(time.Time)
	if !ok {
		return fmt.Errorf("column %s: cannot assign %T", column, v)
	}
	*dst = x
	return nil
}

type User struct {
	ID        int64
	Username  string
	Email     string
	CreatedAt time.Time
}

func (u *User) Type() *schema.Type { return typeUser }

func (u *User) Value(column string) (any, error) {
	switch column {
	case "id":
		return u.ID, nil
	case "username":
		return u.Username, nil
	case "email":
		return u.Email, nil
	case "created_at":
		return u.CreatedAt, nil
	}
	return nil, fmt.Errorf("unknown column %q", column)
}

func (u *User) SetValue(column string, v any) error {
	switch column {
	case "id":
		return setInt64(&u.ID, column, v)
	case "username":
		return setString(&u.Username, column, v)
	case "email":
		return setString(&u.Email, column, v)
	case "created_at":
		return setTime(&u.CreatedAt, column, v)
	}
	return fmt.Errorf("unknown column %q", column)
}

type Student struct {
	User
	GPA       float64
	AdvisorID int64
}

func (s *Student) Type() *schema.Type { return typeStudent }

func (s *Student) Value(column string) (any, error) {
	switch column {
	case "gpa":
		return s.GPA, nil
	case "advisor_id":
		return s.AdvisorID, nil
	}
	return s.User.Value(column)
}

func (s *Student) SetValue(column string, v any) error {
	switch column {
	case "gpa":
		return setFloat64(&s.GPA, column, v)
	case "advisor_id":
		return setInt64(&s.AdvisorID, column, v)
	}
	return s.User.SetValue(column, v)
}

type GradStudent struct {
	Student
	Thesis string
}

func (g *GradStudent) Type() *schema.Type { return typeGradStudent }

func (g *GradStudent) Value(column string) (any, error) {
	if column == "thesis" {
		return g.Thesis, nil
	}
	return g.Student.Value(column)
}

func (g *GradStudent) SetValue(column string, v any) error {
	if column == "thesis" {
		return setString(&g.Thesis, column, v)
	}
	return g.Student.SetValue(column, v)
}

type Section struct {
	ID   int64
	Code string
}

func (s *Section) Type() *schema.Type { return typeSection }

func (s *Section) Value(column string) (any, error) {
	switch column {
	case "id":
		return s.ID, nil
	case "code":
		return s.Code, nil
	}
	return nil, fmt.Errorf("unknown column %q", column)
}

func (s *Section) SetValue(column string, v any) error {
	switch column {
	case "id":
		return setInt64(&s.ID, column, v)
	case "code":
		return setString(&s.Code, column, v)
	}
	return fmt.Errorf("unknown column %q", column)
}

type Token struct {
	ID   string
	Note string
}

func (t *Token) Type() *schema.Type { return typeToken }

func (t *Token) Value(column string) (any, error) {
	switch column {
	case "id":
		return t.ID, nil
	case "note":
		return t.Note, nil
	}
	return nil, fmt.Errorf("unknown column %q", column)
}

func (t *Token) SetValue(column string, v any) error {
	switch column {
	case "id":
		return setString(&t.ID, column, v)
	case "note":
		return setString(&t.Note, column, v)
	}
	return fmt.Errorf("unknown column %q", column)
}

type Ghost struct{}

func (*Ghost) Type() *schema.Type         { return typeGhost }
func (*Ghost) Value(string) (any, error)  { return nil, nil }
func (*Ghost) SetValue(string, any) error { return nil }
