package filter

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Kind is the storage type of a column.
type Kind int

const (
	KindString Kind = iota
	KindNumber
)

// Schema maps column names to their kinds.
type Schema map[string]Kind

// Value is one column value of a record. Null values never satisfy a comparison.
type Value struct {
	Null bool
	Str  string
	Num  float64
}

// StringValue wraps s; the empty string is treated as null.
func StringValue(s string) Value {
	if s == "" {
		return Value{Null: true}
	}
	return Value{Str: s}
}

// NumberValue wraps n.
func NumberValue(n float64) Value {
	return Value{Num: n}
}

// Record exposes column values to expressions.
type Record interface {
	FieldValue(column string) Value
}

// Expr is a parsed predicate.
type Expr interface {
	Eval(Record) bool
	String() string
}

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

func (op Op) compareNumbers(a, b float64) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	}
	return false
}

func (op Op) compareStrings(a, b string) bool {
	c := strings.Compare(a, b)
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	}
	return false
}

// And is true when both sides are.
type And struct{ Left, Right Expr }

func (e And) Eval(r Record) bool { return e.Left.Eval(r) && e.Right.Eval(r) }
func (e And) String() string     { return "(" + e.Left.String() + " AND " + e.Right.String() + ")" }

// Or is true when either side is.
type Or struct{ Left, Right Expr }

func (e Or) Eval(r Record) bool { return e.Left.Eval(r) || e.Right.Eval(r) }
func (e Or) String() string     { return "(" + e.Left.String() + " OR " + e.Right.String() + ")" }

// Not negates X.
type Not struct{ X Expr }

func (e Not) Eval(r Record) bool { return !e.X.Eval(r) }
func (e Not) String() string     { return "NOT " + e.X.String() }

// Compare tests a column against a literal.
type Compare struct {
	Field string
	Kind  Kind
	Op    Op
	Str   string
	Num   float64
}

func (e Compare) Eval(r Record) bool {
	v := r.FieldValue(e.Field)
	if v.Null {
		return false
	}
	if e.Kind == KindNumber {
		return e.Op.compareNumbers(v.Num, e.Num)
	}
	return e.Op.compareStrings(v.Str, e.Str)
}

func (e Compare) String() string {
	if e.Kind == KindNumber {
		return fmt.Sprintf("%s %s %s", e.Field, e.Op, formatNumber(e.Num))
	}
	return fmt.Sprintf("%s %s %s", e.Field, e.Op, quote(e.Str))
}

// In tests membership in a literal list.
type In struct {
	Field  string
	Kind   Kind
	Strs   []string
	Nums   []float64
	Negate bool
}

func (e In) Eval(r Record) bool {
	v := r.FieldValue(e.Field)
	if v.Null {
		return false
	}
	var found bool
	if e.Kind == KindNumber {
		found = slices.Contains(e.Nums, v.Num)
	} else {
		found = slices.Contains(e.Strs, v.Str)
	}
	return found != e.Negate
}

func (e In) String() string {
	items := make([]string, 0, len(e.Strs)+len(e.Nums))
	for _, s := range e.Strs {
		items = append(items, quote(s))
	}
	for _, n := range e.Nums {
		items = append(items, formatNumber(n))
	}
	keyword := " IN ("
	if e.Negate {
		keyword = " NOT IN ("
	}
	return e.Field + keyword + strings.Join(items, ", ") + ")"
}

// Like matches a SQL LIKE pattern, case-insensitive for ASCII letters.
type Like struct {
	Field   string
	Pattern string
	Negate  bool
}

func (e Like) Eval(r Record) bool {
	v := r.FieldValue(e.Field)
	if v.Null {
		return false
	}
	text := v.Str
	if text == "" {
		text = formatNumber(v.Num)
	}
	return likeMatch(asciiLower(e.Pattern), asciiLower(text)) != e.Negate
}

func (e Like) String() string {
	if e.Negate {
		return e.Field + " NOT LIKE " + quote(e.Pattern)
	}
	return e.Field + " LIKE " + quote(e.Pattern)
}

// Instr compares the 1-based position of Needle within the column (0 when
// absent) with a number. A bare instr(...) call means position > 0.
type Instr struct {
	Field  string
	Needle string
	Op     Op
	Num    float64
}

func (e Instr) Eval(r Record) bool {
	v := r.FieldValue(e.Field)
	if v.Null {
		return false
	}
	pos := float64(strings.Index(v.Str, e.Needle) + 1)
	return e.Op.compareNumbers(pos, e.Num)
}

func (e Instr) String() string {
	return fmt.Sprintf("instr(%s, %s) %s %s", e.Field, quote(e.Needle), e.Op, formatNumber(e.Num))
}

// IsNull tests for an empty column.
type IsNull struct {
	Field  string
	Negate bool
}

func (e IsNull) Eval(r Record) bool { return r.FieldValue(e.Field).Null != e.Negate }

func (e IsNull) String() string {
	if e.Negate {
		return e.Field + " IS NOT NULL"
	}
	return e.Field + " IS NULL"
}

// True matches every record; it represents an empty filter.
type True struct{}

func (True) Eval(Record) bool { return true }
func (True) String() string   { return "TRUE" }

// Mentions reports whether any leaf of expr references column.
func Mentions(expr Expr, column string) bool {
	switch e := expr.(type) {
	case And:
		return Mentions(e.Left, column) || Mentions(e.Right, column)
	case Or:
		return Mentions(e.Left, column) || Mentions(e.Right, column)
	case Not:
		return Mentions(e.X, column)
	case Compare:
		return e.Field == column
	case In:
		return e.Field == column
	case Like:
		return e.Field == column
	case Instr:
		return e.Field == column
	case IsNull:
		return e.Field == column
	}
	return false
}

// AndAll joins expressions with AND, skipping nil and True operands.
func AndAll(exprs ...Expr) Expr {
	var out Expr
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if _, ok := e.(True); ok {
			continue
		}
		if out == nil {
			out = e
			continue
		}
		out = And{Left: out, Right: e}
	}
	if out == nil {
		return True{}
	}
	return out
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// likeMatch implements % and _ wildcards over bytes.
func likeMatch(pattern, text string) bool {
	p, t := 0, 0
	star, mark := -1, 0
	for t < len(text) {
		switch {
		case p < len(pattern) && (pattern[p] == '_' || pattern[p] == text[t]):
			p++
			t++
		case p < len(pattern) && pattern[p] == '%':
			star = p
			mark = t
			p++
		case star >= 0:
			p = star + 1
			mark++
			t = mark
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '%' {
		p++
	}
	return p == len(pattern)
}
