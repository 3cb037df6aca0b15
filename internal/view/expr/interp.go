package expr

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// allowedMethods is the closed method whitelist. Anything else fails
// at parse time.
var allowedMethods = map[string]bool{
	// string predicates
	"starts_with": true, "ends_with": true, "contains_str": true,
	"matches_str": true, "lower": true, "upper": true, "strlen": true,
	// list operations
	"length": true, "contains": true, "is_in": true,
	"filter": true, "map": true,
	// date accessors
	"year": true, "month": true, "day_of_month": true, "day_of_week": true,
	// arithmetic functions
	"abs": true, "floor": true, "ceil": true, "round": true,
	// casting
	"to_int": true, "to_double": true, "to_string": true, "to_bool": true,
	// null handling
	"exists": true,
}

// Expr is a compiled field expression.
type Expr struct {
	root Node
	src  string
}

// Compile parses source into an evaluable expression.
func Compile(src string) (*Expr, error) {
	root, err := parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid field expression %q: %w", src, err)
	}
	return &Expr{root: root, src: src}, nil
}

// Source returns the original expression source.
func (e *Expr) Source() string { return e.src }

// Fields returns every field path the expression references.
func (e *Expr) Fields() []string {
	var out []string
	var walk func(Node)
	walk = func(n Node) {
		switch t := n.(type) {
		case *FieldRef:
			out = append(out, t.Path)
		case *Unary:
			walk(t.Operand)
		case *Binary:
			walk(t.Left)
			walk(t.Right)
		case *Index:
			walk(t.Recv)
			walk(t.Index)
		case *Call:
			walk(t.Recv)
			for _, a := range t.Args {
				walk(a)
			}
		case *ListLit:
			for _, el := range t.Elems {
				walk(el)
			}
		}
	}
	walk(e.root)
	return out
}

// Eval evaluates the expression against one sample document. Field
// references resolve by dotted-path lookup; lists of embedded
// documents are flattened, and comparisons against a multi-valued
// field succeed when any element satisfies them.
func (e *Expr) Eval(sample map[string]interface{}) (interface{}, error) {
	return eval(e.root, sample)
}

func eval(n Node, doc map[string]interface{}) (interface{}, error) {
	switch t := n.(type) {
	case *Literal:
		return t.Value, nil
	case *FieldRef:
		return lookup(doc, t.Path), nil
	case *ListLit:
		out := make([]interface{}, len(t.Elems))
		for i, el := range t.Elems {
			v, err := eval(el, doc)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *Unary:
		return evalUnary(t, doc)
	case *Binary:
		return evalBinary(t, doc)
	case *Index:
		return evalIndex(t, doc)
	case *Call:
		return evalCall(t, doc)
	}
	return nil, fmt.Errorf("unknown node %T", n)
}

// lookup resolves a dotted path, flattening embedded lists. Returns
// nil for a missing path, the single value, or a list.
func lookup(doc map[string]interface{}, path string) interface{} {
	current := []interface{}{doc}
	for _, part := range strings.Split(path, ".") {
		var next []interface{}
		for _, node := range current {
			switch v := node.(type) {
			case map[string]interface{}:
				child, ok := v[part]
				if !ok || child == nil {
					continue
				}
				if list, isList := child.([]interface{}); isList {
					next = append(next, list...)
				} else {
					next = append(next, child)
				}
			case []interface{}:
				for _, el := range v {
					if m, isMap := el.(map[string]interface{}); isMap {
						if child, ok := m[part]; ok && child != nil {
							next = append(next, child)
						}
					}
				}
			}
		}
		current = next
	}
	switch len(current) {
	case 0:
		return nil
	case 1:
		return current[0]
	default:
		return current
	}
}

func evalUnary(u *Unary, doc map[string]interface{}) (interface{}, error) {
	v, err := eval(u.Operand, doc)
	if err != nil {
		return nil, err
	}
	switch u.Op {
	case "!":
		return !truthy(v), nil
	case "-":
		f, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("cannot negate %T", v)
		}
		return -f, nil
	}
	return nil, fmt.Errorf("unknown unary operator %q", u.Op)
}

func evalBinary(b *Binary, doc map[string]interface{}) (interface{}, error) {
	// Short-circuit logic.
	if b.Op == "&&" || b.Op == "||" {
		left, err := eval(b.Left, doc)
		if err != nil {
			return nil, err
		}
		if b.Op == "&&" && !truthy(left) {
			return false, nil
		}
		if b.Op == "||" && truthy(left) {
			return true, nil
		}
		right, err := eval(b.Right, doc)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	}

	left, err := eval(b.Left, doc)
	if err != nil {
		return nil, err
	}
	right, err := eval(b.Right, doc)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case "+", "-", "*", "/", "%":
		lf, lok := asFloat(left)
		rf, rok := asFloat(right)
		if !lok || !rok {
			return nil, fmt.Errorf("arithmetic on non-numeric values (%T %s %T)", left, b.Op, right)
		}
		switch b.Op {
		case "+":
			return lf + rf, nil
		case "-":
			return lf - rf, nil
		case "*":
			return lf * rf, nil
		case "/":
			if rf == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return lf / rf, nil
		case "%":
			if rf == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return math.Mod(lf, rf), nil
		}
	case "==", "!=", "<", "<=", ">", ">=":
		return compare(b.Op, left, right)
	}
	return nil, fmt.Errorf("unknown operator %q", b.Op)
}

// compare handles scalar comparison, with any-element semantics when
// the left side resolved to a multi-valued field.
func compare(op string, left, right interface{}) (bool, error) {
	if list, ok := left.([]interface{}); ok {
		for _, el := range list {
			hit, err := compare(op, el, right)
			if err == nil && hit {
				return true, nil
			}
		}
		return false, nil
	}

	switch op {
	case "==":
		return equal(left, right), nil
	case "!=":
		return !equal(left, right), nil
	}

	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if lok && rok {
		switch op {
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}

	ls, lsok := left.(string)
	rs, rsok := right.(string)
	if lsok && rsok {
		switch op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	return false, fmt.Errorf("cannot compare %T %s %T", left, op, right)
}

func equal(a, b interface{}) bool {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
	}
	return a == b
}

func evalIndex(ix *Index, doc map[string]interface{}) (interface{}, error) {
	recv, err := eval(ix.Recv, doc)
	if err != nil {
		return nil, err
	}
	idxv, err := eval(ix.Index, doc)
	if err != nil {
		return nil, err
	}
	f, ok := asFloat(idxv)
	if !ok {
		return nil, fmt.Errorf("list index must be numeric, got %T", idxv)
	}
	i := int(f)

	list, ok := recv.([]interface{})
	if !ok {
		return nil, fmt.Errorf("cannot index %T", recv)
	}
	if i < 0 {
		i += len(list)
	}
	if i < 0 || i >= len(list) {
		return nil, fmt.Errorf("index %d out of range for list of %d", int(f), len(list))
	}
	return list[i], nil
}

func evalCall(c *Call, doc map[string]interface{}) (interface{}, error) {
	recv, err := eval(c.Recv, doc)
	if err != nil {
		return nil, err
	}

	// filter and map evaluate their argument once per element, with
	// the element document as the field-resolution context.
	if c.Method == "filter" || c.Method == "map" {
		return evalPerElement(c, recv)
	}

	args := make([]interface{}, len(c.Args))
	for i, a := range c.Args {
		v, err := eval(a, doc)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch c.Method {
	case "starts_with", "ends_with", "contains_str", "matches_str":
		s, arg, err := stringPair(c.Method, recv, args)
		if err != nil {
			return nil, err
		}
		switch c.Method {
		case "starts_with":
			return strings.HasPrefix(s, arg), nil
		case "ends_with":
			return strings.HasSuffix(s, arg), nil
		case "contains_str":
			return strings.Contains(s, arg), nil
		case "matches_str":
			re, err := regexp.Compile(arg)
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
			}
			return re.MatchString(s), nil
		}
	case "lower", "upper", "strlen":
		s, ok := recv.(string)
		if !ok {
			return nil, fmt.Errorf("%s requires a string receiver, got %T", c.Method, recv)
		}
		switch c.Method {
		case "lower":
			return strings.ToLower(s), nil
		case "upper":
			return strings.ToUpper(s), nil
		case "strlen":
			return float64(len(s)), nil
		}
	case "length":
		switch v := recv.(type) {
		case nil:
			return float64(0), nil
		case []interface{}:
			return float64(len(v)), nil
		case string:
			return float64(len(v)), nil
		default:
			// A flattened single-element field is still one element.
			return float64(1), nil
		}
	case "contains":
		if len(args) != 1 {
			return nil, fmt.Errorf("contains takes one argument")
		}
		list, ok := recv.([]interface{})
		if !ok {
			if recv == nil {
				return false, nil
			}
			list = []interface{}{recv}
		}
		for _, el := range list {
			if equal(el, args[0]) {
				return true, nil
			}
		}
		return false, nil
	case "is_in":
		if len(args) != 1 {
			return nil, fmt.Errorf("is_in takes one list argument")
		}
		list, ok := args[0].([]interface{})
		if !ok {
			return nil, fmt.Errorf("is_in requires a list argument, got %T", args[0])
		}
		candidates := []interface{}{recv}
		if multi, ok := recv.([]interface{}); ok {
			candidates = multi
		}
		for _, cand := range candidates {
			for _, el := range list {
				if equal(cand, el) {
					return true, nil
				}
			}
		}
		return false, nil
	case "year", "month", "day_of_month", "day_of_week":
		ts, err := asTime(recv)
		if err != nil {
			return nil, err
		}
		switch c.Method {
		case "year":
			return float64(ts.Year()), nil
		case "month":
			return float64(ts.Month()), nil
		case "day_of_month":
			return float64(ts.Day()), nil
		case "day_of_week":
			// Sunday is 1, matching the platform's convention.
			return float64(ts.Weekday()) + 1, nil
		}
	case "abs", "floor", "ceil", "round":
		f, ok := asFloat(recv)
		if !ok {
			return nil, fmt.Errorf("%s requires a numeric receiver, got %T", c.Method, recv)
		}
		switch c.Method {
		case "abs":
			return math.Abs(f), nil
		case "floor":
			return math.Floor(f), nil
		case "ceil":
			return math.Ceil(f), nil
		case "round":
			return math.Round(f), nil
		}
	case "to_int":
		f, ok := asFloat(recv)
		if !ok {
			return nil, fmt.Errorf("cannot cast %T to int", recv)
		}
		return float64(int(f)), nil
	case "to_double":
		if f, ok := asFloat(recv); ok {
			return f, nil
		}
		if s, ok := recv.(string); ok {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot cast %q to double", s)
			}
			return f, nil
		}
		return nil, fmt.Errorf("cannot cast %T to double", recv)
	case "to_string":
		return fmt.Sprintf("%v", recv), nil
	case "to_bool":
		return truthy(recv), nil
	case "exists":
		return recv != nil, nil
	}
	return nil, fmt.Errorf("method %q is not permitted", c.Method)
}

// evalPerElement implements filter and map over a multi-valued field.
// Field references inside the argument resolve relative to each
// element, so per-element conditions can name embedded attributes
// directly.
func evalPerElement(c *Call, recv interface{}) (interface{}, error) {
	if len(c.Args) != 1 {
		return nil, fmt.Errorf("%s takes one expression argument", c.Method)
	}
	if recv == nil {
		return []interface{}{}, nil
	}
	list, ok := recv.([]interface{})
	if !ok {
		list = []interface{}{recv}
	}

	out := make([]interface{}, 0, len(list))
	for _, el := range list {
		elDoc, ok := el.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s requires embedded-document elements, got %T", c.Method, el)
		}
		v, err := eval(c.Args[0], elDoc)
		if err != nil {
			return nil, err
		}
		switch c.Method {
		case "filter":
			if truthy(v) {
				out = append(out, el)
			}
		case "map":
			out = append(out, v)
		}
	}
	return out, nil
}

func stringPair(method string, recv interface{}, args []interface{}) (string, string, error) {
	s, ok := recv.(string)
	if !ok {
		return "", "", fmt.Errorf("%s requires a string receiver, got %T", method, recv)
	}
	if len(args) != 1 {
		return "", "", fmt.Errorf("%s takes one argument", method)
	}
	arg, ok := args[0].(string)
	if !ok {
		return "", "", fmt.Errorf("%s requires a string argument, got %T", method, args[0])
	}
	return s, arg, nil
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("cannot interpret %T as a date", v)
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []interface{}:
		return len(t) > 0
	}
	return true
}
