package extract

import "github.com/leapstack-labs/cellsql/pkg/syntax"

// Keyword is one name=value argument of a call.
type Keyword struct {
	Name  string
	Value *syntax.Node
	// Raw is the value's source text, untouched.
	Raw string
}

// Arguments partitions a call's argument list.
type Arguments struct {
	Positional []*syntax.Node
	Keywords   []Keyword
}

// Keyword returns the named argument, if present.
func (a Arguments) Keyword(name string) (Keyword, bool) {
	for _, kw := range a.Keywords {
		if kw.Name == name {
			return kw, true
		}
	}
	return Keyword{}, false
}

// ArgsKwargs splits the children of an argument_list node into positional
// and keyword arguments, in source order. Comments are skipped.
func ArgsKwargs(argList *syntax.Node, src string) Arguments {
	var out Arguments
	for _, arg := range argList.NamedChildren() {
		if arg.Kind != syntax.KindKeywordArgument {
			out.Positional = append(out.Positional, arg)
			continue
		}
		name := arg.ChildByField(syntax.FieldName)
		value := arg.ChildByField(syntax.FieldValue)
		if name == nil || value == nil {
			continue
		}
		out.Keywords = append(out.Keywords, Keyword{
			Name:  name.Text(src),
			Value: value,
			Raw:   value.Text(src),
		})
	}
	return out
}
