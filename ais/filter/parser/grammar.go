package parser

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	filterLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Keyword", Pattern: `(?i)\b(and|or|not|in)\b`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "Float", Pattern: `[-+]?(\d+\.\d*|\.\d+)([eE][-+]?\d+)?|[-+]?\d+[eE][-+]?\d+`},
		{Name: "Int", Pattern: `[-+]?\d+`},
		{Name: "Op", Pattern: `!=|<=|>=|=|<|>`},
		{Name: "Punct", Pattern: `[(),]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	grammar = participle.MustBuild[expression](
		participle.Lexer(filterLexer),
		participle.Elide("Whitespace"),
		participle.CaseInsensitive("Keyword"),
	)
)

// Syntax tree as produced by participle. OR binds loosest, then AND.

type expression struct {
	Or []*conjunction `parser:"@@ ( 'or' @@ )*"`
}

type conjunction struct {
	And []*term `parser:"@@ ( 'and' @@ )*"`
}

type term struct {
	Group     *expression `parser:"  '(' @@ ')'"`
	Predicate *predicate  `parser:"| @@"`
}

type predicate struct {
	Pos   lexer.Position
	Field string   `parser:"@Ident"`
	Cmp   *cmpTail `parser:"( @@"`
	In    *inTail  `parser:"| @@ )"`
}

type cmpTail struct {
	Op    string  `parser:"@Op"`
	Value *number `parser:"@@"`
}

type number struct {
	Float *string `parser:"  @Float"`
	Int   *string `parser:"| @Int"`
}

type inTail struct {
	Not    bool     `parser:"@'not'?"`
	Values []string `parser:"'in' '(' @Int ( ',' @Int )* ')'"`
}
