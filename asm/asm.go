// Package asm assembles textual programs into instruction words.
//
// The language is line-oriented: an optional label, then a mnemonic
// with comma-separated operands. Operands are registers (R0..R15),
// immediates (#42, #0x2A, bare numbers), bracketed address expressions
// ([0x100000], [R3]) and label references. Comments start with ';'.
// The `.entry` directive selects the entry point.
//
//	        MOV R0, #42
//	loop:   DEC R0
//	        JNZ loop
//	        STORE [0x100000], R0
//	        HLT
package asm

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Program is the top-level AST node.
type Program struct {
	Lines []*Line `@@*`
}

// Line is one source line: optional label, optional directive or
// instruction.
type Line struct {
	Label     *string    `(@Ident ":")?`
	Directive *Directive `( @@`
	Inst      *Statement `| @@ )? Newline`
}

// Directive is an assembler directive such as `.entry start`.
type Directive struct {
	Pos  lexer.Position
	Name string  `@Directive`
	Sym  *string `( @Ident`
	Num  *string `| @Imm | @Int )?`
}

// Statement is a single instruction.
type Statement struct {
	Pos      lexer.Position
	Mnemonic string     `@Ident`
	Operands []*Operand `(@@ ("," @@)*)?`
}

// Operand is one instruction operand.
type Operand struct {
	Pos      lexer.Position
	Register *string `  @Register`
	Number   *string `| (@Imm | @Int)`
	Mem      *MemRef `| @@`
	Symbol   *string `| @Ident`
}

// MemRef is a bracketed address expression: [0x100000] or [R3].
type MemRef struct {
	Register *string `"[" ( @Register`
	Number   *string `    | (@Imm | @Int) ) "]"`
}

var asmLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `;[^\n]*`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Newline", Pattern: `[\r\n]+`},
	{Name: "Directive", Pattern: `\.[a-zA-Z]+`},
	{Name: "Register", Pattern: `[Rr][0-9]+`},
	{Name: "Imm", Pattern: `#(0[xX][0-9a-fA-F]+|[0-9]+)`},
	{Name: "Int", Pattern: `0[xX][0-9a-fA-F]+|[0-9]+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[\[\]:,]`},
})

// Parser is the assembly parser.
var Parser = participle.MustBuild[Program](
	participle.Lexer(asmLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

// Parse parses assembly source into its AST.
func Parse(source string) (*Program, error) {
	// The grammar terminates every line with a newline token.
	return Parser.ParseString("", source+"\n")
}
