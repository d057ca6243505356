package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"mutool.ai/internal/catalog"
	"mutool.ai/internal/item"
)

var (
	ErrInvalidSyntax   = errors.New("invalid filter syntax")
	ErrUnknownItemName = errors.New("unknown item name")
	ErrRedundantLevel  = errors.New("level is not applicable for this item")
)

// MaxNameDistance is the edit distance accepted between a typed name and a
// catalog name.
const MaxNameDistance = 2

// Comparison is a non-empty set of accepted orderings of an item value
// relative to a clause value.
type Comparison uint8

const (
	Less Comparison = 1 << iota
	Equal
	Greater
)

func parseComparison(op string) (Comparison, bool) {
	switch op {
	case "", "=", ":":
		return Equal, true
	case ">":
		return Greater, true
	case ">=":
		return Greater | Equal, true
	case "<=":
		return Less | Equal, true
	case "<":
		return Less, true
	}
	return 0, false
}

func (c Comparison) String() string {
	switch c {
	case Equal:
		return "="
	case Greater:
		return ">"
	case Greater | Equal:
		return ">="
	case Less | Equal:
		return "<="
	case Less:
		return "<"
	}
	return fmt.Sprintf("cmp(%d)", uint8(c))
}

// Range is a comparison against a fixed value.
type Range struct {
	Cmp   Comparison
	Value uint8
}

func (r Range) Match(v uint8) bool {
	switch {
	case v < r.Value:
		return r.Cmp&Less != 0
	case v > r.Value:
		return r.Cmp&Greater != 0
	}
	return r.Cmp&Equal != 0
}

// Filter is a compiled item description. Unset clauses accept any item.
type Filter struct {
	Source string

	Excellent bool
	Skill     bool
	Luck      bool

	Code    item.Code
	HasCode bool

	Level  *Range
	Option *Range
}

// Apply reports whether every populated clause holds for it.
func (f *Filter) Apply(it item.Item) bool {
	if f.Excellent && !it.IsExcellent() {
		return false
	}
	if f.HasCode && f.Code != it.Code {
		return false
	}
	if f.Level != nil && !f.Level.Match(it.Level()) {
		return false
	}
	if f.Option != nil && !f.Option.Match(it.Option()) {
		return false
	}
	if f.Skill && !it.HasSkill() {
		return false
	}
	if f.Luck && !it.HasLuck() {
		return false
	}
	return true
}

func (f *Filter) String() string { return f.Source }

// Compile parses text against the item catalog. Blank text compiles to a
// filter with no clauses, which matches every item.
//
// Grammar: whitespace separated clauses, each at most once, in any order:
//
//	excellent | skill | luck
//	name:"<item name>"
//	level[<cmp>]<n> | option[<cmp>]<n>     cmp: > >= <= < = :
func Compile(text string, entries []catalog.Entry) (*Filter, error) {
	p := &parser{lex: newLexer(text), text: text}
	f, err := p.parse()
	if err != nil {
		return nil, err
	}

	if p.name != nil {
		e, ok := lookupName(p.name.literal, entries)
		if !ok {
			return nil, fmt.Errorf("%q: %w", p.name.literal, ErrUnknownItemName)
		}
		f.Code, f.HasCode = e.Code, true
		if e.HasLevel {
			if f.Level != nil {
				return nil, fmt.Errorf("%q: %w", e.Name, ErrRedundantLevel)
			}
			f.Level = &Range{Cmp: Equal, Value: e.Level}
		}
	}
	f.Source = strings.TrimSpace(text)
	return f, nil
}

// MustCompile is Compile for tests and static tables.
func MustCompile(text string, entries []catalog.Entry) *Filter {
	f, err := Compile(text, entries)
	if err != nil {
		panic(err)
	}
	return f
}

type parser struct {
	lex  *lexer
	text string
	seen map[string]bool
	name *token
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return fmt.Errorf("%w at %d in %q: %s", ErrInvalidSyntax, tok.pos, p.text, fmt.Sprintf(format, args...))
}

func (p *parser) parse() (*Filter, error) {
	f := &Filter{}
	p.seen = map[string]bool{}

	first := true
	for {
		tok := p.lex.next()
		if tok.typ == tokenEOF {
			break
		}
		if tok.typ == tokenError {
			return nil, p.errorf(tok, "%s", tok.literal)
		}
		if tok.typ != tokenIdent {
			return nil, p.errorf(tok, "expected clause, got %s", tok.typ)
		}
		if !first && !tok.spaced {
			return nil, p.errorf(tok, "clauses must be separated by whitespace")
		}
		first = false

		kw := strings.ToLower(tok.literal)
		if p.seen[kw] {
			return nil, p.errorf(tok, "duplicate %s clause", kw)
		}
		p.seen[kw] = true

		switch kw {
		case "excellent":
			f.Excellent = true
		case "skill":
			f.Skill = true
		case "luck":
			f.Luck = true
		case "name":
			if err := p.parseName(); err != nil {
				return nil, err
			}
		case "level":
			r, err := p.parseRange()
			if err != nil {
				return nil, err
			}
			f.Level = &r
		case "option":
			r, err := p.parseRange()
			if err != nil {
				return nil, err
			}
			r.Value = normalizeOption(r.Value)
			f.Option = &r
		default:
			return nil, p.errorf(tok, "unknown clause %q", tok.literal)
		}
	}
	return f, nil
}

func (p *parser) parseName() error {
	tok := p.lex.next()
	if tok.typ != tokenOp || (tok.literal != ":" && tok.literal != "=") || tok.spaced {
		return p.errorf(tok, "expected ':' after name")
	}
	tok = p.lex.next()
	if tok.typ != tokenString || tok.spaced {
		return p.errorf(tok, "expected quoted item name")
	}
	if strings.TrimSpace(tok.literal) == "" {
		return p.errorf(tok, "empty item name")
	}
	p.name = &tok
	return nil
}

func (p *parser) parseRange() (Range, error) {
	tok := p.lex.next()
	if tok.spaced {
		return Range{}, p.errorf(tok, "unexpected whitespace")
	}
	op := ""
	if tok.typ == tokenOp {
		op = tok.literal
		tok = p.lex.next()
		if tok.spaced {
			return Range{}, p.errorf(tok, "unexpected whitespace")
		}
	}
	cmp, ok := parseComparison(op)
	if !ok {
		return Range{}, p.errorf(tok, "unknown comparator %q", op)
	}
	if tok.typ != tokenNumber {
		return Range{}, p.errorf(tok, "expected number, got %s", tok.typ)
	}
	v, err := strconv.ParseUint(tok.literal, 10, 8)
	if err != nil {
		return Range{}, p.errorf(tok, "number %s out of range", tok.literal)
	}
	return Range{Cmp: cmp, Value: uint8(v)}, nil
}

// normalizeOption maps an entered bonus value (e.g. 12 or 15) back to the
// option tier. The divide-by-4 rule is tried before divide-by-5.
func normalizeOption(v uint8) uint8 {
	if v%4 == 0 {
		return v / 4
	}
	if v%5 == 0 {
		return v / 5
	}
	return v
}

func lookupName(name string, entries []catalog.Entry) (catalog.Entry, bool) {
	for _, e := range entries {
		if editDistance(name, e.Name, MaxNameDistance) <= MaxNameDistance {
			return e, true
		}
	}
	return catalog.Entry{}, false
}

// editDistance is the Levenshtein distance between a and b, capped at max+1.
func editDistance(a, b string, max int) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if abs(la-lb) > max {
		return max + 1
	}
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, cur[j])
		}
		if rowMin > max {
			return max + 1
		}
		prev, cur = cur, prev
	}
	if prev[lb] > max {
		return max + 1
	}
	return prev[lb]
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
