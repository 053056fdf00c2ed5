package main

import (
	"bytes"
	"fmt"
	"os"
)

type ImportKind uint8

const (
	StaticImport  ImportKind = iota
	DynamicImport            // import("...")
	MetaReference            // import.meta
)

func (k ImportKind) String() string {
	switch k {
	case StaticImport:
		return "static"
	case DynamicImport:
		return "dynamic"
	case MetaReference:
		return "meta"
	}
	return "unknown"
}

// Binding is one local name introduced by an import statement.
// Imported is "default" for default imports and "*" for namespace imports.
type Binding struct {
	Imported string
	Local    string
}

// ImportRecord describes one module reference found in source text.
// Offsets are byte offsets into the scanned text. SpecifierStart/End cover
// the specifier without its quotes and are -1 when there is no literal
// specifier (import.meta, computed dynamic imports). StatementEnd includes a
// trailing semicolon when present.
type ImportRecord struct {
	Specifier      string
	SpecifierStart int
	SpecifierEnd   int
	StatementStart int
	StatementEnd   int
	Kind           ImportKind
	Bindings       []Binding
	IsReexport     bool // export ... from "..."
}

// ParseError reports text that could not be scanned for imports.
type ParseError struct {
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot scan imports: %s at offset %d", e.Reason, e.Offset)
}

func isWhiteSpace(char byte) bool {
	return (char == ' ' || char == '\t' || char == '\n' || char == '\r')
}

// skipSpaces skips spaces, tabs, and newlines, returns new index
func skipSpaces(code []byte, i int) int {
	for i < len(code) && isWhiteSpace(code[i]) {
		i++
	}
	return i
}

func isByteIdentifierChar(char byte) bool {
	// 0-9 || A-Z || a-z || _ || $ || non-ASCII
	return (char >= '0' && char <= '9') || (char >= 'A' && char <= 'Z') || (char >= 'a' && char <= 'z') || char == '_' || char == '$' || char >= 0x80
}

func hasPrefixAt(code []byte, i int, s string) bool {
	if i < 0 || i+len(s) > len(code) {
		return false
	}
	return bytes.Equal(code[i:i+len(s)], []byte(s))
}

func hasWordAt(code []byte, i int, s string) bool {
	if !hasPrefixAt(code, i, s) {
		return false
	}
	end := i + len(s)
	return end >= len(code) || !isByteIdentifierChar(code[end])
}

// skipLineComment skips to the end of a line comment
func skipLineComment(code []byte, start int) int {
	i := start + 2
	for i < len(code) && code[i] != '\n' {
		i++
	}
	return i
}

// skipOptionalSemicolon skips spaces/tabs then `;` if present.
// Returns position after `;` if found, or the original position i if not.
func skipOptionalSemicolon(code []byte, i int) int {
	n := len(code)
	j := i
	for j < n && (code[j] == ' ' || code[j] == '\t') {
		j++
	}
	if j < n && code[j] == ';' {
		return j + 1
	}
	return i
}

// keywords after which a slash starts a regular expression rather than a division
var regexPrecedingWords = map[string]struct{}{
	"return": {}, "typeof": {}, "case": {}, "do": {}, "else": {}, "in": {},
	"instanceof": {}, "new": {}, "delete": {}, "void": {}, "throw": {},
	"yield": {}, "await": {}, "of": {},
}

var controlWords = map[string]struct{}{
	"if": {}, "while": {}, "for": {}, "with": {},
}

type scanState struct {
	code    []byte
	n       int
	records []ImportRecord
	err     *ParseError

	// last significant token, used to tell a regex literal from a division
	prev token
	// one entry per open '(', true when it follows if/while/for/with
	parens []bool
}

type token struct {
	b    byte
	word string
	// a ')' closing the condition of if/while/for/with
	control bool
}

func (s *scanState) setPrev(b byte, word string) {
	s.prev = token{b: b, word: word}
}

// punct records a punctuator and keeps the parenthesis stack in step.
func (s *scanState) punct(c byte) {
	control := false
	switch c {
	case '(':
		_, ok := controlWords[s.prev.word]
		s.parens = append(s.parens, ok)
	case ')':
		if n := len(s.parens); n > 0 {
			control = s.parens[n-1]
			s.parens = s.parens[:n-1]
		}
	}
	s.prev = token{b: c, control: control}
}

func (s *scanState) fail(offset int, reason string) int {
	if s.err == nil {
		s.err = &ParseError{Offset: offset, Reason: reason}
	}
	return s.n
}

func (s *scanState) skipBlockComment(start int) int {
	i := start + 2
	for i+1 < s.n && !(s.code[i] == '*' && s.code[i+1] == '/') {
		i++
	}
	if i+1 >= s.n {
		return s.fail(start, "unterminated block comment")
	}
	return i + 2
}

// skipSpacesAndComments skips whitespace, line comments, and block comments
func (s *scanState) skipSpacesAndComments(i int) int {
	for i < s.n && s.err == nil {
		i = skipSpaces(s.code, i)
		if i+1 < s.n && s.code[i] == '/' && s.code[i+1] == '/' {
			i = skipLineComment(s.code, i)
			continue
		}
		if i+1 < s.n && s.code[i] == '/' && s.code[i+1] == '*' {
			i = s.skipBlockComment(i)
			continue
		}
		break
	}
	return i
}

// parseStringLiteral reads the quoted literal starting at i. It returns the raw
// content, the index after the closing quote and the content offsets.
func (s *scanState) parseStringLiteral(i int) (string, int, int, int) {
	quote := s.code[i]
	start := i + 1
	j := start
	for j < s.n {
		switch s.code[j] {
		case quote:
			return string(s.code[start:j]), j + 1, start, j
		case '\\':
			j += 2
			continue
		case '\n':
			s.fail(i, "unterminated string literal")
			return "", s.n, 0, 0
		}
		j++
	}
	s.fail(i, "unterminated string literal")
	return "", s.n, 0, 0
}

func (s *scanState) skipTemplate(start int) int {
	i := start + 1
	for i < s.n && s.err == nil {
		switch s.code[i] {
		case '\\':
			i += 2
			continue
		case '`':
			return i + 1
		case '$':
			if i+1 < s.n && s.code[i+1] == '{' {
				i = s.skipBalanced(i+1, '{', '}')
				continue
			}
		}
		i++
	}
	return s.fail(start, "unterminated template literal")
}

// skipBalanced skips from the opening delimiter at i to just past its match,
// stepping over strings, templates, comments and regular expressions on the
// way. The token state of the caller is restored afterwards.
func (s *scanState) skipBalanced(i int, open, close byte) int {
	saved, outer := s.prev, s.parens
	s.parens = nil
	defer func() { s.prev, s.parens = saved, outer }()

	start := i
	depth := 0
	for i < s.n && s.err == nil {
		c := s.code[i]
		if isWhiteSpace(c) {
			i++
			continue
		}
		if next, ok := s.skipToken(i); ok {
			i = next
			continue
		}
		switch c {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
		s.punct(c)
		i++
	}
	if s.err != nil {
		return s.n
	}
	return s.fail(start, fmt.Sprintf("unbalanced %q", open))
}

// skipToken steps over the string, template, comment, regex or identifier at
// i. It reports false for anything else.
func (s *scanState) skipToken(i int) (int, bool) {
	c := s.code[i]
	switch {
	case c == '\'' || c == '"':
		_, i, _, _ = s.parseStringLiteral(i)
		s.setPrev('"', "")
		return i, true
	case c == '`':
		i = s.skipTemplate(i)
		s.setPrev('`', "")
		return i, true
	case c == '/' && i+1 < s.n && s.code[i+1] == '/':
		return skipLineComment(s.code, i), true
	case c == '/' && i+1 < s.n && s.code[i+1] == '*':
		return s.skipBlockComment(i), true
	case c == '/' && s.regexAllowed():
		i = s.skipRegex(i)
		s.setPrev(')', "")
		return i, true
	case isByteIdentifierChar(c):
		word, next := parseIdentifier(s.code, i)
		if i > 0 && s.code[i-1] == '.' {
			// property names never precede a regex
			word = "." + word
		}
		s.setPrev(0, word)
		return next, true
	}
	return i, false
}

func (s *scanState) regexAllowed() bool {
	if s.prev.word != "" {
		_, ok := regexPrecedingWords[s.prev.word]
		return ok
	}
	switch s.prev.b {
	case ')':
		return s.prev.control
	case ']', '"', '`':
		return false
	}
	return true
}

func (s *scanState) skipRegex(start int) int {
	i := start + 1
	inClass := false
	for i < s.n {
		switch s.code[i] {
		case '\\':
			i += 2
			continue
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '\n':
			return s.fail(start, "unterminated regular expression")
		case '/':
			if !inClass {
				i++
				for i < s.n && isByteIdentifierChar(s.code[i]) {
					i++
				}
				return i
			}
		}
		i++
	}
	return s.fail(start, "unterminated regular expression")
}

// parseIdentifier extracts a single identifier token starting at position i.
func parseIdentifier(code []byte, i int) (string, int) {
	start := i
	for i < len(code) && isByteIdentifierChar(code[i]) {
		i++
	}
	return string(code[start:i]), i
}

// parseAlias consumes an optional `as Name` clause.
func (s *scanState) parseAlias(i int) (string, int) {
	j := s.skipSpacesAndComments(i)
	if !hasWordAt(s.code, j, "as") {
		return "", i
	}
	j = s.skipSpacesAndComments(j + 2)
	alias, next := parseIdentifier(s.code, j)
	if alias == "" {
		return "", i
	}
	return alias, next
}

// parseImportBindings parses everything between `import` and `from`.
func (s *scanState) parseImportBindings(i int) ([]Binding, int, bool) {
	bindings := make([]Binding, 0, 2)
	i = s.skipSpacesAndComments(i)
	if i >= s.n {
		return nil, i, false
	}

	// Default import: `Default`, `Default, { A }` or `Default, * as Ns`
	if isByteIdentifierChar(s.code[i]) {
		name, next := parseIdentifier(s.code, i)
		bindings = append(bindings, Binding{Imported: "default", Local: name})
		i = s.skipSpacesAndComments(next)
		if i >= s.n || s.code[i] != ',' {
			return bindings, i, true
		}
		i = s.skipSpacesAndComments(i + 1)
		if i >= s.n || (s.code[i] != '*' && s.code[i] != '{') {
			return nil, i, false
		}
	}

	// Namespace import: `* as Name`
	if s.code[i] == '*' {
		alias, next := s.parseAlias(i + 1)
		if alias == "" {
			return nil, i, false
		}
		return append(bindings, Binding{Imported: "*", Local: alias}), next, true
	}

	// Named import: `{ A, B as C, "string name" as D }`
	if s.code[i] != '{' {
		return nil, i, false
	}
	i++
	for i < s.n && s.err == nil {
		i = s.skipSpacesAndComments(i)
		if i >= s.n {
			break
		}
		if s.code[i] == '}' {
			return bindings, i + 1, true
		}

		var name string
		if s.code[i] == '"' || s.code[i] == '\'' {
			name, i, _, _ = s.parseStringLiteral(i)
		} else {
			name, i = parseIdentifier(s.code, i)
		}
		if name == "" {
			return nil, i, false
		}
		local := name
		if alias, next := s.parseAlias(i); alias != "" {
			local, i = alias, next
		}
		bindings = append(bindings, Binding{Imported: name, Local: local})

		i = s.skipSpacesAndComments(i)
		if i < s.n && s.code[i] == ',' {
			i++
		}
	}
	return nil, i, false
}

// parseFromClause expects `from "specifier"` at i.
func (s *scanState) parseFromClause(i int) (string, int, int, int, bool) {
	i = s.skipSpacesAndComments(i)
	if !hasWordAt(s.code, i, "from") {
		return "", i, 0, 0, false
	}
	i = s.skipSpacesAndComments(i + len("from"))
	if i >= s.n || (s.code[i] != '"' && s.code[i] != '\'') {
		return "", i, 0, 0, false
	}
	spec, next, start, end := s.parseStringLiteral(i)
	return spec, next, start, end, s.err == nil
}

func (s *scanState) scanImport(start int, depth int) int {
	i := s.skipSpacesAndComments(start + len("import"))
	if i >= s.n {
		return s.fail(start, "unexpected end of input after import")
	}

	switch s.code[i] {
	case '.':
		j := s.skipSpacesAndComments(i + 1)
		if !hasWordAt(s.code, j, "meta") {
			return s.fail(i, "unexpected token after import")
		}
		end := j + len("meta")
		s.records = append(s.records, ImportRecord{
			SpecifierStart: -1,
			SpecifierEnd:   -1,
			StatementStart: start,
			StatementEnd:   end,
			Kind:           MetaReference,
		})
		s.setPrev(0, "meta")
		return end

	case '(':
		rec := ImportRecord{
			SpecifierStart: -1,
			SpecifierEnd:   -1,
			StatementStart: start,
			StatementEnd:   s.skipBalanced(i, '(', ')'),
			Kind:           DynamicImport,
		}
		if s.err != nil {
			return s.n
		}
		j := s.skipSpacesAndComments(i + 1)
		if j < s.n && (s.code[j] == '"' || s.code[j] == '\'') {
			spec, next, specStart, specEnd := s.parseStringLiteral(j)
			after := s.skipSpacesAndComments(next)
			if after < s.n && (s.code[after] == ')' || s.code[after] == ',') {
				rec.Specifier, rec.SpecifierStart, rec.SpecifierEnd = spec, specStart, specEnd
			}
		}
		s.records = append(s.records, rec)
		// arguments are scanned by the main loop
		s.setPrev(0, "import")
		s.punct('(')
		return i + 1
	}

	if depth > 0 {
		// static imports only exist at module top level; this is a property
		// key or method name such as `{ import: x }`
		s.setPrev(0, "import")
		return start + len("import")
	}

	var bindings []Binding
	if s.code[i] != '"' && s.code[i] != '\'' {
		var ok bool
		bindings, i, ok = s.parseImportBindings(i)
		if !ok {
			return s.fail(start, "malformed import declaration")
		}
		spec, next, specStart, specEnd, ok := s.parseFromClause(i)
		if !ok {
			return s.fail(start, "import declaration without from clause")
		}
		return s.addStatic(start, spec, next, specStart, specEnd, bindings, false)
	}

	spec, next, specStart, specEnd := s.parseStringLiteral(i)
	if s.err != nil {
		return s.n
	}
	return s.addStatic(start, spec, next, specStart, specEnd, nil, false)
}

func (s *scanState) addStatic(start int, spec string, next, specStart, specEnd int, bindings []Binding, reexport bool) int {
	end := skipOptionalSemicolon(s.code, next)
	s.records = append(s.records, ImportRecord{
		Specifier:      spec,
		SpecifierStart: specStart,
		SpecifierEnd:   specEnd,
		StatementStart: start,
		StatementEnd:   end,
		Kind:           StaticImport,
		Bindings:       bindings,
		IsReexport:     reexport,
	})
	s.setPrev(';', "")
	return end
}

// scanExport records `export * from` and `export { ... } from` re-exports.
// Local exports are left to the main loop.
func (s *scanState) scanExport(start int) int {
	i := s.skipSpacesAndComments(start + len("export"))
	if i >= s.n {
		return i
	}

	switch s.code[i] {
	case '*':
		j := i + 1
		if alias, next := s.parseAlias(j); alias != "" {
			j = next
		} else {
			k := s.skipSpacesAndComments(j)
			if hasWordAt(s.code, k, "as") {
				k = s.skipSpacesAndComments(k + 2)
				if k < s.n && (s.code[k] == '"' || s.code[k] == '\'') {
					_, j, _, _ = s.parseStringLiteral(k)
				}
			}
		}
		spec, next, specStart, specEnd, ok := s.parseFromClause(j)
		if !ok {
			return s.fail(start, "export * without from clause")
		}
		return s.addStatic(start, spec, next, specStart, specEnd, nil, true)
	case '{':
		j := s.skipBalanced(i, '{', '}')
		if s.err != nil {
			return s.n
		}
		k := s.skipSpacesAndComments(j)
		if !hasWordAt(s.code, k, "from") {
			s.setPrev('}', "")
			return j
		}
		spec, next, specStart, specEnd, ok := s.parseFromClause(k)
		if !ok {
			return s.fail(start, "malformed export declaration")
		}
		return s.addStatic(start, spec, next, specStart, specEnd, nil, true)
	}
	s.setPrev(0, "export")
	return i
}

// ScanImports scans JS module text and returns its import records in source order.
func ScanImports(code []byte) ([]ImportRecord, error) {
	s := scanState{
		code:    code,
		n:       len(code),
		records: make([]ImportRecord, 0, 16),
	}
	i := 0
	depth := 0 // brace depth: static import/export can only appear at depth 0

	if hasPrefixAt(code, 0, "#!") {
		i = skipLineComment(code, 0)
	}

	for i < s.n && s.err == nil {
		c := code[i]

		if isWhiteSpace(c) {
			i++
			continue
		}

		if isByteIdentifierChar(c) && (i == 0 || code[i-1] != '.') {
			switch {
			case hasWordAt(code, i, "import"):
				i = s.scanImport(i, depth)
				continue
			case hasWordAt(code, i, "export") && depth == 0:
				i = s.scanExport(i)
				continue
			}
		}
		if next, ok := s.skipToken(i); ok {
			i = next
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
		s.punct(c)
		i++
	}

	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

// ScanFile reads a file and scans it for imports.
func ScanFile(path string) ([]byte, []ImportRecord, error) {
	code, err := os.ReadFile(DenormalizePathForOS(path))
	if err != nil {
		return nil, nil, err
	}
	records, err := ScanImports(code)
	if err != nil {
		return code, nil, fmt.Errorf("%s: %w", path, err)
	}
	return code, records, nil
}

// StaticImports filters records down to static imports.
func StaticImports(records []ImportRecord) []ImportRecord {
	static := make([]ImportRecord, 0, len(records))
	for _, rec := range records {
		if rec.Kind == StaticImport {
			static = append(static, rec)
		}
	}
	return static
}
