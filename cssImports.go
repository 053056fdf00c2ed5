package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"github.com/coregx/coregex"
	"github.com/rs/zerolog/log"
)

// CSSProxyBinding records one CSS-proxy import that was inlined into a JS file.
type CSSProxyBinding struct {
	ProxyPath  string
	CSSPath    string
	BoundNames []string
}

// CSSRewrite is the outcome of inlining the CSS-proxy imports of one file.
type CSSRewrite struct {
	Code string
	// Ledger maps the consuming file to every proxy it had inlined.
	Ledger map[string][]CSSProxyBinding
}

// cssProxyMatcher is a cheap prefilter so files without any proxy reference are never scanned.
var cssProxyMatcher = ahocorasick.NewStringMatcher([]string{cssProxySuffix})

// proxyMappingRegExp finds the class-name mapping a CSS-module proxy exports.
var proxyMappingRegExp = coregex.MustCompile(`(?m)^let json\s*=\s*\{[^}]+\}`)

// HasCSSImport reports whether any of files statically imports a CSS proxy.
// Files that cannot be read or scanned are skipped with a warning.
func HasCSSImport(files []string, rootDir string) bool {
	for _, file := range files {
		code, err := os.ReadFile(DenormalizePathForOS(file))
		if err != nil {
			log.Warn().Str("file", relToRoot(rootDir, file)).Err(err).Msg("css import check: cannot read file")
			continue
		}
		if len(cssProxyMatcher.Match(code)) == 0 {
			continue
		}
		records, err := ScanImports(code)
		if err != nil {
			log.Warn().Str("file", relToRoot(rootDir, file)).Err(err).Msg("css import check: cannot scan file")
			continue
		}
		for _, rec := range StaticImports(records) {
			if isCSSProxy(rec.Specifier) {
				return true // exit as soon as we find one
			}
		}
	}
	return false
}

// extractProxyMapping returns the object literal a CSS-module proxy assigns to its mapping.
func extractProxyMapping(proxySource []byte) (string, bool) {
	match := proxyMappingRegExp.Find(proxySource)
	if match == nil {
		return "", false
	}
	open := bytes.IndexByte(match, '{')
	if open < 0 {
		return "", false
	}
	return string(match[open:]), true
}

func fileExists(path string) bool {
	info, err := os.Stat(DenormalizePathForOS(path))
	return err == nil && !info.IsDir()
}

func boundNames(bindings []Binding) []string {
	names := make([]string, 0, len(bindings))
	for _, b := range bindings {
		names = append(names, b.Local)
	}
	return names
}

func isIdentifier(name string) bool {
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isByteIdentifierChar(name[i]) {
			return false
		}
	}
	return true
}

// declareBindings renders const declarations that bind every local name of
// an import statement to value. Default and namespace bindings receive the
// value itself; named bindings are destructured from it.
func declareBindings(bindings []Binding, value string) string {
	var whole []string
	var named []string
	for _, b := range bindings {
		switch {
		case b.Imported == "default" || b.Imported == "*":
			whole = append(whole, b.Local)
		case b.Imported == b.Local:
			named = append(named, b.Local)
		case isIdentifier(b.Imported):
			named = append(named, b.Imported+": "+b.Local)
		default:
			named = append(named, strconv.Quote(b.Imported)+": "+b.Local)
		}
	}

	if len(whole) == 0 {
		return fmt.Sprintf("const {%s} = %s;", strings.Join(named, ", "), value)
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "const %s = %s;", whole[0], value)
	for _, alias := range whole[1:] {
		fmt.Fprintf(&builder, " const %s = %s;", alias, whole[0])
	}
	if len(named) > 0 {
		fmt.Fprintf(&builder, " const {%s} = %s;", strings.Join(named, ", "), whole[0])
	}
	return builder.String()
}

// statementEndWithNewline extends a statement range over one directly following line break.
func statementEndWithNewline(code []byte, end int) int {
	if hasPrefixAt(code, end, "\r\n") {
		return end + 2
	}
	if end < len(code) && code[end] == '\n' {
		return end + 1
	}
	return end
}

// cssImportChange decides how one CSS-proxy import is rewritten:
//
//	import './global.css.proxy.js'                       -> removed, styles ship in the combined CSS file
//	import {foo} from './local.module.css.proxy.js'      -> const {foo} = {foo: "..."};
//	import url from './global.css.proxy.js'              -> const url = "global.css";
func cssImportChange(rec ImportRecord, code []byte, rootDir, filePath, proxyPath, cssPath string) (Change, bool) {
	if len(rec.Bindings) == 0 {
		return Change{
			Start: rec.StatementStart,
			End:   statementEndWithNewline(code, rec.StatementEnd),
		}, true
	}

	if strings.HasSuffix(cssPath, cssModuleSuffix) {
		proxySource, err := os.ReadFile(DenormalizePathForOS(proxyPath))
		if err != nil {
			log.Warn().Str("file", relToRoot(rootDir, filePath)).Str("proxy", relToRoot(rootDir, proxyPath)).Err(err).Msg("cannot read css module proxy, import left as is")
			return Change{}, false
		}
		mapping, ok := extractProxyMapping(proxySource)
		if !ok {
			log.Warn().Str("file", relToRoot(rootDir, filePath)).Str("proxy", relToRoot(rootDir, proxyPath)).Msg("css module proxy has no class mapping, import left as is")
			return Change{}, false
		}
		return Change{
			Start: rec.StatementStart,
			End:   rec.StatementEnd,
			Text:  declareBindings(rec.Bindings, mapping),
		}, true
	}

	for _, b := range rec.Bindings {
		if b.Imported != "default" && b.Imported != "*" {
			log.Warn().Str("file", relToRoot(rootDir, filePath)).Str("specifier", rec.Specifier).Msg("named import from plain css proxy, import left as is")
			return Change{}, false
		}
	}
	rel, err := filepath.Rel(filepath.Dir(DenormalizePathForOS(filePath)), DenormalizePathForOS(cssPath))
	if err != nil {
		return Change{}, false
	}
	return Change{
		Start: rec.StatementStart,
		End:   rec.StatementEnd,
		Text:  declareBindings(rec.Bindings, strconv.Quote(filepath.ToSlash(rel))),
	}, true
}

// RewriteCSSImports inlines the static CSS-proxy imports of one JS file.
// An import whose CSS file does not exist is left untouched.
func RewriteCSSImports(filePath string, code []byte, rootDir string) (CSSRewrite, error) {
	records, err := ScanImports(code)
	if err != nil {
		return CSSRewrite{}, err
	}

	var changes []Change
	var touched []CSSProxyBinding
	for _, rec := range records {
		if rec.Kind != StaticImport || rec.IsReexport || !isCSSProxy(rec.Specifier) {
			continue
		}
		proxyPath, resolvedType := ResolveSpecifier(rec.Specifier, filePath, rootDir)
		if resolvedType != UserModule {
			continue
		}
		cssPath := cssPathForProxy(proxyPath)
		if !fileExists(cssPath) {
			log.Warn().Str("file", relToRoot(rootDir, filePath)).Str("css", relToRoot(rootDir, cssPath)).Msg("css file behind proxy import not found, import left as is")
			continue
		}

		change, ok := cssImportChange(rec, code, rootDir, filePath, proxyPath, cssPath)
		if !ok {
			continue
		}
		changes = append(changes, change)
		touched = append(touched, CSSProxyBinding{
			ProxyPath:  proxyPath,
			CSSPath:    cssPath,
			BoundNames: boundNames(rec.Bindings),
		})
	}

	patched, rejected := applyChangesToContent(string(code), changes)
	if len(rejected) > 0 {
		return CSSRewrite{}, fmt.Errorf("%d overlapping css import rewrites in %s", len(rejected), filePath)
	}

	rewrite := CSSRewrite{Code: patched, Ledger: map[string][]CSSProxyBinding{}}
	if len(touched) > 0 {
		rewrite.Ledger[filePath] = touched
	}
	return rewrite, nil
}
