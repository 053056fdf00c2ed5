package main

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/coregx/coregex"
)

var (
	moduleScriptRegExp = coregex.MustCompile(`(?is)<script[^>]+type=["']?module["']?[^>]*>`)
	scriptSrcRegExp    = coregex.MustCompile(`(?i)\ssrc\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
	closingHeadRegExp  = coregex.MustCompile(`(?i)<\s*/\s*head\s*>`)
	closingBodyRegExp  = coregex.MustCompile(`(?i)<\s*/\s*body\s*>`)
)

// StructuralError reports a document where a required closing tag does not
// appear exactly once, so there is no unambiguous place to inject markup.
type StructuralError struct {
	Tag      string
	Count    int
	Document string
}

func (e *StructuralError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("no </%s> tag found in HTML (this is needed to optimize the page)", e.Tag)
	}
	return fmt.Sprintf("%d </%s> tags found in HTML (perhaps one is commented out?)", e.Count, e.Tag)
}

func injectBefore(doc string, markup string, tag *coregex.Regexp, tagName string) (string, error) {
	matches := tag.FindAllStringIndex(doc, -1)
	if len(matches) != 1 {
		return "", &StructuralError{Tag: tagName, Count: len(matches), Document: doc}
	}
	at := matches[0][0]
	return doc[:at] + markup + doc[at:], nil
}

// InjectHead inserts markup right before the single closing head tag.
func InjectHead(doc string, markup string) (string, error) {
	return injectBefore(doc, markup, closingHeadRegExp, "head")
}

// InjectBody inserts markup right before the single closing body tag.
func InjectBody(doc string, markup string) (string, error) {
	return injectBefore(doc, markup, closingBodyRegExp, "body")
}

// EntryScripts returns the local module scripts a document declares, resolved
// to absolute paths in document order. Inline and remote scripts are skipped.
func EntryScripts(doc string, htmlFile string, rootDir string) []string {
	var entries []string
	seen := make(map[string]struct{})

	for _, tag := range moduleScriptRegExp.FindAllString(doc, -1) {
		match := scriptSrcRegExp.FindStringSubmatch(tag)
		if match == nil {
			continue // on-page scripts are already exposed
		}
		src := match[1] + match[2] + match[3]
		if src == "" || isRemoteModule(src) || strings.HasPrefix(src, "data:") {
			continue
		}
		src = stripQueryAndHash(src)

		var entry string
		if strings.HasPrefix(src, "/") {
			entry = filepath.Join(rootDir, removeLeadingSlash(src))
		} else {
			entry = filepath.Join(filepath.Dir(htmlFile), src)
		}
		entry = NormalizePathForInternal(filepath.Clean(entry))

		if _, ok := seen[entry]; ok {
			continue
		}
		seen[entry] = struct{}{}
		entries = append(entries, entry)
	}
	return entries
}

// ComputePreloadSet traces the entry scripts and returns every other module
// of the graph as a build-root relative URL ("./dir/mod.js"), sorted. CSS
// proxies are left out because their imports get inlined, and so are files
// outside of the build root.
func ComputePreloadSet(entryScripts []string, rootDir string) []string {
	graph := TraceModuleGraph(entryScripts, rootDir)

	isEntry := make(map[string]struct{}, len(entryScripts))
	for _, entry := range entryScripts {
		isEntry[NormalizePathForInternal(entry)] = struct{}{}
	}

	modules := make([]string, 0, len(graph.Nodes))
	for _, node := range graph.Nodes {
		if _, ok := isEntry[node]; ok {
			continue
		}
		if isCSSProxy(node) {
			continue
		}
		url := relativeURL(rootDir, node)
		if strings.HasPrefix(url, "../") {
			continue
		}
		modules = append(modules, url)
	}

	slices.Sort(modules)
	return slices.Compact(modules)
}

// PreloadPlan is what PreloadModules computed for one document.
type PreloadPlan struct {
	Entries []string
	Modules []string
	CSSLink bool
}

// preloadHref turns a "./"-relative module URL into a server-absolute href.
func preloadHref(module string) string {
	return strings.TrimPrefix(module, ".")
}

// PreloadModules injects modulepreload hints for the transitive module graph
// of a document, plus a stylesheet link for the combined CSS file when cssName
// is set. The document is returned unchanged when it has no module scripts.
func PreloadModules(doc string, htmlFile string, rootDir string, cssName string) (string, PreloadPlan, error) {
	var plan PreloadPlan
	if !moduleScriptRegExp.MatchString(doc) {
		return doc, plan, nil
	}

	plan.Entries = EntryScripts(doc, htmlFile, rootDir)

	var err error
	if cssName != "" {
		doc, err = InjectHead(doc, fmt.Sprintf("    <link rel=\"stylesheet\" href=\"%s\" />\n", cssName))
		if err != nil {
			return "", plan, err
		}
		plan.CSSLink = true
	}

	plan.Modules = ComputePreloadSet(plan.Entries, rootDir)
	if len(plan.Modules) == 0 {
		return doc, plan, nil // don't add useless whitespace
	}

	links := make([]string, 0, len(plan.Modules))
	scripts := make([]string, 0, len(plan.Modules))
	for _, module := range plan.Modules {
		href := preloadHref(module)
		links = append(links, fmt.Sprintf("    <link rel=\"modulepreload\" href=\"%s\" />", href))
		scripts = append(scripts, fmt.Sprintf("<script type=\"module\" src=\"%s\"></script>", href))
	}

	doc, err = InjectHead(doc,
		"  <!-- [bundle-optimize] modulepreload the full module graph (https://developers.google.com/web/updates/2017/12/modulepreload) -->\n"+
			strings.Join(links, "\n")+
			"\n  ")
	if err != nil {
		return "", plan, err
	}
	doc, err = InjectBody(doc,
		"  <!-- [bundle-optimize] modulepreload fallback for browsers that do not support it yet -->\n    "+
			strings.Join(scripts, "")+
			"\n  ")
	if err != nil {
		return "", plan, err
	}
	return doc, plan, nil
}
