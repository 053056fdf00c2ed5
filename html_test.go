package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/fs"
)

func TestInjectHeadAndBody(t *testing.T) {
	doc := "<html><head><title>x</title></head><body><p>hi</p></body></html>"

	t.Run("exactly one closing tag", func(t *testing.T) {
		out, err := InjectHead(doc, "<meta />")
		assert.NilError(t, err)
		assert.Equal(t, out, "<html><head><title>x</title><meta /></head><body><p>hi</p></body></html>")

		out, err = InjectBody(out, "<script></script>")
		assert.NilError(t, err)
		assert.Equal(t, out, "<html><head><title>x</title><meta /></head><body><p>hi</p><script></script></body></html>")
	})

	t.Run("closing tag is matched case insensitively", func(t *testing.T) {
		out, err := InjectHead("<HEAD></HEAD >", "x")
		assert.NilError(t, err)
		assert.Equal(t, out, "<HEAD>x</HEAD >")
	})

	t.Run("two closing head tags", func(t *testing.T) {
		bad := "<head></head><!-- </head> --><body></body>"
		_, err := InjectHead(bad, "x")

		var structErr *StructuralError
		assert.Assert(t, errors.As(err, &structErr))
		assert.Equal(t, structErr.Tag, "head")
		assert.Equal(t, structErr.Count, 2)
		assert.Equal(t, structErr.Document, bad)
	})

	t.Run("missing closing body tag", func(t *testing.T) {
		_, err := InjectBody("<head></head><body>", "x")

		var structErr *StructuralError
		assert.Assert(t, errors.As(err, &structErr))
		assert.Equal(t, structErr.Tag, "body")
		assert.Equal(t, structErr.Count, 0)
		assert.ErrorContains(t, err, "no </body> tag found")
	})
}

func TestEntryScripts(t *testing.T) {
	doc := `<head>
<script type="module" src="/a.js"></script>
<script type=module src='./pages/b.js?v=2'></script>
<script type="module" src="https://cdn.example.com/c.js"></script>
<script type="module" src="//cdn.example.com/d.js"></script>
<script type="module">console.log('inline')</script>
<script src="/legacy.js"></script>
<script type="module" src="/a.js"></script>
</head>`

	entries := EntryScripts(doc, "/build/sub/index.html", "/build")

	assert.DeepEqual(t, entries, []string{
		NormalizePathForInternal(filepath.FromSlash("/build/a.js")),
		NormalizePathForInternal(filepath.FromSlash("/build/sub/pages/b.js")),
	})
}

func TestComputePreloadSet(t *testing.T) {
	t.Run("transitive modules without the entry", func(t *testing.T) {
		dir := fs.NewDir(t, "preload",
			fs.WithFile("a.js", "import './b.js';"),
			fs.WithFile("b.js", "import './c.js';"),
			fs.WithFile("c.js", "export const c = 1;"),
		)
		root := dir.Path()

		modules := ComputePreloadSet([]string{filepath.Join(root, "a.js")}, root)

		assert.DeepEqual(t, modules, []string{"./b.js", "./c.js"})
	})

	t.Run("sorted, deduplicated and without css proxies or other entries", func(t *testing.T) {
		dir := fs.NewDir(t, "preload",
			fs.WithFile("main.js", "import './z.js';\nimport './lib/m.js';\nimport './main.css.proxy.js';"),
			fs.WithFile("other.js", "import './z.js';\nimport './main.js';"),
			fs.WithFile("z.js", ""),
			fs.WithFile("main.css.proxy.js", ""),
			fs.WithDir("lib", fs.WithFile("m.js", "import '../z.js';")),
		)
		root := dir.Path()

		modules := ComputePreloadSet([]string{filepath.Join(root, "main.js"), filepath.Join(root, "other.js")}, root)

		assert.DeepEqual(t, modules, []string{"./lib/m.js", "./z.js"})
	})

	t.Run("nothing to preload", func(t *testing.T) {
		dir := fs.NewDir(t, "preload", fs.WithFile("a.js", "console.log(1);"))
		root := dir.Path()

		modules := ComputePreloadSet([]string{filepath.Join(root, "a.js")}, root)

		assert.Assert(t, is.Len(modules, 0))
	})
}

func TestPreloadModules(t *testing.T) {
	dir := fs.NewDir(t, "preload",
		fs.WithFile("a.js", "import './b.js';"),
		fs.WithFile("b.js", "import './c.js';"),
		fs.WithFile("c.js", ""),
	)
	root := dir.Path()
	htmlFile := filepath.Join(root, "index.html")
	doc := "<html><head>\n<script type=\"module\" src=\"/a.js\"></script>\n</head><body>\n</body></html>"

	t.Run("injects hints and fallback scripts", func(t *testing.T) {
		out, plan, err := PreloadModules(doc, htmlFile, root, "")

		assert.NilError(t, err)
		assert.DeepEqual(t, plan.Modules, []string{"./b.js", "./c.js"})
		assert.Assert(t, !plan.CSSLink)
		assert.Assert(t, is.Contains(out, `<link rel="modulepreload" href="/b.js" />`))
		assert.Assert(t, is.Contains(out, `<link rel="modulepreload" href="/c.js" />`))
		assert.Assert(t, is.Contains(out, `<script type="module" src="/b.js"></script><script type="module" src="/c.js"></script>`))
		assert.Assert(t, strings.Index(out, "modulepreload") < strings.Index(out, "</head>"))
	})

	t.Run("adds the combined stylesheet link", func(t *testing.T) {
		out, plan, err := PreloadModules(doc, htmlFile, root, "/imported-styles.css")

		assert.NilError(t, err)
		assert.Assert(t, plan.CSSLink)
		assert.Assert(t, is.Contains(out, `<link rel="stylesheet" href="/imported-styles.css" />`))
	})

	t.Run("documents without module scripts are unchanged", func(t *testing.T) {
		plain := "<html><head></head><body></body></html>"
		out, plan, err := PreloadModules(plain, htmlFile, root, "/imported-styles.css")

		assert.NilError(t, err)
		assert.Equal(t, out, plain)
		assert.Assert(t, is.Len(plan.Modules, 0))
	})

	t.Run("ambiguous document fails", func(t *testing.T) {
		bad := "<head><script type=\"module\" src=\"/a.js\"></script></head><body></body></body>"
		_, _, err := PreloadModules(bad, htmlFile, root, "")

		assert.ErrorType(t, err, &StructuralError{})
	})
}
