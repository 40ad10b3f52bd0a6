// Package render turns the six rounds' accumulated outputs into the final
// set of markdown documents: the index, the overview, architecture,
// findings, per-module docs, open questions, and the empty-repository
// placeholder set.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/handoverhq/handover/internal/analysis"
	"github.com/handoverhq/handover/internal/config"
	"github.com/handoverhq/handover/internal/rounds"
)

// Document is one rendered markdown file, path relative to the configured
// output directory.
type Document struct {
	Path    string
	Title   string
	Content string
}

// heading is one level-2 (or shallower) heading goldmark's AST finds in a
// generated document, used to build the index's table of contents instead
// of hand-scanning "## " prefixes line by line.
type heading struct {
	level int
	text  string
}

var mdParser = goldmark.New()

func headingsOf(markdown string) []heading {
	src := []byte(markdown)
	doc := mdParser.Parser().Parse(text.NewReader(src))

	var out []heading
	for child := doc.FirstChild(); child != nil; child = child.NextSibling() {
		h, ok := child.(*gast.Heading)
		if !ok || h.Level > 2 {
			continue
		}
		out = append(out, heading{level: h.Level, text: headingText(h, src)})
	}
	return out
}

// headingText concatenates a heading node's inline text segments.
func headingText(node gast.Node, src []byte) string {
	var b strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*gast.Text); ok {
			b.Write(t.Segment.Value(src))
			continue
		}
		b.WriteString(headingText(child, src))
	}
	return b.String()
}

// Render builds the full document set from the analysis snapshot and the
// settled results of rounds 1-6, keyed by round number. Rounds that never
// ran (nil entries, e.g. analysis.staticOnly) are rendered as empty
// sections rather than omitted, so the document set shape is stable.
func Render(snap *analysis.Snapshot, results map[int]rounds.Result, audience config.Audience) []Document {
	if snap.IsEmpty() {
		return Empty(snap)
	}

	round1 := results[rounds.Round1Overview].Data
	round2 := results[rounds.Round2Modules].Data
	round3 := results[rounds.Round3Relationships].Data
	round4 := results[rounds.Round4Findings].Data
	round5 := results[rounds.Round5ModuleDocs].Data
	round6 := results[rounds.Round6OpenQuestions].Data

	docs := make([]Document, 0, 8)

	overview := renderOverview(snap, round1, audience)
	docs = append(docs, overview)

	architecture := renderArchitecture(round2, round3)
	docs = append(docs, architecture)

	findings := renderFindings(round4)
	docs = append(docs, findings)

	moduleDocs := renderModuleDocs(round2, round5)
	docs = append(docs, moduleDocs...)

	openQuestions := renderOpenQuestions(round6, round1)
	docs = append(docs, openQuestions)

	index := renderIndex(snap, docs, audience)
	// Index is always first in the returned slice.
	return append([]Document{index}, docs...)
}

func renderOverview(snap *analysis.Snapshot, out rounds.Output, audience config.Audience) Document {
	var b strings.Builder
	b.WriteString("# Project Overview\n\n")
	if len(out.Findings) > 0 {
		for _, f := range out.Findings {
			fmt.Fprintf(&b, "%s\n\n", f.Detail)
		}
	}
	fmt.Fprintf(&b, "## At a glance\n\n")
	fmt.Fprintf(&b, "- Files analyzed: %d\n", snap.FileTree.TotalFiles)
	fmt.Fprintf(&b, "- Exported functions: %d, exported classes: %d\n", snap.AST.TotalFunctions, snap.AST.TotalClasses)
	fmt.Fprintf(&b, "- Test files: %d (ratio %.2f to source)\n", snap.Testing.TestFileCount, snap.Testing.RatioToSource)
	if len(snap.Manifests) > 0 {
		fmt.Fprintf(&b, "- Dependency manifests: %d\n", len(snap.Manifests))
	}
	if audience == config.AudienceAI {
		b.WriteString("\n_Rendered for AI-agent consumption: terse, structured, file-path dense._\n")
	}
	return Document{Path: "01-PROJECT-OVERVIEW.md", Title: "Project Overview", Content: b.String()}
}

func renderArchitecture(modules, relationships rounds.Output) Document {
	var b strings.Builder
	b.WriteString("# Architecture\n\n")

	if len(modules.Modules) == 0 {
		b.WriteString("No modules were identified.\n")
		return Document{Path: "02-ARCHITECTURE.md", Title: "Architecture", Content: b.String()}
	}

	b.WriteString("## Modules\n\n")
	for _, m := range modules.Modules {
		fmt.Fprintf(&b, "### %s\n\n%s\n\nFiles: %s\n\n", m.Name, m.Description, strings.Join(m.Paths, ", "))
	}

	if len(relationships.Relationships) > 0 {
		b.WriteString("## Relationships\n\n")
		for _, r := range relationships.Relationships {
			fmt.Fprintf(&b, "- `%s` → `%s`: %s\n", r.From, r.To, r.Description)
		}
	}

	return Document{Path: "02-ARCHITECTURE.md", Title: "Architecture", Content: b.String()}
}

func renderFindings(out rounds.Output) Document {
	var b strings.Builder
	b.WriteString("# Findings\n\n")
	if len(out.Findings) == 0 {
		b.WriteString("No notable findings were reported.\n")
		return Document{Path: "03-FINDINGS.md", Title: "Findings", Content: b.String()}
	}

	bySeverity := map[string][]rounds.Finding{}
	for _, f := range out.Findings {
		sev := f.Severity
		if sev == "" {
			sev = "info"
		}
		bySeverity[sev] = append(bySeverity[sev], f)
	}
	for _, sev := range []string{"high", "medium", "low", "info"} {
		fs := bySeverity[sev]
		if len(fs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", strings.Title(sev))
		for _, f := range fs {
			fmt.Fprintf(&b, "### %s\n\n%s\n\n", f.Title, f.Detail)
			if len(f.Files) > 0 {
				fmt.Fprintf(&b, "Files: %s\n\n", strings.Join(f.Files, ", "))
			}
		}
	}
	return Document{Path: "03-FINDINGS.md", Title: "Findings", Content: b.String()}
}

// moduleSlug turns a module name into a filesystem-safe path component.
func moduleSlug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}

func renderModuleDocs(modules, moduleDocs rounds.Output) []Document {
	var docs []Document
	var names []string
	for _, m := range modules.Modules {
		names = append(names, m.Name)
	}
	sort.Strings(names)

	for _, name := range names {
		body, ok := moduleDocs.ModuleDocs[name]
		if !ok || strings.TrimSpace(body) == "" {
			body = fmt.Sprintf("# %s\n\nNo documentation was generated for this module.\n", name)
		}
		docs = append(docs, Document{
			Path:    fmt.Sprintf("modules/%s.md", moduleSlug(name)),
			Title:   name,
			Content: body,
		})
	}
	return docs
}

func renderOpenQuestions(out, overview rounds.Output) Document {
	var b strings.Builder
	b.WriteString("# Open Questions\n\n")
	if len(out.OpenQuestions) == 0 && len(overview.OpenQuestions) == 0 {
		b.WriteString("No open questions were surfaced.\n")
		return Document{Path: "05-OPEN-QUESTIONS.md", Title: "Open Questions", Content: b.String()}
	}
	for _, q := range append(append([]string{}, overview.OpenQuestions...), out.OpenQuestions...) {
		fmt.Fprintf(&b, "- %s\n", q)
	}
	return Document{Path: "05-OPEN-QUESTIONS.md", Title: "Open Questions", Content: b.String()}
}

func renderIndex(snap *analysis.Snapshot, docs []Document, audience config.Audience) Document {
	var b strings.Builder
	fmt.Fprintf(&b, "# Documentation Index\n\n")
	fmt.Fprintf(&b, "Generated for %d analyzed files.\n\n", snap.FileTree.TotalFiles)

	for _, d := range docs {
		fmt.Fprintf(&b, "## [%s](%s)\n\n", d.Title, d.Path)
		for _, h := range headingsOf(d.Content) {
			if h.level != 2 {
				continue
			}
			fmt.Fprintf(&b, "- %s\n", h.text)
		}
		b.WriteString("\n")
	}

	if audience == config.AudienceAI {
		b.WriteString("_AI audience: every section below is file-path addressable; see each document's headings for navigation anchors._\n")
	}

	return Document{Path: "00-INDEX.md", Title: "Documentation Index", Content: b.String()}
}

// Empty renders the placeholder document set for an empty repository: an
// index and an overview naming the possible reasons no source was found.
func Empty(snap *analysis.Snapshot) []Document {
	overview := "# Project Overview\n\n" +
		"This repository appears **empty**: static analysis found zero source files to document.\n\n" +
		"## Possible reasons\n\n" +
		"- The repository genuinely contains no source code yet (freshly initialized, or documentation-only).\n" +
		"- The configured `include`/`exclude` globs filter out every file.\n" +
		"- The target directory is wrong.\n\n" +
		fmt.Sprintf("Analysis ran against `%s` and found %d files.\n", snap.Metadata.RootDir, snap.Metadata.FileCount)

	index := "# Documentation Index\n\n" +
		"This repository is empty; no per-module documentation was generated.\n\n" +
		"## [Project Overview](01-PROJECT-OVERVIEW.md)\n"

	return []Document{
		{Path: "00-INDEX.md", Title: "Documentation Index", Content: index},
		{Path: "01-PROJECT-OVERVIEW.md", Title: "Project Overview", Content: overview},
	}
}

// Write persists docs under outputDir. Exposed separately from Render so
// callers (and tests) can inspect documents before touching disk.
func Write(outputDir string, docs []Document, writeFile func(path string, content []byte) error) error {
	for _, d := range docs {
		if err := writeFile(outputDir+"/"+d.Path, []byte(d.Content)); err != nil {
			return err
		}
	}
	return nil
}
