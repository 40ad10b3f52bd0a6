package analysis

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// Go exported symbols.
var (
	goFuncRe  = regexp.MustCompile(`^func\s+(?:\([^)]*\)\s+)?([A-Z]\w*)\s*\(([^)]*)\)\s*([^\{]*)\{?`)
	goTypeRe  = regexp.MustCompile(`^type\s+([A-Z]\w*)\s+(struct|interface)\b`)
	goConstRe = regexp.MustCompile(`^(?:const|var)\s+([A-Z]\w*)\s*([\w\.\[\]\*]*)\s*(=?)`)
	goImportRe = regexp.MustCompile(`^\s*"([^"]+)"|^\s*\w+\s+"([^"]+)"`)
)

// Python exported symbols (no leading underscore is "exported" by convention).
var (
	pyDefRe    = regexp.MustCompile(`^def\s+([A-Za-z]\w*)\s*\(([^)]*)\)\s*(?:->\s*([\w\.\[\], ]+))?\s*:`)
	pyClassRe  = regexp.MustCompile(`^class\s+([A-Za-z]\w*)\s*(?:\(([^)]*)\))?\s*:`)
	pyImportRe = regexp.MustCompile(`^(?:from\s+(\S+)\s+import|import\s+(\S+))`)
)

// JS/TS exported symbols.
var (
	jsFuncRe   = regexp.MustCompile(`^export\s+(async\s+)?function\s+([A-Za-z_]\w*)\s*\(([^)]*)\)`)
	jsClassRe  = regexp.MustCompile(`^export\s+(?:default\s+)?class\s+([A-Za-z_]\w*)(?:\s+extends\s+([\w.]+))?`)
	jsConstRe  = regexp.MustCompile(`^export\s+const\s+([A-Za-z_]\w*)`)
	jsImportRe = regexp.MustCompile(`^import\s+.*from\s+['"]([^'"]+)['"]|^(?:const|require)\(['"]([^'"]+)['"]\)`)
)

// BuildFileAST produces a best-effort exported-symbol summary for one file.
// It returns (nil, false) for languages without a recognized heuristic, so
// callers (the packer's signature fallback) know to synthesize a summary
// from the raw source instead.
func BuildFileAST(path, language string, content []byte) (*FileAST, bool) {
	switch language {
	case "Go":
		return buildGoAST(path, content), true
	case "Python":
		return buildPythonAST(path, content), true
	case "JavaScript", "TypeScript":
		return buildJSAST(path, content), true
	default:
		return nil, false
	}
}

func buildGoAST(path string, content []byte) *FileAST {
	ast := &FileAST{Path: path, Language: "Go"}
	sc := bufio.NewScanner(strings.NewReader(string(content)))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	inImportBlock := false
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if trimmed == "import (" {
			inImportBlock = true
			continue
		}
		if inImportBlock {
			if trimmed == ")" {
				inImportBlock = false
				continue
			}
			if m := goImportRe.FindStringSubmatch(trimmed); m != nil {
				if p := firstNonEmpty(m[1], m[2]); p != "" {
					ast.Imports = append(ast.Imports, p)
				}
			}
			continue
		}
		if strings.HasPrefix(trimmed, `import "`) {
			if m := goImportRe.FindStringSubmatch(strings.TrimPrefix(trimmed, "import ")); m != nil {
				if p := firstNonEmpty(m[1], m[2]); p != "" {
					ast.Imports = append(ast.Imports, p)
				}
			}
			continue
		}

		if m := goFuncRe.FindStringSubmatch(trimmed); m != nil {
			ast.Functions = append(ast.Functions, FunctionInfo{
				Name:       m[1],
				Params:     parseGoParams(m[2]),
				ReturnType: strings.TrimSpace(m[3]),
			})
			continue
		}
		if m := goTypeRe.FindStringSubmatch(trimmed); m != nil {
			ast.Classes = append(ast.Classes, ClassInfo{Name: m[1]})
			continue
		}
		if m := goConstRe.FindStringSubmatch(trimmed); m != nil {
			ast.Constants = append(ast.Constants, ConstantInfo{
				Name:     m[1],
				Type:     m[2],
				HasValue: m[3] == "=",
			})
		}
	}
	return ast
}

func parseGoParams(raw string) []ParamInfo {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var params []ParamInfo
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		if len(fields) == 1 {
			params = append(params, ParamInfo{Type: fields[0]})
			continue
		}
		params = append(params, ParamInfo{Name: fields[0], Type: strings.Join(fields[1:], " ")})
	}
	return params
}

func buildPythonAST(path string, content []byte) *FileAST {
	ast := &FileAST{Path: path, Language: "Python"}
	sc := bufio.NewScanner(strings.NewReader(string(content)))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		trimmed := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(trimmed, "_") {
			continue
		}
		if m := pyDefRe.FindStringSubmatch(trimmed); m != nil && !strings.HasPrefix(m[1], "_") {
			ast.Functions = append(ast.Functions, FunctionInfo{
				Name:       m[1],
				Params:     parsePyParams(m[2]),
				ReturnType: strings.TrimSpace(m[3]),
			})
			continue
		}
		if m := pyClassRe.FindStringSubmatch(trimmed); m != nil && !strings.HasPrefix(m[1], "_") {
			var implements []string
			if m[2] != "" {
				for _, b := range strings.Split(m[2], ",") {
					implements = append(implements, strings.TrimSpace(b))
				}
			}
			ast.Classes = append(ast.Classes, ClassInfo{Name: m[1], Implements: implements})
			continue
		}
		if m := pyImportRe.FindStringSubmatch(trimmed); m != nil {
			if p := firstNonEmpty(m[1], m[2]); p != "" {
				ast.Imports = append(ast.Imports, p)
			}
		}
	}
	return ast
}

func parsePyParams(raw string) []ParamInfo {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var params []ParamInfo
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "self" || part == "cls" {
			continue
		}
		nameType := strings.SplitN(part, ":", 2)
		p := ParamInfo{Name: strings.TrimSpace(nameType[0])}
		if len(nameType) == 2 {
			p.Type = strings.TrimSpace(strings.SplitN(nameType[1], "=", 2)[0])
		}
		params = append(params, p)
	}
	return params
}

func buildJSAST(path string, content []byte) *FileAST {
	lang := "JavaScript"
	if strings.HasSuffix(path, ".ts") || strings.HasSuffix(path, ".tsx") {
		lang = "TypeScript"
	}
	ast := &FileAST{Path: path, Language: lang}
	sc := bufio.NewScanner(strings.NewReader(string(content)))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		trimmed := strings.TrimSpace(sc.Text())
		if m := jsFuncRe.FindStringSubmatch(trimmed); m != nil {
			ast.Functions = append(ast.Functions, FunctionInfo{
				Name:   m[2],
				Async:  m[1] != "",
				Params: parseJSParams(m[3]),
			})
			continue
		}
		if m := jsClassRe.FindStringSubmatch(trimmed); m != nil {
			var implements []string
			if m[2] != "" {
				implements = append(implements, m[2])
			}
			ast.Classes = append(ast.Classes, ClassInfo{Name: m[1], Implements: implements})
			continue
		}
		if m := jsConstRe.FindStringSubmatch(trimmed); m != nil {
			ast.Constants = append(ast.Constants, ConstantInfo{Name: m[1], HasValue: true})
			continue
		}
		if m := jsImportRe.FindStringSubmatch(trimmed); m != nil {
			if p := firstNonEmpty(m[1], m[2]); p != "" {
				ast.Imports = append(ast.Imports, p)
			}
		}
	}
	return ast
}

func parseJSParams(raw string) []ParamInfo {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var params []ParamInfo
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		nameType := strings.SplitN(part, ":", 2)
		p := ParamInfo{Name: strings.TrimSpace(strings.SplitN(nameType[0], "=", 2)[0])}
		if len(nameType) == 2 {
			p.Type = strings.TrimSpace(nameType[1])
		}
		params = append(params, p)
	}
	return params
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// readAllText reads a file's full content, used by the manifest/TODO/env
// scanners below which operate over raw bytes rather than walker.FileInfo.
func readAllText(path string) ([]byte, error) {
	return os.ReadFile(path)
}
