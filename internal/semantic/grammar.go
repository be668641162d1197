package semantic

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/errs"
)

// Grammar extracts CodeChunks from one file's content for a specific
// language. The engine ships a small table of (extension -> Grammar),
// standing in for the tree-sitter query table named in spec.md §6.7 — no
// tree-sitter bindings are present anywhere in the example pack, so each
// Grammar is a regex-pattern table in the same style as the teacher's own
// non-tree-sitter fallback parser.
type Grammar interface {
	Language() Language
	Extract(path, content string) []CodeChunk
}

type pattern struct {
	kind    ChunkType
	re      *regexp.Regexp
	nameGrp int
}

type regexGrammar struct {
	lang     Language
	patterns []pattern
}

func (g *regexGrammar) Language() Language { return g.lang }

func (g *regexGrammar) Extract(path, content string) []CodeChunk {
	lines := strings.Split(content, "\n")
	var chunks []CodeChunk
	for _, p := range g.patterns {
		matches := p.re.FindAllStringSubmatchIndex(content, -1)
		for _, m := range matches {
			start := lineOf(content, m[0])
			end := start
			depth := 0
			opened := false
			for i := m[1] - 1; i < len(content); i++ {
				switch content[i] {
				case '{':
					depth++
					opened = true
				case '}':
					depth--
				case '\n':
					end = lineOf(content, i)
				}
				if opened && depth == 0 {
					break
				}
			}
			if end < start {
				end = start
			}
			if end > len(lines) {
				end = len(lines)
			}
			chunkLines := lines[start-1 : end]
			body := strings.Join(chunkLines, "\n")
			chunks = append(chunks, CodeChunk{
				FilePath:  path,
				Language:  g.lang,
				Content:   body,
				StartLine: start,
				EndLine:   end,
				ChunkType: p.kind,
			})
		}
	}
	return chunks
}

func lineOf(content string, byteOffset int) int {
	if byteOffset > len(content) {
		byteOffset = len(content)
	}
	return strings.Count(content[:byteOffset], "\n") + 1
}

// registry maps a file extension to its Grammar.
var registry = map[string]Grammar{}

func register(exts []string, g Grammar) {
	for _, ext := range exts {
		registry[ext] = g
	}
}

func init() {
	register([]string{".rs"}, &regexGrammar{lang: LangRust, patterns: []pattern{
		{ChunkFunction, regexp.MustCompile(`(?m)^\s*(?:pub\s+)?(?:async\s+)?fn\s+\w+`), 0},
		{ChunkClass, regexp.MustCompile(`(?m)^\s*(?:pub\s+)?(?:struct|enum|trait)\s+\w+`), 0},
		{ChunkImport, regexp.MustCompile(`(?m)^\s*use\s+[\w:]+(?:::\{[^}]*\})?;`), 0},
	}})
	register([]string{".py"}, &regexGrammar{lang: LangPython, patterns: []pattern{
		{ChunkFunction, regexp.MustCompile(`(?m)^(?:\s*)def\s+\w+\s*\([^)]*\)\s*:`), 0},
		{ChunkClass, regexp.MustCompile(`(?m)^class\s+\w+`), 0},
		{ChunkImport, regexp.MustCompile(`(?m)^(?:import|from)\s+[\w.]+`), 0},
	}})
	register([]string{".ts", ".tsx"}, &regexGrammar{lang: LangTypeScript, patterns: []pattern{
		{ChunkFunction, regexp.MustCompile(`(?m)^(?:export\s+)?(?:async\s+)?function\s+\w+\s*\([^)]*\)`), 0},
		{ChunkClass, regexp.MustCompile(`(?m)^(?:export\s+)?(?:abstract\s+)?class\s+\w+`), 0},
		{ChunkImport, regexp.MustCompile(`(?m)^import\s+.+from\s+['"].+['"];?`), 0},
	}})
	register([]string{".js", ".jsx", ".mjs"}, &regexGrammar{lang: LangJavaScript, patterns: []pattern{
		{ChunkFunction, regexp.MustCompile(`(?m)^(?:export\s+)?(?:async\s+)?function\s+\w+\s*\([^)]*\)`), 0},
		{ChunkClass, regexp.MustCompile(`(?m)^(?:export\s+)?class\s+\w+`), 0},
		{ChunkImport, regexp.MustCompile(`(?m)^import\s+.+from\s+['"].+['"];?`), 0},
	}})
	register([]string{".dart"}, &regexGrammar{lang: LangDart, patterns: []pattern{
		{ChunkFunction, regexp.MustCompile(`(?m)^\s*(?:static\s+)?[\w<>?]+\s+\w+\s*\([^)]*\)\s*(?:async\s*)?\{`), 0},
		{ChunkClass, regexp.MustCompile(`(?m)^(?:abstract\s+)?class\s+\w+`), 0},
		{ChunkImport, regexp.MustCompile(`(?m)^import\s+['"].+['"];`), 0},
	}})
}

// DetectLanguage derives a Language from a file's extension.
func DetectLanguage(path string) Language {
	switch g := registry[strings.ToLower(filepath.Ext(path))]; {
	case g != nil:
		return g.Language()
	default:
		return LangUnknown
	}
}

// hashContent returns a stable hex-encoded SHA-256 of content, used as both
// the file content_hash and each chunk's content_hash.
func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Chunk parses content per spec.md §4.6.1: detect language, apply the
// registered grammar, fall back to a whole-file PlainText chunk if no
// grammar applies or extraction finds nothing. Chunks are then filtered by
// size and capped in count; files over MaxFileSizeBytes are rejected
// outright rather than truncated.
func Chunk(path, content string, cfg *config.SemanticConfig) ([]CodeChunk, error) {
	if int64(len(content)) > cfg.MaxFileSizeBytes {
		return nil, errs.LimitExceeded(path, "file exceeds max_file_size_bytes")
	}

	lang := DetectLanguage(path)
	var raw []CodeChunk
	if g, ok := registry[strings.ToLower(filepath.Ext(path))]; ok {
		raw = g.Extract(path, content)
	}
	if len(raw) == 0 {
		raw = []CodeChunk{{
			FilePath:  path,
			Language:  lang,
			Content:   content,
			StartLine: 1,
			EndLine:   strings.Count(content, "\n") + 1,
			ChunkType: ChunkPlainText,
		}}
	}

	var out []CodeChunk
	for _, c := range raw {
		size := len(c.Content)
		if size < cfg.MinChunkSize || size > cfg.MaxChunkSize {
			continue
		}
		c.ContentHash = hashContent(c.Content)
		c.ChunkID = path + ":" + c.ContentHash[:16]
		out = append(out, c)
		if len(out) >= cfg.MaxChunksPerFile {
			break
		}
	}
	return out, nil
}
