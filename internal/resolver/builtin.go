package resolver

import "embed"

// builtinFS holds the compiled-in prompt and workflow library (spec.md §4.1
// tier 1). Grounded on the teacher's embed.go pattern of shipping resources
// alongside the binary.
//
//go:embed builtin/prompts builtin/workflows
var builtinFS embed.FS
