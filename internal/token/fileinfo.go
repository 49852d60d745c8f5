package token

// FileInfo describes the physical file a token was lexed from. One
// FileInfo is shared by reference among all tokens of the same file; the
// per-token baseline line lives on the Token, the #line adjustment here.
type FileInfo struct {
	Name      string // absolute path
	Display   string // display name for diagnostics, may carry quotes or angle brackets
	No        int    // process-unique file id
	LineDelta int    // offset applied by a #line directive
}

// unknownFile backs tokens created without file context, such as the
// anchor tokens synthesized for stack-level diagnostics.
var unknownFile = &FileInfo{Display: "<unknown>"}
