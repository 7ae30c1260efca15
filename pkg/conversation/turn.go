package conversation

// Turn is one role-tagged entry of the ordered history sent to the backend.
// Text-only turns and text-plus-images turns share the shape; Images is empty
// whenever the active backend does not accept image parts.
type Turn struct {
	Role   Role
	Text   string
	Images []*ImageContent
	// AuthorTag is forwarded as the provider's per-author identity tag when
	// supported, empty otherwise.
	AuthorTag string
}

// Empty reports whether the turn carries no content at all. Empty turns are
// omitted from the history rather than sent as blank entries.
func (t Turn) Empty() bool {
	return t.Text == "" && len(t.Images) == 0
}
