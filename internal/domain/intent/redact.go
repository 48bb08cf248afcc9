package intent

// Placeholders shown in place of sealed fields.
const (
	RedactedTitle       = "Private intent"
	RedactedDescription = "This intent is private. Only the poster can view its details."
)

// SealedFields is the plaintext sealed into EncryptedData for private intents.
type SealedFields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Budget      string `json:"budget,omitempty"`
}

// VisibleTo reports whether viewerKey may see the private fields of in.
func (in *Intent) VisibleTo(viewerKey string) bool {
	return !in.IsPrivate || (viewerKey != "" && viewerKey == in.PosterKey)
}

// Redacted returns a copy of in with private fields replaced by
// placeholders. Public intents are returned unchanged. The encrypted
// payload never leaves the service.
func (in *Intent) Redacted() Intent {
	out := *in
	out.EncryptedData = ""
	if !in.IsPrivate {
		return out
	}
	out.Title = RedactedTitle
	out.Description = RedactedDescription
	out.Budget = ""
	out.Requirements = []string{}
	return out
}

// Revealed returns a copy of in with the sealed fields restored.
func (in *Intent) Revealed(f SealedFields) Intent {
	out := *in
	out.EncryptedData = ""
	out.Title = f.Title
	out.Description = f.Description
	out.Budget = f.Budget
	return out
}
