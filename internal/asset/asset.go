package asset

// Asset is an immutable content snapshot bound to an ID.
//
// Once constructed, an Asset's bytes never change: a new state of the
// same logical asset is a new Asset instance, not a mutation. New
// copies the content it is given so later caller mutations cannot leak
// into the snapshot.
type Asset struct {
	id      ID
	content []byte
}

// New creates an Asset holding a private copy of content.
func New(id ID, content []byte) *Asset {
	c := make([]byte, len(content))
	copy(c, content)
	return &Asset{id: id, content: c}
}

// FromString creates an Asset from a string.
func FromString(id ID, content string) *Asset {
	return &Asset{id: id, content: []byte(content)}
}

// ID returns the asset's identifier.
func (a *Asset) ID() ID {
	return a.id
}

// Bytes returns the asset's content. Callers must not modify the
// returned slice.
func (a *Asset) Bytes() []byte {
	return a.content
}

// Text returns the asset's content as a string.
func (a *Asset) Text() string {
	return string(a.content)
}
