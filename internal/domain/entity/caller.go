package entity

// CallerIdentity is who the current operation acts on behalf of. Today it is
// whatever id the client supplied; an authenticating resolver can produce it
// instead without touching the lifecycles.
type CallerIdentity struct {
	UserID string
}

func (c CallerIdentity) IsZero() bool {
	return c.UserID == ""
}
