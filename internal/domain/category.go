package domain

// Category is a user-defined label attached to works.
type Category struct {
	ID    int64
	Label string
}
