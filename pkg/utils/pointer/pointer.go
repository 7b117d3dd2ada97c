package pointer

// Ref returns a pointer to v. Handy for literal struct fields
// expecting *int32 and friends.
func Ref[T any](v T) *T {
	return &v
}
