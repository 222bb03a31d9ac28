package utils

// Ptr returns a pointer to a copy of v.
//
//	temperature := utils.Ptr(0.2)
func Ptr[T any](v T) *T {
	return &v
}
