package contracts

// Factory builds named objects on demand. Unknown names fail with an error
// matching sentinel.ErrNotFound.
type Factory interface {
	Create(name string, args ...any) (any, error)
	Has(name string) bool
}
