package cell

// Field is implemented by generated selector tokens. Ref is the read
// projection and Put the write projection of one field of record R.
type Field[R, T any] interface {
	Ref(r *R) *T
	Put(r *R, v T)
}

// DupField is a Field whose values can produce an independent copy.
// Generated tokens implement it only for fields marked duplicable, so passing
// any other token where a DupField is expected fails to compile.
type DupField[R, T any] interface {
	Field[R, T]
	Dup(v T) T
}
