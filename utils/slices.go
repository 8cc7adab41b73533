package utils

// props to: https://stackoverflow.com/a/28058324
func Reverse[S ~[]E, E any](s S) S {
  out := make(S, len(s))
  copy(out, s)

  for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
    out[i], out[j] = out[j], out[i]
  }

  return out
}

// Last returns up to n trailing elements of s, without copying.
func Last[S ~[]E, E any](s S, n int) S {
  if n <= 0 {
    return s[:0]
  }

  if len(s) <= n {
    return s
  }

  return s[len(s)-n:]
}

// Ptr returns a pointer to a copy of v. Optional reading fields are pointers.
func Ptr[T any](v T) *T {
  return &v
}
