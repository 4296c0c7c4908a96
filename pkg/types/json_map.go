package types

// JSONMap is an opaque key-value payload stored as jsonb.
type JSONMap map[string]any
