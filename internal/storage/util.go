package storage

// LocalPath returns the filesystem path of an artifact for local backends.
// Cloud backends have no local file, so ok is false.
func LocalPath(backend Backend, path string) (string, bool) {
	b, ok := backend.(*LocalBackend)
	if !ok {
		return "", false
	}
	full, err := b.validatePath(path)
	if err != nil {
		return "", false
	}
	return full, true
}
