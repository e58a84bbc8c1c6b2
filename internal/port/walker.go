package port

type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
	// Matches reports whether a slash-separated relative path would be walked.
	Matches(relPath string) bool
}

type FileInfo struct {
	Path    string // absolute
	RelPath string // slash-separated, relative to the walk root
	ModTime int64  // unix nanoseconds
	Size    int64
}
