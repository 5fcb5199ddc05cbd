package remote

import (
	"github.com/go-git/go-git/v5/plumbing"
)

// BlobHash returns the git blob SHA-1 of content, the same value GitHub
// reports as a file's "sha".
func BlobHash(content []byte) string {
	return plumbing.ComputeHash(plumbing.BlobObject, content).String()
}
