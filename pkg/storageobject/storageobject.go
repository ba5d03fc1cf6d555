// Package storageobject defines the DTO passed between the request engine,
// the metadata cache and the object store drivers.
package storageobject

import "io"

// StorageObject is the logical record identifying and describing a stored
// blob. Its identity is the (Prefix, FilePath) pair; Etag and Size are
// populated once the object has been stored or statted, and are left zero
// when the struct is only being used to address an object.
type StorageObject struct {
	Prefix   string
	FilePath string

	Etag string
	Size int64

	// LocalFile holds a filesystem path when the content has been spooled to
	// disk prior to a Store call.
	LocalFile string

	// Body holds a readable handle when content is being streamed directly,
	// e.g. on Retrieve.
	Body io.ReadCloser
}

// Key returns the object-store key for so, "{prefix}/{file_path}".
func (so StorageObject) Key() string {
	return so.Prefix + "/" + so.FilePath
}

// New builds a StorageObject addressing prefix/filePath.
func New(prefix, filePath string) StorageObject {
	return StorageObject{Prefix: prefix, FilePath: filePath}
}

// WithEtag returns a copy of so carrying the given etag.
func (so StorageObject) WithEtag(etag string) StorageObject {
	so.Etag = etag
	return so
}
