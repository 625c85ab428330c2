package index

// DocumentIndex defines the index operations used by the document service.
type DocumentIndex interface {
	UpsertDocument(d DocumentRow, body string, relations []string) error
	DeleteDocument(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	ListDocuments(docType string) ([]DocumentRow, error)
	Search(q Query) ([]SearchResult, error)
	Backlinks(link string) ([]DocumentRow, error)
	Close() error
}

// Verify *DB satisfies DocumentIndex at compile time.
var _ DocumentIndex = (*DB)(nil)
