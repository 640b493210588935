package waterbilling

import (
	"fmt"
	"os"
	"path/filepath"
	"waterbills-backend/lib/waterbill"

	"github.com/google/uuid"
)

// DocumentStore keeps downloaded bill documents on disk, namespaced by
// provider and contract number. Paths handed out (and persisted) are
// relative to the store root so the root can move between deployments.
type DocumentStore struct {
	root string
}

func NewDocumentStore(root string) (DocumentStore, error) {
	err := os.MkdirAll(root, 0o755)
	if err != nil {
		return DocumentStore{}, fmt.Errorf("document store root: %w", err)
	}
	return DocumentStore{root: root}, nil
}

// Put writes the document under a fresh random filename and returns
// its store-relative path.
func (s DocumentStore) Put(provider waterbill.Provider, externalId string, data []byte) (string, error) {
	dir := filepath.Join(string(provider), externalId)
	err := os.MkdirAll(filepath.Join(s.root, dir), 0o755)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, uuid.NewString()+".pdf")
	err = os.WriteFile(filepath.Join(s.root, path), data, 0o644)
	if err != nil {
		return "", err
	}
	return path, nil
}

func (s DocumentStore) Exists(path string) bool {
	_, err := os.Stat(filepath.Join(s.root, path))
	return err == nil
}

func (s DocumentStore) Read(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.root, path))
}

func (s DocumentStore) Delete(path string) error {
	return os.Remove(filepath.Join(s.root, path))
}
