package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/drivedupe/drivedupe/internal/types"
)

// MemProvider is an in-memory Provider used by tests. Fixture trees are sown
// with AddFolder/AddFile; deletions and fetches record what happened so
// tests can assert on them.
type MemProvider struct {
	mu       sync.Mutex
	children map[string][]string      // folder ID -> subfolder IDs
	files    map[string][]*types.File // folder ID -> files
	content  map[string][]byte        // file ID -> bytes

	// Failure injection
	AuthFail  bool
	ListErr   error
	FetchErrs map[string]error
	DeleteErr map[string]error

	// Recorded operations
	Trashed   []string
	Destroyed []string
	Restored  []string
}

// NewMemProvider creates an empty in-memory provider.
func NewMemProvider() *MemProvider {
	return &MemProvider{
		children:  make(map[string][]string),
		files:     make(map[string][]*types.File),
		content:   make(map[string][]byte),
		FetchErrs: make(map[string]error),
		DeleteErr: make(map[string]error),
	}
}

// AddFolder registers sub as a child folder of parent. Registering the same
// subfolder under multiple parents models provider shortcuts/aliases.
func (m *MemProvider) AddFolder(parent, sub string) {
	m.children[parent] = append(m.children[parent], sub)
}

// AddFile places a file with the given content into a folder.
func (m *MemProvider) AddFile(folder string, f *types.File, content []byte) {
	f.Size = int64(len(content))
	m.files[folder] = append(m.files[folder], f)
	m.content[f.ID] = content
}

// ListFiles walks the fixture tree breadth-first with a visited set.
func (m *MemProvider) ListFiles(ctx context.Context, folderIDs []string, recurse bool) ([]*types.File, error) {
	if m.AuthFail {
		return nil, ErrAuthExpired
	}
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	var files []*types.File
	queue := append([]string(nil), folderIDs...)
	visited := make(map[string]struct{})
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		folder := queue[0]
		queue = queue[1:]
		if _, ok := visited[folder]; ok {
			continue
		}
		visited[folder] = struct{}{}
		for _, f := range m.files[folder] {
			if f.Size > 0 {
				files = append(files, f)
			}
		}
		if recurse {
			queue = append(queue, m.children[folder]...)
		}
	}
	return files, nil
}

// Fetch returns the sown content for a file ID.
func (m *MemProvider) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.AuthFail {
		return nil, ErrAuthExpired
	}
	if err := m.FetchErrs[fileID]; err != nil {
		return nil, err
	}
	content, ok := m.content[fileID]
	if !ok {
		return nil, &ProviderError{StatusCode: 404, Message: fmt.Sprintf("file %s not found", fileID)}
	}
	return content, nil
}

// Delete records the deletion and removes the content.
func (m *MemProvider) Delete(ctx context.Context, fileID string, permanent bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.DeleteErr[fileID]; err != nil {
		return err
	}
	if permanent {
		m.Destroyed = append(m.Destroyed, fileID)
		delete(m.content, fileID)
	} else {
		m.Trashed = append(m.Trashed, fileID)
	}
	return nil
}

// Restore records the restore.
func (m *MemProvider) Restore(ctx context.Context, fileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Restored = append(m.Restored, fileID)
	return nil
}
