// Package models holds the types shared across the reader engine and its HTTP boundary.
package models

import (
	"encoding/json"
	"time"
)

// NodeType distinguishes files from directories.
type NodeType string

const (
	NodeFile      NodeType = "file"
	NodeDirectory NodeType = "directory"
)

// FileNode describes one entry below the document root.
// Path is root-relative, posix-style, with a single leading slash.
type FileNode struct {
	Name string
	Path string
	Type NodeType

	// File only
	Extension  string
	Size       int64
	ModifiedAt time.Time

	// Directory only
	HasChildren bool
}

// IsDir reports whether the node is a directory.
func (n FileNode) IsDir() bool { return n.Type == NodeDirectory }

type fileJSON struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Type       NodeType  `json:"type"`
	Extension  string    `json:"extension"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

type dirJSON struct {
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Type        NodeType `json:"type"`
	HasChildren bool     `json:"hasChildren"`
}

// MarshalJSON emits only the fields that belong to the node's type.
func (n FileNode) MarshalJSON() ([]byte, error) {
	if n.IsDir() {
		return json.Marshal(dirJSON{
			Name:        n.Name,
			Path:        n.Path,
			Type:        n.Type,
			HasChildren: n.HasChildren,
		})
	}
	return json.Marshal(fileJSON{
		Name:       n.Name,
		Path:       n.Path,
		Type:       n.Type,
		Extension:  n.Extension,
		Size:       n.Size,
		ModifiedAt: n.ModifiedAt,
	})
}

// UnmarshalJSON accepts either shape produced by MarshalJSON.
func (n *FileNode) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        string    `json:"name"`
		Path        string    `json:"path"`
		Type        NodeType  `json:"type"`
		Extension   string    `json:"extension"`
		Size        int64     `json:"size"`
		ModifiedAt  time.Time `json:"modifiedAt"`
		HasChildren bool      `json:"hasChildren"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = FileNode{
		Name:        raw.Name,
		Path:        raw.Path,
		Type:        raw.Type,
		Extension:   raw.Extension,
		Size:        raw.Size,
		ModifiedAt:  raw.ModifiedAt,
		HasChildren: raw.HasChildren,
	}
	return nil
}

// SearchResult is a FileNode with the relevance score used for ordering.
// The score never leaves the search engine.
type SearchResult struct {
	FileNode
	Relevance int
}
