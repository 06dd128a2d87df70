package sharepoint

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Folder is a document library folder as returned by the REST API.
type Folder struct {
	Name              string `json:"Name"`
	ServerRelativeURL string `json:"ServerRelativeUrl"`
	ItemCount         int    `json:"ItemCount"`
}

// File is a document in a folder. Length arrives as a JSON string.
type File struct {
	Name              string      `json:"Name"`
	ServerRelativeURL string      `json:"ServerRelativeUrl"`
	Length            json.Number `json:"Length"`
}

func (f File) Size() int64 {
	n, _ := f.Length.Int64()
	return n
}

// Session is an authenticated handle to one site. Every remote call takes
// the session explicitly; folders and files never carry it.
type Session struct {
	SiteURL string
	client  *http.Client
}

func NewSession(siteURL string, client *http.Client) *Session {
	if client == nil {
		client = http.DefaultClient
	}
	return &Session{
		SiteURL: strings.TrimRight(siteURL, "/"),
		client:  client,
	}
}

type listResponse[T any] struct {
	Value []T `json:"value"`
}
