package pipeline

import (
	"github.com/keyforge/keyforge/forge/store"
)

// Upload carries an uploaded keystore file.
type Upload struct {
	Filename string
	Content  []byte
}

// Request is a fully assembled generation request. Exactly one of
// PackageName and Upload is set: a package name asks for a fresh
// keystore with a synthesized identity, an upload ingests the given
// bytes. Empty Alias/Password fall back to the documented defaults.
type Request struct {
	Subject     string
	PackageName string
	Upload      *Upload
	Alias       string
	Password    string
	UseExisting bool
	Requester   store.RequesterInfo
}
