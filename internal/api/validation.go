package api

import (
	"errors"
	"regexp"
)

var (
	collectionRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-]{1,64}$`)
	idRegex         = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]{1,128}$`)
)

func validateCollection(collection string) error {
	if collection == "" {
		return errors.New("collection cannot be empty")
	}
	if !collectionRegex.MatchString(collection) {
		return errors.New("invalid collection name: must be 1-64 characters of a-z, A-Z, 0-9, _, -")
	}
	return nil
}

func validateDocumentID(id string) error {
	if id == "" {
		return errors.New("document id cannot be empty")
	}
	if !idRegex.MatchString(id) {
		return errors.New("invalid document id: must be 1-128 characters of a-z, A-Z, 0-9, _, ., -")
	}
	return nil
}
