package mcp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var errNoDatabase = errors.New("requires database connection")

// needsDatabase reports that op cannot run in limited mode.
func needsDatabase(op string) error {
	return fmt.Errorf("%s %w", op, errNoDatabase)
}

// requireID parses a mandatory UUID argument, naming the argument in errors
// so the calling agent can correct it.
func requireID(arg, value string) (uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return uuid.Nil, fmt.Errorf("%s is required", arg)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s is not a valid id: %w", arg, err)
	}
	return id, nil
}

// optionalID is requireID for arguments that may be left empty.
func optionalID(arg, value string) (uuid.UUID, error) {
	if strings.TrimSpace(value) == "" {
		return uuid.Nil, nil
	}
	return requireID(arg, value)
}
