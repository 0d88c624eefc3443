/*
Package configs is responsible for loading and parsing the application's configuration settings.

This file handles the single-value local state file remembering the last-used
login email, so the sign-in form can be pre-filled on the next launch.
*/
package configs

import (
	"os"
	"strings"
)

// LoadLastEmail reads the last-used login email from the given file.
// A missing or unreadable file is not an error: it returns the empty string.
func LoadLastEmail(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SaveLastEmail overwrites the last-used login email file with the given value.
func SaveLastEmail(path string, email string) error {
	return os.WriteFile(path, []byte(strings.TrimSpace(email)+"\n"), 0o600)
}
