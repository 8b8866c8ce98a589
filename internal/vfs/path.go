package vfs

import (
	"fmt"
	"strings"
)

// Components splits an absolute path into its names, skipping empty ones,
// so "/", "" and "//" all yield no components.
func Components(path string) []string {
	parts := strings.Split(path, "/")

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

// Clean renders a path in canonical "/a/b" form.
func Clean(path string) string {
	return "/" + strings.Join(Components(path), "/")
}

// Split returns the parent directory and final name of path. The root has no
// name and splits into ("/", "").
func Split(path string) (dir, name string) {
	parts := Components(path)
	if len(parts) == 0 {
		return "/", ""
	}

	return "/" + strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1]
}

// Join appends name to dir.
func Join(dir, name string) string {
	return Clean(dir + "/" + name)
}

func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	case strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}

	return nil
}
