package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// crateNameRegex matches valid crates.io package names.
var crateNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidateCrateName validates a crates.io package name.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - Maximum length of 64 characters (crates.io limit)
//   - Must start with a letter, followed by letters, digits, - or _
func ValidateCrateName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidManifest, "crate name cannot be empty")
	}

	if len(name) > 64 {
		return New(ErrCodeInvalidManifest, "crate name too long (max 64 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidManifest, "crate name contains invalid control characters")
		}
	}

	if !crateNameRegex.MatchString(name) {
		return New(ErrCodeInvalidManifest, "invalid crate name: %q", name)
	}

	return nil
}

// implItemKeyRegex matches impl item keys of the form "Type::item" as they
// appear in configuration include/exclude lists.
var implItemKeyRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*::[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateImplItemKey validates a "Type::item" key used to pre-decide
// impl items in the configuration file.
func ValidateImplItemKey(key string) error {
	if key == "" {
		return New(ErrCodeDialogCanceled, "impl item key cannot be empty")
	}

	if !implItemKeyRegex.MatchString(key) {
		return New(ErrCodeDialogCanceled, "invalid impl item key: %q (expected Type::item)", key)
	}

	return nil
}

// ValidateOutputPath validates a fusion output path for safety.
// It prevents path traversal outside the package directory and ensures
// the target is a Rust source file.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
//   - Must end in .rs
func ValidateOutputPath(path string) error {
	if path == "" {
		return New(ErrCodeForge, "output path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeForge, "output path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeForge, "output path contains invalid characters")
		}
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeForge, "output path cannot contain path traversal sequences (..)")
	}

	if !strings.HasSuffix(path, ".rs") {
		return New(ErrCodeForge, "output path must end in .rs: %q", path)
	}

	return nil
}
