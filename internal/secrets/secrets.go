// Package secrets resolves credentials such as the Gemini API key and the
// Supabase anon key from literal config values, ${VAR} references, or mounted
// secret files (Docker/Kubernetes). Secret values are never logged.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/logger"
)

// maxSecretFileSize bounds secret file reads; keys and tokens are tiny
const maxSecretFileSize = 64 * 1024

// Resolver reads secret files through an afero filesystem.
type Resolver struct {
	fs     afero.Fs
	getenv func(string) string
	log    logger.Logger
}

// NewResolver creates a resolver. A nil fs means the OS filesystem.
func NewResolver(fs afero.Fs, log logger.Logger) *Resolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Resolver{fs: fs, getenv: os.Getenv, log: log}
}

var defaultResolver = NewResolver(nil, nil)

// ExpandString expands ${VAR} and ${VAR:-default} references using the process environment.
func ExpandString(s string) (string, error) {
	return defaultResolver.ExpandString(s)
}

// Resolve picks a secret from a file path or an expandable value using the OS filesystem.
func Resolve(filePath, value string) (string, error) {
	return defaultResolver.Resolve(filePath, value)
}

// ExpandString expands ${VAR} and ${VAR:-default}. A referenced variable
// that is unset and has no fallback is an error.
func (r *Resolver) ExpandString(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	expanded := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if value := r.getenv(name); value != "" {
			return value
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", errors.Newf("missing required environment variable(s): %s", strings.Join(missing, ", ")).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return expanded, nil
}

// ReadFile reads a secret file, trimming trailing newlines.
// Files readable by group or other are accepted with a warning.
func (r *Resolver) ReadFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("secret file path is empty")
	}

	cleanPath := filepath.Clean(path)
	info, err := r.fs.Stat(cleanPath)
	if err != nil {
		return "", errors.New(fmt.Errorf("secret file %s: %w", cleanPath, err)).
			Component("configuration").
			Category(errors.CategoryFileIO).
			Build()
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", cleanPath)
	}
	if info.Size() > maxSecretFileSize {
		return "", fmt.Errorf("secret file too large (max %d bytes): %s", maxSecretFileSize, cleanPath)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		r.log.Warn("secret file is readable by group or other",
			logger.String("path", cleanPath),
			logger.String("perm", fmt.Sprintf("%04o", perm)))
	}

	data, err := afero.ReadFile(r.fs, cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", cleanPath, err)
	}

	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fmt.Errorf("secret file is empty: %s", cleanPath)
	}
	return secret, nil
}

// Resolve prefers filePath when set, then an expanded value, then "".
func (r *Resolver) Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return r.ReadFile(filePath)
	}
	return r.ExpandString(value)
}
