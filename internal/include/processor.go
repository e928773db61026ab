// Package include resolves \i include directives in SQL fragments of a model folder.
package include

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// Matches: \i filename or \i filename; (with optional semicolon)
var includeRegex = regexp.MustCompile(`^\s*\\i\s+([^\s;]+)\s*;?\s*$`)

// Processor handles processing SQL files with \i include directives. Included paths are
// relative to the including file and must stay inside baseDir.
type Processor struct {
	fs      afero.Fs
	baseDir string
	visited map[string]bool
}

// NewProcessor creates a new include processor for the given model folder
func NewProcessor(fs afero.Fs, baseDir string) *Processor {
	return &Processor{
		fs:      fs,
		baseDir: filepath.Clean(baseDir),
		visited: make(map[string]bool),
	}
}

// ProcessFile reads a SQL file and resolves all \i include directives
func (p *Processor) ProcessFile(filename string) (string, error) {
	p.visited = make(map[string]bool)
	return p.processFileRecursive(filepath.Clean(filename))
}

// ProcessContent resolves includes in content that did not come from a file, relative to the
// model folder.
func (p *Processor) ProcessContent(content string) (string, error) {
	p.visited = make(map[string]bool)
	return p.processIncludes(content, p.baseDir)
}

// processFileRecursive recursively processes a file and its includes
func (p *Processor) processFileRecursive(filename string) (string, error) {
	if p.visited[filename] {
		return "", fmt.Errorf("circular dependency detected: %s", filename)
	}

	p.visited[filename] = true
	defer func() {
		// the same file may be included from different branches
		delete(p.visited, filename)
	}()

	content, err := afero.ReadFile(p.fs, filename)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	processedContent, err := p.processIncludes(string(content), filepath.Dir(filename))
	if err != nil {
		return "", fmt.Errorf("failed to process includes in %s: %w", filename, err)
	}

	return processedContent, nil
}

// processIncludes processes \i directives in the given content
func (p *Processor) processIncludes(content string, currentDir string) (string, error) {
	lines := strings.Split(content, "\n")
	var result strings.Builder

	for i, line := range lines {
		matches := includeRegex.FindStringSubmatch(line)
		if matches == nil {
			result.WriteString(line)
			if i < len(lines)-1 {
				result.WriteString("\n")
			}
			continue
		}

		includePath := matches[1]
		resolvedPath, err := p.resolveIncludePath(includePath, currentDir)
		if err != nil {
			return "", fmt.Errorf("line %d: failed to resolve include path %s: %w", i+1, includePath, err)
		}

		includedContent, err := p.processFileRecursive(resolvedPath)
		if err != nil {
			return "", fmt.Errorf("line %d: failed to process included file %s: %w", i+1, resolvedPath, err)
		}

		result.WriteString(includedContent)
		if !strings.HasSuffix(includedContent, "\n") {
			result.WriteString("\n")
		}
	}

	return result.String(), nil
}

// resolveIncludePath resolves an include path relative to the current directory.
// Only files within the base directory and its subdirectories are allowed.
func (p *Processor) resolveIncludePath(includePath string, currentDir string) (string, error) {
	cleanPath := filepath.Clean(includePath)
	if strings.Contains(cleanPath, "..") || filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("directory traversal not allowed: %s", includePath)
	}

	resolvedPath := filepath.Join(currentDir, cleanPath)

	relPath, err := filepath.Rel(p.baseDir, resolvedPath)
	if err != nil || strings.HasPrefix(relPath, "..") {
		return "", fmt.Errorf("include path %s is outside the base directory %s", includePath, p.baseDir)
	}

	if _, err := p.fs.Stat(resolvedPath); os.IsNotExist(err) {
		return "", fmt.Errorf("included file does not exist: %s", resolvedPath)
	}

	return resolvedPath, nil
}
