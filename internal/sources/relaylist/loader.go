package relaylist

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
)

// placeholderRe matches ${VAR} style placeholders left by templated deploys.
var placeholderRe = regexp.MustCompile(`\$\{[^}]+\}`)

// Loader reads the user's relay lists from a YAML file.
type Loader struct {
	filePath string
}

func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Path returns the file the loader reads.
func (l *Loader) Path() string {
	return l.filePath
}

// Load reads, parses and normalizes the file.
func (l *Loader) Load() (domain.RelayLists, []string, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return domain.RelayLists{}, nil, fmt.Errorf("failed to read relay list file: %w", err)
	}
	return Parse(data)
}

// Parse decodes relay lists from YAML. Unresolved placeholders are blanked
// and invalid URLs dropped; the dropped entries are returned so callers
// can report them.
func Parse(data []byte) (domain.RelayLists, []string, error) {
	data = stripPlaceholders(data)

	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return domain.RelayLists{}, nil, fmt.Errorf("failed to parse relay list yaml: %w", err)
	}

	lists, rejected := file.normalize()
	return lists, rejected, nil
}

func stripPlaceholders(data []byte) []byte {
	return placeholderRe.ReplaceAll(data, []byte(`""`))
}

// Static serves fixed lists, used when no relay list file is configured.
type Static domain.RelayLists

func (s Static) Load() (domain.RelayLists, []string, error) {
	return domain.RelayLists(s), nil, nil
}
