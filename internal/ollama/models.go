package ollama

import (
	"context"
	"net/http"
	"strings"
)

// ModelInfo represents information about an Ollama model
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

// ListModelsResponse represents the response from listing models
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ListModels lists the models installed on the server.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var result ListModelsResponse
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, &result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// ModelNames returns the names of the given models.
func ModelNames(models []ModelInfo) []string {
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	return names
}

// HasModel reports whether name is installed, either exactly or under its
// default ":latest" tag.
func HasModel(installed []string, name string) bool {
	for _, n := range installed {
		if n == name || n == name+":latest" {
			return true
		}
	}
	return false
}

// MissingModels returns the required models that are not installed, in the
// order they were given. Blank and repeated names are ignored.
func MissingModels(installed, required []string) []string {
	var missing []string
	seen := make(map[string]bool, len(required))
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if !HasModel(installed, name) {
			missing = append(missing, name)
		}
	}
	return missing
}
