package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/entail/internal/model"
)

// LoadRequest reads a request from a JSON or YAML file, chosen by extension
func LoadRequest(path string) (*model.EvaluationRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}

	var req model.EvaluationRequest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &req)
	default:
		err = json.Unmarshal(data, &req)
	}
	if err != nil {
		return nil, fmt.Errorf("parse request %s: %w", path, err)
	}

	if len(req.Vector) == 0 && len(req.Lexical) == 0 {
		return nil, fmt.Errorf("request %s has no candidate chunks", path)
	}
	if strings.TrimSpace(req.Answer) == "" && len(req.Claims) == 0 {
		return nil, fmt.Errorf("request %s has neither an answer nor claims", path)
	}
	return &req, nil
}
