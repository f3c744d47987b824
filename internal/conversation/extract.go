// Package conversation turns exported chat conversation trees into ordered
// prompt/response records.
package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperengineering/recollect/internal/apperr"
)

const opExtract = "conversation.extract"

// Stats summarises an extraction run.
type Stats struct {
	Trees      int `json:"trees"`
	Skipped    int `json:"skipped"`
	Pairs      int `json:"pairs"`
	Overwrites int `json:"overwrites"`
}

// Parse decodes a raw export. The export must be a JSON array of trees.
func Parse(raw []byte) ([]Tree, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, apperr.Msg(apperr.Validation, opExtract, "conversations data must be a list")
	}
	var trees []Tree
	if err := json.Unmarshal(trimmed, &trees); err != nil {
		return nil, apperr.New(apperr.Validation, opExtract, fmt.Errorf("decode conversations: %w", err))
	}
	return trees, nil
}

// Extract parses raw and runs ExtractTrees on the result.
func Extract(raw []byte) (*Record, Stats, error) {
	trees, err := Parse(raw)
	if err != nil {
		return nil, Stats{}, err
	}
	return ExtractTrees(trees)
}

// ExtractTrees walks each tree's nodes in order. A user message becomes the
// current prompt; the next non-system message with text is stored as its
// response. A prompt answered more than once keeps only the last response.
func ExtractTrees(trees []Tree) (*Record, Stats, error) {
	record := NewRecord()
	var stats Stats

	for _, tree := range trees {
		if tree.Mapping == nil {
			stats.Skipped++
			continue
		}
		stats.Trees++

		prompt, havePrompt := "", false
		for _, node := range tree.Mapping.Nodes {
			if node.Message == nil {
				continue
			}
			text := node.Message.Text()
			if strings.TrimSpace(text) == "" {
				continue
			}
			switch role := node.Message.Author.Role; {
			case role == RoleUser:
				prompt, havePrompt = text, true
			case role != RoleSystem && havePrompt:
				if record.Set(prompt, text) {
					stats.Overwrites++
				}
			}
		}
	}

	if record.Len() == 0 {
		return nil, stats, apperr.Msg(apperr.Validation, opExtract, "no valid conversations found in the data")
	}
	stats.Pairs = record.Len()
	return record, stats, nil
}
