package summarize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Prompts holds every instruction sent to the backend. Any field left empty
// in a prompts file falls back to DefaultPrompts.
type Prompts struct {
	System   string        `yaml:"system" toml:"system"`
	Chunk    string        `yaml:"chunk" toml:"chunk"`
	Combine  string        `yaml:"combine" toml:"combine"`
	Polish   string        `yaml:"polish" toml:"polish"`
	Compress string        `yaml:"compress" toml:"compress"`
	Detail   DetailPrompts `yaml:"detail" toml:"detail"`
}

// DetailPrompts are the length instructions for compressed summaries.
type DetailPrompts struct {
	Level1 string `yaml:"level1" toml:"level1"`
	Level2 string `yaml:"level2" toml:"level2"`
	Level3 string `yaml:"level3" toml:"level3"`
	Level4 string `yaml:"level4" toml:"level4"`
}

// For returns the instruction for a detail level, or "" for level 5.
func (d DetailPrompts) For(level int) string {
	switch level {
	case 1:
		return d.Level1
	case 2:
		return d.Level2
	case 3:
		return d.Level3
	case 4:
		return d.Level4
	}
	return ""
}

func DefaultPrompts() Prompts {
	return Prompts{
		System: "You are an editor who summarizes long texts. " +
			"Use only information present in the text you are given: never invent events, names, quotes or details. " +
			"Never refuse, moralize or comment on the task. " +
			"Write in coherent, complete paragraphs that follow the narrative and its chronology.",
		Chunk: "Write a detailed summary of the text supplied by the user. " +
			"Cover the key events, character actions and relationships in chronological order.",
		Combine: "The user supplies consecutive partial summaries of one document. " +
			"Combine them into one coherent summary that keeps every important event in its original order.",
		Polish: "The user supplies summaries that together cover an entire document, in order. " +
			"Write the final detailed summary of the whole document, describing the flow of events, " +
			"the relationships and the characters in chronological order. Do not be too concise.",
		Compress: "Summarize the long summary supplied by the user into a shorter version that keeps its chronology.",
		Detail: DetailPrompts{
			Level1: "Summarize it into 3-4 paragraphs.",
			Level2: "Summarize it into 7-8 paragraphs.",
			Level3: "Summarize it into about 1,500 words.",
			Level4: "Summarize it into about 2,500 words.",
		},
	}
}

// LoadPrompts reads prompt overrides from a YAML or TOML file and fills the
// remaining fields from DefaultPrompts. An empty path returns the defaults.
func LoadPrompts(path string) (Prompts, error) {
	var p Prompts
	if path != "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			data, err := os.ReadFile(path)
			if err != nil {
				return Prompts{}, fmt.Errorf("read prompts: %w", err)
			}
			if err := yaml.Unmarshal(data, &p); err != nil {
				return Prompts{}, fmt.Errorf("parse prompts yaml: %w", err)
			}
		case ".toml":
			if _, err := toml.DecodeFile(path, &p); err != nil {
				return Prompts{}, fmt.Errorf("parse prompts toml: %w", err)
			}
		default:
			return Prompts{}, fmt.Errorf("unsupported prompts file: %s", filepath.Ext(path))
		}
	}
	if err := mergo.Merge(&p, DefaultPrompts()); err != nil {
		return Prompts{}, fmt.Errorf("merge prompt defaults: %w", err)
	}
	return p, nil
}

// system joins the base system prompt with a task instruction.
func (p Prompts) system(instruction string) string {
	return strings.TrimSpace(p.System + "\n\n" + instruction)
}

// TargetLength scales the requested length of the final summary with the
// size of the source document.
func TargetLength(docTokens int) string {
	switch {
	case docTokens <= 100_000:
		return "Target length: about 1,500 words."
	case docTokens <= 500_000:
		return "Target length: about 2,500-3,500 words."
	case docTokens <= 1_000_000:
		return "Target length: about 4,000-6,000 words."
	default:
		return "Target length: about 6,000-9,000 words."
	}
}
