package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/leofalp/chatwire/core/chat"
)

// conversation is the YAML file accepted by --conversation:
//
//	model: gpt-4o
//	system: You are terse.
//	messages:
//	  - role: user
//	    content: What is the capital of Italy?
//	  - role: assistant
//	    content: Rome.
type conversation struct {
	Model    string         `yaml:"model"`
	System   string         `yaml:"system"`
	Messages []chat.Message `yaml:"messages"`
}

func loadConversation(path string) (conversation, error) {
	if path == "" {
		return conversation{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return conversation{}, fmt.Errorf("reading conversation: %w", err)
	}

	var conv conversation
	if err := yaml.Unmarshal(data, &conv); err != nil {
		return conversation{}, fmt.Errorf("parsing conversation %s: %w", path, err)
	}
	return conv, nil
}
