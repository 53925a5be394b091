package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// mappingValue returns the value node stored under key in a mapping node.
func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// activeCrons parses a workflow and returns on.schedule[*].cron.
func activeCrons(data []byte) ([]string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("parse workflow: empty document")
	}
	on := mappingValue(root.Content[0], "on")
	schedule := mappingValue(on, "schedule")
	if schedule == nil || schedule.Tag == "!!null" {
		return nil, nil
	}
	if schedule.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("on.schedule is not a list")
	}
	var crons []string
	for _, entry := range schedule.Content {
		cron := mappingValue(entry, "cron")
		if cron == nil || cron.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("on.schedule entry without cron")
		}
		crons = append(crons, cron.Value)
	}
	return crons, nil
}
