package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Task is one simulated unit of work shown as a sticky block.
type Task struct {
	Name     string `yaml:"name"`
	Duration string `yaml:"duration"` // parsed as time.Duration
}

// Config is the demo's config file shape: a flat list of tasks plus the
// interval the watch loop polls them at.
type Config struct {
	Interval string `yaml:"interval"`
	Tasks    []Task `yaml:"tasks"`
}

func defaultConfig() Config {
	return Config{
		Interval: "400ms",
		Tasks: []Task{
			{Name: "compile", Duration: "3s"},
			{Name: "test", Duration: "5s"},
			{Name: "package", Duration: "2s"},
			{Name: "upload", Duration: "4s"},
		},
	}
}

func loadConfig(path string) (Config, error) {
	if path == "" {
		return defaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if len(cfg.Tasks) == 0 {
		cfg.Tasks = defaultConfig().Tasks
	}
	return cfg, nil
}
