package feed

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"newsd/app/database"
)

// Seed is one subscription from the seeds file.
type Seed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type seedsFile struct {
	Feeds []Seed `yaml:"feeds"`
}

// LoadSeeds reads a YAML subscription list.
func LoadSeeds(path string) ([]Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seeds file: %w", err)
	}

	var parsed seedsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse seeds file: %w", err)
	}

	seeds := parsed.Feeds[:0]
	for _, seed := range parsed.Feeds {
		if seed.URL == "" {
			slog.Warn("Skipping seed without URL", "name", seed.Name)
			continue
		}
		seeds = append(seeds, seed)
	}
	return seeds, nil
}

// ImportSeeds subscribes to every seed not already present. Existing
// subscriptions are left alone.
func ImportSeeds(ctx context.Context, feeds database.FeedRepository, r *Refresher, seeds []Seed) error {
	for _, seed := range seeds {
		resolved, err := ResolveURL(seed.URL)
		if err != nil {
			slog.Warn("Skipping invalid seed", "url", seed.URL, "error", err)
			continue
		}

		existing, err := feeds.GetFeedByURL(ctx, resolved)
		if err != nil {
			return fmt.Errorf("failed to look up seed feed: %w", err)
		}
		if existing != nil {
			continue
		}

		if _, _, err := r.Subscribe(ctx, seed.URL, seed.Name); err != nil {
			slog.Warn("Failed to subscribe to seed", "url", seed.URL, "error", err)
		}
	}
	return nil
}
