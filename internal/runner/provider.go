package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"s3bench/internal/config"
	"s3bench/internal/credentials"
	"s3bench/internal/dataset"
	"s3bench/internal/events"
	"s3bench/internal/logging"
	"s3bench/internal/metrics"
	"s3bench/internal/runstate"
	"s3bench/internal/storageclient"
)

// RunProviders executes the benchmark for each configured provider in turn,
// strictly sequentially so one provider's traffic never skews another's
// latencies. only restricts execution to a single provider id; profile
// overrides the per-provider credentials profile.
func RunProviders(ctx context.Context, cfg *config.Config, resolver *credentials.Resolver, only, profile string) error {
	log := logging.Component("runner")

	manifest, err := dataset.LoadManifest(cfg.Dataset.DataPath)
	if err != nil {
		return fmt.Errorf("no usable dataset at %s (run generate first): %w", cfg.Dataset.DataPath, err)
	}
	if m := metrics.Get(); m != nil {
		m.SetDataset(len(manifest.Files), manifest.TotalBytes())
	}

	providers := cfg.Providers
	if only != "" {
		p, err := cfg.Provider(only)
		if err != nil {
			return err
		}
		providers = []config.ProviderConfig{p}
	}

	for _, provider := range providers {
		if err := runOne(ctx, cfg, resolver, provider, profile, manifest); err != nil {
			return fmt.Errorf("provider %s: %w", provider.ID, err)
		}
		log.Info("provider run finished", "provider", provider.ID)
	}
	return nil
}

// runOne resolves credentials, builds the storage client and event stream for
// one provider, and drives the state machine.
func runOne(ctx context.Context, cfg *config.Config, resolver *credentials.Resolver,
	provider config.ProviderConfig, profile string, manifest *dataset.Manifest) error {

	clientCfg := storageclient.Config{
		Backend:     provider.Client,
		Endpoint:    provider.Endpoint,
		Region:      provider.Region,
		Bucket:      provider.Bucket,
		InsecureSSL: provider.InsecureSSL,
	}

	// The blob backend carries its own configuration in the bucket URL; only
	// the SDK client needs an explicit access/secret pair.
	if provider.Client == "s3" {
		if profile == "" {
			profile = provider.Profile
		}
		creds, err := resolver.Resolve(ctx, provider.Namespace, profile)
		if err != nil {
			return err
		}
		clientCfg.Credentials = creds
	}

	client, err := storageclient.New(ctx, clientCfg)
	if err != nil {
		return err
	}
	defer client.Close()

	streamPath := filepath.Join(cfg.Dataset.DataPath, provider.ID+".ndjson")
	writer, err := events.NewWriter(streamPath)
	if err != nil {
		return err
	}
	defer writer.Close()

	r := New(cfg, provider, manifest, client, writer)
	started := time.Now().UTC()
	runErr := r.Run(ctx)

	st := &runstate.State{
		Provider:    provider.ID,
		RunID:       r.RunID(),
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
		Completed:   runErr == nil,
		EventStream: streamPath,
	}
	if runErr != nil {
		st.Error = runErr.Error()
	}
	if err := runstate.Save(cfg.Dataset.DataPath, st); err != nil {
		logging.Component("runner").Warn("failed to save run state", "provider", provider.ID, "error", err)
	}

	return runErr
}
