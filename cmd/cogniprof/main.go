// Command cogniprof aggregates per-document analysis records into entity
// profiles and compares them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-labs/cogniprof/internal/adapters/driven/ai"
	"github.com/custodia-labs/cogniprof/internal/adapters/driven/config/file"
	"github.com/custodia-labs/cogniprof/internal/adapters/driven/flatindex"
	"github.com/custodia-labs/cogniprof/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/cogniprof/internal/adapters/driven/vectorfile"
	"github.com/custodia-labs/cogniprof/internal/adapters/driving/cli"
	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driven"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driving"
	"github.com/custodia-labs/cogniprof/internal/core/services"
	"github.com/custodia-labs/cogniprof/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetBootstrap(bootstrap)
	if err := cli.Execute(ctx); err != nil {
		if !errors.Is(err, cli.ErrPartialFailure) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1) //nolint:gocritic
	}
}

// bootstrap wires the adapters into the services. The returned func closes
// the store, the indexes and the embedder.
func bootstrap(configDir string) (*cli.Services, func(), error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("resolving home directory: %w", err)
		}
		configDir = filepath.Join(home, ".cogniprof")
	}

	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator(), filepath.Join(configDir, "data"))
	settings, err := settingsService.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("loading settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid settings: %w", err)
	}

	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("close: %v", err)
			}
		}
	}

	store, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	closers = append(closers, store.Close)

	vectors, err := vectorfile.New(settings.VectorDir())
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	profileIndex, err := flatindex.New(settings.Index.Dir, services.ProfileIndexName)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	closers = append(closers, profileIndex.Close)

	var (
		signatureIndex driven.VectorIndex
		embedder       driven.EmbeddingService
	)
	emb, err := ai.CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		logger.Warn("Embedding provider disabled: %v", err)
	}
	if emb != nil {
		idx, err := flatindex.New(settings.Index.Dir, services.SignatureIndexName)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, idx.Close, emb.Close)
		signatureIndex, embedder = idx, emb
	}

	manifest := domain.DefaultManifest()
	vectorizer := services.NewVectorizer(manifest)
	clock := services.SystemClock{}
	locks := services.NewEntityLocks()

	records := store.RecordStore()
	profiles := store.ProfileStore()
	lines := store.LineStore()

	aggregator := services.NewAggregatorService(records, profiles, vectors, vectorizer, services.AggregatorOptions{
		Confidence: domain.ConfidenceModelByName(settings.Profile.ConfidenceModel),
		TopTopics:  settings.Profile.TopTopics,
		Workers:    settings.Batch.Workers,
		Clock:      clock,
		Locks:      locks,
	})
	lineService := services.NewLineService(records, lines, clock, locks, settings.Batch.Workers, driving.LineOptions{
		MinGroupSize: settings.Lines.MinGroupSize,
		MissingRatio: settings.Lines.MissingRatio,
	})
	indexService := services.NewIndexService(profiles, vectors, vectorizer, profileIndex, signatureIndex, embedder,
		services.IndexOptions{QueryTimeout: settings.Index.QueryTimeout})

	logger.Debug("Data directory: %s", settings.DataDir)
	logger.Debug("Index directory: %s", settings.Index.Dir)

	return &cli.Services{
		Ingest:     services.NewIngestService(records, clock),
		Aggregator: aggregator,
		Lines:      lineService,
		Reader:     services.NewProfileReaderService(profiles, lines),
		Similarity: services.NewSimilarityService(profiles, vectorizer),
		Index:      indexService,
		Settings:   settingsService,
	}, closeAll, nil
}
