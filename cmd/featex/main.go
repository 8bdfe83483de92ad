package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/renjie/featex/internal/config"
	"github.com/renjie/featex/internal/core/domain"
	"github.com/renjie/featex/internal/core/ports"
	"github.com/renjie/featex/internal/core/services"
	"github.com/renjie/featex/pkg/adapters/archive"
	"github.com/renjie/featex/pkg/adapters/fetch"
	"github.com/renjie/featex/pkg/adapters/ingest"
	"github.com/renjie/featex/pkg/adapters/output"
)

func main() {
	configPath := flag.String("config", "", "path to featex.yaml (optional)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, log); err != nil {
		log.Fatalw("run failed", "error", err)
	}
}

func run(ctx context.Context, configPath string, log *zap.SugaredLogger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	archivePath := filepath.Join(cfg.DataPath, cfg.ArchiveFile)
	fetcher := fetch.NewHTTPFetcher(log)
	if err := fetcher.Ensure(ctx, cfg.ArchiveURL+cfg.ArchiveFile, archivePath); err != nil {
		return err
	}

	thresholds := cfg.ThresholdTable()
	base := cfg.ArchiveFile[:len(cfg.ArchiveFile)-len(filepath.Ext(cfg.ArchiveFile))]

	for _, gs := range cfg.Granularities {
		g, err := domain.ParseGranularity(gs)
		if err != nil {
			return err
		}
		// 每个粒度产出两套矩阵: 全量、以及剔除停机记录后的 only-on
		for _, mode := range []struct {
			suffix string
			prune  bool
		}{
			{suffix: "all", prune: false},
			{suffix: "only-on", prune: true},
		} {
			outDir := filepath.Join(cfg.DataPath,
				fmt.Sprintf("%s_features_%s_%s_%s-agg", base, cfg.OutputVersion, mode.suffix, gs))
			if err := processArchive(ctx, archivePath, outDir, g, mode.prune, cfg, thresholds, log); err != nil {
				return err
			}
		}
	}
	return nil
}

// processArchive 以一种粒度/过滤组合跑完档案内的全部实体
func processArchive(ctx context.Context, archivePath, outDir string, g domain.Granularity, prune bool, cfg *config.Config, thresholds domain.ThresholdTable, log *zap.SugaredLogger) error {
	provider, err := archive.OpenZip(archivePath)
	if err != nil {
		return err
	}
	defer provider.Close()

	entities := provider.Entities()
	log.Infof("found %d files", len(entities))

	source := ingest.NewCSVSource(log)
	sink := output.NewCSVSink(outDir)
	extractor := services.NewExtractor(
		services.WithGranularity(g),
		services.WithWorkers(cfg.Workers),
		services.WithFiltering(prune),
		services.WithWinterChangeDay(cfg.WinterChange),
		services.WithLogger(log),
	)

	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := processEntity(ctx, provider, source, sink, extractor, entity, thresholds, log); err != nil {
			// 致命实体错误已携带实体身份；记录后继续处理剩余实体
			log.Errorw("entity failed", "error", err)
		}
	}

	zipPath, err := output.CompressDir(outDir)
	if err != nil {
		return err
	}
	log.Infof("finished, output archive %q", zipPath)
	return nil
}

func processEntity(ctx context.Context, provider ports.ArchiveProvider, source ports.RecordSource, sink ports.MatrixSink, extractor ports.FeatureExtractor, entity string, thresholds domain.ThresholdTable, log *zap.SugaredLogger) error {
	ctx = domain.NewContext(ctx, domain.NewRunInfo(entity))
	log.Infof("start processing %s", entity)

	profile, err := domain.ResolveProfile(entity, thresholds)
	if err != nil {
		return domain.WrapEntity(entity, err)
	}

	stream, err := provider.Open(entity)
	if err != nil {
		return domain.WrapEntity(entity, err)
	}
	records, err := source.Read(ctx, stream, profile)
	stream.Close()
	if err != nil {
		return domain.WrapEntity(entity, err)
	}

	matrix, err := extractor.Extract(ctx, records, profile)
	if errors.Is(err, domain.ErrEmptyAfterFilter) {
		log.Infof("no data left after pruning, skipping %s", entity)
		return nil
	}
	if err != nil {
		return domain.WrapEntity(entity, err)
	}

	if err := sink.Write(ctx, entity, matrix); err != nil {
		return domain.WrapEntity(entity, err)
	}
	log.Infof("finished processing %s", entity)
	return nil
}
