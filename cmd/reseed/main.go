// Command reseed replaces the homepage content documents with the default
// seed set. It is intended for provisioning new environments and for
// recovering from bad content edits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/templhub/api/internal/platform/config"
	pfirestore "github.com/templhub/api/internal/platform/firestore"
	"github.com/templhub/api/internal/platform/observability"
	firestoreRepo "github.com/templhub/api/internal/repositories/firestore"
	"github.com/templhub/api/internal/services"
)

func main() {
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline for the reseed run")
	flag.Parse()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	logger = logger.Named("reseed")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	provider := pfirestore.NewProvider(cfg.Firestore)
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := provider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	contentRepo, err := firestoreRepo.NewContentRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise content repository", zap.Error(err))
	}
	contentService, err := services.NewContentService(services.ContentServiceDeps{
		Content: contentRepo,
		Clock:   time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise content service", zap.Error(err))
	}

	sections, err := contentService.Reseed(ctx)
	if err != nil {
		logger.Fatal("reseed failed", zap.Error(err))
	}

	for _, section := range sections {
		logger.Info("section seeded",
			zap.String("section", string(section.ID)),
			zap.Int("order", section.Order),
		)
	}
	logger.Info("homepage reseed complete", zap.Int("sections", len(sections)))
}
