package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"bidforge_back/bids"
	"bidforge_back/cache"
	"bidforge_back/conflicts"
	"bidforge_back/llm"
	"bidforge_back/logging"
	"bidforge_back/rag"
	"bidforge_back/storage"
)

func mustLoadEnv() {
	_ = godotenv.Load()
}

// main bootstraps the retrieval stack, seeds a small sample corpus and runs
// a verification query so a fresh deployment can be checked end to end.
func main() {
	mustLoadEnv()

	logger, err := logging.New(os.Getenv("APP_MODE"))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(context.Background(), logger); err != nil {
		logger.Fatal("initialization failed", "error", err)
	}
}

func run(ctx context.Context, logger *logging.Logger) error {
	db, err := rag.OpenDatabaseFromEnv()
	if err != nil {
		return err
	}

	embedderCfg := rag.EmbedderConfigFromEnv()
	embedder, err := rag.NewHTTPEmbedder(embedderCfg)
	if err != nil {
		return err
	}

	store, err := rag.NewVectorStoreFromEnv(rag.VectorStoreDeps{
		DB:        db,
		Dimension: embedder.Dimension(),
	})
	if err != nil {
		return err
	}

	chunker, err := rag.ChunkerFromEnv()
	if err != nil {
		return err
	}

	archive, err := storage.NewDocumentArchiveFromEnv()
	if err != nil {
		logger.Warn("document archive disabled", "error", err)
	}
	var archiver rag.SourceArchiver
	if archive != nil {
		archiver = archive
	}

	ingest, err := rag.NewService(db, embedder, store, chunker, archiver, logger, rag.ServiceConfig{
		Dimension:    embedder.Dimension(),
		EmbedWorkers: 4,
	})
	if err != nil {
		return err
	}
	if err := ingest.AutoMigrate(); err != nil {
		return err
	}

	retriever, err := rag.NewRetriever(embedder, store, cacheClient(logger), logger, rag.RetrieverConfig{})
	if err != nil {
		return err
	}

	registry := llm.NewRegistry(llm.RegistryConfigFromEnv())
	generator, err := bids.NewGenerator(db, registry, retriever, logger)
	if err != nil {
		return err
	}
	if err := generator.AutoMigrate(); err != nil {
		return err
	}

	detector, err := conflicts.NewService(db, embedder, conflicts.NewDetector(conflicts.DetectorConfig{}), logger)
	if err != nil {
		return err
	}
	if err := detector.AutoMigrate(); err != nil {
		return err
	}

	logger.Info("retrieval stack initialized",
		"embedding_model", embedderCfg.Model, "dimension", embedder.Dimension())

	if err := seedSampleCorpus(ctx, ingest, logger); err != nil {
		return err
	}

	return verify(ctx, retriever, ingest, detector, logger)
}

func cacheClient(logger *logging.Logger) *redis.Client {
	client, err := cache.NewClient(cache.ConfigFromEnv())
	if err != nil {
		// Retrieval works without the cache, each query just embeds fresh.
		logger.Warn("query embedding cache disabled", "error", err)
		return nil
	}
	return client
}

const sampleProjectID = 1

// seedSampleCorpus indexes two sample RFQs and two historical winning bids
// so verification queries have something to hit.
func seedSampleCorpus(ctx context.Context, ingest *rag.Service, logger *logging.Logger) error {
	samples := []rag.DocumentInput{
		{
			ProjectID:  sampleProjectID,
			FileName:   "rfq_dubai_marina_001.txt",
			FileType:   "txt",
			Collection: rag.CollectionRFQ,
			Content: `REQUEST FOR QUOTATION - Commercial Building Construction

Project: Dubai Marina Tower Complex
Scope of Work: construction of a 45-story mixed-use tower with a total
built-up area of 850,000 sq ft, including residential units, retail spaces
and parking. High-end finishes, LEED Gold certification required.

Technical Requirements: piled foundation with basement levels, reinforced
concrete frame with steel elements, curtain wall facade with
energy-efficient glazing, full HVAC, electrical, plumbing and fire safety
systems.

Timeline: 24 months from mobilization
Budget Range: $10M - $15M`,
		},
		{
			ProjectID:  sampleProjectID,
			FileName:   "rfq_highway_002.txt",
			FileType:   "txt",
			Collection: rag.CollectionRFQ,
			Content: `REQUEST FOR PROPOSAL - Infrastructure Project

Project: Abu Dhabi Highway Extension
Scope of Work: extension of the existing highway network by 15 km as a
6-lane expressway with emergency lanes, 3 major interchanges with ramps,
street lighting, road signage, drainage and utilities relocation.

Technical Requirements: asphalt concrete pavement design, bridge
construction for 2 overpasses, traffic management during construction and
environmental impact mitigation.

Timeline: 18 months
Budget Range: $25M - $30M`,
		},
		{
			ProjectID:  sampleProjectID,
			FileName:   "bid_luxury_tower_win.txt",
			FileType:   "txt",
			Collection: rag.CollectionBids,
			Content: `WINNING BID PROPOSAL - Luxury Residential Tower

Executive Summary: with 20+ years of experience in high-rise construction
across the GCC region, we bring proven expertise in delivering luxury
projects on time and within budget.

Technical Approach: phased construction methodology using BIM
coordination, just-in-time material delivery, prefabricated components and
an ISO 9001 quality management system.

Timeline: 22 months (2 months ahead of schedule)
Total Investment: $12.5M (within budget)

Risk Mitigation: comprehensive insurance coverage, weather contingency
planning, supply chain backup vendors and weekly progress reporting.`,
		},
		{
			ProjectID:  sampleProjectID,
			FileName:   "bid_highway_infra.txt",
			FileType:   "txt",
			Collection: rag.CollectionBids,
			Content: `PROPOSAL - Highway Infrastructure Development

Company Qualifications: a leading infrastructure contractor in the Middle
East with over 200 km of completed highway projects across the UAE and GCC
region.

Technical Methodology: survey and planning in weeks 1-4, earthworks and
foundation in months 2-6, pavement construction in months 7-14 and
finishing works in months 15-18 covering road markings, signage, lighting
and landscaping.`,
		},
	}

	indexed := 0
	for _, sample := range samples {
		if _, err := ingest.IngestDocumentSync(ctx, sample); err != nil {
			return err
		}
		indexed++
	}
	logger.Info("sample corpus indexed", "documents", indexed)
	return nil
}

// verify runs one retrieval round-trip, a conflict detection pass and a
// stats readout.
func verify(ctx context.Context, retriever *rag.Retriever, ingest *rag.Service, detector *conflicts.Service, logger *logging.Logger) error {
	bidContext, err := retriever.GetContext(ctx,
		"highway construction project with asphalt paving",
		rag.Scope{ProjectID: sampleProjectID}, 0, 0)
	if err != nil {
		return err
	}
	logger.Info("verification query succeeded",
		"historical_bids", len(bidContext.HistoricalBids),
		"similar_rfqs", len(bidContext.SimilarRFQs))

	found, err := detector.Run(ctx, sampleProjectID)
	if err != nil {
		return err
	}
	logger.Info("conflict detection pass finished", "conflicts", len(found))

	stats, err := ingest.Stats(ctx)
	if err != nil {
		return err
	}
	for collection, count := range stats.Chunks {
		logger.Info("collection ready", "collection", collection, "chunks", count)
	}
	return nil
}
