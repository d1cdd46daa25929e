// Command topic-sweep is the maintenance utility described in spec §6: it
// enumerates every topic visible to the Kafka broker admin client,
// categorizes system/Connect-internal/processor-internal/pipeline-owned
// topics, computes the orphan set against the control plane's own
// pipeline table, and either prints (default, dry-run) or deletes
// (-execute) the orphans. -nuclear deletes every dataflow-prefixed topic
// regardless of the pipeline table and requires -execute.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/bkvaiude/dataflow-ctl/internal/config"
	"github.com/bkvaiude/dataflow-ctl/internal/connectors/broker"
	"github.com/bkvaiude/dataflow-ctl/internal/models"
	"github.com/bkvaiude/dataflow-ctl/internal/storage/postgres"
	"github.com/bkvaiude/dataflow-ctl/internal/topicsweep"
)

func main() {
	execute := flag.Bool("execute", false, "delete orphaned topics instead of printing them (default: dry-run)")
	nuclear := flag.Bool("nuclear", false, "delete every dataflow-prefixed topic regardless of the pipeline table; requires -execute")
	flag.Parse()

	if *nuclear && !*execute {
		fmt.Fprintln(os.Stderr, "-nuclear requires -execute")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := slog.Default()
	if err := run(context.Background(), cfg, log, *execute, *nuclear); err != nil {
		log.Error("topic-sweep failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, execute, nuclear bool) error {
	admin, err := broker.Dial(broker.Config{
		Brokers:  cfg.KafkaBrokers,
		Auth:     broker.AuthMechanism(cfg.KafkaAuth),
		SASLUser: cfg.KafkaSASLUser,
		SASLPass: cfg.KafkaSASLPass,
		TLS:      cfg.KafkaTLS,
		Kerberos: broker.KerberosConfig{
			KrbConfPath: cfg.KafkaKrbConf,
			KeytabPath:  cfg.KafkaKeytab,
			Realm:       cfg.KafkaKrbRealm,
			Username:    cfg.KafkaKrbUser,
			Service:     cfg.KafkaKrbService,
		},
	})
	if err != nil {
		return fmt.Errorf("dial broker admin: %w", err)
	}
	defer admin.Close()

	topicMetas, err := admin.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	names := make([]string, 0, len(topicMetas))
	for _, t := range topicMetas {
		names = append(names, t.Name)
	}
	sort.Strings(names)

	if nuclear {
		targets := topicsweep.NuclearTargets(names)
		return deleteOrPrint(ctx, admin, log, targets, execute, "nuclear")
	}

	store, err := postgres.New(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	pipelines, err := store.ListNonDeletedPipelines(ctx)
	if err != nil {
		return fmt.Errorf("list non-deleted pipelines: %w", err)
	}
	active := make(map[string]bool, len(pipelines)*2)
	for _, p := range pipelines {
		hex := models.PipelineHex(p.ID)
		active["dataflow_"+hex] = true
		active["enriched_"+hex] = true
	}

	report := topicsweep.Categorize(names, active)

	fmt.Printf("system: %d, connect-internal: %d, processor-internal: %d, pipeline-owned: %d, enriched: %d, other: %d\n",
		len(report.System), len(report.ConnectInternal), len(report.ProcessorInternal),
		len(report.PipelineOwned), len(report.Enriched), len(report.Other))

	return deleteOrPrint(ctx, admin, log, report.Orphans, execute, "orphan")
}

func deleteOrPrint(ctx context.Context, admin *broker.Admin, log *slog.Logger, targets []string, execute bool, mode string) error {
	if len(targets) == 0 {
		fmt.Printf("no %s topics found\n", mode)
		return nil
	}

	if !execute {
		fmt.Printf("%d %s topic(s) (dry-run, pass -execute to delete):\n", len(targets), mode)
		for _, name := range targets {
			fmt.Println(" ", name)
		}
		return nil
	}

	var firstErr error
	for _, name := range targets {
		if err := admin.DeleteTopic(ctx, name); err != nil {
			log.Error("failed to delete topic", slog.String("topic", name), slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fmt.Println("deleted", name)
	}
	return firstErr
}
