package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/bkvaiude/dataflow-ctl/internal/alert"
	"github.com/bkvaiude/dataflow-ctl/internal/anomaly"
	"github.com/bkvaiude/dataflow-ctl/internal/api"
	"github.com/bkvaiude/dataflow-ctl/internal/config"
	"github.com/bkvaiude/dataflow-ctl/internal/connectors/broker"
	"github.com/bkvaiude/dataflow-ctl/internal/connectors/connect"
	"github.com/bkvaiude/dataflow-ctl/internal/connectors/notify"
	schemareg "github.com/bkvaiude/dataflow-ctl/internal/connectors/registry"
	"github.com/bkvaiude/dataflow-ctl/internal/connectors/streamproc"
	connwarehouse "github.com/bkvaiude/dataflow-ctl/internal/connectors/warehouse"
	"github.com/bkvaiude/dataflow-ctl/internal/conversation"
	"github.com/bkvaiude/dataflow-ctl/internal/cost"
	"github.com/bkvaiude/dataflow-ctl/internal/discovery"
	"github.com/bkvaiude/dataflow-ctl/internal/models"
	"github.com/bkvaiude/dataflow-ctl/internal/monitor"
	"github.com/bkvaiude/dataflow-ctl/internal/orchestrator"
	"github.com/bkvaiude/dataflow-ctl/internal/readiness"
	"github.com/bkvaiude/dataflow-ctl/internal/registry"
	"github.com/bkvaiude/dataflow-ctl/internal/storage/postgres"
	"github.com/bkvaiude/dataflow-ctl/internal/tracker"
	"github.com/bkvaiude/dataflow-ctl/internal/vault"
	"github.com/bkvaiude/dataflow-ctl/internal/warehouse"
	"github.com/bkvaiude/dataflow-ctl/pkg/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("unable to parse config", slog.Any("error", err))
		os.Exit(1)
	}

	if err := mainErr(cfg); err != nil {
		slog.Error("service stopped with error", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("service terminated gracefully")
}

func mainErr(cfg *config.Config) error {
	log := observability.ConfigureLogger(&observability.Config{
		LogFormat:    cfg.LogFormat,
		LogLevel:     cfg.LogLevel,
		LogAddSource: cfg.LogAddSource,
	}, os.Stdout)

	meter := observability.ConfigureMeter(&observability.Config{MetricsEnabled: cfg.OTELMetricsEnabled}, log)

	ctx := context.Background()

	store, err := postgres.New(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}

	keyBytes, err := decodeVaultKey(cfg.VaultEncryptionKey)
	if err != nil {
		return fmt.Errorf("vault encryption key: %w", err)
	}
	cv, err := vault.New(keyBytes, store, cfg.ReadinessTimeout, log)
	if err != nil {
		return fmt.Errorf("construct vault: %w", err)
	}

	reg, err := registry.Load(os.DirFS(cfg.ConfigDir), "sources", "sinks", "transforms")
	if err != nil {
		return fmt.Errorf("load module registry: %w", err)
	}

	prober := readiness.New(cv, reg, cfg.ReadinessTimeout, log)
	disco := discovery.New(cv, store, cfg.ReadinessTimeout, log)

	connectClient := connect.New(cfg.KafkaConnectURL, cfg.BrokerAdminTimeout)
	proc := streamproc.New(cfg.KsqlDBURL, cfg.BrokerAdminTimeout)

	wh := warehouse.New(log)
	if cfg.ClickHouseDSN != "" {
		if shCfg, err := parseClickHouseDSN(cfg.ClickHouseDSN); err != nil {
			log.Warn("ignoring malformed CLICKHOUSE_DSN", slog.Any("error", err))
		} else if err := wh.CheckAvailability(ctx, shCfg); err != nil {
			log.Warn("default sink warehouse unreachable at startup", slog.Any("error", err))
		}
	}

	brokerAdmin, err := broker.Dial(brokerConfig(cfg))
	if err != nil {
		return fmt.Errorf("dial kafka broker admin: %w", err)
	}
	defer brokerAdmin.Close()

	trk := tracker.New(store)
	costEst := cost.New(reg)
	anomalyEngine := anomaly.New()

	mailer := notify.New(notify.Config{
		Host: cfg.SMTPHost, Port: cfg.SMTPPort,
		Username: cfg.SMTPUser, Password: cfg.SMTPPass, From: cfg.SMTPFrom,
	})
	dispatcher := alert.New(store, mailer, log)

	var schemaRegClient orchestrator.SchemaRegistry
	if cfg.SchemaRegistryURL != "" {
		client, err := schemareg.NewSchemaRegistryClient(models.SchemaRegistryConfig{
			URL: cfg.SchemaRegistryURL, APIKey: cfg.SchemaRegistryKey, APISecret: cfg.SchemaRegistrySecret,
		})
		if err != nil {
			log.Warn("schema registry client unavailable, base streams will always redeclare columns", slog.Any("error", err))
		} else {
			schemaRegClient = client
		}
	}

	orch := orchestrator.New(orchestrator.Deps{
		Store: store, Credentials: cv, Registry: reg, Templates: store,
		Connect: connectClient, StreamProcessor: proc, Warehouse: wh,
		Topics: brokerAdmin, Tracker: trk, CostEstimator: costEst, Discovery: disco,
		SchemaRegistry:    schemaRegClient,
		SchemaRegistryURL: cfg.SchemaRegistryURL, Log: log,
	})

	mon := monitor.New(monitor.Deps{
		Store: store, Creds: cv, Rules: store, Dispatch: dispatcher,
		Gatherer: monitor.SourceGatherer{DialTimeout: cfg.ReadinessTimeout},
		Engine:   anomalyEngine, Interval: cfg.MonitorInterval, Log: log,
	})

	cursorStore, err := conversation.OpenCursorStore(cfg.ConversationCursorPath)
	if err != nil {
		return fmt.Errorf("open conversation cursor store: %w", err)
	}
	defer cursorStore.Close()
	_ = conversation.NewSession(cursorStore)

	handler := api.NewRouter(log, store, trk, mon, orch, prober, meter)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	go mon.Run(monitorCtx)

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		cancelMonitor()
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-shutdown:
		log.Info("received termination signal, shutting down")

		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Error("failed to shut down http server", slog.Any("error", err))
			}
		}()

		go func() {
			defer wg.Done()
			cancelMonitor()
		}()

		wg.Wait()
		return nil
	}
}

func decodeVaultKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return key, nil
}

func brokerConfig(cfg *config.Config) broker.Config {
	return broker.Config{
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
	}
}

func parseClickHouseDSN(dsn string) (connwarehouse.Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return connwarehouse.Config{}, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	port := u.Port()
	if port == "" {
		port = "9000"
	}
	password, _ := u.User.Password()
	database := ""
	if len(u.Path) > 1 {
		database = u.Path[1:]
	}
	secure, _ := strconv.ParseBool(u.Query().Get("secure"))
	return connwarehouse.Config{
		Host:     u.Hostname(),
		Port:     port,
		Username: u.User.Username(),
		Password: password,
		Database: database,
		Secure:   secure,
	}, nil
}
