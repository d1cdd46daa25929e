// Package broker administers Kafka-compatible message brokers on behalf
// of the Pipeline Orchestrator, the Resource Tracker, and the
// topic-sweep operator CLI: topic create/list/describe/delete over
// twmb/franz-go and its kadm admin extension, with SASL-PLAIN or Kerberos
// authentication.
package broker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/kerberos"
	"github.com/twmb/franz-go/pkg/sasl/plain"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// AuthMechanism selects how the admin client authenticates to the brokers.
type AuthMechanism string

const (
	AuthNone      AuthMechanism = "none"
	AuthSASLPlain AuthMechanism = "sasl_plain"
	AuthKerberos  AuthMechanism = "kerberos"
)

// KerberosConfig carries the GSSAPI parameters needed to obtain a ticket
// via gokrb5 when AuthMechanism is AuthKerberos.
type KerberosConfig struct {
	KrbConfPath string
	KeytabPath  string
	Realm       string
	Username    string
	Service     string
}

// Config is the connection and auth parameters for one broker admin session.
type Config struct {
	Brokers  []string
	Auth     AuthMechanism
	SASLUser string
	SASLPass string
	Kerberos KerberosConfig
	TLS      bool
}

// Admin wraps a kadm.Client for topic lifecycle administration.
type Admin struct {
	client *kgo.Client
	admin  *kadm.Client
}

// Dial opens a broker client with no consumer/producer machinery attached,
// suitable only for administrative calls.
func Dial(cfg Config) (*Admin, error) {
	opts := []kgo.Opt{kgo.SeedBrokers(cfg.Brokers...)}

	if cfg.TLS {
		opts = append(opts, kgo.DialTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}))
	}

	saslOpt, err := authOpt(cfg)
	if err != nil {
		return nil, err
	}
	if saslOpt != nil {
		opts = append(opts, saslOpt)
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConnectFailed, err)
	}

	return &Admin{client: cl, admin: kadm.NewClient(cl)}, nil
}

func authOpt(cfg Config) (kgo.Opt, error) {
	switch cfg.Auth {
	case "", AuthNone:
		return nil, nil
	case AuthSASLPlain:
		return kgo.SASL(plain.Auth{User: cfg.SASLUser, Pass: cfg.SASLPass}.AsMechanism()), nil
	case AuthKerberos:
		krbClient, err := newKerberosClient(cfg.Kerberos)
		if err != nil {
			return nil, err
		}
		mechanism := kerberos.Auth{
			Client:           krbClient,
			Service:          cfg.Kerberos.Service,
			PersistAfterAuth: true,
		}.AsMechanism()
		return kgo.SASL(mechanism), nil
	default:
		return nil, fmt.Errorf("%w: unknown auth mechanism %q", models.ErrConnectFailed, cfg.Auth)
	}
}

func newKerberosClient(cfg KerberosConfig) (*client.Client, error) {
	krbCfg, err := config.Load(cfg.KrbConfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: load krb5 config: %v", models.ErrConnectFailed, err)
	}

	kt, err := keytab.Load(cfg.KeytabPath)
	if err != nil {
		return nil, fmt.Errorf("%w: load keytab: %v", models.ErrConnectFailed, err)
	}

	return client.NewWithKeytab(cfg.Username, cfg.Realm, kt, krbCfg, client.DisablePAFXFAST(true)), nil
}

// Close releases the underlying client.
func (a *Admin) Close() {
	a.client.Close()
}

// Topic summarizes one broker topic's provisioning state.
type Topic struct {
	Name       string
	Partitions int
	Replicas   int16
}

// ListTopics enumerates every non-internal topic visible to the admin client.
func (a *Admin) ListTopics(ctx context.Context) ([]Topic, error) {
	metas, err := a.admin.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list topics: %v", models.ErrQueryFailed, err)
	}

	out := make([]Topic, 0, len(metas))
	for name, meta := range metas {
		if meta.Err != nil {
			continue
		}
		var replicas int16
		if len(meta.Partitions) > 0 {
			replicas = int16(len(meta.Partitions[0].Replicas))
		}
		out = append(out, Topic{Name: name, Partitions: len(meta.Partitions), Replicas: replicas})
	}
	return out, nil
}

// CreateTopic provisions a topic, tolerating a "topic already exists" response.
func (a *Admin) CreateTopic(ctx context.Context, name string, partitions int32, replicationFactor int16) error {
	resp, err := a.admin.CreateTopics(ctx, partitions, replicationFactor, nil, name)
	if err != nil {
		return fmt.Errorf("%w: create topic %s: %v", models.ErrQueryFailed, name, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("%w: create topic %s: %v", models.ErrQueryFailed, r.Topic, r.Err)
		}
	}
	return nil
}

// DeleteTopic removes a topic, tolerating an "unknown topic" response so
// teardown remains idempotent against an already-orphaned resource.
func (a *Admin) DeleteTopic(ctx context.Context, name string) error {
	resp, err := a.admin.DeleteTopics(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: delete topic %s: %v", models.ErrQueryFailed, name, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.UnknownTopicOrPartition) {
			return fmt.Errorf("%w: delete topic %s: %v", models.ErrQueryFailed, r.Topic, r.Err)
		}
	}
	return nil
}

// DescribeTopic returns partition/config detail for a single topic.
func (a *Admin) DescribeTopic(ctx context.Context, name string) (*Topic, error) {
	metas, err := a.admin.ListTopics(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: describe topic %s: %v", models.ErrQueryFailed, name, err)
	}
	meta, ok := metas[name]
	if !ok || meta.Err != nil {
		return nil, models.ErrNotFound
	}
	var replicas int16
	if len(meta.Partitions) > 0 {
		replicas = int16(len(meta.Partitions[0].Replicas))
	}
	return &Topic{Name: name, Partitions: len(meta.Partitions), Replicas: replicas}, nil
}
