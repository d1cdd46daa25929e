// Package vault implements the Credential Vault: authenticated
// encryption, storage, retrieval, and connectivity-probe of
// source-database credentials.
package vault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bkvaiude/dataflow-ctl/internal/connectors/sourcedb"
	"github.com/bkvaiude/dataflow-ctl/internal/encryption"
	"github.com/bkvaiude/dataflow-ctl/internal/models"
	"github.com/goccy/go-json"
)

const gcmNonceSize = 12
const gcmTagSize = 16

// Store is the persistence dependency the Vault needs from the repository
// layer, narrowed to exactly the credential operations it drives.
type Store interface {
	CreateCredential(ctx context.Context, c *models.Credential) (string, error)
	GetCredential(ctx context.Context, id string) (*models.Credential, error)
	ListCredentials(ctx context.Context, owner string) ([]models.Credential, error)
	UpdateCredentialValidation(ctx context.Context, id string, state models.CredentialValidationState) error
	DeleteCredential(ctx context.Context, id string) error
}

// Vault seals, stores, and opens source-database credentials.
type Vault struct {
	enc   *encryption.Service
	store Store
	log   *slog.Logger

	probeTimeout time.Duration
}

// New constructs a Vault from process-wide key material (32 bytes, loaded
// once at startup and never rotated mid-process).
func New(key []byte, store Store, probeTimeout time.Duration, log *slog.Logger) (*Vault, error) {
	enc, err := encryption.NewService(key)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}
	return &Vault{enc: enc, store: store, log: log, probeTimeout: probeTimeout}, nil
}

// StoreRequest is the input to Store: a plaintext secret plus whether to
// probe it before sealing.
type StoreRequest struct {
	Owner      string
	Name       string
	SourceKind string
	Secret     models.CredentialSecret
	Probe      bool
}

// Store seals and persists a credential, optionally probing connectivity
// first. The returned record never carries the plaintext secret.
func (v *Vault) Store(ctx context.Context, req StoreRequest) (*models.Credential, error) {
	if req.Probe {
		if _, err := v.Test(ctx, req.SourceKind, req.Secret); err != nil {
			return nil, err
		}
	}

	plaintext, err := json.Marshal(req.Secret)
	if err != nil {
		return nil, fmt.Errorf("marshal secret: %w", err)
	}

	sealed, err := v.enc.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("seal secret: %w", err)
	}
	if len(sealed) < gcmNonceSize+gcmTagSize {
		return nil, fmt.Errorf("%w: sealed payload too short", models.ErrDecryptionFailed)
	}

	iv := sealed[:gcmNonceSize]
	body := sealed[gcmNonceSize:]
	ciphertext := body[:len(body)-gcmTagSize]
	tag := body[len(body)-gcmTagSize:]

	cred := &models.Credential{
		Owner:           req.Owner,
		Name:            req.Name,
		SourceKind:      req.SourceKind,
		Ciphertext:      ciphertext,
		IV:              iv,
		Tag:             tag,
		DisplayHost:     req.Secret.Host,
		DisplayPort:     req.Secret.Port,
		DisplayDB:       req.Secret.Database,
		ValidationState: models.CredentialUnvalidated,
	}
	if req.Probe {
		cred.ValidationState = models.CredentialValid
	}

	id, err := v.store.CreateCredential(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("persist credential: %w", err)
	}
	cred.ID = id

	v.log.InfoContext(ctx, "credential stored", slog.String("credential_id", id), slog.String("owner", req.Owner))
	return cred, nil
}

// Open decrypts and returns a credential's plaintext secret. The plaintext
// is returned only to the immediate caller and must never be logged or
// persisted elsewhere.
func (v *Vault) Open(ctx context.Context, owner, id string) (*models.CredentialSecret, error) {
	cred, err := v.store.GetCredential(ctx, id)
	if err != nil {
		return nil, err
	}
	if cred.Owner != owner {
		return nil, models.ErrNotFound
	}

	sealed := make([]byte, 0, len(cred.IV)+len(cred.Ciphertext)+len(cred.Tag))
	sealed = append(sealed, cred.IV...)
	sealed = append(sealed, cred.Ciphertext...)
	sealed = append(sealed, cred.Tag...)

	plaintext, err := v.enc.Decrypt(sealed)
	if err != nil {
		v.log.ErrorContext(ctx, "credential decryption failed", slog.String("credential_id", id))
		return nil, models.ErrDecryptionFailed
	}

	var secret models.CredentialSecret
	if err := json.Unmarshal(plaintext, &secret); err != nil {
		return nil, fmt.Errorf("unmarshal secret: %w", err)
	}

	return &secret, nil
}

// List returns every credential owned by owner, without the plaintext secret.
func (v *Vault) List(ctx context.Context, owner string) ([]models.Credential, error) {
	return v.store.ListCredentials(ctx, owner)
}

// Delete removes a credential. Callers must ensure no live pipeline still
// references it before calling (enforced again at the storage layer).
func (v *Vault) Delete(ctx context.Context, id string) error {
	return v.store.DeleteCredential(ctx, id)
}

// GetCredential returns one credential's display metadata (no plaintext
// secret), delegating straight to the store. Lets *Vault satisfy
// orchestrator.Credentials on its own, without a separate read path.
func (v *Vault) GetCredential(ctx context.Context, id string) (*models.Credential, error) {
	return v.store.GetCredential(ctx, id)
}

// ProbeResult is the outcome of a connectivity test against a source.
type ProbeResult struct {
	Success bool
	Version string
	Error   string
}

// Test opens a short-timeout connection to the source and runs a trivial
// probe query. Results are never persisted by this call — only Store's
// optional probe path records ValidationState.
func (v *Vault) Test(ctx context.Context, sourceKind string, secret models.CredentialSecret) (ProbeResult, error) {
	conn, err := sourcedb.Dial(ctx, secret, v.probeTimeout)
	if err != nil {
		return ProbeResult{Success: false, Error: err.Error()}, fmt.Errorf("%w: %v", models.ErrInvalidCredentials, err)
	}
	defer conn.Close()

	version, err := conn.ServerVersion(ctx)
	if err != nil {
		return ProbeResult{Success: false, Error: err.Error()}, fmt.Errorf("%w: %v", models.ErrInvalidCredentials, err)
	}

	return ProbeResult{Success: true, Version: version}, nil
}
