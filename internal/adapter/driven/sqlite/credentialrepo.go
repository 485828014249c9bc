package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/brewlink/brewlink/internal/domain/model"
	"github.com/brewlink/brewlink/internal/domain/port/driven"
)

var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo stores the wireless credential pair (and any future
// secrets) in SQLite, sealed with AES-256-GCM so the database file never
// holds a passphrase in the clear.
type CredentialRepo struct {
	db  *DB
	key []byte
}

// NewCredentialRepo creates a CredentialRepo. A nil key disables the store;
// every operation then returns ErrEncryptionKeyNotSet so callers can fall
// back to the credentials file.
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Set upserts the secret for a service key such as "wifi.ssid".
func (r *CredentialRepo) Set(ctx context.Context, service, plaintext string) error {
	sealed, err := r.seal(plaintext)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO credentials (service, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`
	if _, err := r.db.Writer.ExecContext(ctx, query, service, sealed); err != nil {
		return fmt.Errorf("store credential %q: %w", service, err)
	}
	return nil
}

// Get returns the secret for a service key, or ("", nil) when none is
// stored.
func (r *CredentialRepo) Get(ctx context.Context, service string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	var sealed string
	err := r.db.Reader.QueryRowContext(ctx,
		`SELECT value FROM credentials WHERE service = ?`, service).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load credential %q: %w", service, err)
	}

	plaintext, err := r.open(sealed)
	if err != nil {
		return "", fmt.Errorf("unseal credential %q: %w", service, err)
	}
	return plaintext, nil
}

// List returns every stored credential, unsealed, ordered by service key.
func (r *CredentialRepo) List(ctx context.Context) ([]model.Credential, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	rows, err := r.db.Reader.QueryContext(ctx,
		`SELECT id, service, value, updated_at FROM credentials ORDER BY service`)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []model.Credential
	for rows.Next() {
		var (
			cred      model.Credential
			sealed    string
			updatedAt string
		)
		if err := rows.Scan(&cred.ID, &cred.Service, &sealed, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan credential row: %w", err)
		}

		if cred.Value, err = r.open(sealed); err != nil {
			return nil, fmt.Errorf("unseal credential %q: %w", cred.Service, err)
		}
		if cred.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("credential %q updated_at: %w", cred.Service, err)
		}

		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return creds, nil
}

// Delete removes the secret for a service key. Deleting an absent key is
// not an error.
func (r *CredentialRepo) Delete(ctx context.Context, service string) error {
	if _, err := r.db.Writer.ExecContext(ctx,
		`DELETE FROM credentials WHERE service = ?`, service); err != nil {
		return fmt.Errorf("delete credential %q: %w", service, err)
	}
	return nil
}

// aead builds the AES-256-GCM primitive for the configured key.
func (r *CredentialRepo) aead() (cipher.AEAD, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("credential cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("credential cipher: %w", err)
	}
	return gcm, nil
}

// seal encrypts a secret. The stored value is base64(nonce || ciphertext),
// with a fresh random nonce per write.
func (r *CredentialRepo) seal(plaintext string) (string, error) {
	gcm, err := r.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("credential nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// open decrypts a value produced by seal.
func (r *CredentialRepo) open(encoded string) (string, error) {
	gcm, err := r.aead()
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("credential encoding: %w", err)
	}
	if len(raw) < gcm.NonceSize()+gcm.Overhead() {
		return "", errors.New("sealed credential truncated")
	}

	plaintext, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("credential unseal: %w", err)
	}
	return string(plaintext), nil
}
