package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ncecere/spendwatch/internal/config"
	"github.com/ncecere/spendwatch/internal/secrets"
)

var ErrNotFound = errors.New("object not found")

const (
	encryptionMetadataKey = "blob-encryption"
	encryptionMethod      = "aes-gcm"
)

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	Metadata    map[string]string
	Encrypted   bool
}

type Store interface {
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

type store struct {
	backend Store
	sealer  *secrets.Sealer
}

// New builds the archive store. Objects are sealed with AES-GCM when an
// archive encryption key is configured.
func New(ctx context.Context, cfg config.ArchiveConfig) (Store, error) {
	backend, err := buildBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var sealer *secrets.Sealer
	if strings.TrimSpace(cfg.EncryptionKey) != "" {
		sealer, err = secrets.NewSealer(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("archive.encryption_key: %w", err)
		}
	}
	return &store{backend: backend, sealer: sealer}, nil
}

func buildBackend(ctx context.Context, cfg config.ArchiveConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage)) {
	case "s3":
		awsCfg, err := loadS3Config(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return newS3Store(cfg.S3, awsCfg)
	default:
		return newLocalStore(cfg.Local)
	}
}

func (s *store) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error) {
	if s.sealer == nil {
		return s.backend.Put(ctx, key, body, opts)
	}
	plain, err := io.ReadAll(body)
	if err != nil {
		return ObjectInfo{}, err
	}
	sealed, err := s.sealer.SealBytes(plain)
	if err != nil {
		return ObjectInfo{}, err
	}
	metadata := mergeMetadata(opts.Metadata, map[string]string{encryptionMetadataKey: encryptionMethod})
	info, err := s.backend.Put(ctx, key, bytes.NewReader(sealed), PutOptions{
		ContentType: opts.ContentType,
		Metadata:    metadata,
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	info.Size = int64(len(plain))
	info.Metadata = metadata
	info.Encrypted = true
	return info, nil
}

func (s *store) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	reader, info, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	if !isEncrypted(info.Metadata) {
		return reader, info, nil
	}
	defer reader.Close()
	if s.sealer == nil {
		return nil, ObjectInfo{}, fmt.Errorf("object %s is encrypted but no archive key is configured", key)
	}
	sealed, err := io.ReadAll(reader)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	plain, err := s.sealer.OpenBytes(sealed)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	info.Size = int64(len(plain))
	info.Encrypted = true
	return io.NopCloser(bytes.NewReader(plain)), info, nil
}

func (s *store) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

func mergeMetadata(a, b map[string]string) map[string]string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	merged := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return merged
}

func isEncrypted(meta map[string]string) bool {
	if meta == nil {
		return false
	}
	_, ok := meta[encryptionMetadataKey]
	return ok
}
