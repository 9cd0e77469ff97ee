package service

import (
	"bytes"
	"encoding/hex"
	"io"
	"testing"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/config"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/service/mocks"
	"github.com/anthanhphan/go-chunked-file-storage/pkg/chunkcipher"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testNow = time.Date(2025, 10, 9, 12, 0, 0, 0, time.UTC)

// fixture bundles a FileServiceImpl with mocks for every collaborator.
type fixture struct {
	svc     *FileServiceImpl
	cfg     *config.Config
	cipher  *chunkcipher.Cipher
	blobs   *mocks.MockBlobHost
	fetcher *mocks.MockBlobFetcher
	store   *mocks.MockMetadataStore
	ledger  *mocks.MockIngestLedger
	idGen   *mocks.MockIDGenerator
}

func newFixture(t *testing.T, tweak ...func(*config.Config)) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	cfg := config.DefaultConfig()
	cfg.App.MaxChunkSize = 64
	cfg.App.RetryBaseDelayMS = 1
	cfg.App.UpstreamTimeoutMS = 2000
	for _, fn := range tweak {
		fn(cfg)
	}

	c, err := chunkcipher.NewFromSecret("test-secret", chunkcipher.DeriveHKDF)
	require.NoError(t, err)

	f := &fixture{
		cfg:     cfg,
		cipher:  c,
		blobs:   mocks.NewMockBlobHost(ctrl),
		fetcher: mocks.NewMockBlobFetcher(ctrl),
		store:   mocks.NewMockMetadataStore(ctrl),
		ledger:  mocks.NewMockIngestLedger(ctrl),
		idGen:   mocks.NewMockIDGenerator(ctrl),
	}
	f.svc = NewFileService(cfg, Dependencies{
		Blobs:   f.blobs,
		Fetcher: f.fetcher,
		Store:   f.store,
		Ledger:  f.ledger,
		Cipher:  c,
		IDGen:   f.idGen,
	})
	f.svc.now = func() time.Time { return testNow }
	return f
}

// encrypt returns plain encrypted under a fresh IV and the IV in hex.
func (f *fixture) encrypt(t *testing.T, plain []byte) ([]byte, string) {
	t.Helper()
	iv, err := chunkcipher.NewIV()
	require.NoError(t, err)
	out := make([]byte, len(plain))
	require.NoError(t, f.cipher.XORKeyStream(iv, out, plain))
	return out, hex.EncodeToString(iv)
}

// body wraps data as a fetched blob body that records Close.
type body struct {
	*bytes.Reader
	closed bool
}

func newBody(data []byte) *body { return &body{Reader: bytes.NewReader(data)} }

func (b *body) Close() error {
	b.closed = true
	return nil
}

var _ io.ReadCloser = (*body)(nil)

// patterned returns n deterministic bytes starting at seed.
func patterned(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i*7)
	}
	return b
}
