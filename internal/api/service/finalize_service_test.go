package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/config"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testIV = "000102030405060708090a0b0c0d0e0f"

func twoChunks() []domain.Chunk {
	return []domain.Chunk{
		{Index: 1, BlobRef: "ref-1", URL: "https://cdn/1", IV: testIV, Size: 4},
		{Index: 0, BlobRef: "ref-0", URL: "https://cdn/0", IV: testIV, Size: 6},
	}
}

// ingested returns what ingest recorded for chunks, with urls that differ from
// the descriptors' so tests can tell which one was kept.
func ingested(owner string, chunks []domain.Chunk) []domain.PendingBlob {
	out := make([]domain.PendingBlob, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, domain.PendingBlob{
			BlobRef: c.BlobRef, OwnerID: owner, Size: c.Size, IV: c.IV,
			URL: "https://blobs/" + c.BlobRef, TrackedAt: testNow,
		})
	}
	return out
}

func (f *fixture) expectPending(owner string) {
	f.ledger.EXPECT().Pending(gomock.Any(), gomock.Any()).Return(ingested(owner, twoChunks()), nil)
}

func TestFinalizeService_Finalize(t *testing.T) {
	type mockSetup func(f *fixture)

	base := port.FinalizeRequest{OwnerID: "user-1", Name: "notes.txt", Size: 10, Folder: "docs/", Chunks: twoChunks()}

	tests := []struct {
		name     string
		req      func() port.FinalizeRequest
		failOpen bool
		setup    mockSetup
		wantErr  error
	}{
		{
			name:     "Success",
			req:      func() port.FinalizeRequest { return base },
			failOpen: true,
			setup: func(f *fixture) {
				f.expectPending("user-1")
				f.store.EXPECT().GetUsage(gomock.Any(), "user-1").Return(domain.Usage{Used: 0, Limit: 100}, nil)
				f.idGen.EXPECT().NextString(gomock.Any()).Return("42", nil)
				f.store.EXPECT().SaveFileTransactional(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, file *domain.File, chunks []domain.Chunk) error {
						assert.Equal(t, "42", file.ID)
						assert.Equal(t, "/docs", file.FolderPath)
						assert.Equal(t, "text/plain; charset=utf-8", file.MimeType)
						require.Len(t, chunks, 2)
						assert.Equal(t, "ref-0", chunks[0].BlobRef)
						assert.Equal(t, "ref-1", chunks[1].BlobRef)
						assert.Equal(t, "https://blobs/ref-0", chunks[0].URL)
						assert.Equal(t, file.Chunks, chunks)
						return nil
					})
				f.ledger.EXPECT().Release(gomock.Any(), []string{"ref-0", "ref-1"}).Return(nil)
			},
		},
		{
			name: "Anonymous upload skips quota",
			req: func() port.FinalizeRequest {
				r := base
				r.OwnerID = ""
				return r
			},
			setup: func(f *fixture) {
				f.expectPending("")
				f.idGen.EXPECT().NextString(gomock.Any()).Return("7", nil)
				f.store.EXPECT().SaveFileTransactional(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				f.ledger.EXPECT().Release(gomock.Any(), gomock.Any()).Return(nil)
			},
		},
		{
			name: "Missing chunk",
			req: func() port.FinalizeRequest {
				r := base
				r.Chunks = r.Chunks[:1]
				return r
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "Size mismatch",
			req: func() port.FinalizeRequest {
				r := base
				r.Size = 11
				return r
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "Bad iv",
			req: func() port.FinalizeRequest {
				r := base
				r.Chunks = twoChunks()
				r.Chunks[0].IV = "xyz"
				return r
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "Bad name",
			req: func() port.FinalizeRequest {
				r := base
				r.Name = "../etc/passwd"
				return r
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "Over quota",
			req:  func() port.FinalizeRequest { return base },
			setup: func(f *fixture) {
				f.expectPending("user-1")
				f.store.EXPECT().GetUsage(gomock.Any(), "user-1").Return(domain.Usage{Used: 95, Limit: 100}, nil)
			},
			wantErr: domain.ErrQuotaExceeded,
		},
		{
			name:     "Usage read fails open",
			req:      func() port.FinalizeRequest { return base },
			failOpen: true,
			setup: func(f *fixture) {
				f.expectPending("user-1")
				f.store.EXPECT().GetUsage(gomock.Any(), "user-1").Return(domain.Usage{}, errors.New("db timeout"))
				f.idGen.EXPECT().NextString(gomock.Any()).Return("43", nil)
				f.store.EXPECT().SaveFileTransactional(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				f.ledger.EXPECT().Release(gomock.Any(), gomock.Any()).Return(nil)
			},
		},
		{
			name: "Usage read fails closed",
			req:  func() port.FinalizeRequest { return base },
			setup: func(f *fixture) {
				f.expectPending("user-1")
				f.store.EXPECT().GetUsage(gomock.Any(), "user-1").Return(domain.Usage{}, errors.New("db timeout"))
			},
			wantErr: domain.ErrQuotaExceeded,
		},
		{
			name:     "Concurrent finalize loses atomic guard",
			req:      func() port.FinalizeRequest { return base },
			failOpen: true,
			setup: func(f *fixture) {
				f.expectPending("user-1")
				f.store.EXPECT().GetUsage(gomock.Any(), "user-1").Return(domain.Usage{Used: 90, Limit: 100}, nil)
				f.idGen.EXPECT().NextString(gomock.Any()).Return("44", nil)
				f.store.EXPECT().SaveFileTransactional(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.ErrQuotaExceeded)
			},
			wantErr: domain.ErrQuotaExceeded,
		},
		{
			name:     "Duplicate name",
			req:      func() port.FinalizeRequest { return base },
			failOpen: true,
			setup: func(f *fixture) {
				f.expectPending("user-1")
				f.store.EXPECT().GetUsage(gomock.Any(), "user-1").Return(domain.Usage{Limit: 100}, nil)
				f.idGen.EXPECT().NextString(gomock.Any()).Return("45", nil)
				f.store.EXPECT().SaveFileTransactional(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.ErrConflict)
			},
			wantErr: domain.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(c *config.Config) { c.App.FailOpenOnQuotaCheckError = tt.failOpen })
			if tt.setup != nil {
				tt.setup(f)
			}

			file, err := f.svc.FinalizeUpload(context.Background(), tt.req())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, file)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(10), file.Size)
			assert.Equal(t, testNow, file.CreatedAt)
		})
	}
}

func TestFinalizeService_StoreErrorWrapped(t *testing.T) {
	f := newFixture(t)
	f.expectPending("")
	f.idGen.EXPECT().NextString(gomock.Any()).Return("1", nil)
	f.store.EXPECT().SaveFileTransactional(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("deadlock"))

	_, err := f.svc.FinalizeUpload(context.Background(), port.FinalizeRequest{Name: "a.bin", Size: 10, Chunks: twoChunks()})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "save file:"))
}

func TestFinalizeService_RejectsUnverifiedChunks(t *testing.T) {
	base := port.FinalizeRequest{OwnerID: "user-1", Name: "x.txt", Size: 10, Chunks: twoChunks()}

	tests := []struct {
		name    string
		req     func() port.FinalizeRequest
		pending func() ([]domain.PendingBlob, error)
		wantErr error
	}{
		{
			name: "Never ingested",
			req:  func() port.FinalizeRequest { return base },
			pending: func() ([]domain.PendingBlob, error) {
				return ingested("user-1", twoChunks()[:1]), nil
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "Ingested by another account",
			req:  func() port.FinalizeRequest { return base },
			pending: func() ([]domain.PendingBlob, error) {
				return ingested("alice", twoChunks()), nil
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "Declared size smaller than stored",
			req: func() port.FinalizeRequest {
				r := base
				r.Chunks = twoChunks()
				r.Chunks[0].Size = 1
				r.Chunks[1].Size = 1
				r.Size = 2
				return r
			},
			pending: func() ([]domain.PendingBlob, error) {
				return ingested("user-1", twoChunks()), nil
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "Different iv",
			req:  func() port.FinalizeRequest { return base },
			pending: func() ([]domain.PendingBlob, error) {
				blobs := ingested("user-1", twoChunks())
				blobs[1].IV = "ffffffffffffffffffffffffffffffff"
				return blobs, nil
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "Same blob twice",
			req: func() port.FinalizeRequest {
				r := base
				r.Chunks = twoChunks()
				r.Chunks[0].BlobRef = "ref-0"
				r.Chunks[0].Size = 6
				r.Size = 12
				return r
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "Ledger unavailable",
			req:  func() port.FinalizeRequest { return base },
			pending: func() ([]domain.PendingBlob, error) {
				return nil, errors.New("redis down")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.pending != nil {
				f.ledger.EXPECT().Pending(gomock.Any(), gomock.Any()).DoAndReturn(
					func(context.Context, []string) ([]domain.PendingBlob, error) { return tt.pending() })
			}

			file, err := f.svc.FinalizeUpload(context.Background(), tt.req())
			require.Error(t, err)
			assert.Nil(t, file)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NotErrorIs(t, err, domain.ErrValidation)
			}
		})
	}
}

func TestFinalizeService_ClientURLIsIgnored(t *testing.T) {
	f := newFixture(t)
	chunks := []domain.Chunk{{Index: 0, BlobRef: "ref-0", URL: "https://evil.example/payload", IV: testIV, Size: 3}}
	blobs := ingested("user-1", chunks)
	blobs[0].URL = ""

	f.ledger.EXPECT().Pending(gomock.Any(), []string{"ref-0"}).Return(blobs, nil)
	f.blobs.EXPECT().GetBlobURL(gomock.Any(), "ref-0").Return("https://blobs/fresh/ref-0", nil)
	f.store.EXPECT().GetUsage(gomock.Any(), "user-1").Return(domain.Usage{Limit: 100}, nil)
	f.idGen.EXPECT().NextString(gomock.Any()).Return("9", nil)
	f.store.EXPECT().SaveFileTransactional(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	f.ledger.EXPECT().Release(gomock.Any(), []string{"ref-0"}).Return(nil)

	file, err := f.svc.FinalizeUpload(context.Background(), port.FinalizeRequest{OwnerID: "user-1", Name: "x.txt", Size: 3, Chunks: chunks})
	require.NoError(t, err)
	require.Len(t, file.Chunks, 1)
	assert.Equal(t, "https://blobs/fresh/ref-0", file.Chunks[0].URL)
}

func TestValidateFileName(t *testing.T) {
	got, err := validateFileName("  report.pdf ")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", got)

	for _, bad := range []string{"", "   ", "a/b", `a\b`, ".", ".."} {
		_, err := validateFileName(bad)
		assert.ErrorIs(t, err, domain.ErrValidation, bad)
	}
}
