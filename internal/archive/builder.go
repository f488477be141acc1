package archive

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"

	"github.com/example/gallery-delivery/internal/infrastructure/storage"
	"github.com/example/gallery-delivery/internal/infrastructure/store"
)

var (
	// ErrEmptyArchive means no asset could be fetched, so there is nothing to
	// deliver. Terminal: retrying without fixing the assets will fail again.
	ErrEmptyArchive = errors.New("empty archive: no assets could be appended")

	// ErrCorruptArchive means the finalized buffer failed the zip signature
	// check. Terminal.
	ErrCorruptArchive = errors.New("corrupt archive: zip signature mismatch")
)

// zipMagic is the local-file-header signature every valid zip starts with.
var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// Result carries observability stats for one successful build. The
// compression ratio is informational, not a correctness contract.
type Result struct {
	ZipKey           string  `json:"zip_key"`
	FileCount        int     `json:"file_count"`
	OriginalBytes    int64   `json:"original_bytes"`
	ArchiveBytes     int64   `json:"archive_bytes"`
	CompressionRatio float64 `json:"compression_ratio"`
}

// Builder assembles the final delivery zip for an order: fetch each selected
// asset, append it to a deflate-compressed archive, validate the result,
// upload it, and clear the order's guard flag whatever the outcome.
type Builder struct {
	objects storage.ObjectStore
	orders  store.OrderStore
}

func NewBuilder(objects storage.ObjectStore, orders store.OrderStore) *Builder {
	return &Builder{
		objects: objects,
		orders:  orders,
	}
}

// AssetKey is the object-store key of one selected photo.
func AssetKey(galleryID, key string) string {
	return fmt.Sprintf("galleries/%s/photos/%s", galleryID, key)
}

// ZipKey is the deterministic object-store key of the order's archive.
// Rebuilds overwrite the same object.
func ZipKey(galleryID, orderID string) string {
	return fmt.Sprintf("galleries/%s/zips/%s.zip", galleryID, orderID)
}

// Build runs the full pipeline for one order. The guard flag is cleared on
// every path out of this function, success or failure.
func (b *Builder) Build(ctx context.Context, galleryID, orderID string, selectedKeys []string) (result *Result, err error) {
	defer func() {
		if clearErr := b.orders.ClearFinalizeFlag(ctx, galleryID, orderID); clearErr != nil {
			// The archive (if any) is already persisted; a stale flag only
			// delays the next change-stream fallback.
			log.Printf("[Builder] Failed to clear finalize flag for %s/%s: %v", galleryID, orderID, clearErr)
		}
	}()

	buf, stats, err := b.assemble(ctx, galleryID, selectedKeys)
	if err != nil {
		return nil, err
	}

	if err := validate(buf.Bytes()); err != nil {
		return nil, err
	}

	zipKey := ZipKey(galleryID, orderID)
	if err := b.objects.Put(ctx, zipKey, buf.Bytes(), "application/zip"); err != nil {
		return nil, fmt.Errorf("failed to upload archive: %w", err)
	}

	stats.ZipKey = zipKey
	stats.ArchiveBytes = int64(buf.Len())
	if stats.OriginalBytes > 0 {
		stats.CompressionRatio = float64(stats.OriginalBytes-stats.ArchiveBytes) / float64(stats.OriginalBytes)
	}

	log.Printf("[Builder] Built %s: %d files, %d -> %d bytes",
		zipKey, stats.FileCount, stats.OriginalBytes, stats.ArchiveBytes)

	return stats, nil
}

// assemble fetches every selected asset in order and appends it to the zip.
// A failed or empty fetch skips that key and continues; only a fully empty
// archive is fatal.
func (b *Builder) assemble(ctx context.Context, galleryID string, selectedKeys []string) (*bytes.Buffer, *Result, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	stats := &Result{}
	for _, key := range selectedKeys {
		data, err := b.fetchAsset(ctx, AssetKey(galleryID, key))
		if err != nil {
			log.Printf("[Builder] Skipping %s: %v", key, err)
			continue
		}
		if len(data) == 0 {
			log.Printf("[Builder] Skipping %s: empty asset", key)
			continue
		}

		// Archived under the original filename, not the storage key.
		w, err := zw.Create(path.Base(key))
		if err != nil {
			zw.Close()
			return nil, nil, fmt.Errorf("failed to create archive entry for %s: %w", key, err)
		}
		if _, err := w.Write(data); err != nil {
			zw.Close()
			return nil, nil, fmt.Errorf("failed to write archive entry for %s: %w", key, err)
		}

		stats.FileCount++
		stats.OriginalBytes += int64(len(data))
	}

	if stats.FileCount == 0 {
		zw.Close()
		return nil, nil, ErrEmptyArchive
	}

	if err := zw.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	return buf, stats, nil
}

// fetchAsset reads one asset fully. Whole-asset buffering keeps skips atomic:
// a zip entry cannot be removed once created, so the entry is written only
// after the asset bytes are completely in hand.
func (b *Builder) fetchAsset(ctx context.Context, key string) ([]byte, error) {
	body, err := b.objects.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset: %w", err)
	}
	return data, nil
}

// validate rejects a finalized buffer that is empty or does not start with
// the zip local-file-header signature.
func validate(data []byte) error {
	if len(data) == 0 || !bytes.HasPrefix(data, zipMagic) {
		return ErrCorruptArchive
	}
	return nil
}
