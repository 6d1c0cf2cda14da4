package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // GCS driver
	_ "gocloud.dev/blob/memblob"  // mem:// driver
	_ "gocloud.dev/blob/s3blob"   // S3 driver
)

// Object names inside a user's mirror directory.
const (
	LedgerObject   = "ledger.csv"
	ArchiveObject  = "archive.pgn.zst"
	ParquetObject  = "ledger.parquet"
	ManifestObject = "_manifest.json"
)

// Snapshot is the set of artifacts published after a run.
type Snapshot struct {
	RunID         string
	Username      string
	Imported      int
	Games         int
	LedgerCSV     []byte
	ArchivePGN    []byte
	LedgerParquet []byte // optional
	Producer      ProducerInfo

	// ParquetCompression labels the Parquet codec in the manifest; defaults to snappy.
	ParquetCompression string
}

// PublishResult contains the result of a publish.
type PublishResult struct {
	ManifestKey string
	Manifest    *Manifest
}

// Mirror publishes snapshots to an object bucket (gs://, s3://, file://, mem://).
type Mirror struct {
	bucket    *blob.Bucket
	bucketURL string
	prefix    string
}

// OpenMirror opens the bucket at bucketURL.
func OpenMirror(ctx context.Context, bucketURL, prefix string) (*Mirror, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return NewMirror(bucket, bucketURL, prefix), nil
}

// NewMirror wraps an already opened bucket.
func NewMirror(bucket *blob.Bucket, bucketURL, prefix string) *Mirror {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Mirror{bucket: bucket, bucketURL: bucketURL, prefix: prefix}
}

// Key returns the object key for name under username's directory.
func (m *Mirror) Key(username, name string) string {
	return m.prefix + username + "/" + name
}

// URI returns the canonical URI for the given key.
func (m *Mirror) URI(key string) string {
	base := m.bucketURL
	if i := strings.Index(base, "?"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, "/") + "/" + key
}

// Publish uploads every artifact of snap to temporary keys, then moves them to
// their final keys with the manifest last. On failure, temporaries and any
// already finalized objects of this publish are removed.
func (m *Mirror) Publish(ctx context.Context, snap Snapshot) (*PublishResult, error) {
	if snap.Username == "" {
		return nil, fmt.Errorf("publish snapshot: empty username")
	}

	compressed, err := compressZstd(snap.ArchivePGN)
	if err != nil {
		return nil, err
	}

	type object struct {
		name        string
		data        []byte
		compression string
	}
	objects := []object{
		{name: LedgerObject, data: snap.LedgerCSV},
		{name: ArchiveObject, data: compressed, compression: "zstd"},
	}
	if len(snap.LedgerParquet) > 0 {
		codec := snap.ParquetCompression
		if codec == "" {
			codec = "snappy"
		}
		objects = append(objects, object{name: ParquetObject, data: snap.LedgerParquet, compression: codec})
	}

	manifest := &Manifest{
		Run: RunInfo{
			RunID:    snap.RunID,
			Username: snap.Username,
			Imported: snap.Imported,
			Games:    snap.Games,
		},
		Files:     make(map[string]FileInfo, len(objects)),
		Producer:  snap.Producer,
		CreatedAt: time.Now().UTC(),
	}

	var tempKeys, finalKeys []string
	for _, obj := range objects {
		final := m.Key(snap.Username, obj.name)
		temp, err := m.writeTemp(ctx, final, obj.data)
		if err != nil {
			m.Abort(ctx, tempKeys)
			return nil, err
		}
		tempKeys = append(tempKeys, temp)
		finalKeys = append(finalKeys, final)
		manifest.Files[obj.name] = FileInfo{
			Key:         final,
			Checksum:    ComputeChecksum(obj.data),
			ByteSize:    int64(len(obj.data)),
			Compression: obj.compression,
		}
	}

	manifestData, err := manifest.MarshalJSON()
	if err != nil {
		m.Abort(ctx, tempKeys)
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestKey := m.Key(snap.Username, ManifestObject)
	temp, err := m.writeTemp(ctx, manifestKey, manifestData)
	if err != nil {
		m.Abort(ctx, tempKeys)
		return nil, err
	}
	tempKeys = append(tempKeys, temp)
	finalKeys = append(finalKeys, manifestKey)

	if err := m.finalize(ctx, tempKeys, finalKeys); err != nil {
		return nil, err
	}

	return &PublishResult{ManifestKey: manifestKey, Manifest: manifest}, nil
}

func (m *Mirror) writeTemp(ctx context.Context, key string, data []byte) (string, error) {
	tempKey := key + ".tmp." + uuid.New().String()
	if err := m.bucket.WriteAll(ctx, tempKey, data, nil); err != nil {
		return "", fmt.Errorf("write %s: %w", tempKey, err)
	}
	return tempKey, nil
}

// finalize copies temp objects to their final keys and deletes the temps.
// The manifest is last in the list, so it only moves once every object it
// describes is in place. Objects copied before a failure are left as they
// are: they already replaced the previous snapshot and the ledger is the
// source of truth for the next publish.
func (m *Mirror) finalize(ctx context.Context, tempKeys, finalKeys []string) error {
	for i, tempKey := range tempKeys {
		if err := m.copyObject(ctx, tempKey, finalKeys[i]); err != nil {
			m.Abort(ctx, tempKeys)
			return fmt.Errorf("finalize %s -> %s: %w", tempKey, finalKeys[i], err)
		}
	}

	for _, tempKey := range tempKeys {
		m.bucket.Delete(ctx, tempKey) // ignore errors
	}
	return nil
}

func (m *Mirror) copyObject(ctx context.Context, srcKey, dstKey string) error {
	r, err := m.bucket.NewReader(ctx, srcKey, nil)
	if err != nil {
		return fmt.Errorf("open source %s: %w", srcKey, err)
	}
	defer r.Close()

	w, err := m.bucket.NewWriter(ctx, dstKey, nil)
	if err != nil {
		return fmt.Errorf("create destination %s: %w", dstKey, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("copy to %s: %w", dstKey, err)
	}
	return w.Close()
}

// Abort removes temporary objects without publishing.
func (m *Mirror) Abort(ctx context.Context, tempKeys []string) error {
	var lastErr error
	for _, key := range tempKeys {
		if err := m.bucket.Delete(ctx, key); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// List returns all keys with the given prefix, skipping directories.
func (m *Mirror) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := m.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		if obj.IsDir {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// ReadAll returns the content of key.
func (m *Mirror) ReadAll(ctx context.Context, key string) ([]byte, error) {
	return m.bucket.ReadAll(ctx, key)
}

// Close releases the bucket connection.
func (m *Mirror) Close() error {
	if m.bucket != nil {
		return m.bucket.Close()
	}
	return nil
}

func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}
