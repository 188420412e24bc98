package consumer

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/hyp3rd/hyperrelay"
	"github.com/hyp3rd/hyperrelay/internal/utils"
)

const (
	// DefaultMaxSize is the segment size at which a RotatingFile rotates.
	DefaultMaxSize = 100 * bytesPerMB

	bytesPerMB      = 1024 * 1024
	rotateTimestamp = "20060102T150405.000000000"
	rotateSource    = "rotating-file"
)

// Compression selects how rotated segments are compressed.
type Compression string

const (
	// CompressionNone keeps rotated segments as they are.
	CompressionNone Compression = "none"
	// CompressionGzip compresses rotated segments with gzip (.gz).
	CompressionGzip Compression = "gzip"
	// CompressionZstd compresses rotated segments with zstd (.zst).
	CompressionZstd Compression = "zstd"
)

// ErrInvalidCompression is returned for an unknown Compression value.
var ErrInvalidCompression = ewrap.New("invalid compression algorithm")

// Extension returns the file extension of compressed segments.
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionZstd:
		return ".zst"
	case CompressionNone:
		return ""
	default:
		return ""
	}
}

// RotateConfig configures a RotatingFile.
type RotateConfig struct {
	// Path of the active segment, relative to the base directory.
	Path string
	// MaxSize is the size in bytes at which the active segment is rotated.
	MaxSize int64
	// Compression applied to rotated segments in the background.
	Compression Compression
	// OnRotate is called with the final path of every rotated segment.
	OnRotate func(path string)
	// OnError receives background compression failures. Defaults to the self-log.
	OnError func(err error)
}

// RotatingFile is an io.WriteCloser over a file that is renamed with a
// timestamp suffix, and optionally compressed, once it reaches MaxSize.
type RotatingFile struct {
	mu          sync.Mutex
	file        *os.File
	path        string
	maxSize     int64
	size        int64
	compression Compression
	onRotate    func(string)
	onError     func(error)
	pending     sync.WaitGroup
	now         func() time.Time
}

// NewRotatingFile opens the active segment of a rotating file confined to base.
func NewRotatingFile(base string, cfg RotateConfig) (*RotatingFile, error) {
	securePath, err := utils.SecurePath(base, cfg.Path)
	if err != nil {
		return nil, ewrap.Wrap(err, "invalid output path")
	}

	if cfg.Compression == "" {
		cfg.Compression = CompressionNone
	}

	switch cfg.Compression {
	case CompressionNone, CompressionGzip, CompressionZstd:
	default:
		return nil, ewrap.Wrap(ErrInvalidCompression, "opening rotating file").
			WithMetadata("compression", string(cfg.Compression))
	}

	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}

	if cfg.OnError == nil {
		cfg.OnError = reportToSelfLog
	}

	err = os.MkdirAll(filepath.Dir(securePath), 0o700)
	if err != nil {
		return nil, ewrap.Wrap(err, "creating output directory").
			WithMetadata("path", filepath.Dir(securePath))
	}

	file, err := os.OpenFile(securePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, FilePermissions)
	if err != nil {
		return nil, ewrap.Wrap(err, "opening output file").WithMetadata("path", securePath)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()

		return nil, ewrap.Wrap(err, "getting file stats").WithMetadata("path", securePath)
	}

	return &RotatingFile{
		file:        file,
		path:        securePath,
		maxSize:     cfg.MaxSize,
		size:        info.Size(),
		compression: cfg.Compression,
		onRotate:    cfg.OnRotate,
		onError:     cfg.OnError,
		now:         time.Now,
	}, nil
}

// OpenRotatingFile returns a Writer over a RotatingFile. Its Handle owns the file.
func OpenRotatingFile[T any](base string, cfg RotateConfig, encoder Encoder[T]) (*Writer[T], error) {
	file, err := NewRotatingFile(base, cfg)
	if err != nil {
		return nil, err
	}

	return NewWriter(file, encoder)
}

// Path returns the path of the active segment.
func (r *RotatingFile) Path() string {
	return r.path
}

// Write implements io.Writer. A non-empty segment is rotated first when data
// would grow it past MaxSize.
func (r *RotatingFile) Write(data []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, ewrap.Wrap(os.ErrClosed, "writing rotating file").WithMetadata("path", r.path)
	}

	if r.size > 0 && r.size+int64(len(data)) > r.maxSize {
		err := r.rotate()
		if err != nil {
			return 0, err
		}
	}

	n, err := r.file.Write(data)
	r.size += int64(n)

	if err != nil {
		return n, ewrap.Wrap(err, "writing rotating file").WithMetadata("path", r.path)
	}

	return n, nil
}

// Sync flushes the active segment.
func (r *RotatingFile) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}

	err := r.file.Sync()
	if err != nil {
		return ewrap.Wrap(err, "syncing rotating file")
	}

	return nil
}

// Close closes the active segment and waits for pending compressions.
func (r *RotatingFile) Close() error {
	r.mu.Lock()

	var err error

	if r.file != nil {
		err = r.file.Close()
		r.file = nil
	}

	r.mu.Unlock()

	r.pending.Wait()

	if err != nil {
		return ewrap.Wrap(err, "closing rotating file")
	}

	return nil
}

func (r *RotatingFile) rotate() error {
	err := r.file.Close()
	if err != nil {
		return ewrap.Wrap(err, "closing current segment")
	}

	rotated := r.path + "." + r.now().UTC().Format(rotateTimestamp)
	for i := 1; exists(rotated) || exists(rotated+r.compression.Extension()); i++ {
		rotated = r.path + "." + r.now().UTC().Format(rotateTimestamp) + "-" + strconv.Itoa(i)
	}

	err = os.Rename(r.path, rotated)
	if err != nil {
		return ewrap.Wrap(err, "renaming segment").
			WithMetadata("from", r.path).
			WithMetadata("to", rotated)
	}

	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, FilePermissions)
	if err != nil {
		r.file = nil

		return ewrap.Wrap(err, "creating new segment").WithMetadata("path", r.path)
	}

	r.file = file
	r.size = 0

	if r.compression == CompressionNone {
		r.rotated(rotated)

		return nil
	}

	r.pending.Go(func() {
		compressed, err := compressSegment(rotated, r.compression)
		if err != nil {
			r.onError(err)

			return
		}

		r.rotated(compressed)
	})

	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

func (r *RotatingFile) rotated(path string) {
	if r.onRotate != nil {
		r.onRotate(path)
	}
}

// compressSegment writes path+extension and removes path once the compressed
// copy is complete. A partial compressed file is removed on failure.
func compressSegment(path string, compression Compression) (string, error) {
	target := path + compression.Extension()

	err := writeCompressed(path, target, compression)
	if err != nil {
		_ = os.Remove(target)

		return "", ewrap.Wrap(err, "compressing rotated segment").
			WithMetadata("path", path).
			WithMetadata("compression", string(compression))
	}

	err = os.Remove(path)
	if err != nil {
		return target, ewrap.Wrap(err, "removing rotated segment").WithMetadata("path", path)
	}

	return target, nil
}

func writeCompressed(source, target string, compression Compression) error {
	//nolint:gosec // G304: both paths derive from a path validated by SecurePath
	src, err := os.Open(source)
	if err != nil {
		return ewrap.Wrap(err, "opening segment")
	}

	defer func() { _ = src.Close() }()

	//nolint:gosec // G304: both paths derive from a path validated by SecurePath
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, FilePermissions)
	if err != nil {
		return ewrap.Wrap(err, "creating compressed segment")
	}

	encoder, err := newCompressor(dst, compression, filepath.Base(source))
	if err != nil {
		_ = dst.Close()

		return err
	}

	_, err = io.Copy(encoder, src)
	if err != nil {
		_ = encoder.Close()
		_ = dst.Close()

		return ewrap.Wrap(err, "copying segment")
	}

	err = encoder.Close()
	if err != nil {
		_ = dst.Close()

		return ewrap.Wrap(err, "flushing compressor")
	}

	err = dst.Sync()
	if err != nil {
		_ = dst.Close()

		return ewrap.Wrap(err, "syncing compressed segment")
	}

	err = dst.Close()
	if err != nil {
		return ewrap.Wrap(err, "closing compressed segment")
	}

	return nil
}

func newCompressor(dst io.Writer, compression Compression, name string) (io.WriteCloser, error) {
	switch compression {
	case CompressionGzip:
		writer := gzip.NewWriter(dst)
		writer.Name = name

		return writer, nil
	case CompressionZstd:
		writer, err := zstd.NewWriter(dst)
		if err != nil {
			return nil, ewrap.Wrap(err, "creating zstd writer")
		}

		return writer, nil
	case CompressionNone:
		return nil, ErrInvalidCompression
	default:
		return nil, ErrInvalidCompression
	}
}

func reportToSelfLog(err error) {
	hyperrelay.CurrentSelfLog().Emit(hyperrelay.Diagnostic{
		Time:    time.Now(),
		Source:  rotateSource,
		Kind:    hyperrelay.FailurePermanent,
		Message: "failed to compress rotated segment",
		Err:     err,
	})
}
