package visitor

import (
	"context"
	"path/filepath"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/lk2023060901/danmu-garden-scene/pkg/log"
	"github.com/lk2023060901/danmu-garden-scene/pkg/util/merr"
)

const tracerName = "github.com/lk2023060901/danmu-garden-scene/internal/visitor"

// SaveFile 以指定格式保存到 fs 上的 path。
// 先写入临时文件再重命名，失败时不会留下半截存档。
func (v *Visitor) SaveFile(ctx context.Context, fs afero.Fs, path string, format Format) error {
	ctx, span := log.NewIntentContext(ctx, tracerName, "Visitor.SaveFile",
		trace.WithAttributes(attribute.String("path", path), attribute.String("format", format.Name())))
	defer span.End()

	data, err := v.Save(format)
	if err == nil {
		err = writeFile(fs, path, data)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Ctx(ctx).Warn("failed to save file", log.FieldPath(path), zap.String("format", format.Name()), zap.Error(err))
		return err
	}
	span.SetAttributes(attribute.Int("size", len(data)))
	log.Ctx(ctx).Debug("file saved", log.FieldPath(path), zap.String("format", format.Name()), zap.Int("size", len(data)))
	return nil
}

// SaveBinary 以二进制格式保存到 fs 上的 path。
func (v *Visitor) SaveBinary(ctx context.Context, fs afero.Fs, path string) error {
	return v.SaveFile(ctx, fs, path, &BinaryFormat{opts: v.opts})
}

// SaveText 以文本格式保存到 fs 上的 path。
func (v *Visitor) SaveText(ctx context.Context, fs afero.Fs, path string) error {
	return v.SaveFile(ctx, fs, path, &TextFormat{opts: v.opts})
}

// LoadFile 从 fs 上的 path 读取并按指定格式解析存档。
// 文件系统错误返回 ErrIoFailed，内容错误返回 ErrVisitorMalformedData 或 ErrVisitorVersionMismatch。
func LoadFile(ctx context.Context, fs afero.Fs, path string, format Format) (*Visitor, error) {
	ctx, span := log.NewIntentContext(ctx, tracerName, "Visitor.LoadFile",
		trace.WithAttributes(attribute.String("path", path), attribute.String("format", format.Name())))
	defer span.End()

	data, err := ReadFile(fs, path)
	var v *Visitor
	if err == nil {
		v, err = Load(format, data)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Ctx(ctx).Warn("failed to load file", log.FieldPath(path), zap.String("format", format.Name()), zap.Error(err))
		return nil, err
	}
	log.Ctx(ctx).Debug("file loaded", log.FieldPath(path), zap.String("format", format.Name()), zap.Int("size", len(data)))
	return v, nil
}

// LoadBinary 从 fs 上的 path 读取二进制存档。
func LoadBinary(ctx context.Context, fs afero.Fs, path string, opts ...Option) (*Visitor, error) {
	return LoadFile(ctx, fs, path, NewBinaryFormat(opts...))
}

// LoadText 从 fs 上的 path 读取文本存档。
func LoadText(ctx context.Context, fs afero.Fs, path string, opts ...Option) (*Visitor, error) {
	return LoadFile(ctx, fs, path, NewTextFormat(opts...))
}

// ReadFile 读取整个文件，错误统一包装为 ErrIoFailed。
func ReadFile(fs afero.Fs, path string) ([]byte, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, merr.WrapErrIoFailed(path, err, "read")
	}
	return data, nil
}

func writeFile(fs afero.Fs, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return merr.WrapErrIoFailed(path, err, "mkdir")
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		_ = fs.Remove(tmp)
		return merr.WrapErrIoFailed(path, err, "write")
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return merr.WrapErrIoFailed(path, err, "rename")
	}
	return nil
}
