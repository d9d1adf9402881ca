package config

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	getter "github.com/hashicorp/go-getter"
)

// fetchTimeout bounds a remote chain config download
const fetchTimeout = 120 * time.Second

// ResolveChainConfig returns a local path for src. Existing local files are used as is; anything
// else is treated as a go-getter source (https://, git::, s3::, gcs::) and downloaded into dstDir.
func ResolveChainConfig(ctx context.Context, src, dstDir string) (string, error) {
	if src == "" {
		return "", fmt.Errorf("chain config source is empty")
	}
	if info, err := os.Stat(src); err == nil && !info.IsDir() {
		return src, nil
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}
	dst := filepath.Join(dstDir, "chains"+configExt(src))

	pwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	client := getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeFile,
	}
	if err := client.Get(); err != nil {
		return "", fmt.Errorf("failed to download chain config from %s: %w", src, err)
	}
	return dst, nil
}

// configExt keeps the .json extension of a remote source so the loader picks the right parser.
func configExt(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	if strings.EqualFold(path.Ext(src), ".json") {
		return ".json"
	}
	return ".toml"
}
