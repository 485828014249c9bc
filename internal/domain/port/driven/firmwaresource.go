package driven

import (
	"context"
	"io"

	"github.com/brewlink/brewlink/internal/domain/model"
)

// FirmwareSource fetches controller firmware releases from the remote
// repository. LatestRelease resolves the newest published release including
// the configured asset and, when present, its sha256 checksum. DownloadAsset
// streams the asset's contents.
type FirmwareSource interface {
	LatestRelease(ctx context.Context) (*model.FirmwareRelease, error)
	DownloadAsset(ctx context.Context, assetID int64) (io.ReadCloser, error)
}
