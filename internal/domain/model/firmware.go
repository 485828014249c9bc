package model

import "time"

// FirmwareRelease describes one published controller firmware release.
type FirmwareRelease struct {
	Tag         string
	Notes       string // release notes, markdown
	AssetName   string
	AssetID     int64
	Checksum    string // hex sha256 of the asset; empty when the release ships none
	PublishedAt time.Time
}

// UpdateStatus is the daemon's view of the firmware update state.
type UpdateStatus struct {
	Installed       string // installed firmware tag; empty before first apply
	Available       string // newest published firmware tag
	UpdateAvailable bool
	CheckedAt       time.Time
}
