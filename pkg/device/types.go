package device

import (
	"encoding/json"

	goversion "github.com/hashicorp/go-version"

	"github.com/sidkik/cpsync/pkg/errors"
)

// MinimumWebWorkflowVersion is the first firmware release that serves the
// filesystem API.
const MinimumWebWorkflowVersion = "8.0.0"

// Listing is the body returned by a directory GET.
type Listing struct {
	Free      int64   `json:"free,omitempty"`
	Total     int64   `json:"total,omitempty"`
	BlockSize int64   `json:"block_size,omitempty"`
	Writable  bool    `json:"writable,omitempty"`
	Files     []Entry `json:"files"`
}

// Entry is a single child in a directory listing.
type Entry struct {
	Name       string `json:"name"`
	Directory  bool   `json:"directory"`
	FileSize   int64  `json:"file_size,omitempty"`
	ModifiedNs int64  `json:"modified_ns,omitempty"`
}

// VersionInfo is the decoded `cp/version.json`. Raw holds the exact bytes the
// device sent, which is what gets persisted next to the local cache.
type VersionInfo struct {
	UID           string `json:"UID"`
	Version       string `json:"version"`
	BuildDate     string `json:"build_date"`
	BoardName     string `json:"board_name"`
	BoardID       string `json:"board_id"`
	MCUName       string `json:"mcu_name"`
	CreatorID     int64  `json:"creator_id"`
	CreationID    int64  `json:"creation_id"`
	Hostname      string `json:"hostname"`
	Port          int    `json:"port"`
	IP            string `json:"ip"`
	WebAPIVersion int    `json:"web_api_version"`

	Raw json.RawMessage `json:"-"`
}

// versionInfoJSON decodes the UID separately, since it's only usable as a
// string.
type versionInfoJSON struct {
	VersionInfo
	UID json.RawMessage `json:"UID"`
}

// ParseVersionInfo decodes a `cp/version.json` payload. A UID that isn't a
// string is left empty, so that the device is treated as unidentified rather
// than failing to decode.
func ParseVersionInfo(raw []byte) (VersionInfo, error) {
	var decoded versionInfoJSON
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return VersionInfo{}, errors.WithContext(err, "decode version info")
	}

	info := decoded.VersionInfo
	var uid string
	if err := json.Unmarshal(decoded.UID, &uid); err == nil {
		info.UID = uid
	}
	info.Raw = append(json.RawMessage{}, raw...)
	return info, nil
}

// Supported returns whether the firmware version is new enough to serve the
// filesystem API.
func (info VersionInfo) Supported() (bool, error) {
	if info.Version == "" {
		return false, errors.MissingFieldError{Field: "version"}
	}

	current, err := goversion.NewVersion(info.Version)
	if err != nil {
		return false, errors.WithContext(err, "parse firmware version")
	}
	minimum := goversion.Must(goversion.NewVersion(MinimumWebWorkflowVersion))
	return !current.LessThan(minimum), nil
}

// DiskInfo describes one mounted filesystem, from `cp/diskinfo.json`.
type DiskInfo struct {
	Root      string `json:"root"`
	Free      int64  `json:"free"`
	BlockSize int64  `json:"block_size"`
	Writable  bool   `json:"writable"`
	Total     int64  `json:"total"`
}

// Devices lists the other web workflow devices the device has seen on the
// network, from `cp/devices.json`.
type Devices struct {
	Total   int          `json:"total"`
	Devices []PeerDevice `json:"devices"`
}

// PeerDevice is a single entry of Devices.
type PeerDevice struct {
	Hostname     string `json:"hostname"`
	InstanceName string `json:"instance_name"`
	Port         int    `json:"port"`
	IP           string `json:"ip"`
}
