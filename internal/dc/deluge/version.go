package deluge

import (
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/italolelis/torrent_feeder/internal/dc"
)

// createsMoveDirsSince is the first daemon release that creates missing
// storage and move-on-complete directories on its own.
var createsMoveDirsSince = version.Must(version.NewVersion("1.3.0"))

// CapabilitiesFor resolves version-dependent behaviour from a daemon version
// string. A version that cannot be parsed is treated as a current daemon.
// Pre-releases such as "1.3.0rc1" sort before their release.
func CapabilitiesFor(daemonVersion string) dc.Capabilities {
	v, err := version.NewVersion(strings.TrimSpace(daemonVersion))
	if err != nil {
		return dc.Capabilities{CreatesMoveDirs: true}
	}

	return dc.Capabilities{CreatesMoveDirs: v.GreaterThanOrEqual(createsMoveDirsSince)}
}
