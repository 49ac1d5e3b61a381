package rpc

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// checkVersionCompatibility validates an icpcctl client's version against
// this daemon's, rejecting a request only when the two could disagree on
// wire schema. An empty clientVersion (an old client, or one built without
// ldflags) always passes — the check only tightens once both sides report
// a real version.
func (s *Server) checkVersionCompatibility(clientVersion string) error {
	if clientVersion == "" {
		return nil
	}

	serverVer := normalizeSemver(s.info.Version)
	clientVer := normalizeSemver(clientVersion)

	if !semver.IsValid(serverVer) || !semver.IsValid(clientVer) {
		// Versions that are not valid semver even with a "v" prefix (e.g.
		// "dev") stay unchecked.
		return nil
	}

	serverMajor := semver.Major(serverVer)
	clientMajor := semver.Major(clientVer)
	if serverMajor != clientMajor {
		if semver.Compare(serverVer, clientVer) < 0 {
			return fmt.Errorf("incompatible major versions: icpcctl %s, icpcd %s; upgrade and restart icpcd", clientVersion, s.info.Version)
		}
		return fmt.Errorf("incompatible major versions: icpcctl %s, icpcd %s; upgrade icpcctl to match icpcd's major version", clientVersion, s.info.Version)
	}

	if semver.Compare(serverVer, clientVer) < 0 {
		return fmt.Errorf("icpcd %s is older than icpcctl %s; upgrade and restart icpcd", s.info.Version, clientVersion)
	}
	return nil
}

func normalizeSemver(v string) string {
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
