package descriptor

import "github.com/blang/semver"

// CompatibleRevision reports whether a caller built against wantRevision
// can safely invoke a service exported with gotRevision, per the "revision"
// parameter described in spec §6 ("Implementation revision for
// compatibility").
//
// Grounded on kryptco-kr's IsLatestKrdRunning, which compares
// the daemon's running version against the client's expected version with
// blang/semver before trusting a connection; here we apply the same
// semver-compatibility rule to a descriptor's advertised revision instead
// of a daemon handshake.
//
// Two revisions are compatible when they share the same major version;
// an empty or unparsable revision on either side is treated as
// compatible (revision is an optional compatibility hint, not a hard
// requirement; spec §6 does not make it mandatory).
func CompatibleRevision(wantRevision, gotRevision string) bool {
	if wantRevision == "" || gotRevision == "" {
		return true
	}
	want, err := semver.Parse(wantRevision)
	if err != nil {
		return true
	}
	got, err := semver.Parse(gotRevision)
	if err != nil {
		return true
	}
	return want.Major == got.Major
}
