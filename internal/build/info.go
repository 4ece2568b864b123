package build

import (
	"crypto/fips140"
	"runtime/debug"
	"slices"
	"strconv"
)

var (
	// gitTag is the git tag the mock collector was built from.
	gitTag = "main"
	// gitCommit is the git commit hash the mock collector was built from.
	gitCommit = "unknown"
	// gitTreeState is the state of the git tree when the mock collector was built.
	gitTreeState = "unknown"
)

// InfoMap returns the build information used as constant labels of the build_info metric
// and as fields of the startup log line.
func InfoMap() map[string]string {
	return map[string]string{
		"git_tag":           gitTag,
		"git_commit":        shortenedGitCommit(),
		"go_version":        goVersion(),
		"git_tree_state":    gitTreeState,
		"fips_mode_enabled": strconv.FormatBool(fips140.Enabled()),
	}
}

// KeysAndValues returns InfoMap flattened into logr key/value pairs, sorted by key.
func KeysAndValues() []any {
	info := InfoMap()

	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	kv := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		kv = append(kv, k, info[k])
	}

	return kv
}

func GitTag() string {
	return gitTag
}

func shortenedGitCommit() string {
	if gitCommit == "" {
		return "unknown"
	}

	const shortSHALength = 7
	if len(gitCommit) > shortSHALength {
		return gitCommit[:shortSHALength]
	}

	return gitCommit
}

var readBuildInfo = debug.ReadBuildInfo

func goVersion() string {
	buildInfo, ok := readBuildInfo()
	if !ok {
		return "unknown"
	}

	return buildInfo.GoVersion
}
