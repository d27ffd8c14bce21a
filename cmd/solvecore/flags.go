package main

import (
	"os"
	"path/filepath"
	"strings"
)

// resolvePrefix picks the target environment: an explicit -p path wins,
// then -n resolves against RootPrefix/envs, then the root prefix itself
// (the base environment) is the default, per spec.md §6's envs-directory
// search list.
func resolvePrefix(appCtx *Context, prefixFlag, nameFlag string) string {
	if prefixFlag != "" {
		return prefixFlag
	}
	if nameFlag != "" {
		for _, dir := range appCtx.EnvsDirs {
			candidate := filepath.Join(dir, nameFlag)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		return filepath.Join(appCtx.RootPrefix, "envs", nameFlag)
	}
	return appCtx.DefaultPrefix()
}

// channelList accumulates repeated -c/--channel flag occurrences, priority
// ordered (first flag wins ties under StrictRepoPriority), matching the
// teacher's repeated-flag idiom (cmd/dep's -add/-update take multiple
// positional args rather than a flag.Value, but repeated -c is the closest
// analogue for an ordered priority list).
type channelList []string

func (c *channelList) String() string { return strings.Join(*c, ",") }
func (c *channelList) Set(v string) error {
	*c = append(*c, v)
	return nil
}

// defaultChannels is used when the user supplies no -c flag at all.
var defaultChannels = channelList{
	"https://repo.anaconda.com/pkgs/main/linux-64",
	"https://repo.anaconda.com/pkgs/main/noarch",
}

func (c channelList) orDefault() []string {
	if len(c) == 0 {
		return []string(defaultChannels)
	}
	return []string(c)
}
