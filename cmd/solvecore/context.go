package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Context is the process-wide configuration solvecore threads explicitly
// into every constructor, mirroring the teacher's dep.Ctx (context.go):
// no global singleton, read once at the entry point from the environment
// variables spec.md §6 names, all of them optional and defaulted.
type Context struct {
	RootPrefix           string
	EnvsDirs             []string
	HTTPTimeout          time.Duration
	MaxParallelDownloads int
	SSLVerify            bool
	NoProgress           bool
	AlwaysYes            bool
}

const (
	envRootPrefix  = "SOLVECORE_ROOT_PREFIX"
	envEnvsDirs    = "SOLVECORE_ENVS_DIRS"
	envHTTPTimeout = "SOLVECORE_HTTP_TIMEOUT"
	envMaxParallel = "SOLVECORE_MAX_PARALLEL_DOWNLOADS"
	envSSLVerify   = "SOLVECORE_SSL_VERIFY"
	envNoProgress  = "SOLVECORE_NO_PROGRESS"
	envAlwaysYes   = "SOLVECORE_ALWAYS_YES"
)

// NewContext builds a Context from env, falling back to defaults for
// anything unset or unparseable. env is in os.Environ() form ("K=V"),
// passed explicitly rather than read from the package-global os.Environ
// so tests can supply a fixed environment.
func NewContext(env []string) *Context {
	home, _ := os.UserHomeDir()
	c := &Context{
		RootPrefix:           filepath.Join(home, ".solvecore"),
		EnvsDirs:             nil,
		HTTPTimeout:          30 * time.Second,
		MaxParallelDownloads: 5,
		SSLVerify:            true,
		NoProgress:           false,
		AlwaysYes:            false,
	}

	if v := getEnv(env, envRootPrefix); v != "" {
		c.RootPrefix = v
	}
	if v := getEnv(env, envEnvsDirs); v != "" {
		c.EnvsDirs = filepath.SplitList(v)
	}
	if v := getEnv(env, envHTTPTimeout); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.HTTPTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := getEnv(env, envMaxParallel); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxParallelDownloads = n
		}
	}
	if v := getEnv(env, envSSLVerify); v != "" {
		c.SSLVerify = parseBool(v, c.SSLVerify)
	}
	if v := getEnv(env, envNoProgress); v != "" {
		c.NoProgress = parseBool(v, c.NoProgress)
	}
	if v := getEnv(env, envAlwaysYes); v != "" {
		c.AlwaysYes = parseBool(v, c.AlwaysYes)
	}

	return c
}

// PkgCacheDir is where downloaded archives and their extracted trees live,
// a subdirectory of the root prefix per spec.md §4.D.
func (c *Context) PkgCacheDir() string { return filepath.Join(c.RootPrefix, "pkgs") }

// CacheRoot is where the binary repodata cache (spec.md §4.B) lives.
func (c *Context) CacheRoot() string { return filepath.Join(c.RootPrefix, "cache") }

// DefaultPrefix is the target environment when no -p/-n flag names one.
func (c *Context) DefaultPrefix() string { return filepath.Join(c.RootPrefix) }

// getEnv returns the last instance of key in env, matching the teacher's
// main.go getEnv (last-instance-wins, same as a real process environment).
func getEnv(env []string, key string) string {
	for i := len(env) - 1; i >= 0; i-- {
		kv := strings.SplitN(env[i], "=", 2)
		if kv[0] == key {
			if len(kv) > 1 {
				return kv[1]
			}
			return ""
		}
	}
	return ""
}

func parseBool(v string, def bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
