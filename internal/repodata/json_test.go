package repodata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamba-org/solvecore/internal/pool"
)

const sampleRepodata = `{
  "info": {"subdir": "linux-64"},
  "packages": {
    "python-3.9.0-h1.tar.bz2": {
      "name": "python", "version": "3.9.0", "build": "h1", "build_number": 0,
      "depends": [], "subdir": "linux-64", "timestamp": 1000, "size": 100
    },
    "numpy-1.23.0-py39h1.tar.bz2": {
      "name": "numpy", "version": "1.23.0", "build": "py39h1", "build_number": 0,
      "depends": ["python >=3.9,<3.10"], "subdir": "linux-64", "timestamp": 1001, "size": 200
    }
  },
  "packages.conda": {},
  "removed": ["old-1.0-h0.tar.bz2"]
}`

func TestLoadFromJSON(t *testing.T) {
	p := pool.New(pool.Options{})
	repo := p.AddRepo("conda-forge/linux-64")

	err := LoadFromJSON(p, repo, []byte(sampleRepodata), "https://conda.anaconda.org/conda-forge", HTTPMetadata{}, Options{})
	require.NoError(t, err)

	p.CreateWhatprovides()

	r := p.Repo(repo)
	require.Len(t, r.Solvables(), 2)

	var numpy *pool.Solvable
	for _, sid := range r.Solvables() {
		s := p.Solvable(sid)
		if p.String(s.Name) == "numpy" {
			numpy = s
		}
	}
	require.NotNil(t, numpy)
	require.Len(t, numpy.Dependencies, 1)

	provides, err := p.WhatProvides(numpy.Dependencies[0])
	require.NoError(t, err)
	assert.Len(t, provides, 1)
}

func TestLoadFromJSONMalformed(t *testing.T) {
	p := pool.New(pool.Options{})
	repo := p.AddRepo("bad")
	err := LoadFromJSON(p, repo, []byte("{not json"), "https://example", HTTPMetadata{}, Options{})
	assert.Error(t, err)
}

func TestAddPipAsPythonDependency(t *testing.T) {
	p := pool.New(pool.Options{})
	repo := p.AddRepo("conda-forge/linux-64")
	data := `{"info":{"subdir":"linux-64"},"packages":{
		"python-3.9.0-h1.tar.bz2":{"name":"python","version":"3.9.0","build":"h1","depends":[]},
		"pip-21.0-py39h1.tar.bz2":{"name":"pip","version":"21.0","build":"py39h1","depends":[]}
	}}`
	err := LoadFromJSON(p, repo, []byte(data), "https://conda.anaconda.org/conda-forge", HTTPMetadata{}, Options{AddPipAsPythonDependency: true})
	require.NoError(t, err)

	var python, pip *pool.Solvable
	for _, sid := range p.Repo(repo).Solvables() {
		s := p.Solvable(sid)
		switch p.String(s.Name) {
		case "python":
			python = s
		case "pip":
			pip = s
		}
	}
	require.NotNil(t, python)
	require.NotNil(t, pip)
	assert.Len(t, python.Dependencies, 1)
	assert.Len(t, pip.Dependencies, 1)
}
