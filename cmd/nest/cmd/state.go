package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oneconcern/nest/pkg/fspath"
	"github.com/oneconcern/nest/pkg/version"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

// appFs holds the state file and the local block stores. Tests patch it with an in-memory file system.
var appFs = afero.NewOsFs()

// State is what the file system leaves to its users to remember across runs
type State struct {
	Version  string       `yaml:"version"`
	DataRoot string       `yaml:"dataRoot"`
	Mounts   []MountState `yaml:"mounts,omitempty"`
}

// MountState is a mounted private node
type MountState struct {
	Path       string `yaml:"path"`
	CapsuleKey string `yaml:"capsuleKey"`
}

func (m MountState) path() fspath.Path {
	return fspath.FromPosix(m.Path)
}

func (m MountState) capsuleKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(m.CapsuleKey)
	if err != nil {
		return nil, fmt.Errorf("invalid capsule key for mount %q: %w", m.Path, err)
	}
	return key, nil
}

func encodeCapsuleKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

func (s *State) setMount(p fspath.Path, key []byte) {
	posix := fspath.ToPosix(p, true)
	for i := range s.Mounts {
		if s.Mounts[i].Path == posix {
			s.Mounts[i].CapsuleKey = encodeCapsuleKey(key)
			return
		}
	}
	s.Mounts = append(s.Mounts, MountState{Path: posix, CapsuleKey: encodeCapsuleKey(key)})
}

func (s *State) removeMount(p fspath.Path) bool {
	posix := fspath.ToPosix(p, true)
	for i := range s.Mounts {
		if s.Mounts[i].Path == posix {
			s.Mounts = append(s.Mounts[:i], s.Mounts[i+1:]...)
			return true
		}
	}
	return false
}

func stateExists(pth string) (bool, error) {
	return afero.Exists(appFs, pth)
}

func loadState(pth string) (*State, error) {
	b, err := afero.ReadFile(appFs, pth)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no file system found at %q: run 'nest init' first", pth)
		}
		return nil, err
	}

	var state State
	if err = yaml.Unmarshal(b, &state); err != nil {
		return nil, fmt.Errorf("parsing state file %q: %w", pth, err)
	}
	if state.DataRoot == "" {
		return nil, fmt.Errorf("state file %q has no data root", pth)
	}
	return &state, nil
}

func saveState(pth string, state *State) error {
	state.Version = version.Latest
	b, err := yaml.Marshal(state)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(pth); dir != "." {
		if err = appFs.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return afero.WriteFile(appFs, pth, b, 0600)
}
