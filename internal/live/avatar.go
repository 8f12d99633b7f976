package live

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

var (
	adjectives = []string{
		"Misty", "Happy", "Quiet", "Bright", "Swift", "Gentle",
		"Bold", "Calm", "Eager", "Mellow", "Clever", "Lucky",
		"Brave", "Kind", "Wise", "Jolly", "Noble", "Zesty",
	}
	animals = []string{
		"Fox", "Frog", "Owl", "Deer", "Wolf", "Bear",
		"Lynx", "Hawk", "Otter", "Raven", "Seal", "Eagle",
		"Panda", "Tiger", "Koala", "Dove", "Swan", "Hare",
	}
)

type identity struct {
	Avatar string `toml:"avatar"`
}

// GenerateAvatar returns a random "Adjective Animal" name such as "Misty Fox".
func GenerateAvatar() string {
	return adjectives[rand.IntN(len(adjectives))] + " " + animals[rand.IntN(len(animals))]
}

// LoadOrCreateAvatar returns the avatar saved at path, generating and saving
// one on first use so a device keeps the same name.
func LoadOrCreateAvatar(path string) (string, error) {
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var id identity
		if err := toml.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("parse %s: %w", path, err)
		}
		if id.Avatar != "" {
			return id.Avatar, nil
		}
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return ResetAvatar(path)
}

// ResetAvatar saves a freshly generated avatar at path and returns it.
func ResetAvatar(path string) (string, error) {
	avatar := GenerateAvatar()
	raw, err := toml.Marshal(identity{Avatar: avatar})
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return avatar, nil
}
