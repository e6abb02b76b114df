package scan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoHomeDir is returned when a user-relative root cannot be resolved.
var ErrNoHomeDir = errors.New("home directory unavailable")

// Mode selects how a scan root is chosen.
type Mode uint8

const (
	ModeCurrentUser Mode = iota
	ModeAllUsers
	ModeFolder
)

func (m Mode) String() string {
	switch m {
	case ModeCurrentUser:
		return "current-user"
	case ModeAllUsers:
		return "all-users"
	case ModeFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// Command asks the engine to start a scan.
type Command struct {
	Mode Mode
	Path string // ModeFolder only
}

// CurrentUser scans the invoking user's home directory.
func CurrentUser() Command {
	return Command{Mode: ModeCurrentUser}
}

// AllUsers scans every directory next to the invoking user's home.
func AllUsers() Command {
	return Command{Mode: ModeAllUsers}
}

// FolderSelected scans path as given.
func FolderSelected(path string) Command {
	return Command{Mode: ModeFolder, Path: path}
}

// Resolver turns a Command into a root directory.
type Resolver struct {
	// HomeDir returns the invoking user's home directory.
	HomeDir func() (string, error)
}

// NewResolver returns a resolver backed by os.UserHomeDir.
func NewResolver() *Resolver {
	return &Resolver{HomeDir: os.UserHomeDir}
}

// Resolve returns the root directory for cmd.
func (r *Resolver) Resolve(cmd Command) (string, error) {
	switch cmd.Mode {
	case ModeFolder:
		if cmd.Path == "" {
			return "", fmt.Errorf("no folder selected")
		}
		return filepath.Clean(cmd.Path), nil
	case ModeCurrentUser, ModeAllUsers:
		home, err := r.home()
		if err != nil {
			return "", err
		}
		if cmd.Mode == ModeAllUsers {
			return filepath.Dir(home), nil
		}
		return home, nil
	default:
		return "", fmt.Errorf("unknown scan mode %d", cmd.Mode)
	}
}

func (r *Resolver) home() (string, error) {
	lookup := r.HomeDir
	if lookup == nil {
		lookup = os.UserHomeDir
	}
	home, err := lookup()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoHomeDir, err)
	}
	if home == "" {
		return "", ErrNoHomeDir
	}
	return filepath.Clean(home), nil
}
