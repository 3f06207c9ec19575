// Package update provides self-update functionality for blueprinter.
package update

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/creativeprojects/go-selfupdate"
)

const (
	// Repository owner and name for GitHub releases.
	repoOwner = "cameronsjo"
	repoName  = "blueprinter"
)

// Release contains information about an available update.
type Release struct {
	Version     string
	ReleaseURL  string
	PublishedAt string
	Changelog   string
}

// Updater finds and installs releases.
type Updater struct {
	updater *selfupdate.Updater
	slug    selfupdate.RepositorySlug
}

// New creates an Updater backed by GitHub releases.
func New() (*Updater, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("creating update source: %w", err)
	}

	updater, err := selfupdate.NewUpdater(selfupdate.Config{
		Source: source,
	})
	if err != nil {
		return nil, fmt.Errorf("creating updater: %w", err)
	}

	return &Updater{
		updater: updater,
		slug:    selfupdate.NewRepositorySlug(repoOwner, repoName),
	}, nil
}

// Check reports whether a release newer than currentVersion exists.
func (u *Updater) Check(ctx context.Context, currentVersion string) (*Release, bool, error) {
	latest, found, err := u.updater.DetectLatest(ctx, u.slug)
	if err != nil {
		return nil, false, fmt.Errorf("detecting latest version: %w", err)
	}
	if !found || latest.LessOrEqual(currentVersion) {
		return nil, false, nil
	}
	return toRelease(latest), true, nil
}

// Apply installs the latest release over the running binary. It returns nil
// when already up to date.
func (u *Updater) Apply(ctx context.Context, currentVersion string) (*Release, error) {
	latest, found, err := u.updater.DetectLatest(ctx, u.slug)
	if err != nil {
		return nil, fmt.Errorf("detecting latest version: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no releases found for %s/%s", repoOwner, repoName)
	}

	if latest.LessOrEqual(currentVersion) {
		return nil, nil // Already up to date
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return nil, fmt.Errorf("getting executable path: %w", err)
	}

	if err := u.updater.UpdateTo(ctx, latest, exe); err != nil {
		return nil, fmt.Errorf("updating binary: %w", err)
	}

	return toRelease(latest), nil
}

func toRelease(r *selfupdate.Release) *Release {
	return &Release{
		Version:     r.Version(),
		ReleaseURL:  r.URL,
		PublishedAt: r.PublishedAt.Format("2006-01-02"),
		Changelog:   r.ReleaseNotes,
	}
}

// ChangelogExcerpt returns at most maxLines lines of changelog and how many
// lines were left out.
func ChangelogExcerpt(changelog string, maxLines int) ([]string, int) {
	changelog = strings.TrimSpace(changelog)
	if changelog == "" {
		return nil, 0
	}
	lines := strings.Split(changelog, "\n")
	if len(lines) <= maxLines {
		return lines, 0
	}
	return lines[:maxLines], len(lines) - maxLines
}

// GetPlatformInfo returns the current platform information.
func GetPlatformInfo() string {
	return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
}
