// Package merge decides how a local profile and a remote snapshot are
// reconciled. Resolution is whole-snapshot last-writer-wins.
package merge

import "github.com/hyperengineering/lifexp/internal/types"

// Decision is the outcome of Resolve.
type Decision int

const (
	// PushLocal overwrites the remote with the local profile.
	PushLocal Decision = iota
	// UseRemote replaces the local profile with the remote state.
	UseRemote
)

func (d Decision) String() string {
	if d == UseRemote {
		return "use_remote"
	}
	return "push_local"
}

// Resolve picks the winning side. A nil remote, or one without state, means
// there is nothing to pull and the local profile is pushed.
func Resolve(local *types.Profile, remote *types.RemoteSnapshot) Decision {
	if remote == nil || remote.State == nil {
		return PushLocal
	}
	if local == nil || local.Meta.FreshInstall {
		return UseRemote
	}
	if remote.UpdatedAt.After(local.Meta.UpdatedAt) {
		return UseRemote
	}
	return PushLocal
}
