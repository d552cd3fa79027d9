// Package remote runs the post-sync half of a deployment: it logs in over
// SSH, confirms the session belongs to the configured user, and runs the
// target command inside the target directory.
package remote
