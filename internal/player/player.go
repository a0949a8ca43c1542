// Package player turns a (login, quality) play request into a running
// mpv or streamlink child process and reports how it exited. It is the
// Player Spawner actor from the specification's §4.5.
package player

import (
	"errors"
	"fmt"
	"os/exec"

	"streamcave/internal/config"
)

// Request is one play request emitted by the Event Correlator: watch
// login at the given quality (0 means audio-only).
type Request struct {
	Login   string
	Quality uint16
}

// ExitResult is the outcome of a finished child process: either it ran to
// completion (Err nil, Success set from the OS exit status) or it
// never ran at all (Err set, a spawn/IO failure).
type ExitResult struct {
	Success bool
	Err     error
}

// Exit pairs a play request's login with how its child process ended, the
// unit the Diagnoser consumes.
type Exit struct {
	Login  string
	Result ExitResult
}

// buildArgs reproduces the argv table from §4.5 exactly: two players,
// crossed with audio-only (quality 0) versus a height cap.
func buildArgs(p config.Player, streamURL string, quality uint16) (string, []string) {
	switch p {
	case config.Streamlink:
		if quality == 0 {
			return "streamlink", []string{streamURL, "audio_only"}
		}
		return "streamlink", []string{streamURL, fmt.Sprintf("%dp", quality)}
	default:
		if quality == 0 {
			return "mpv", []string{streamURL, "--no-resume-playback", "--ytdl-format=bestaudio"}
		}
		return "mpv", []string{streamURL, "--no-resume-playback", fmt.Sprintf("--ytdl-format=best[height<=?%d]", quality)}
	}
}

// Spawn launches the child process for req and blocks until it exits. A
// non-zero exit is reported as ExitResult{Success: false} with no Err: per
// §4.6 that is an ordinary "non-success exit" the Exit Diagnoser must
// investigate against the search API, not a spawn failure. Err is reserved
// for the process never having run at all (missing binary, permission
// error, and similar *exec.Error/IO failures).
func Spawn(p config.Player, streamingSite string, req Request) ExitResult {
	name, args := buildArgs(p, streamingSite+req.Login, req.Quality)
	cmd := exec.Command(name, args...)
	err := cmd.Run()
	if err == nil {
		return ExitResult{Success: true}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ExitResult{Success: false}
	}
	return ExitResult{Success: false, Err: err}
}
