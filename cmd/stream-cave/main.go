// Package main implements stream-cave, the CLI front end for managing the
// daemon's schedule and token out of band: `token {create|delete}`,
// `stream {add|edit|remove|list}`, and `play <login> [<quality>|audio]`.
// It is a thin port of stream-cave.rs's clap-based Commands enum onto
// manual subcommand dispatch over os.Args (no CLI-parsing library is
// wired in).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"streamcave/internal/authflow"
	"streamcave/internal/config"
	"streamcave/internal/helix"
	"streamcave/internal/player"
	"streamcave/internal/schedule"
	"streamcave/internal/token"
)

const (
	clientID         = "uty2ua26tqh28rzn3jketggzu98t6b"
	searchChannelAPI = "https://api.twitch.tv/helix/search/channels"
	validateURL      = "https://id.twitch.tv/oauth2/validate"
	streamingSite    = "https://www.twitch.tv/"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "token":
		err = runToken(os.Args[2:])
	case "stream":
		err = runStream(os.Args[2:])
	case "play":
		err = runPlay(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: stream-cave <token|stream|play> ...")
}

func configDir() string {
	if dir := os.Getenv("STREAM_CAVE_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "."
}

// runToken implements `token create` and `token delete`.
func runToken(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: stream-cave token <create|delete> [dir]")
	}
	dir := configDir()
	if len(args) > 1 {
		dir = args[1]
	}

	switch args[0] {
	case "create":
		validator := &token.HTTPValidator{ValidateURL: validateURL, Client: http.DefaultClient}
		return authflow.Create(clientID, dir, os.Stdin, os.Stdout, validator)
	case "delete":
		path := filepath.Join(dir, "user-data.json")
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("unable to delete file: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown token action %q", args[0])
	}
}

// runStream implements `stream add/edit/remove/list`.
func runStream(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: stream-cave stream <add|edit|remove|list> ...")
	}
	dir := configDir()

	streams := schedule.Read(dir)

	switch args[0] {
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: stream-cave stream add <login> [profile,quality ...]")
		}
		login := args[1]
		overrides, err := parseOverrides(args[2:])
		if err != nil {
			return err
		}

		validator := &token.HTTPValidator{ValidateURL: validateURL, Client: http.DefaultClient}
		tok, err := validator.Validate(mustReadToken(dir))
		if err != nil {
			return fmt.Errorf("please retry creating a token: %w", err)
		}

		client := &helix.Client{SearchURL: searchChannelAPI, ClientID: clientID, HTTPClient: http.DefaultClient}
		var broadcasterID uint32
		status, err := client.SearchChannel(context.Background(), tok.Secret, login)
		switch {
		case err != nil:
			return fmt.Errorf("searching for streamer: %w", err)
		case status.Result == nil:
			fmt.Fprintln(os.Stderr, "Unable to find streamer.")
		default:
			id, convErr := strconv.ParseUint(status.Result.ID, 10, 32)
			if convErr != nil {
				return fmt.Errorf("parsing broadcaster id: %w", convErr)
			}
			broadcasterID = uint32(id)
		}

		streams.Add(schedule.StreamConfig{
			Login:            login,
			BroadcasterID:    broadcasterID,
			QualityOverrides: overrides,
		})
		return streams.Write(dir)

	case "edit":
		if len(args) < 2 {
			return fmt.Errorf("usage: stream-cave stream edit <login> [profile,quality ...]")
		}
		login := args[1]
		overrides, err := parseOverrides(args[2:])
		if err != nil {
			return err
		}
		if err := streams.Edit(login, overrides); err != nil {
			return err
		}
		return streams.Write(dir)

	case "remove":
		if len(args) < 2 {
			return fmt.Errorf("usage: stream-cave stream remove <login>")
		}
		if _, ok := streams.Remove(args[1]); !ok {
			fmt.Fprintln(os.Stderr, "Streamer does not exist in file")
		}
		return streams.Write(dir)

	case "list":
		for _, entry := range streams.Entries() {
			fmt.Printf("%s (id %d)\n", entry.Login, entry.BroadcasterID)
		}
		return nil

	default:
		return fmt.Errorf("unknown stream action %q", args[0])
	}
}

// parseOverrides parses "profile,quality" tokens into QualityOverride
// values, matching add_stream/edit_stream's comma-separated format.
func parseOverrides(args []string) ([]schedule.QualityOverride, error) {
	overrides := make([]schedule.QualityOverride, 0, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed quality override %q, want profile,quality", arg)
		}
		quality, err := strconv.ParseUint(parts[1], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("unable to parse quality in %q: %w", arg, err)
		}
		overrides = append(overrides, schedule.QualityOverride{Profile: parts[0], Quality: uint16(quality)})
	}
	return overrides, nil
}

func mustReadToken(dir string) string {
	data, err := token.FromFile(filepath.Join(dir, "user-data.json"))
	if err != nil {
		return ""
	}
	return data.AccessToken
}

// runPlay implements `play <login> [<quality>|audio]`, reusing the same
// argv-construction package the daemon's Spawner uses.
func runPlay(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: stream-cave play <login> [<quality>|audio]")
	}
	login := args[0]
	quality := uint16(1080)
	if len(args) > 1 {
		if args[1] == "audio" {
			quality = 0
		} else {
			parsed, err := strconv.ParseUint(args[1], 10, 16)
			if err != nil {
				return fmt.Errorf("please enter a number for stream quality or \"audio\" for audio only")
			}
			quality = uint16(parsed)
		}
	}

	result := player.Spawn(config.Mpv, streamingSite, player.Request{Login: login, Quality: quality})
	if result.Err != nil {
		return fmt.Errorf("unable to play stream: %w", result.Err)
	}
	return nil
}
